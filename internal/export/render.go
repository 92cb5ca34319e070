package export

import "fmt"

// File is one rendered artifact before it is stored.
type File struct {
	Name        string
	Kind        string
	Format      Format
	ContentType string
	Data        []byte
}

// Render encodes doc in format f. CSV and text produce a separate master
// mix file when the recipe is computable; HTML and PDF embed the recipe;
// PNG charts the count only.
func Render(doc Document, f Format) ([]File, error) {
	at := doc.Count.GeneratedAt
	count := func(data []byte) File {
		return File{Name: FileName(KindCount, f, at), Kind: KindCount, Format: f, ContentType: f.ContentType(), Data: data}
	}
	recipe := func(data []byte) File {
		return File{Name: FileName(KindMasterMix, f, at), Kind: KindMasterMix, Format: f, ContentType: f.ContentType(), Data: data}
	}
	switch f {
	case FormatCSV:
		countCSV, err := CountCSV(doc.Count)
		if err != nil {
			return nil, fmt.Errorf("render count csv: %w", err)
		}
		files := []File{count(countCSV)}
		if doc.Recipe.Computable() {
			recipeCSV, err := RecipeCSV(doc.Recipe)
			if err != nil {
				return nil, fmt.Errorf("render recipe csv: %w", err)
			}
			files = append(files, recipe(recipeCSV))
		}
		return files, nil
	case FormatText:
		files := []File{count(CountText(doc.Count))}
		if doc.Recipe.Computable() {
			files = append(files, recipe(RecipeText(doc.Recipe)))
		}
		return files, nil
	case FormatHTML:
		payload, err := PrintHTML(doc)
		if err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		return []File{count(payload)}, nil
	case FormatPDF:
		payload, err := ReportPDF(doc)
		if err != nil {
			return nil, fmt.Errorf("render pdf: %w", err)
		}
		return []File{count(payload)}, nil
	case FormatPNG:
		payload, err := CountChartPNG(doc.Count)
		if err != nil {
			return nil, fmt.Errorf("render chart: %w", err)
		}
		return []File{count(payload)}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %s", f)
	}
}
