package export

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
)

// The core PDF fonts are cp1252; μ and superscripts have no glyph there.
var pdfReplacer = strings.NewReplacer("μ", "µ", "⁻⁴", "^-4")

// ReportPDF renders the count table, the recipe and the protocol on one A4
// page using the built-in Helvetica font.
func ReportPDF(doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(ReportTitle, true)
	pdf.SetCreator("hemocount", true)
	if !doc.Count.GeneratedAt.IsZero() {
		pdf.SetCreationDate(doc.Count.GeneratedAt)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(pdfReplacer.Replace(s)) }

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, text(ReportTitle), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(0, 8, text("Generated on: "+doc.Count.GeneratedAt.Format(localTimestamp)), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	table := func(header [2]string, rows []labelValue) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetFillColor(66, 133, 244)
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(80, 8, text(header[0]), "1", 0, "L", true, 0, "")
		pdf.CellFormat(100, 8, text(header[1]), "1", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", 11)
		for _, row := range rows {
			pdf.CellFormat(80, 8, text(row.Label), "1", 0, "L", false, 0, "")
			pdf.CellFormat(100, 8, text(row.Value), "1", 1, "L", false, 0, "")
		}
		pdf.Ln(6)
	}

	table([2]string{"Parameter", "Value"}, countRows(doc.Count))
	if rows := recipeRows(doc.Recipe); len(rows) > 0 {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 9, text(RecipeTitle), "", 1, "L", false, 0, "")
		table([2]string{"Component", "Volume"}, rows)
	}
	if doc.Recipe.Warning != "" {
		pdf.SetTextColor(176, 0, 32)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(0, 6, text("Warning: "+doc.Recipe.Warning), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}
	if len(doc.Recipe.Steps) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, text("Preparation Protocol:"), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for i, step := range doc.Recipe.Steps {
			pdf.MultiCell(0, 6, text(strconv.Itoa(i+1)+". "+step), "", "L", false)
		}
		pdf.Ln(4)
	}

	pdf.SetFillColor(248, 249, 250)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, text("Calculation Formula:"), "", 1, "L", true, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range []string{
		FormulaText,
		"Standard hemocytometer chamber depth: 0.1 mm",
		"Each large square volume: 0.1 μL (10⁻⁴ mL)",
	} {
		pdf.MultiCell(0, 6, text(line), "", "L", true)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
