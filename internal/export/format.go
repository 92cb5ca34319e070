package export

import (
	"fmt"
	"strings"
	"time"
)

// Format names an artifact encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatText Format = "txt"
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatPNG  Format = "png"
)

// Formats lists every supported format in rendering order.
func Formats() []Format {
	return []Format{FormatCSV, FormatText, FormatHTML, FormatPDF, FormatPNG}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatPNG:
		return "image/png"
	}
	return "application/octet-stream"
}

// Valid reports whether f is supported.
func (f Format) Valid() bool {
	for _, known := range Formats() {
		if f == known {
			return true
		}
	}
	return false
}

// ParseFormats parses a comma separated list such as "csv,pdf". Duplicates
// are dropped; an empty list selects csv.
func ParseFormats(raw string) ([]Format, error) {
	seen := make(map[Format]struct{})
	var out []Format
	for _, part := range strings.Split(raw, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "" {
			continue
		}
		if f == "text" {
			f = FormatText
		}
		if !f.Valid() {
			return nil, fmt.Errorf("unsupported export format %q", part)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	if len(out) == 0 {
		out = []Format{FormatCSV}
	}
	return out, nil
}

// Artifact kinds used in file names.
const (
	KindCount     = "hemocytometer_count"
	KindMasterMix = "master_mix"
)

// FileName returns "<kind>_YYYY-MM-DD.<ext>" for the UTC date of at.
func FileName(kind string, f Format, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", kind, at.UTC().Format(time.DateOnly), f)
}
