package export

import (
	"bytes"
	"html/template"
	"strconv"
)

var printTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 40px; }
h1 { color: #333; text-align: center; }
table { width: 100%; border-collapse: collapse; margin: 20px 0; }
th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
th { background-color: #f5f5f5; font-weight: bold; }
.header { background-color: #4285f4; color: white; }
.timestamp { text-align: center; color: #666; margin-bottom: 30px; }
.formula { background-color: #f8f9fa; padding: 15px; margin-top: 20px; border-left: 4px solid #4285f4; }
.warning { color: #b00020; border-left: 4px solid #b00020; padding: 8px 12px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="timestamp">Generated on: {{.GeneratedOn}}</div>
<table>
<tr class="header"><th>Parameter</th><th>Value</th></tr>
{{- range .Rows}}
<tr><td>{{.Label}}</td><td>{{.Value}}</td></tr>
{{- end}}
</table>
{{- if .Recipe}}
<h2>{{.RecipeTitle}}</h2>
<table>
<tr class="header"><th>Component</th><th>Volume</th></tr>
{{- range .Recipe}}
<tr><td>{{.Label}}</td><td>{{.Value}}</td></tr>
{{- end}}
</table>
{{- end}}
{{- if .Warning}}
<p class="warning"><strong>Warning:</strong> {{.Warning}}</p>
{{- end}}
{{- if .Steps}}
<h3>Preparation Protocol:</h3>
<ol>
{{- range .Steps}}
<li>{{.}}</li>
{{- end}}
</ol>
{{- end}}
<div class="formula">
<h3>Calculation Formula:</h3>
<p>{{.Formula}}</p>
<p>Standard hemocytometer chamber depth: 0.1 mm</p>
<p>Each large square volume: 0.1 μL (10⁻⁴ mL)</p>
</div>
</body>
</html>
`))

type labelValue struct {
	Label string
	Value string
}

type printView struct {
	Title       string
	RecipeTitle string
	GeneratedOn string
	Rows        []labelValue
	Recipe      []labelValue
	Steps       []string
	Warning     string
	Formula     string
}

// countRows is the shared Parameter/Value table of the print and PDF reports.
func countRows(r CountReport) []labelValue {
	return []labelValue{
		{"Total Cell Count", strconv.Itoa(r.TotalCells)},
		{"Viable Cell Count", strconv.Itoa(r.ViableCells)},
		{"Non-viable Cell Count", strconv.Itoa(r.NonViableCells)},
		{"Viability", percent(r.ViabilityPercent) + "%"},
		{"Dilution Factor", strconv.Itoa(r.DilutionFactor)},
		{"Squares Counted", strconv.Itoa(r.SquaresCounted)},
		{"Total Concentration", grouped(r.TotalConcentration) + " cells/mL"},
		{"Viable Concentration", grouped(r.ViableConcentration) + " cells/mL"},
	}
}

func recipeRows(r RecipeReport) []labelValue {
	if !r.Computable() {
		return nil
	}
	res := r.Recipe
	volume := func(ml float64) string { return millilitres(ml) + " mL (" + microlitres(ml) + " μL)" }
	return []labelValue{
		{"Cell Stock Volume", volume(res.StockVolumeML)},
		{"Medium Volume", volume(res.MediumVolumeML)},
		{"Total Mix Volume", volume(res.TotalVolumeML)},
		{"Final Concentration", grouped(res.FinalConcentration) + " cells/mL"},
	}
}

// PrintHTML renders the printable report. The recipe section appears only
// when the recipe is computable.
func PrintHTML(doc Document) ([]byte, error) {
	view := printView{
		Title:       ReportTitle,
		RecipeTitle: RecipeTitle,
		GeneratedOn: doc.Count.GeneratedAt.Format(localTimestamp),
		Rows:        countRows(doc.Count),
		Recipe:      recipeRows(doc.Recipe),
		Steps:       doc.Recipe.Steps,
		Warning:     doc.Recipe.Warning,
		Formula:     FormulaText,
	}
	buf := &bytes.Buffer{}
	if err := printTemplate.Execute(buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
