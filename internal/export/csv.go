package export

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

// isoTimestamp matches the millisecond UTC form used in CSV headers.
const isoTimestamp = "2006-01-02T15:04:05.000Z"

// CountCSV renders the count report as a Parameter/Value table followed by
// the formula.
func CountCSV(r CountReport) ([]byte, error) {
	rows := [][]string{
		{ReportTitle},
		{"Timestamp", r.GeneratedAt.UTC().Format(isoTimestamp)},
		{""},
		{"Parameter", "Value"},
		{"Total Cell Count", strconv.Itoa(r.TotalCells)},
		{"Viable Cell Count", strconv.Itoa(r.ViableCells)},
		{"Non-viable Cell Count", strconv.Itoa(r.NonViableCells)},
		{"Viability (%)", percent(r.ViabilityPercent)},
		{"Dilution Factor", strconv.Itoa(r.DilutionFactor)},
		{"Squares Counted", strconv.Itoa(r.SquaresCounted)},
		{"Total Concentration (cells/mL)", strconv.FormatFloat(r.TotalConcentration, 'f', 0, 64)},
		{"Viable Concentration (cells/mL)", strconv.FormatFloat(r.ViableConcentration, 'f', 0, 64)},
		{""},
		{"Formula: " + FormulaText},
	}
	return writeCSV(rows)
}

// RecipeCSV renders the master mix parameters, component volumes and the
// preparation protocol.
func RecipeCSV(r RecipeReport) ([]byte, error) {
	p, res := r.Params, r.Recipe
	rows := [][]string{
		{RecipeTitle},
		{"Timestamp", r.GeneratedAt.UTC().Format(isoTimestamp)},
		{""},
		{"Parameter", "Value"},
		{"Concentration Source", string(r.Source)},
		{"Cell Type", cellType(p.UseViable)},
		{"Source Concentration (cells/mL)", strconv.FormatFloat(p.SourceConcentration, 'f', 0, 64)},
		{"Volume per Well (μL)", plain(p.VolumePerWellUL)},
		{"Cells per Well", plain(p.CellsPerWell)},
		{"Number of Wells", strconv.Itoa(p.WellCount)},
		{"Additional Wells", strconv.Itoa(max(p.ExtraWells, 0))},
		{""},
		{"Component", "Volume (mL)", "Volume (μL)"},
		{"Cell Stock", millilitres(res.StockVolumeML), microlitres(res.StockVolumeML)},
		{"Medium", millilitres(res.MediumVolumeML), microlitres(res.MediumVolumeML)},
		{"Total Mix", millilitres(res.TotalVolumeML), microlitres(res.TotalVolumeML)},
		{"Final Concentration (cells/mL)", strconv.FormatFloat(res.FinalConcentration, 'f', 0, 64)},
	}
	if r.Warning != "" {
		rows = append(rows, []string{"Warning", r.Warning})
	}
	if len(r.Steps) > 0 {
		rows = append(rows, []string{""}, []string{"Preparation Protocol"})
		for i, step := range r.Steps {
			rows = append(rows, []string{strconv.Itoa(i + 1), step})
		}
	}
	return writeCSV(rows)
}

func writeCSV(rows [][]string) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
