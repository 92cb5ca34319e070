package export

import (
	"fmt"
	"strings"
)

// localTimestamp is the human readable "Generated on" layout.
const localTimestamp = "1/2/2006, 3:04:05 PM"

// CountText renders the clipboard summary of a count.
func CountText(r CountReport) []byte {
	var b strings.Builder
	fmt.Fprintln(&b, ReportTitle)
	fmt.Fprintf(&b, "Generated on: %s\n", r.GeneratedAt.Format(localTimestamp))
	fmt.Fprintf(&b, "Total Cell Count: %d\n", r.TotalCells)
	fmt.Fprintf(&b, "Viable Cell Count: %d\n", r.ViableCells)
	fmt.Fprintf(&b, "Non-viable Cell Count: %d\n", r.NonViableCells)
	fmt.Fprintf(&b, "Viability: %s%%\n", percent(r.ViabilityPercent))
	fmt.Fprintf(&b, "Dilution Factor: %d\n", r.DilutionFactor)
	fmt.Fprintf(&b, "Squares Counted: %d\n", r.SquaresCounted)
	fmt.Fprintf(&b, "Total Concentration: %s cells/mL\n", grouped(r.TotalConcentration))
	fmt.Fprintf(&b, "Viable Concentration: %s cells/mL\n", grouped(r.ViableConcentration))
	fmt.Fprintf(&b, "Formula: %s", FormulaText)
	return []byte(b.String())
}

// RecipeText renders the recipe card with mL and μL volumes and the
// numbered protocol.
func RecipeText(r RecipeReport) []byte {
	p, res := r.Params, r.Recipe
	var b strings.Builder
	fmt.Fprintln(&b, RecipeTitle)
	fmt.Fprintf(&b, "Generated on: %s\n", r.GeneratedAt.Format(localTimestamp))
	fmt.Fprintf(&b, "Source: %s (%s cells, %s cells/mL)\n", r.Source, strings.ToLower(cellType(p.UseViable)), grouped(p.SourceConcentration))
	fmt.Fprintf(&b, "Volume per Well: %s μL\n", plain(p.VolumePerWellUL))
	fmt.Fprintf(&b, "Cells per Well: %s\n", grouped(p.CellsPerWell))
	fmt.Fprintf(&b, "Wells: %d + %d additional\n", p.WellCount, max(p.ExtraWells, 0))
	fmt.Fprintf(&b, "Cell Stock Volume: %s mL (%s μL)\n", millilitres(res.StockVolumeML), microlitres(res.StockVolumeML))
	fmt.Fprintf(&b, "Medium Volume: %s mL (%s μL)\n", millilitres(res.MediumVolumeML), microlitres(res.MediumVolumeML))
	fmt.Fprintf(&b, "Total Mix Volume: %s mL (%s μL)\n", millilitres(res.TotalVolumeML), microlitres(res.TotalVolumeML))
	fmt.Fprintf(&b, "Final Concentration: %s cells/mL", grouped(res.FinalConcentration))
	if r.Warning != "" {
		fmt.Fprintf(&b, "\nWarning: %s", r.Warning)
	}
	if len(r.Steps) > 0 {
		b.WriteString("\n\nPreparation Protocol:")
		for i, step := range r.Steps {
			fmt.Fprintf(&b, "\n%d. %s", i+1, step)
		}
	}
	return []byte(b.String())
}
