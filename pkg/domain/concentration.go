package domain

// HemocytometerFactor converts cells per large square into cells/mL. A large
// square holds 1 mm² x 0.1 mm = 10⁻⁴ mL of sample.
const HemocytometerFactor = 10000

// DefaultDilutionFactor is the dilution applied by a 1:1 trypan blue mix.
const DefaultDilutionFactor = 2

// ConcentrationPair holds the total and viable cell concentrations in cells/mL.
type ConcentrationPair struct {
	Total  float64 `json:"total_cells_per_ml"`
	Viable float64 `json:"viable_cells_per_ml"`
}

// Concentration returns (cellCount / gridsCounted) x 10000 x dilutionFactor.
// The result is 0 when any input is zero or negative.
func Concentration(cellCount, gridsCounted, dilutionFactor int) float64 {
	if cellCount <= 0 || gridsCounted <= 0 || dilutionFactor <= 0 {
		return 0
	}
	return float64(cellCount) / float64(gridsCounted) * HemocytometerFactor * float64(dilutionFactor)
}

// Concentrations derives both concentrations from totals. Each member is
// computed on its own from the raw counts.
func Concentrations(totals CountTotals, dilutionFactor int) ConcentrationPair {
	return ConcentrationPair{
		Total:  Concentration(totals.TotalCells, totals.GridsCounted, dilutionFactor),
		Viable: Concentration(totals.ViableCells, totals.GridsCounted, dilutionFactor),
	}
}

// Pick returns the viable member when useViable is set, the total otherwise.
func (p ConcentrationPair) Pick(useViable bool) float64 {
	if useViable {
		return p.Viable
	}
	return p.Total
}
