package domain

// InputMode selects how counts are entered.
type InputMode string

const (
	// InputGrid collects viable/non-viable counts per square.
	InputGrid InputMode = "grid"
	// InputTotal collects one viable/non-viable pair plus a declared grid count.
	InputTotal InputMode = "total"
)

// Valid reports whether m is a known input mode.
func (m InputMode) Valid() bool {
	return m == InputGrid || m == InputTotal
}

// GridCount is the parsed count of one selected square.
type GridCount struct {
	Grid      GridID `json:"grid"`
	Viable    int    `json:"viable"`
	NonViable int    `json:"non_viable"`
}

// Total returns viable plus non-viable cells for the square.
func (g GridCount) Total() int { return g.Viable + g.NonViable }

// CountTotals is the reduction of a count form. TotalCells always equals
// ViableCells + NonViableCells.
type CountTotals struct {
	TotalCells     int         `json:"total_cells"`
	ViableCells    int         `json:"viable_cells"`
	NonViableCells int         `json:"non_viable_cells"`
	GridsCounted   int         `json:"grids_counted"`
	PerGrid        []GridCount `json:"per_grid,omitempty"`
}

// ViabilityPercent returns the share of viable cells in percent, or 0 when
// no cells were counted.
func (c CountTotals) ViabilityPercent() float64 {
	if c.TotalCells <= 0 {
		return 0
	}
	return float64(c.ViableCells) / float64(c.TotalCells) * 100
}

// AggregateGrids sums the selected squares of entries.
func AggregateGrids(entries GridEntries, selection GridSelection) CountTotals {
	ids := selection.IDs()
	totals := CountTotals{GridsCounted: len(ids), PerGrid: make([]GridCount, 0, len(ids))}
	for _, id := range ids {
		entry := entries.Get(id)
		gc := GridCount{Grid: id, Viable: ParseCount(entry.Viable), NonViable: ParseCount(entry.NonViable)}
		totals.ViableCells += gc.Viable
		totals.NonViableCells += gc.NonViable
		totals.PerGrid = append(totals.PerGrid, gc)
	}
	totals.TotalCells = totals.ViableCells + totals.NonViableCells
	return totals
}

// AggregateTotals builds totals from a flat viable/non-viable pair counted
// over declaredGrids squares. The grid count is clamped to [1, MaxGrids].
func AggregateTotals(viable, nonViable string, declaredGrids int) CountTotals {
	v := ParseCount(viable)
	n := ParseCount(nonViable)
	return CountTotals{
		TotalCells:     v + n,
		ViableCells:    v,
		NonViableCells: n,
		GridsCounted:   ClampGrids(declaredGrids),
	}
}
