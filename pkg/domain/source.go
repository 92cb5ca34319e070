package domain

// SourceMode selects where the master mix stock concentration comes from.
type SourceMode string

const (
	// SourceHemocytometer feeds the solver from the counted concentrations.
	SourceHemocytometer SourceMode = "hemocytometer"
	// SourceManual feeds the solver from a typed-in concentration.
	SourceManual SourceMode = "manual"
)

// Valid reports whether m is a known source mode.
func (m SourceMode) Valid() bool {
	return m == SourceHemocytometer || m == SourceManual
}

// SourceSelection is the resolved stock concentration for the solver.
type SourceSelection struct {
	Mode          SourceMode `json:"mode"`
	Concentration float64    `json:"concentration"`
	// ManualApplied is true when a valid manual override replaced the counted value.
	ManualApplied bool `json:"manual_applied"`
	// ManualInvalid flags a non-empty override that failed validation.
	ManualInvalid bool `json:"manual_invalid"`
}

// SelectSource resolves the stock concentration. In manual mode a valid
// override replaces the counted concentration entirely; an invalid or empty
// override is not applied and the counted member chosen by useViable is used.
func SelectSource(pair ConcentrationPair, useViable bool, mode SourceMode, override string) SourceSelection {
	sel := SourceSelection{Mode: mode, Concentration: pair.Pick(useViable)}
	if mode != SourceManual {
		return sel
	}
	value, ok := ParseManualConcentration(override)
	if !ok {
		sel.ManualInvalid = override != ""
		return sel
	}
	sel.Concentration = value
	sel.ManualApplied = true
	return sel
}
