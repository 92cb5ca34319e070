package domain

// MasterMixParams are the experimental parameters of a seeding run.
type MasterMixParams struct {
	VolumePerWellUL     float64 `json:"volume_per_well_ul"`
	CellsPerWell        float64 `json:"cells_per_well"`
	WellCount           int     `json:"well_count"`
	ExtraWells          int     `json:"extra_wells"`
	SourceConcentration float64 `json:"source_concentration"`
	UseViable           bool    `json:"use_viable"`
}

// TotalWells returns the wells to prepare, extra wells included.
func (p MasterMixParams) TotalWells() int {
	return min(p.WellCount, MaxWells) + min(max(p.ExtraWells, 0), MaxWells)
}

// Computable reports whether every guarded input is positive.
func (p MasterMixParams) Computable() bool {
	return p.VolumePerWellUL > 0 && p.CellsPerWell > 0 && p.WellCount > 0 && p.SourceConcentration > 0
}

// MasterMixResult is the recipe derived from MasterMixParams. Volumes are in
// mL and FinalConcentration in cells/mL. MediumVolumeML is never negative.
type MasterMixResult struct {
	StockVolumeML      float64 `json:"stock_volume_ml"`
	MediumVolumeML     float64 `json:"medium_volume_ml"`
	TotalVolumeML      float64 `json:"total_volume_ml"`
	FinalConcentration float64 `json:"final_concentration"`
}

// Overdrawn reports whether the stock alone exceeds the mix volume, which
// happens when the source is too dilute for the target density. The medium
// volume is clamped to 0 in that case and the recipe cannot be prepared.
func (r MasterMixResult) Overdrawn() bool {
	return r.StockVolumeML > r.TotalVolumeML
}

// IsZero reports whether r is the "not yet computable" result.
func (r MasterMixResult) IsZero() bool {
	return r == MasterMixResult{}
}

// SolveMasterMix computes the master mix recipe. When any guarded input is
// zero or negative, or the volumes overflow, every field of the result is 0.
func SolveMasterMix(p MasterMixParams) MasterMixResult {
	if !p.Computable() {
		return MasterMixResult{}
	}
	totalVolume := p.VolumePerWellUL * float64(p.TotalWells()) / 1000
	required := p.CellsPerWell * 1000 / p.VolumePerWellUL
	stock := required * totalVolume / p.SourceConcentration
	if !finite(totalVolume) || !finite(stock) {
		return MasterMixResult{}
	}
	return MasterMixResult{
		StockVolumeML:      stock,
		MediumVolumeML:     max(0, totalVolume-stock),
		TotalVolumeML:      totalVolume,
		FinalConcentration: required,
	}
}

// MasterMixInputs are the raw form fields of the master mix calculator.
type MasterMixInputs struct {
	VolumePerWell string `json:"volume_per_well"`
	CellsPerWell  string `json:"cells_per_well"`
	Wells         string `json:"wells"`
	ExtraWells    string `json:"extra_wells"`
	UseViable     bool   `json:"use_viable"`
}

// DefaultMasterMixInputs returns the defaults of a 24-well seeding run.
func DefaultMasterMixInputs() MasterMixInputs {
	return MasterMixInputs{
		VolumePerWell: "100",
		CellsPerWell:  "10000",
		Wells:         "24",
		ExtraWells:    "2",
		UseViable:     true,
	}
}

// Params parses the raw fields into solver parameters fed by source.
func (in MasterMixInputs) Params(source float64) MasterMixParams {
	return MasterMixParams{
		VolumePerWellUL:     ParseQuantity(in.VolumePerWell),
		CellsPerWell:        ParseQuantity(in.CellsPerWell),
		WellCount:           ParseWells(in.Wells),
		ExtraWells:          ParseWells(in.ExtraWells),
		SourceConcentration: source,
		UseViable:           in.UseViable,
	}
}
