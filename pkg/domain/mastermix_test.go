package domain

import (
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-5 }

func TestSolveMasterMixScenario(t *testing.T) {
	params := MasterMixParams{
		VolumePerWellUL:     100,
		CellsPerWell:        10000,
		WellCount:           24,
		ExtraWells:          2,
		SourceConcentration: 900_000,
	}
	if params.TotalWells() != 26 {
		t.Fatalf("total wells = %d", params.TotalWells())
	}
	res := SolveMasterMix(params)
	if !approx(res.TotalVolumeML, 2.6) {
		t.Fatalf("total volume = %v", res.TotalVolumeML)
	}
	if !approx(res.FinalConcentration, 100_000) {
		t.Fatalf("final concentration = %v", res.FinalConcentration)
	}
	if !approx(res.StockVolumeML, 0.28889) {
		t.Fatalf("stock volume = %v", res.StockVolumeML)
	}
	if !approx(res.MediumVolumeML, 2.31111) {
		t.Fatalf("medium volume = %v", res.MediumVolumeML)
	}
	if res.Overdrawn() || res.IsZero() {
		t.Fatalf("unexpected recipe flags for %+v", res)
	}
}

func TestSolveMasterMixGuardsToZero(t *testing.T) {
	base := MasterMixParams{VolumePerWellUL: 100, CellsPerWell: 10000, WellCount: 24, ExtraWells: 2, SourceConcentration: 900_000}
	cases := map[string]func(*MasterMixParams){
		"source zero":     func(p *MasterMixParams) { p.SourceConcentration = 0 },
		"source negative": func(p *MasterMixParams) { p.SourceConcentration = -1 },
		"volume zero":     func(p *MasterMixParams) { p.VolumePerWellUL = 0 },
		"cells negative":  func(p *MasterMixParams) { p.CellsPerWell = -10 },
		"wells zero":      func(p *MasterMixParams) { p.WellCount = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := base
			mutate(&p)
			if res := SolveMasterMix(p); !res.IsZero() {
				t.Fatalf("expected zero result, got %+v", res)
			}
		})
	}
}

func TestSolveMasterMixIdempotent(t *testing.T) {
	params := MasterMixParams{VolumePerWellUL: 150, CellsPerWell: 5000, WellCount: 96, ExtraWells: 4, SourceConcentration: 1.25e6}
	first := SolveMasterMix(params)
	second := SolveMasterMix(params)
	if first != second {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
}

func TestSolveMasterMixClampsMedium(t *testing.T) {
	res := SolveMasterMix(MasterMixParams{VolumePerWellUL: 100, CellsPerWell: 100000, WellCount: 10, SourceConcentration: 500_000})
	if res.MediumVolumeML != 0 {
		t.Fatalf("medium volume should clamp to 0, got %v", res.MediumVolumeML)
	}
	if !res.Overdrawn() {
		t.Fatalf("expected overdrawn recipe: %+v", res)
	}
}

func TestSolveMasterMixIgnoresNegativeExtraWells(t *testing.T) {
	res := SolveMasterMix(MasterMixParams{VolumePerWellUL: 100, CellsPerWell: 1000, WellCount: 10, ExtraWells: -4, SourceConcentration: 1e6})
	if !approx(res.TotalVolumeML, 1.0) {
		t.Fatalf("expected 1 mL for 10 wells, got %v", res.TotalVolumeML)
	}
}

func TestMasterMixInputsParams(t *testing.T) {
	in := DefaultMasterMixInputs()
	p := in.Params(9e5)
	if p.VolumePerWellUL != 100 || p.CellsPerWell != 10000 || p.WellCount != 24 || p.ExtraWells != 2 || !p.UseViable {
		t.Fatalf("unexpected defaults %+v", p)
	}
	in.Wells = "abc"
	in.VolumePerWell = "-3"
	p = in.Params(9e5)
	if p.WellCount != 0 || p.VolumePerWellUL != 0 || p.Computable() {
		t.Fatalf("expected fail-soft zero params, got %+v", p)
	}
}

func TestMasterMixHugeInputsStayNonNegative(t *testing.T) {
	cases := []MasterMixInputs{
		{VolumePerWell: "100", CellsPerWell: "10000", Wells: "9e18", ExtraWells: "9e18"},
		{VolumePerWell: "100", CellsPerWell: "10000", Wells: "1e20", ExtraWells: "2"},
		{VolumePerWell: "1e308", CellsPerWell: "1e308", Wells: "24", ExtraWells: "2"},
	}
	for _, in := range cases {
		p := in.Params(9e5)
		if p.WellCount < 0 || p.WellCount > MaxWells || p.ExtraWells > MaxWells || p.TotalWells() < p.WellCount {
			t.Fatalf("%+v: unexpected wells %+v", in, p)
		}
		r := SolveMasterMix(p)
		for _, v := range []float64{r.StockVolumeML, r.MediumVolumeML, r.TotalVolumeML, r.FinalConcentration} {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("%+v: invalid recipe %+v", in, r)
			}
		}
	}
	if got := ParseWells("1e20"); got != MaxWells {
		t.Fatalf("ParseWells(1e20) = %d", got)
	}
	if got := ParseWells("24.9"); got != 24 {
		t.Fatalf("ParseWells(24.9) = %d", got)
	}
	huge := MasterMixParams{WellCount: math.MaxInt, ExtraWells: math.MaxInt}
	if huge.TotalWells() != 2*MaxWells {
		t.Fatalf("unexpected total wells %d", huge.TotalWells())
	}
}

func TestParseManualConcentration(t *testing.T) {
	if v, ok := ParseManualConcentration("1.5e6"); !ok || v != 1_500_000 {
		t.Fatalf("expected 1.5e6 accepted, got %v %v", v, ok)
	}
	for _, raw := range []string{"1", "1e10", " 250000 "} {
		if _, ok := ParseManualConcentration(raw); !ok {
			t.Fatalf("expected %q accepted", raw)
		}
	}
	for _, raw := range []string{"", "abc", "-5", "0.5", "1.1e10", "Inf", "NaN"} {
		if _, ok := ParseManualConcentration(raw); ok {
			t.Fatalf("expected %q rejected", raw)
		}
	}
}

func TestSelectSource(t *testing.T) {
	pair := ConcentrationPair{Total: 1e6, Viable: 9e5}

	sel := SelectSource(pair, true, SourceHemocytometer, "1.5e6")
	if sel.Concentration != 9e5 || sel.ManualApplied || sel.ManualInvalid {
		t.Fatalf("hemocytometer mode must ignore override, got %+v", sel)
	}
	if sel := SelectSource(pair, false, SourceHemocytometer, ""); sel.Concentration != 1e6 {
		t.Fatalf("expected total concentration, got %+v", sel)
	}

	sel = SelectSource(pair, true, SourceManual, "1.5e6")
	if sel.Concentration != 1.5e6 || !sel.ManualApplied {
		t.Fatalf("expected manual override applied, got %+v", sel)
	}

	for _, bad := range []string{"abc", "-5"} {
		sel = SelectSource(pair, true, SourceManual, bad)
		if sel.Concentration != 9e5 || sel.ManualApplied || !sel.ManualInvalid {
			t.Fatalf("invalid override %q must not alter source, got %+v", bad, sel)
		}
	}
	sel = SelectSource(pair, true, SourceManual, "")
	if sel.ManualInvalid || sel.ManualApplied {
		t.Fatalf("empty override is neither applied nor invalid, got %+v", sel)
	}
}

func TestSourceModeValid(t *testing.T) {
	if !SourceHemocytometer.Valid() || !SourceManual.Valid() || SourceMode("x").Valid() {
		t.Fatalf("unexpected source mode validity")
	}
}
