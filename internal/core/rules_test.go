package core

import (
	"context"
	"math"
	"testing"

	"hemocount/pkg/domain"
)

func TestDefaultRulesEngineRegistersBuiltins(t *testing.T) {
	names := NewDefaultRulesEngine().Rules()
	want := []string{RuleStockOverdraw, RuleGridDispersion, RuleManualConcentration}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestStockOverdrawRule(t *testing.T) {
	rule := NewStockOverdrawRule()
	ok, err := rule.Evaluate(context.Background(), domain.Evaluation{
		Recipe: domain.MasterMixResult{StockVolumeML: 1, MediumVolumeML: 1.6, TotalVolumeML: 2.6},
	})
	if err != nil || len(ok.Violations) != 0 {
		t.Fatalf("expected no violation, got %+v %v", ok, err)
	}
	res, _ := rule.Evaluate(context.Background(), domain.Evaluation{
		Params: domain.MasterMixParams{SourceConcentration: 1000},
		Recipe: domain.MasterMixResult{StockVolumeML: 260, TotalVolumeML: 2.6, FinalConcentration: 100000},
	})
	v, found := res.Find(RuleStockOverdraw)
	if !found || v.Severity != domain.SeverityWarn || !res.HasWarnings() {
		t.Fatalf("expected overdraw warning, got %+v", res)
	}
}

func TestGridDispersionRule(t *testing.T) {
	even := []domain.GridCount{{Grid: 1, Viable: 50}, {Grid: 2, Viable: 52}, {Grid: 4, Viable: 48}, {Grid: 5, Viable: 50}}
	uneven := []domain.GridCount{{Grid: 1, Viable: 10}, {Grid: 2, Viable: 100}}
	cases := []struct {
		name      string
		threshold float64
		mode      domain.InputMode
		perGrid   []domain.GridCount
		want      bool
	}{
		{"even counts", 0.2, domain.InputGrid, even, false},
		{"uneven counts", 0.2, domain.InputGrid, uneven, true},
		{"total mode", 0.2, domain.InputTotal, uneven, false},
		{"disabled", 0, domain.InputGrid, uneven, false},
		{"single grid", 0.2, domain.InputGrid, uneven[:1], false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := NewGridDispersionRule(tc.threshold).Evaluate(context.Background(), domain.Evaluation{
				Mode:   tc.mode,
				Counts: domain.CountTotals{PerGrid: tc.perGrid},
			})
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if _, found := res.Find(RuleGridDispersion); found != tc.want {
				t.Fatalf("expected violation=%v, got %+v", tc.want, res)
			}
		})
	}
}

func TestCoefficientOfVariation(t *testing.T) {
	cv, ok := CoefficientOfVariation([]domain.GridCount{{Viable: 2}, {Viable: 4}})
	// mean 3, sample std sqrt(2)
	if !ok || math.Abs(cv-math.Sqrt2/3) > 1e-9 {
		t.Fatalf("unexpected cv %v ok=%v", cv, ok)
	}
	if _, ok := CoefficientOfVariation([]domain.GridCount{{}, {}}); ok {
		t.Fatalf("zero mean must not produce a ratio")
	}
}

func TestManualConcentrationRule(t *testing.T) {
	rule := NewManualConcentrationRule()
	res, _ := rule.Evaluate(context.Background(), domain.Evaluation{Source: domain.SourceSelection{ManualInvalid: true}})
	v, found := res.Find(RuleManualConcentration)
	if !found || v.Severity != domain.SeverityLog || res.HasWarnings() {
		t.Fatalf("expected log-level advisory, got %+v", res)
	}
	res, _ = rule.Evaluate(context.Background(), domain.Evaluation{})
	if len(res.Violations) != 0 {
		t.Fatalf("expected no advisory, got %+v", res)
	}
}
