package core

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"hemocount/pkg/domain"
)

// RuleGridDispersion names the uneven-loading advisory.
const RuleGridDispersion = "grid_dispersion"

// NewGridDispersionRule flags grid-mode counts whose per-square totals vary
// by more than threshold (coefficient of variation). Large spread between
// squares usually means the chamber was unevenly loaded or cells clumped.
// A non-positive threshold disables the rule.
func NewGridDispersionRule(threshold float64) domain.Rule {
	return gridDispersionRule{threshold: threshold}
}

type gridDispersionRule struct {
	threshold float64
}

func (gridDispersionRule) Name() string { return RuleGridDispersion }

func (r gridDispersionRule) Evaluate(_ context.Context, eval domain.Evaluation) (domain.Result, error) {
	if r.threshold <= 0 || eval.Mode != domain.InputGrid {
		return domain.Result{}, nil
	}
	cv, ok := CoefficientOfVariation(eval.Counts.PerGrid)
	if !ok || cv <= r.threshold {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     RuleGridDispersion,
		Severity: domain.SeverityWarn,
		Message:  fmt.Sprintf("counts vary by %.0f%% between squares (limit %.0f%%); check chamber loading", cv*100, r.threshold*100),
	}}}, nil
}

// CoefficientOfVariation returns the sample standard deviation of the
// per-square totals divided by their mean. ok is false when fewer than two
// squares were counted or no cells were seen.
func CoefficientOfVariation(perGrid []domain.GridCount) (float64, bool) {
	if len(perGrid) < 2 {
		return 0, false
	}
	totals := make([]float64, len(perGrid))
	for i, g := range perGrid {
		totals[i] = float64(g.Total())
	}
	mean, std := stat.MeanStdDev(totals, nil)
	if mean <= 0 {
		return 0, false
	}
	return std / mean, true
}
