package core

import (
	"context"

	"hemocount/pkg/domain"
)

// RuleManualConcentration names the rejected-override advisory.
const RuleManualConcentration = "manual_concentration_invalid"

// NewManualConcentrationRule notes when a manual concentration was typed but
// rejected, so the counted concentration fed the solver instead.
func NewManualConcentrationRule() domain.Rule {
	return manualConcentrationRule{}
}

type manualConcentrationRule struct{}

func (manualConcentrationRule) Name() string { return RuleManualConcentration }

func (manualConcentrationRule) Evaluate(_ context.Context, eval domain.Evaluation) (domain.Result, error) {
	if !eval.Source.ManualInvalid {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     RuleManualConcentration,
		Severity: domain.SeverityLog,
		Message:  "manual concentration must be a number between 1 and 1e10 cells/mL; using counted concentration",
	}}}, nil
}
