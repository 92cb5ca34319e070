package core

import (
	"context"
	"fmt"

	"hemocount/pkg/domain"
)

// RuleStockOverdraw names the stock-exceeds-total advisory.
const RuleStockOverdraw = "stock_overdraw"

// NewStockOverdrawRule flags recipes whose stock volume alone exceeds the
// total mix volume. The solver clamps the medium volume to zero in that case,
// so without this warning the recipe would look preparable.
func NewStockOverdrawRule() domain.Rule {
	return stockOverdrawRule{}
}

type stockOverdrawRule struct{}

func (stockOverdrawRule) Name() string { return RuleStockOverdraw }

func (stockOverdrawRule) Evaluate(_ context.Context, eval domain.Evaluation) (domain.Result, error) {
	if !eval.Recipe.Overdrawn() {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     RuleStockOverdraw,
		Severity: domain.SeverityWarn,
		Message: fmt.Sprintf("stock volume %.3f mL exceeds total volume %.3f mL: source concentration %.0f cells/mL is below the required %.0f cells/mL",
			eval.Recipe.StockVolumeML, eval.Recipe.TotalVolumeML, eval.Params.SourceConcentration, eval.Recipe.FinalConcentration),
	}}}, nil
}
