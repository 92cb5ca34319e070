package core

import "hemocount/pkg/domain"

type (
	Rule        = domain.Rule
	RulesEngine = domain.RulesEngine
	Result      = domain.Result
	Violation   = domain.Violation
	Evaluation  = domain.Evaluation
)

// DefaultDispersionThreshold is the coefficient of variation between counted
// squares above which a count is flagged as uneven.
const DefaultDispersionThreshold = 0.2

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in advisory set.
func NewDefaultRulesEngine() *RulesEngine {
	return NewRulesEngineWithThreshold(DefaultDispersionThreshold)
}

// NewRulesEngineWithThreshold builds the built-in advisory set using the
// supplied grid dispersion threshold.
func NewRulesEngineWithThreshold(dispersion float64) *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewStockOverdrawRule())
	engine.Register(NewGridDispersionRule(dispersion))
	engine.Register(NewManualConcentrationRule())
	return engine
}
