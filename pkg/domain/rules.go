package domain

import "context"

// Severity captures rule outcomes.
type Severity string

// Advisory severities. Rules never change computed numbers; severities only
// decide how a finding is surfaced.
const (
	// SeverityWarn marks a recipe or count the user should revisit.
	SeverityWarn Severity = "warn"
	// SeverityLog is informational and only logged.
	SeverityLog Severity = "log"
)

// Violation is a single rule finding.
type Violation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasWarnings reports whether any violation is at warn severity.
func (r Result) HasWarnings() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			return true
		}
	}
	return false
}

// Find returns the first violation raised by rule.
func (r Result) Find(rule string) (Violation, bool) {
	for _, v := range r.Violations {
		if v.Rule == rule {
			return v, true
		}
	}
	return Violation{}, false
}

// Evaluation is the read-only input handed to rules: one full pass of the
// calculation pipeline.
type Evaluation struct {
	Mode           InputMode
	Counts         CountTotals
	DilutionFactor int
	Concentrations ConcentrationPair
	Source         SourceSelection
	Params         MasterMixParams
	Recipe         MasterMixResult
}

// Rule defines an advisory check over an evaluation.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, eval Evaluation) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in registration order.
func (e *RulesEngine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, rule := range e.rules {
		names[i] = rule.Name()
	}
	return names
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, eval Evaluation) (Result, error) {
	var combined Result
	if e == nil {
		return combined, nil
	}
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, eval)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
