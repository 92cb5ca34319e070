package core

import "hemocount/pkg/domain"

// Defaults seeds a new session's form fields.
type Defaults struct {
	DilutionFactor int
	MasterMix      domain.MasterMixInputs
	Selection      domain.GridSelection
	InputMode      domain.InputMode
	SourceMode     domain.SourceMode
}

// DefaultFormDefaults returns the defaults of a fresh form: grid entry over
// the four corners, dilution 2, a 24-well seeding run fed by the counter.
func DefaultFormDefaults() Defaults {
	return Defaults{
		DilutionFactor: domain.DefaultDilutionFactor,
		MasterMix:      domain.DefaultMasterMixInputs(),
		Selection:      domain.CornerGrids(),
		InputMode:      domain.InputGrid,
		SourceMode:     domain.SourceHemocytometer,
	}
}

type sessionOptions struct {
	logger   Logger
	clock    Clock
	metrics  MetricsRecorder
	tracer   Tracer
	engine   *RulesEngine
	prefs    PreferenceStore
	defaults Defaults
}

// Option configures a Session.
type Option func(*sessionOptions)

func defaultSessionOptions() sessionOptions {
	return sessionOptions{
		logger:   noopLogger{},
		clock:    ClockFunc(nil),
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
		engine:   NewDefaultRulesEngine(),
		defaults: DefaultFormDefaults(),
	}
}

// WithLogger overrides the session logger.
func WithLogger(logger Logger) Option {
	return func(o *sessionOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the snapshot clock.
func WithClock(clock Clock) Option {
	return func(o *sessionOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMetricsRecorder installs a recompute metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *sessionOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer installs a recompute tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *sessionOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithRulesEngine replaces the advisory rules engine. A nil engine disables advisories.
func WithRulesEngine(engine *RulesEngine) Option {
	return func(o *sessionOptions) {
		o.engine = engine
	}
}

// WithPreferences persists the last used source mode to store.
func WithPreferences(store PreferenceStore) Option {
	return func(o *sessionOptions) {
		o.prefs = store
	}
}

// WithDefaults overrides the initial form values. Invalid members fall back
// to DefaultFormDefaults.
func WithDefaults(d Defaults) Option {
	return func(o *sessionOptions) {
		base := DefaultFormDefaults()
		if d.DilutionFactor < 1 {
			d.DilutionFactor = base.DilutionFactor
		}
		if d.Selection.Len() == 0 {
			d.Selection = base.Selection
		}
		if !d.InputMode.Valid() {
			d.InputMode = base.InputMode
		}
		if !d.SourceMode.Valid() {
			d.SourceMode = base.SourceMode
		}
		if d.MasterMix == (domain.MasterMixInputs{}) {
			d.MasterMix = base.MasterMix
		}
		o.defaults = d
	}
}
