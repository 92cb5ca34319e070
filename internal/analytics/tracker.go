// Package analytics counts usage events in Prometheus and adapts session
// snapshots into those events.
package analytics

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"hemocount/internal/core"
	"hemocount/pkg/domain"
)

// Event actions, matching the names the web client reported.
const (
	ActionCellCounting       = "cell_counting"
	ActionMasterMixCalc      = "master_mix_calculation"
	ActionMasterMixInputMode = "master_mix_input_mode"
	ActionTabSwitch          = "tab_switch"
	ActionModeSwitch         = "mode_switch"
	ActionDataExport         = "data_export"
)

// Event categories.
const (
	CategoryUserInteraction = "user_interaction"
	CategoryNavigation      = "navigation"
)

const defaultNamespace = "hemocount"

// Event is one usage event. Label carries the free-form detail and is only
// logged, never used as a metric label.
type Event struct {
	Action   string
	Category string
	Label    string
}

// Options configures a Tracker.
type Options struct {
	Enabled   bool
	Namespace string
	Logger    core.Logger
}

// Tracker counts events. A disabled tracker drops every event.
type Tracker struct {
	enabled bool
	logger  core.Logger
	events  *prometheus.CounterVec
}

// NewTracker registers the event counter with reg. A nil reg uses a
// private registry.
func NewTracker(reg prometheus.Registerer, opts Options) (*Tracker, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	ns := opts.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "events_total",
		Help:      "Usage events by action and category.",
	}, []string{"action", "category"})
	if err := reg.Register(events); err != nil {
		return nil, fmt.Errorf("register events counter: %w", err)
	}
	t := &Tracker{enabled: opts.Enabled, logger: opts.Logger, events: events}
	if t.logger == nil {
		t.logger = nopLogger{}
	}
	if !t.enabled {
		t.logger.Debug("analytics disabled")
	}
	return t, nil
}

// Enabled reports whether events are recorded.
func (t *Tracker) Enabled() bool { return t != nil && t.enabled }

// Track records e.
func (t *Tracker) Track(e Event) {
	if !t.Enabled() || e.Action == "" {
		return
	}
	t.events.WithLabelValues(e.Action, e.Category).Inc()
	t.logger.Debug("analytics event", "action", e.Action, "category", e.Category, "label", e.Label)
}

// TrackCellCounting records a count with its input mode and total, e.g.
// "grid_mode_200_cells".
func (t *Tracker) TrackCellCounting(mode domain.InputMode, totalCells int) {
	t.Track(Event{ActionCellCounting, CategoryUserInteraction, fmt.Sprintf("%s_mode_%d_cells", mode, totalCells)})
}

// TrackMasterMixCalculation records a solved recipe's source concentration.
func (t *Tracker) TrackMasterMixCalculation(concentration float64, mode domain.SourceMode) {
	label := "concentration_" + formatNumber(concentration)
	if mode != "" {
		label = fmt.Sprintf("%s_mode_%s", mode, label)
	}
	t.Track(Event{ActionMasterMixCalc, CategoryUserInteraction, label})
}

// TrackMasterMixInputMode records a source mode switch.
func (t *Tracker) TrackMasterMixInputMode(mode domain.SourceMode) {
	t.Track(Event{ActionMasterMixInputMode, CategoryUserInteraction, string(mode)})
}

// TrackTabSwitch records a switch between the counting and master mix views.
func (t *Tracker) TrackTabSwitch(tab string) {
	t.Track(Event{ActionTabSwitch, CategoryNavigation, tab})
}

// TrackModeSwitch records an input mode switch.
func (t *Tracker) TrackModeSwitch(mode domain.InputMode) {
	t.Track(Event{ActionModeSwitch, CategoryNavigation, string(mode)})
}

// TrackDataExport records one exported format.
func (t *Tracker) TrackDataExport(format string) {
	t.Track(Event{ActionDataExport, CategoryUserInteraction, format})
}

// SessionObserver returns a snapshot listener that records cell_counting
// when the counted total changes and master_mix_calculation when the solver
// source changes. Zero totals and zero sources are not recorded.
func (t *Tracker) SessionObserver() core.SnapshotListener {
	var (
		mu         sync.Mutex
		lastMode   domain.InputMode
		lastTotal  int
		lastSource float64
	)
	return func(s core.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if total := s.Counts.TotalCells; total > 0 && (total != lastTotal || s.Mode != lastMode) {
			t.TrackCellCounting(s.Mode, total)
		}
		lastMode, lastTotal = s.Mode, s.Counts.TotalCells
		if src := s.Params.SourceConcentration; src > 0 && src != lastSource && !s.Recipe.IsZero() {
			t.TrackMasterMixCalculation(src, s.Source.Mode)
		}
		lastSource = s.Params.SourceConcentration
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
