package core

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"hemocount/pkg/domain"
)

// Snapshot is one full evaluation of the calculation pipeline. It is
// rebuilt from the raw form fields on every mutation and never cached
// across mutations.
type Snapshot struct {
	Mode             domain.InputMode         `json:"input_mode"`
	Selection        []domain.GridID          `json:"selected_grids"`
	Counts           domain.CountTotals       `json:"counts"`
	ViabilityPercent float64                  `json:"viability_percent"`
	DilutionFactor   int                      `json:"dilution_factor"`
	Concentrations   domain.ConcentrationPair `json:"concentrations"`
	Source           domain.SourceSelection   `json:"source"`
	ManualOverride   string                   `json:"manual_override,omitempty"`
	Params           domain.MasterMixParams   `json:"params"`
	Recipe           domain.MasterMixResult   `json:"recipe"`
	Advisories       domain.Result            `json:"advisories"`
	ComputedAt       time.Time                `json:"computed_at"`
}

// CountListener receives every count aggregation.
type CountListener func(totalCells, viableCells, gridsCounted int)

// SnapshotListener receives every recomputed snapshot.
type SnapshotListener func(Snapshot)

// MasterMixField names a raw master mix form field.
type MasterMixField string

const (
	FieldVolumePerWell MasterMixField = "volume_per_well"
	FieldCellsPerWell  MasterMixField = "cells_per_well"
	FieldWells         MasterMixField = "wells"
	FieldExtraWells    MasterMixField = "extra_wells"
)

// Session owns one counting form and its derived values. Every mutator
// synchronously recomputes the pipeline (aggregate, concentrations, source
// selection, master mix, advisories) and notifies listeners before it
// returns. A Session has a single owner and is not safe for concurrent use.
type Session struct {
	opts sessionOptions

	mode          domain.InputMode
	entries       domain.GridEntries
	selection     domain.GridSelection
	totalViable   string
	totalNonViab  string
	declaredGrids int
	dilution      int
	mix           domain.MasterMixInputs
	sourceMode    domain.SourceMode
	manual        string

	snapshot Snapshot

	nextListener   int
	countListeners []registered[CountListener]
	snapListeners  []registered[SnapshotListener]
}

type registered[T any] struct {
	id int
	fn T
}

// NewSession builds a session from defaults and stored preferences and
// computes the initial snapshot.
func NewSession(ctx context.Context, opts ...Option) *Session {
	o := defaultSessionOptions()
	for _, opt := range opts {
		opt(&o)
	}
	d := o.defaults
	s := &Session{
		opts:          o,
		mode:          d.InputMode,
		selection:     d.Selection,
		declaredGrids: d.Selection.Len(),
		dilution:      d.DilutionFactor,
		mix:           d.MasterMix,
		sourceMode:    d.SourceMode,
	}
	s.loadPreferences(ctx)
	s.recompute(ctx, "session_open")
	return s
}

func (s *Session) loadPreferences(ctx context.Context) {
	if s.opts.prefs == nil {
		return
	}
	if v, ok := s.readPreference(ctx, domain.PrefMasterMixInputMode); ok && domain.SourceMode(v).Valid() {
		s.sourceMode = domain.SourceMode(v)
	}
}

func (s *Session) readPreference(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.opts.prefs.Get(ctx, key)
	if err != nil {
		s.opts.logger.Warn("read preference failed", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (s *Session) writePreference(ctx context.Context, key, value string) {
	if s.opts.prefs == nil {
		return
	}
	if err := s.opts.prefs.Set(ctx, key, value); err != nil {
		s.opts.logger.Warn("write preference failed", "key", key, "error", err)
	}
}

// Snapshot returns the most recent evaluation.
func (s *Session) Snapshot() Snapshot {
	return s.snapshot
}

// Aggregate reduces the active input mode's fields to count totals.
func (s *Session) Aggregate() domain.CountTotals {
	if s.mode == domain.InputTotal {
		return domain.AggregateTotals(s.totalViable, s.totalNonViab, s.declaredGrids)
	}
	return domain.AggregateGrids(s.entries, s.selection)
}

// Concentrations derives both concentrations from counts.
func (s *Session) Concentrations(counts domain.CountTotals) domain.ConcentrationPair {
	return domain.Concentrations(counts, s.dilution)
}

// SolveMasterMix solves the recipe for params.
func (s *Session) SolveMasterMix(params domain.MasterMixParams) domain.MasterMixResult {
	return domain.SolveMasterMix(params)
}

// OnCounts registers a count aggregation listener and returns its unsubscribe func.
func (s *Session) OnCounts(fn CountListener) func() {
	id := s.nextID()
	s.countListeners = append(s.countListeners, registered[CountListener]{id: id, fn: fn})
	return func() { s.countListeners = removeListener(s.countListeners, id) }
}

// Subscribe registers a snapshot listener and returns its unsubscribe func.
func (s *Session) Subscribe(fn SnapshotListener) func() {
	id := s.nextID()
	s.snapListeners = append(s.snapListeners, registered[SnapshotListener]{id: id, fn: fn})
	return func() { s.snapListeners = removeListener(s.snapListeners, id) }
}

func (s *Session) nextID() int {
	s.nextListener++
	return s.nextListener
}

func removeListener[T any](list []registered[T], id int) []registered[T] {
	out := make([]registered[T], 0, len(list))
	for _, l := range list {
		if l.id != id {
			out = append(out, l)
		}
	}
	return out
}

// SetInputMode switches between grid and total entry. Unknown modes are ignored.
func (s *Session) SetInputMode(ctx context.Context, mode domain.InputMode) Snapshot {
	if !mode.Valid() {
		return s.snapshot
	}
	s.mode = mode
	return s.recompute(ctx, "set_input_mode")
}

// SetGridCount stores a raw count typed for one square.
func (s *Session) SetGridCount(ctx context.Context, id domain.GridID, kind domain.CountKind, raw string) Snapshot {
	s.entries.Set(id, kind, raw)
	return s.recompute(ctx, "set_grid_count")
}

// ToggleGrid adds or removes a square from the selection. Removing the last
// selected square is a no-op.
func (s *Session) ToggleGrid(ctx context.Context, id domain.GridID) Snapshot {
	s.selection = s.selection.Toggle(id)
	return s.recompute(ctx, "toggle_grid")
}

// SelectCornerGrids selects the four corner squares.
func (s *Session) SelectCornerGrids(ctx context.Context) Snapshot {
	s.selection = domain.CornerGrids()
	return s.recompute(ctx, "select_corner_grids")
}

// SelectAllGrids selects all five squares.
func (s *Session) SelectAllGrids(ctx context.Context) Snapshot {
	s.selection = domain.AllGrids()
	return s.recompute(ctx, "select_all_grids")
}

// ClearGrids empties every per-square entry, keeping the selection.
func (s *Session) ClearGrids(ctx context.Context) Snapshot {
	s.entries = domain.GridEntries{}
	return s.recompute(ctx, "clear_grids")
}

// SetTotals stores the raw viable and non-viable totals for total entry.
func (s *Session) SetTotals(ctx context.Context, viable, nonViable string) Snapshot {
	s.totalViable, s.totalNonViab = viable, nonViable
	return s.recompute(ctx, "set_totals")
}

// SetDeclaredGrids sets how many squares the totals were counted over.
func (s *Session) SetDeclaredGrids(ctx context.Context, n int) Snapshot {
	s.declaredGrids = domain.ClampGrids(n)
	return s.recompute(ctx, "set_declared_grids")
}

// ResetTotals clears the total entry fields.
func (s *Session) ResetTotals(ctx context.Context) Snapshot {
	s.totalViable, s.totalNonViab = "", ""
	return s.recompute(ctx, "reset_totals")
}

// SetDilutionFactor parses and applies a dilution factor. Invalid input
// leaves the current factor in place and reports false.
func (s *Session) SetDilutionFactor(ctx context.Context, raw string) (Snapshot, bool) {
	factor, ok := domain.ParseDilutionFactor(raw)
	if !ok {
		return s.snapshot, false
	}
	s.dilution = factor
	return s.recompute(ctx, "set_dilution_factor"), true
}

// SetMasterMixField updates one raw master mix field. Like the form input
// it backs, only empty strings and non-negative numbers are accepted; any
// other edit is rejected and reported false.
func (s *Session) SetMasterMixField(ctx context.Context, field MasterMixField, raw string) (Snapshot, bool) {
	if raw != "" && !acceptsQuantity(raw) {
		return s.snapshot, false
	}
	switch field {
	case FieldVolumePerWell:
		s.mix.VolumePerWell = raw
	case FieldCellsPerWell:
		s.mix.CellsPerWell = raw
	case FieldWells:
		s.mix.Wells = raw
	case FieldExtraWells:
		s.mix.ExtraWells = raw
	default:
		return s.snapshot, false
	}
	return s.recompute(ctx, "set_master_mix_field"), true
}

func acceptsQuantity(raw string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

// SetUseViable selects which counted concentration feeds the solver.
func (s *Session) SetUseViable(ctx context.Context, useViable bool) Snapshot {
	s.mix.UseViable = useViable
	return s.recompute(ctx, "set_use_viable")
}

// SetSourceMode switches the solver between counted and manual
// concentrations and remembers the choice. Unknown modes are ignored.
func (s *Session) SetSourceMode(ctx context.Context, mode domain.SourceMode) Snapshot {
	if !mode.Valid() {
		return s.snapshot
	}
	s.sourceMode = mode
	s.writePreference(ctx, domain.PrefMasterMixInputMode, string(mode))
	return s.recompute(ctx, "set_source_mode")
}

// SetManualConcentration stores the raw manual concentration. It only takes
// effect in manual source mode and when it validates.
func (s *Session) SetManualConcentration(ctx context.Context, raw string) Snapshot {
	s.manual = raw
	return s.recompute(ctx, "set_manual_concentration")
}

func (s *Session) recompute(ctx context.Context, op string) Snapshot {
	started := s.opts.clock.Now()
	ctx, span := s.opts.tracer.Start(ctx, op)

	counts := s.Aggregate()
	pair := s.Concentrations(counts)
	source := domain.SelectSource(pair, s.mix.UseViable, s.sourceMode, s.manual)
	params := s.mix.Params(source.Concentration)
	recipe := s.SolveMasterMix(params)

	eval := domain.Evaluation{
		Mode:           s.mode,
		Counts:         counts,
		DilutionFactor: s.dilution,
		Concentrations: pair,
		Source:         source,
		Params:         params,
		Recipe:         recipe,
	}
	advisories, err := s.opts.engine.Evaluate(ctx, eval)
	if err != nil {
		s.opts.logger.Error("advisory rules failed", "operation", op, "error", err)
		advisories = domain.Result{}
	}
	for _, v := range advisories.Violations {
		switch v.Severity {
		case domain.SeverityWarn:
			s.opts.logger.Warn(v.Message, "rule", v.Rule, "operation", op)
		default:
			s.opts.logger.Debug(v.Message, "rule", v.Rule, "operation", op)
		}
	}

	s.snapshot = Snapshot{
		Mode:             s.mode,
		Selection:        s.selection.IDs(),
		Counts:           counts,
		ViabilityPercent: counts.ViabilityPercent(),
		DilutionFactor:   s.dilution,
		Concentrations:   pair,
		Source:           source,
		ManualOverride:   s.manual,
		Params:           params,
		Recipe:           recipe,
		Advisories:       advisories,
		ComputedAt:       s.opts.clock.Now(),
	}
	span.End(err)
	s.opts.metrics.Observe(ctx, op, err == nil, s.opts.clock.Now().Sub(started))

	for _, l := range s.countListeners {
		l.fn(counts.TotalCells, counts.ViableCells, counts.GridsCounted)
	}
	for _, l := range s.snapListeners {
		l.fn(s.snapshot)
	}
	return s.snapshot
}
