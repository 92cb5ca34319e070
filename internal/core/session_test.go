package core

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"hemocount/internal/infra/persistence/memory"
	"hemocount/pkg/domain"
)

type captureLogger struct{ calls []string }

func (c *captureLogger) Debug(msg string, _ ...any) { c.calls = append(c.calls, "d:"+msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.calls = append(c.calls, "i:"+msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.calls = append(c.calls, "w:"+msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.calls = append(c.calls, "e:"+msg) }

func (c *captureLogger) has(prefix string) bool {
	for _, call := range c.calls {
		if strings.HasPrefix(call, prefix) {
			return true
		}
	}
	return false
}

type failingPrefs struct{}

func (failingPrefs) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("get failed")
}
func (failingPrefs) Set(context.Context, string, string) error { return errors.New("set failed") }
func (failingPrefs) Close() error                              { return nil }

type erroringRule struct{}

func (erroringRule) Name() string { return "erroring" }
func (erroringRule) Evaluate(context.Context, domain.Evaluation) (domain.Result, error) {
	return domain.Result{}, errors.New("rule failed")
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-5 }

func TestSessionTotalsScenario(t *testing.T) {
	ctx := context.Background()
	s := NewSession(ctx)
	s.SetInputMode(ctx, domain.InputTotal)
	s.SetDeclaredGrids(ctx, 4)
	snap := s.SetTotals(ctx, "180", "20")

	if snap.Counts.TotalCells != 200 || snap.Counts.ViableCells != 180 || snap.Counts.GridsCounted != 4 {
		t.Fatalf("unexpected counts %+v", snap.Counts)
	}
	if snap.Concentrations.Total != 1_000_000 || snap.Concentrations.Viable != 900_000 {
		t.Fatalf("unexpected concentrations %+v", snap.Concentrations)
	}
	if !near(snap.ViabilityPercent, 90) {
		t.Fatalf("viability = %v", snap.ViabilityPercent)
	}
	if snap.Source.Concentration != 900_000 {
		t.Fatalf("default source should be viable concentration, got %+v", snap.Source)
	}
	if !near(snap.Recipe.StockVolumeML, 0.28889) || !near(snap.Recipe.MediumVolumeML, 2.31111) || !near(snap.Recipe.TotalVolumeML, 2.6) {
		t.Fatalf("unexpected recipe %+v", snap.Recipe)
	}
	if len(snap.Advisories.Violations) != 0 {
		t.Fatalf("unexpected advisories %+v", snap.Advisories)
	}

	snap = s.SetUseViable(ctx, false)
	if snap.Source.Concentration != 1_000_000 {
		t.Fatalf("expected total concentration source, got %+v", snap.Source)
	}
}

func TestSessionInitialSnapshotIsZero(t *testing.T) {
	s := NewSession(context.Background())
	snap := s.Snapshot()
	if snap.Mode != domain.InputGrid || snap.DilutionFactor != 2 || len(snap.Selection) != 4 {
		t.Fatalf("unexpected defaults %+v", snap)
	}
	want := domain.CornerGrids().IDs()
	for i, id := range snap.Selection {
		if id != want[i] || id == domain.GridCenter {
			t.Fatalf("expected the corners preset, got %v", snap.Selection)
		}
	}
	if snap.Counts.TotalCells != 0 || snap.Concentrations != (domain.ConcentrationPair{}) || !snap.Recipe.IsZero() {
		t.Fatalf("empty form must degrade to zero values, got %+v", snap)
	}
}

func TestSessionNotifiesCountListeners(t *testing.T) {
	ctx := context.Background()
	s := NewSession(ctx)
	type call struct{ total, viable, grids int }
	var calls []call
	unsubscribe := s.OnCounts(func(total, viable, grids int) {
		calls = append(calls, call{total, viable, grids})
	})
	var snaps int
	s.Subscribe(func(Snapshot) { snaps++ })

	s.SetGridCount(ctx, domain.GridTopLeft, domain.CountViable, "30")
	s.SetGridCount(ctx, domain.GridTopLeft, domain.CountNonViable, "10")
	s.ToggleGrid(ctx, domain.GridCenter)

	if len(calls) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(calls))
	}
	if last := calls[2]; last.total != 40 || last.viable != 30 || last.grids != 5 {
		t.Fatalf("unexpected last notification %+v", last)
	}
	unsubscribe()
	s.ClearGrids(ctx)
	if len(calls) != 3 {
		t.Fatalf("unsubscribed listener still notified")
	}
	if snaps != 4 {
		t.Fatalf("expected 4 snapshot notifications, got %d", snaps)
	}
}

func TestSessionSelectionNeverEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewSession(ctx, WithDefaults(Defaults{Selection: domain.NewGridSelection(domain.GridCenter)}))
	snap := s.ToggleGrid(ctx, domain.GridCenter)
	if len(snap.Selection) != 1 || snap.Counts.GridsCounted != 1 {
		t.Fatalf("removing last grid must be a no-op, got %+v", snap.Selection)
	}
	if snap = s.SelectAllGrids(ctx); len(snap.Selection) != 5 {
		t.Fatalf("expected all grids, got %v", snap.Selection)
	}
	if snap = s.SelectCornerGrids(ctx); len(snap.Selection) != 4 {
		t.Fatalf("expected corner grids, got %v", snap.Selection)
	}
}

func TestSessionDilutionFactor(t *testing.T) {
	ctx := context.Background()
	s := NewSession(ctx)
	s.SetGridCount(ctx, domain.GridTopLeft, domain.CountViable, "100")
	base := s.Snapshot().Concentrations.Total
	snap, ok := s.SetDilutionFactor(ctx, "4")
	if !ok || snap.Concentrations.Total != 2*base {
		t.Fatalf("expected doubled concentration, got %v (base %v)", snap.Concentrations.Total, base)
	}
	if _, ok := s.SetDilutionFactor(ctx, "0"); ok {
		t.Fatalf("expected zero dilution rejected")
	}
	if s.Snapshot().DilutionFactor != 4 {
		t.Fatalf("rejected dilution must keep previous factor")
	}
}

func TestSessionMasterMixFieldValidation(t *testing.T) {
	ctx := context.Background()
	s := NewSession(ctx)
	for _, bad := range []string{"-3", "abc", "NaN"} {
		if _, ok := s.SetMasterMixField(ctx, FieldWells, bad); ok {
			t.Fatalf("expected %q rejected", bad)
		}
	}
	if _, ok := s.SetMasterMixField(ctx, MasterMixField("bogus"), "1"); ok {
		t.Fatalf("expected unknown field rejected")
	}
	snap, ok := s.SetMasterMixField(ctx, FieldWells, "")
	if !ok || snap.Params.WellCount != 0 {
		t.Fatalf("expected empty wells accepted, got %+v", snap.Params)
	}
	if snap, ok = s.SetMasterMixField(ctx, FieldExtraWells, "0"); !ok || snap.Params.ExtraWells != 0 {
		t.Fatalf("expected zero extra wells accepted")
	}
	for field, raw := range map[MasterMixField]string{FieldVolumePerWell: "200", FieldCellsPerWell: "5000", FieldWells: "96"} {
		if _, ok := s.SetMasterMixField(ctx, field, raw); !ok {
			t.Fatalf("expected %s=%s accepted", field, raw)
		}
	}
	p := s.Snapshot().Params
	if p.VolumePerWellUL != 200 || p.CellsPerWell != 5000 || p.WellCount != 96 {
		t.Fatalf("unexpected params %+v", p)
	}
}

func TestSessionManualConcentration(t *testing.T) {
	ctx := context.Background()
	s := NewSession(ctx)
	snap := s.SetManualConcentration(ctx, "1.5e6")
	if snap.Source.ManualApplied {
		t.Fatalf("override must not apply in hemocytometer mode")
	}
	snap = s.SetSourceMode(ctx, domain.SourceManual)
	if !snap.Source.ManualApplied || snap.Params.SourceConcentration != 1_500_000 {
		t.Fatalf("expected manual override applied, got %+v", snap.Source)
	}
	if snap.Recipe.IsZero() {
		t.Fatalf("manual source must decouple the solver from empty counts")
	}

	snap = s.SetManualConcentration(ctx, "abc")
	if snap.Source.ManualApplied || !snap.Source.ManualInvalid || snap.Params.SourceConcentration != 0 {
		t.Fatalf("invalid override must not alter source, got %+v", snap.Source)
	}
	if _, ok := snap.Advisories.Find(RuleManualConcentration); !ok {
		t.Fatalf("expected manual concentration advisory, got %+v", snap.Advisories)
	}
}

func TestSessionFlagsOverdraw(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	s := NewSession(ctx, WithLogger(logger))
	s.SetSourceMode(ctx, domain.SourceManual)
	snap := s.SetManualConcentration(ctx, "1000")
	if snap.Recipe.MediumVolumeML != 0 || !snap.Recipe.Overdrawn() {
		t.Fatalf("expected clamped overdrawn recipe, got %+v", snap.Recipe)
	}
	v, ok := snap.Advisories.Find(RuleStockOverdraw)
	if !ok || v.Severity != domain.SeverityWarn {
		t.Fatalf("expected overdraw warning, got %+v", snap.Advisories)
	}
	if !logger.has("w:stock volume") {
		t.Fatalf("expected warning logged, got %v", logger.calls)
	}
}

func TestSessionFlagsGridDispersion(t *testing.T) {
	ctx := context.Background()
	s := NewSession(ctx)
	s.SetGridCount(ctx, domain.GridTopLeft, domain.CountViable, "10")
	s.SetGridCount(ctx, domain.GridTopRight, domain.CountViable, "100")
	s.SetGridCount(ctx, domain.GridBottomLeft, domain.CountViable, "12")
	snap := s.SetGridCount(ctx, domain.GridBottomRight, domain.CountViable, "11")
	if _, ok := snap.Advisories.Find(RuleGridDispersion); !ok {
		t.Fatalf("expected dispersion advisory, got %+v", snap.Advisories)
	}
	snap = s.SetInputMode(ctx, domain.InputTotal)
	if _, ok := snap.Advisories.Find(RuleGridDispersion); ok {
		t.Fatalf("dispersion only applies to grid entry")
	}
}

func TestSessionPersistsModePreferences(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	s := NewSession(ctx, WithPreferences(store))
	s.SetSourceMode(ctx, domain.SourceManual)
	s.SetInputMode(ctx, domain.InputTotal)
	s.SetSourceMode(ctx, domain.SourceMode("bogus"))

	if v, ok, _ := store.Get(ctx, domain.PrefMasterMixInputMode); !ok || v != string(domain.SourceManual) {
		t.Fatalf("expected manual mode stored, got %q %v", v, ok)
	}
	if keys := store.Keys(); len(keys) != 1 {
		t.Fatalf("expected a single preference slot, got %v", keys)
	}
	reopened := NewSession(ctx, WithPreferences(store))
	snap := reopened.Snapshot()
	if snap.Source.Mode != domain.SourceManual || snap.Mode != domain.InputGrid {
		t.Fatalf("expected source mode restored only, got %s %s", snap.Source.Mode, snap.Mode)
	}
}

func TestSessionPreferenceFailuresDoNotBlock(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	s := NewSession(ctx, WithPreferences(failingPrefs{}), WithLogger(logger))
	snap := s.SetSourceMode(ctx, domain.SourceManual)
	if snap.Source.Mode != domain.SourceManual {
		t.Fatalf("mode change must apply despite store failure")
	}
	if !logger.has("w:read preference failed") || !logger.has("w:write preference failed") {
		t.Fatalf("expected preference failures logged, got %v", logger.calls)
	}
}

func TestSessionRuleErrorKeepsNumbers(t *testing.T) {
	ctx := context.Background()
	engine := NewRulesEngine()
	engine.Register(erroringRule{})
	logger := &captureLogger{}
	metrics := NewExpvarRecorder("")
	s := NewSession(ctx, WithRulesEngine(engine), WithLogger(logger), WithMetricsRecorder(metrics))
	s.SetInputMode(ctx, domain.InputTotal)
	snap := s.SetTotals(ctx, "180", "20")
	if snap.Concentrations.Total != 1_000_000 {
		t.Fatalf("rule failure must not affect numbers, got %+v", snap.Concentrations)
	}
	if !logger.has("e:advisory rules failed") {
		t.Fatalf("expected rule failure logged")
	}
	if metrics.Stats()["set_totals"].Failures != 1 {
		t.Fatalf("expected error outcome recorded, got %+v", metrics.Stats())
	}
}

func TestSessionObservability(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	tracer := NewSpanLog(&buf)
	metrics := NewExpvarRecorder("")
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewSession(ctx, WithTracer(tracer), WithMetricsRecorder(metrics), WithClock(ClockFunc(func() time.Time { return fixed })))
	snap := s.ToggleGrid(ctx, domain.GridCenter)

	if !snap.ComputedAt.Equal(fixed) {
		t.Fatalf("expected fixed clock, got %v", snap.ComputedAt)
	}
	spans := tracer.Spans()
	if len(spans) != 2 || spans[0].Operation != "session_open" || spans[1].Operation != "toggle_grid" {
		t.Fatalf("unexpected spans %+v", spans)
	}
	if !strings.Contains(buf.String(), `"operation":"toggle_grid"`) {
		t.Fatalf("expected span written, got %s", buf.String())
	}
	if st := metrics.Stats()["toggle_grid"]; st.Count != 1 || st.Failures != 0 {
		t.Fatalf("expected success recorded, got %+v", metrics.Stats())
	}
}

func TestSessionIgnoresUnknownModes(t *testing.T) {
	ctx := context.Background()
	s := NewSession(ctx)
	before := s.Snapshot()
	if snap := s.SetInputMode(ctx, domain.InputMode("camera")); snap.Mode != before.Mode {
		t.Fatalf("unknown input mode must be ignored")
	}
}

func TestClockFuncNowNilFallsBackToUTCTime(t *testing.T) {
	if ClockFunc(nil).Now().IsZero() {
		t.Fatal("expected non-zero time from nil ClockFunc")
	}
}
