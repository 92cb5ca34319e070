// Command hemocount converts hemocytometer counts into concentrations and
// master mix recipes, and exports the results.
//
//	hemocount count -grid 1=45:5 -grid 2=50:4 -select 1,2
//	hemocount mastermix -viable 180 -nonviable 20 -grids 4 -wells 24
//	hemocount export -format csv,pdf -viable 180 -nonviable 20
//	hemocount pref [set hemocytometer|manual]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hemocount/internal/analytics"
	"hemocount/internal/blob"
	"hemocount/internal/config"
	"hemocount/internal/core"
	"hemocount/internal/export"
	"hemocount/pkg/domain"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var exitFunc = os.Exit

// errUsage marks errors caused by bad arguments.
var errUsage = errors.New("usage")

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "count", "mastermix", "export", "pref":
	case "-h", "-help", "--help", "help":
		printUsage(stdout)
		return exitOK
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		printUsage(stderr)
		return exitUsage
	}

	opts, err := parseFlags(cmd, rest, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if err := run(context.Background(), cmd, opts, stdout, stderr); err != nil {
		_, _ = fmt.Fprintf(stderr, "hemocount %s: %v\n", cmd, err)
		if errors.Is(err, errUsage) {
			return exitUsage
		}
		return exitFailure
	}
	return exitOK
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: hemocount <count|mastermix|export|pref> [flags]")
	_, _ = fmt.Fprintln(w, "run 'hemocount <command> -h' for command flags")
}

// app holds the collaborators wired from configuration.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	prefs     core.PreferenceStore
	tracker   *analytics.Tracker
	session   *core.Session
	traceFile *os.File
	stats     *core.ExpvarRecorder
}

func newApp(ctx context.Context, opts options, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.LogLevel, stderr)

	prefs, err := core.OpenPreferenceStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open preference store: %w", err)
	}

	reg := prometheus.NewRegistry()
	tracker, err := analytics.NewTracker(reg, analytics.Options{
		Enabled:   cfg.Analytics.Enabled,
		Namespace: cfg.Analytics.Namespace,
		Logger:    logger,
	})
	if err != nil {
		_ = prefs.Close()
		return nil, err
	}
	recorder, err := analytics.NewPrometheusRecorder(reg, cfg.Analytics.Namespace)
	if err != nil {
		_ = prefs.Close()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, prefs: prefs, tracker: tracker}
	sessionOpts := []core.Option{
		core.WithLogger(logger),
		core.WithPreferences(prefs),
		core.WithRulesEngine(core.NewRulesEngineWithThreshold(cfg.Defaults.DispersionThreshold)),
		core.WithDefaults(formDefaults(cfg.Defaults)),
	}
	if path := cfg.Observability.TraceFile; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			_ = prefs.Close()
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.traceFile = f
		sessionOpts = append(sessionOpts, core.WithTracer(core.NewSpanLog(f)))
	}
	metrics := []core.MetricsRecorder{recorder}
	if cfg.Observability.MetricsFile != "" {
		a.stats = core.NewExpvarRecorder("")
		metrics = append(metrics, a.stats)
	}
	sessionOpts = append(sessionOpts, core.WithMetricsRecorder(core.TeeMetrics(metrics...)))

	a.session = core.NewSession(ctx, sessionOpts...)
	a.session.Subscribe(tracker.SessionObserver())
	return a, nil
}

func (a *app) Close() {
	if a.stats != nil {
		if err := a.writeStats(); err != nil {
			a.logger.Warn("write metrics file failed", "path", a.cfg.Observability.MetricsFile, "error", err)
		}
	}
	if a.traceFile != nil {
		if err := a.traceFile.Close(); err != nil {
			a.logger.Warn("close trace file failed", "error", err)
		}
	}
	if err := a.prefs.Close(); err != nil {
		a.logger.Warn("close preference store failed", "error", err)
	}
}

func (a *app) writeStats() error {
	f, err := os.Create(a.cfg.Observability.MetricsFile)
	if err != nil {
		return err
	}
	if err := a.stats.WriteJSON(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func formDefaults(d config.Defaults) core.Defaults {
	return core.Defaults{
		DilutionFactor: d.DilutionFactor,
		MasterMix: domain.MasterMixInputs{
			VolumePerWell: strconv.FormatFloat(d.VolumePerWell, 'f', -1, 64),
			CellsPerWell:  strconv.FormatFloat(d.CellsPerWell, 'f', -1, 64),
			Wells:         strconv.Itoa(d.Wells),
			ExtraWells:    strconv.Itoa(d.ExtraWells),
			UseViable:     d.UseViable,
		},
		Selection:  domain.CornerGrids(),
		InputMode:  domain.InputGrid,
		SourceMode: domain.SourceHemocytometer,
	}
}

func run(ctx context.Context, cmd string, opts options, stdout, stderr io.Writer) error {
	a, err := newApp(ctx, opts, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "pref":
		return a.runPref(ctx, opts, stdout)
	case "count":
		a.tracker.TrackTabSwitch("cell_counter")
	default:
		a.tracker.TrackTabSwitch("master_mix")
	}

	snap, err := a.apply(ctx, opts)
	if err != nil {
		return err
	}
	for _, v := range snap.Advisories.Violations {
		if v.Severity == domain.SeverityWarn {
			a.logger.Warn(v.Message, "rule", v.Rule)
		}
	}

	switch cmd {
	case "count":
		return a.printCount(snap, opts, stdout)
	case "mastermix":
		return a.printMasterMix(snap, opts, stdout)
	default:
		return a.runExport(ctx, snap, opts, stdout)
	}
}

// apply replays the form fields from opts into the session.
func (a *app) apply(ctx context.Context, opts options) (core.Snapshot, error) {
	s := a.session
	snap := s.Snapshot()

	mode := opts.inputMode()
	if mode != snap.Mode {
		snap = s.SetInputMode(ctx, mode)
		a.tracker.TrackModeSwitch(mode)
	}
	for _, g := range opts.grids {
		s.SetGridCount(ctx, g.id, domain.CountViable, g.viable)
		snap = s.SetGridCount(ctx, g.id, domain.CountNonViable, g.nonViable)
	}
	if opts.selection != "" {
		var err error
		if snap, err = applySelection(ctx, s, opts.selection); err != nil {
			return core.Snapshot{}, err
		}
	}
	if mode == domain.InputTotal {
		snap = s.SetTotals(ctx, opts.viable, opts.nonViable)
		if opts.declaredGrids > 0 {
			snap = s.SetDeclaredGrids(ctx, opts.declaredGrids)
		}
	}
	if opts.dilution != "" {
		var ok bool
		if snap, ok = s.SetDilutionFactor(ctx, opts.dilution); !ok {
			return core.Snapshot{}, fmt.Errorf("%w: invalid dilution factor %q", errUsage, opts.dilution)
		}
	}
	for _, field := range []struct {
		name  core.MasterMixField
		value *string
	}{
		{core.FieldVolumePerWell, opts.volume},
		{core.FieldCellsPerWell, opts.cells},
		{core.FieldWells, opts.wells},
		{core.FieldExtraWells, opts.extra},
	} {
		if field.value == nil {
			continue
		}
		var ok bool
		if snap, ok = s.SetMasterMixField(ctx, field.name, *field.value); !ok {
			return core.Snapshot{}, fmt.Errorf("%w: invalid %s %q", errUsage, field.name, *field.value)
		}
	}
	if opts.useViable != nil {
		snap = s.SetUseViable(ctx, *opts.useViable)
	}
	if source := opts.sourceMode(); source != "" {
		if !source.Valid() {
			return core.Snapshot{}, fmt.Errorf("%w: unknown source %q", errUsage, source)
		}
		if source != snap.Source.Mode {
			a.tracker.TrackMasterMixInputMode(source)
		}
		snap = s.SetSourceMode(ctx, source)
	}
	if opts.manual != "" {
		snap = s.SetManualConcentration(ctx, opts.manual)
	}
	return snap, nil
}

func applySelection(ctx context.Context, s *core.Session, raw string) (core.Snapshot, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "corners":
		return s.SelectCornerGrids(ctx), nil
	case "all":
		return s.SelectAllGrids(ctx), nil
	}
	want := make(map[domain.GridID]bool)
	for _, part := range strings.Split(raw, ",") {
		id, err := parseGridID(part)
		if err != nil {
			return core.Snapshot{}, err
		}
		want[id] = true
	}
	snap := s.SelectAllGrids(ctx)
	for _, id := range domain.GridIDs() {
		if !want[id] {
			snap = s.ToggleGrid(ctx, id)
		}
	}
	return snap, nil
}

func (a *app) runPref(ctx context.Context, opts options, stdout io.Writer) error {
	if len(opts.args) == 0 {
		_, err := fmt.Fprintln(stdout, a.session.Snapshot().Source.Mode)
		return err
	}
	if opts.args[0] != "set" || len(opts.args) != 2 {
		return fmt.Errorf("%w: expected 'pref' or 'pref set <mode>'", errUsage)
	}
	mode := domain.SourceMode(opts.args[1])
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown source %q", errUsage, mode)
	}
	a.session.SetSourceMode(ctx, mode)
	a.tracker.TrackMasterMixInputMode(mode)
	stored, ok, err := a.prefs.Get(ctx, domain.PrefMasterMixInputMode)
	if err != nil {
		return fmt.Errorf("read preference: %w", err)
	}
	if !ok {
		return fmt.Errorf("preference %s was not stored", domain.PrefMasterMixInputMode)
	}
	_, err = fmt.Fprintln(stdout, stored)
	return err
}

func (a *app) runExport(ctx context.Context, snap core.Snapshot, opts options, stdout io.Writer) error {
	formats, err := export.ParseFormats(opts.formats)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	store, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	workerOpts := []export.WorkerOption{export.WithWorkerLogger(a.logger)}
	if opts.presign > 0 {
		workerOpts = append(workerOpts, export.WithPresign(opts.presign))
	}
	worker := export.NewWorker(store, workerOpts...)
	worker.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := worker.Stop(stopCtx); err != nil {
			a.logger.Warn("stop export worker", "error", err)
		}
	}()

	queued, err := worker.Enqueue(ctx, export.Request{Document: export.FromSnapshot(snap, time.Time{}), Formats: formats})
	if err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	job, err := worker.Wait(waitCtx, queued.ID)
	if err != nil {
		return err
	}
	if job.Status != export.StatusSucceeded {
		return fmt.Errorf("export %s failed: %s", job.ID, job.Error)
	}
	for _, f := range job.Formats {
		a.tracker.TrackDataExport(string(f))
	}
	if opts.json {
		return writeJSON(stdout, job)
	}
	for _, art := range job.Artifacts {
		location := art.Key
		if art.URL != "" {
			location = art.URL
		}
		if _, err := fmt.Fprintf(stdout, "%s\t%d bytes\t%s\n", art.Name, art.SizeBytes, location); err != nil {
			return err
		}
	}
	return nil
}
