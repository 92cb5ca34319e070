package core

import (
	"bytes"
	"context"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"hemocount/pkg/domain"
)

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

type captureTracer struct {
	started []string
	ended   []error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c}
}

type captureSpan struct{ tracer *captureTracer }

func (s *captureSpan) End(err error) { s.tracer.ended = append(s.tracer.ended, err) }

func TestNoopObservabilityDefaults(_ *testing.T) {
	logger := noopLogger{}
	logger.Debug("debug", "key", "value")
	logger.Info("info", "key", "value")
	logger.Warn("warn", "key", "value")
	logger.Error("error", "key", "value")

	noopMetrics{}.Observe(context.Background(), "op", true, time.Millisecond)
	_, span := noopTracer{}.Start(context.Background(), "op")
	span.End(errors.New("ignored"))
}

func TestSessionRecordsEveryRecompute(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	s := NewSession(ctx, WithMetricsRecorder(metrics), WithTracer(tracer))
	s.SetGridCount(ctx, domain.GridTopLeft, domain.CountViable, "12")
	s.SetUseViable(ctx, false)

	wantOps := []string{"session_open", "set_grid_count", "set_use_viable"}
	if len(metrics.calls) != len(wantOps) || len(tracer.started) != len(wantOps) {
		t.Fatalf("expected %d observations, got metrics=%v spans=%v", len(wantOps), metrics.calls, tracer.started)
	}
	for i, op := range wantOps {
		if metrics.calls[i].op != op || !metrics.calls[i].success || tracer.started[i] != op {
			t.Fatalf("unexpected observation %d: %+v / %s", i, metrics.calls[i], tracer.started[i])
		}
		if tracer.ended[i] != nil {
			t.Fatalf("expected clean span end, got %v", tracer.ended[i])
		}
	}
}

func TestNilOptionsKeepDefaults(t *testing.T) {
	s := NewSession(context.Background(), WithLogger(nil), WithClock(nil), WithMetricsRecorder(nil), WithTracer(nil))
	if s.Snapshot().ComputedAt.IsZero() {
		t.Fatalf("expected default clock retained")
	}
}

func TestExpvarRecorderAggregates(t *testing.T) {
	recorder := NewExpvarRecorder("")
	if recorder.Name() == "" {
		t.Fatalf("expected recorder to have export name")
	}
	ctx := context.Background()
	recorder.Observe(ctx, "set_totals", true, 10*time.Millisecond)
	recorder.Observe(ctx, "set_totals", false, 5*time.Millisecond)
	recorder.Observe(ctx, "", true, time.Millisecond)

	stats := recorder.Stats()
	if len(stats) != 1 {
		t.Fatalf("empty operation must be ignored, got %+v", stats)
	}
	st := stats["set_totals"]
	if st.Count != 2 || st.Failures != 1 || st.TotalMS != 15 || st.MaxMS != 10 {
		t.Fatalf("unexpected stats %+v", st)
	}

	if v := expvar.Get(recorder.Name()); v == nil {
		t.Fatalf("expected expvar export to be registered")
	} else if !strings.Contains(v.String(), "set_totals") {
		t.Fatalf("expected expvar output to contain operation: %s", v.String())
	}
	var buf bytes.Buffer
	if err := recorder.WriteJSON(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), `"failures": 1`) {
		t.Fatalf("unexpected JSON %s", buf.String())
	}
}

func TestTeeMetricsFansOut(t *testing.T) {
	first, second := &captureMetricsRecorder{}, NewExpvarRecorder("")
	tee := TeeMetrics(first, nil, second)
	tee.Observe(context.Background(), "toggle_grid", true, time.Millisecond)
	if len(first.calls) != 1 || second.Stats()["toggle_grid"].Count != 1 {
		t.Fatalf("expected both recorders observed, got %+v %+v", first.calls, second.Stats())
	}
	TeeMetrics().Observe(context.Background(), "noop", true, 0)
}

func TestSpanLogWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewSpanLog(&buf)
	_, span := tracer.Start(context.Background(), "set_dilution")
	span.End(nil)
	_, failed := tracer.Start(context.Background(), "set_totals")
	failed.End(errors.New("boom"))

	spans := tracer.Spans()
	if len(spans) != 2 {
		t.Fatalf("expected two spans, got %d", len(spans))
	}
	if spans[0].Operation != "set_dilution" || spans[0].Failed || spans[0].Start.IsZero() {
		t.Fatalf("unexpected span: %+v", spans[0])
	}
	if !spans[1].Failed || spans[1].Error != "boom" {
		t.Fatalf("unexpected failed span: %+v", spans[1])
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 || !strings.Contains(buf.String(), `"operation":"set_dilution"`) {
		t.Fatalf("unexpected JSON lines: %q", buf.String())
	}

	silent := NewSpanLog(nil)
	_, span = silent.Start(context.Background(), "quiet")
	span.End(nil)
	if len(silent.Spans()) != 1 {
		t.Fatalf("nil writer tracer must still retain spans")
	}
}
