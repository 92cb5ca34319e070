package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// RecomputeStats aggregates the recomputations of one session operation.
type RecomputeStats struct {
	Count    int64   `json:"count"`
	Failures int64   `json:"failures"`
	TotalMS  float64 `json:"total_ms"`
	MaxMS    float64 `json:"max_ms"`
}

var expvarSeq atomic.Uint64

// ExpvarRecorder keeps per-operation RecomputeStats and publishes them
// through expvar.
type ExpvarRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]RecomputeStats
}

// NewExpvarRecorder publishes a recorder under name. Names must be unique
// per process; an empty name gets a generated one.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		name = fmt.Sprintf("hemocount_recompute_%d", expvarSeq.Add(1))
	}
	r := &ExpvarRecorder{name: name, ops: make(map[string]RecomputeStats)}
	expvar.Publish(name, expvar.Func(func() any { return r.Stats() }))
	return r
}

// Name returns the expvar variable name.
func (r *ExpvarRecorder) Name() string { return r.name }

// Observe implements MetricsRecorder.
func (r *ExpvarRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.ops[operation]
	st.Count++
	if !success {
		st.Failures++
	}
	st.TotalMS += ms
	st.MaxMS = max(st.MaxMS, ms)
	r.ops[operation] = st
}

// Stats returns a copy of the per-operation stats.
func (r *ExpvarRecorder) Stats() map[string]RecomputeStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]RecomputeStats, len(r.ops))
	for op, st := range r.ops {
		out[op] = st
	}
	return out
}

// WriteJSON writes the stats as one indented JSON object keyed by operation.
func (r *ExpvarRecorder) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Stats())
}

// TeeMetrics fans every observation out to each non-nil recorder.
func TeeMetrics(recorders ...MetricsRecorder) MetricsRecorder {
	var out teeRecorder
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type teeRecorder []MetricsRecorder

func (t teeRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range t {
		r.Observe(ctx, operation, success, duration)
	}
}

// Span is one traced recomputation.
type Span struct {
	Operation  string    `json:"operation"`
	Failed     bool      `json:"failed,omitempty"`
	Error      string    `json:"error,omitempty"`
	Start      time.Time `json:"start"`
	DurationMS float64   `json:"duration_ms"`
}

// SpanLog is a Tracer that appends each finished span to w as a JSON line
// and keeps it in memory.
type SpanLog struct {
	mu    sync.Mutex
	enc   *json.Encoder
	spans []Span
	now   func() time.Time
}

// NewSpanLog returns a tracer writing to w. A nil w only retains spans.
func NewSpanLog(w io.Writer) *SpanLog {
	l := &SpanLog{now: func() time.Time { return time.Now().UTC() }}
	if w != nil {
		l.enc = json.NewEncoder(w)
	}
	return l
}

// Spans returns the finished spans in completion order.
func (l *SpanLog) Spans() []Span {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Span(nil), l.spans...)
}

// Start implements Tracer.
func (l *SpanLog) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &spanHandle{log: l, span: Span{Operation: operation, Start: l.now()}}
}

type spanHandle struct {
	log  *SpanLog
	span Span
}

func (h *spanHandle) End(err error) {
	sp := h.span
	sp.DurationMS = float64(h.log.now().Sub(sp.Start)) / float64(time.Millisecond)
	if err != nil {
		sp.Failed = true
		sp.Error = err.Error()
	}
	h.log.mu.Lock()
	defer h.log.mu.Unlock()
	h.log.spans = append(h.log.spans, sp)
	if h.log.enc != nil {
		_ = h.log.enc.Encode(sp)
	}
}
