package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"hemocount/internal/blob"
	"hemocount/internal/core"
)

// Status describes the lifecycle stage of an export job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Done reports whether the job reached a terminal state.
func (s Status) Done() bool { return s == StatusSucceeded || s == StatusFailed }

// Artifact is a stored export file.
type Artifact struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ETag        string    `json:"etag,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Job tracks one export request and its artifacts.
type Job struct {
	ID          string     `json:"id"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Request is an enqueue request for the worker.
type Request struct {
	Document Document
	Formats  []Format
}

// KeyPrefix is the blob key prefix of every artifact.
const KeyPrefix = "exports"

const defaultQueueSize = 32

// ErrQueueFull is returned by Enqueue when the worker is saturated.
var ErrQueueFull = errors.New("export queue full")

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(logger core.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithQueueSize bounds the number of pending jobs.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan task, n)
		}
	}
}

// WithPresign asks the store for a signed GET URL per artifact. Drivers
// without signing keep the URL they returned from Put.
func WithPresign(expiry time.Duration) WorkerOption {
	return func(w *Worker) {
		w.presign = true
		w.expiry = expiry
	}
}

// WithWorkerClock overrides the job timestamp source.
func WithWorkerClock(clock core.Clock) WorkerOption {
	return func(w *Worker) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// Worker renders and stores exports asynchronously.
type Worker struct {
	store   blob.Store
	logger  core.Logger
	clock   core.Clock
	presign bool
	expiry  time.Duration

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*jobState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id  string
	req Request
}

type jobState struct {
	job  Job
	done chan struct{}
}

// NewWorker constructs an export worker storing artifacts in store.
func NewWorker(store blob.Store, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		store:  store,
		logger: nopLogger{},
		clock:  core.ClockFunc(nil),
		queue:  make(chan task, defaultQueueSize),
		jobs:   make(map[string]*jobState),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion. Jobs still
// queued stay queued.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue validates req and schedules it, returning the queued job.
func (w *Worker) Enqueue(ctx context.Context, req Request) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	if w.store == nil {
		return Job{}, fmt.Errorf("export store not configured")
	}
	formats := req.Formats
	if len(formats) == 0 {
		formats = []Format{FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, f := range formats {
		if _, dup := seen[f]; dup {
			continue
		}
		if !f.Valid() {
			return Job{}, fmt.Errorf("unsupported export format %s", f)
		}
		uniq = append(uniq, f)
		seen[f] = struct{}{}
	}
	req.Formats = uniq

	now := w.clock.Now().UTC()
	state := &jobState{
		job: Job{
			ID:        uuid.NewString(),
			Formats:   uniq,
			Status:    StatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		done: make(chan struct{}),
	}
	w.mu.Lock()
	w.jobs[state.job.ID] = state
	queued := state.job.copy()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: queued.ID, req: req}:
	default:
		w.mu.Lock()
		delete(w.jobs, queued.ID)
		w.mu.Unlock()
		return Job{}, ErrQueueFull
	}
	w.logger.Debug("export queued", "job", queued.ID, "formats", len(uniq))
	return queued, nil
}

// Get returns a snapshot of the job.
func (w *Worker) Get(id string) (Job, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	state, ok := w.jobs[id]
	if !ok {
		return Job{}, false
	}
	return state.job.copy(), true
}

// Wait blocks until the job finishes or ctx is done.
func (w *Worker) Wait(ctx context.Context, id string) (Job, error) {
	w.mu.RLock()
	state, ok := w.jobs[id]
	w.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("export job %s not found", id)
	}
	select {
	case <-state.done:
		job, _ := w.Get(id)
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (w *Worker) process(t task) {
	w.updateStatus(t.id, StatusRunning)
	var artifacts []Artifact
	for _, f := range t.req.Formats {
		files, err := Render(t.req.Document, f)
		if err != nil {
			w.fail(t.id, err.Error())
			return
		}
		for _, file := range files {
			artifact, err := w.storeFile(t.id, file)
			if err != nil {
				w.fail(t.id, fmt.Sprintf("store artifact failed: %v", err))
				return
			}
			artifacts = append(artifacts, artifact)
		}
	}
	w.complete(t.id, artifacts)
}

func (w *Worker) storeFile(id string, file File) (Artifact, error) {
	key := path.Join(KeyPrefix, id, file.Name)
	info, err := w.store.Put(w.ctx, key, bytes.NewReader(file.Data), blob.PutOptions{
		ContentType: file.ContentType,
		Metadata:    map[string]string{"kind": file.Kind, "format": string(file.Format), "job": id},
	})
	if err != nil {
		return Artifact{}, err
	}
	artifact := Artifact{
		Key:         info.Key,
		Name:        file.Name,
		Kind:        file.Kind,
		Format:      file.Format,
		ContentType: file.ContentType,
		SizeBytes:   info.Size,
		ETag:        info.ETag,
		URL:         info.URL,
		CreatedAt:   info.LastModified,
	}
	if artifact.SizeBytes == 0 {
		artifact.SizeBytes = int64(len(file.Data))
	}
	if w.presign {
		url, err := w.store.PresignURL(w.ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: w.expiry})
		switch {
		case err == nil:
			artifact.URL = url
		case errors.Is(err, blob.ErrUnsupported):
			w.logger.Debug("presign unsupported", "driver", w.store.Driver())
		default:
			return Artifact{}, fmt.Errorf("presign %s: %w", key, err)
		}
	}
	return artifact, nil
}

func (w *Worker) updateStatus(id string, status Status) {
	now := w.clock.Now().UTC()
	w.mu.Lock()
	if state, ok := w.jobs[id]; ok {
		state.job.Status = status
		state.job.UpdatedAt = now
	}
	w.mu.Unlock()
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	w.finish(id, StatusSucceeded, "", artifacts)
	w.logger.Info("export complete", "job", id, "artifacts", len(artifacts))
}

func (w *Worker) fail(id, reason string) {
	w.finish(id, StatusFailed, reason, nil)
	w.logger.Error("export failed", "job", id, "error", reason)
}

func (w *Worker) finish(id string, status Status, reason string, artifacts []Artifact) {
	now := w.clock.Now().UTC()
	w.mu.Lock()
	defer w.mu.Unlock()
	state, ok := w.jobs[id]
	if !ok {
		return
	}
	state.job.Status = status
	state.job.Error = reason
	state.job.Artifacts = artifacts
	state.job.UpdatedAt = now
	state.job.CompletedAt = &now
	close(state.done)
}

func (j Job) copy() Job {
	dup := j
	dup.Formats = append([]Format(nil), j.Formats...)
	if len(j.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), j.Artifacts...)
	}
	if j.CompletedAt != nil {
		at := *j.CompletedAt
		dup.CompletedAt = &at
	}
	return dup
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
