// Package orchestrator runs the client side of an auto-orchestration
// request: it opens the backend's progress stream, reduces events into
// observable run state, normalizes the terminal payload, and fires the
// persistence and audit side effects. One Orchestrator owns at most
// one run at a time.
package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/swarmlink/orchestrate-go/internal/config"
	"github.com/swarmlink/orchestrate-go/internal/domain"
	"github.com/swarmlink/orchestrate-go/internal/installdata"
	"github.com/swarmlink/orchestrate-go/internal/normalize"
	"github.com/swarmlink/orchestrate-go/internal/observability"
	"github.com/swarmlink/orchestrate-go/internal/project"
	"github.com/swarmlink/orchestrate-go/internal/ratelimit"
	"github.com/swarmlink/orchestrate-go/internal/stream"
)

// Orchestrator drives a single orchestration run through the
// Idle -> Running -> Completed|Failed lifecycle.
type Orchestrator struct {
	cfg        config.Config
	sink       *installdata.Client
	httpClient *http.Client
	limiter    *ratelimit.EndpointLimiter
	metrics    *observability.Metrics
	logger     *slog.Logger

	mu     sync.Mutex
	status domain.RunStatus
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an Orchestrator with an OTel-instrumented HTTP client.
func New(cfg config.Config, sink *installdata.Client) *Orchestrator {
	return NewWithHTTPClient(cfg, sink, &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

// NewWithHTTPClient creates an Orchestrator with a custom HTTP client
// (for testing).
func NewWithHTTPClient(cfg config.Config, sink *installdata.Client, httpClient *http.Client) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		sink:       sink,
		httpClient: httpClient,
		limiter:    ratelimit.NewEndpointLimiter(ratelimit.DefaultEndpointRates()),
		logger:     slog.Default(),
		status:     domain.RunStatus{Phase: domain.PhaseIdle},
	}
}

// SetMetrics attaches metric instruments. Nil metrics are allowed and
// skipped.
func (o *Orchestrator) SetMetrics(m *observability.Metrics) {
	o.metrics = m
}

// Start begins a run for the given command on behalf of identity. It
// returns the run ID immediately; the run proceeds in the background
// and is observable via Snapshot and Done. A second Start while
// Running is rejected.
func (o *Orchestrator) Start(ctx context.Context, command string, id domain.Identity) (string, error) {
	if err := domain.ValidateIdentity(id); err != nil {
		return "", err
	}

	o.mu.Lock()
	if o.status.Phase == domain.PhaseRunning {
		o.mu.Unlock()
		o.logger.Warn("start rejected, run already in progress", "run_id", o.status.RunID)
		return "", ErrAlreadyRunning
	}

	status := domain.NewRunStatus(command, id)
	status.Phase = domain.PhaseRunning
	o.status = status

	// The run outlives the caller's request context; only Stop or the
	// process shutting down cancels it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel
	o.done = make(chan struct{})
	done := o.done
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.RecordRunStarted(runCtx)
	}
	o.logger.Info("run started", "run_id", status.RunID, "user_id", id.UserID)

	go func() {
		defer close(done)
		defer cancel()
		o.run(runCtx, status.RunID, command, id, time.Now())
	}()

	return status.RunID, nil
}

// Stop aborts an in-flight run and returns to Idle without producing a
// result. Safe to call from Idle.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status.Phase != domain.PhaseRunning {
		return
	}
	if o.cancel != nil {
		o.cancel()
	}
	o.logger.Info("run stopped", "run_id", o.status.RunID)
	o.status.Phase = domain.PhaseIdle
	o.status.CompletedAt = ""
}

// Reset clears all derived state and returns to Idle, from any state.
// An in-flight run is aborted first.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.status = domain.RunStatus{Phase: domain.PhaseIdle}
}

// Snapshot returns a copy of the current run status.
func (o *Orchestrator) Snapshot() domain.RunStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Done returns a channel closed when the current run's background work
// has finished, nil if no run was started.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

func (o *Orchestrator) run(ctx context.Context, runID, command string, id domain.Identity, started time.Time) {
	reducer := &Reducer{}

	if err := o.streamEvents(ctx, command, reducer); err != nil {
		o.fail(ctx, runID, err, started)
		return
	}

	terminal := reducer.Terminal()
	if terminal == nil {
		o.fail(ctx, runID, ErrIncompleteStream, started)
		return
	}

	payload := normalize.FromRaw(terminal)
	opts := normalize.Options{
		MinMatchLen: o.cfg.Limits.MinRegexMatchLen,
		TruncateLen: o.cfg.Limits.TruncateLen,
	}
	outcome := normalize.Normalize(payload, opts)
	graph := project.Graph(payload)

	if o.metrics != nil {
		o.metrics.RecordExtractDepth(ctx, outcome.TextStrategy)
	}

	// Side effects run before the run is marked Completed; their
	// failure never invalidates the result.
	o.persist(ctx, runID, command, id, graph, payload, terminal)

	o.complete(ctx, runID, outcome.Result, graph, started)
}

// streamEvents opens the progress stream and folds every event into
// the reducer, publishing progress as it goes.
func (o *Orchestrator) streamEvents(ctx context.Context, command string, reducer *Reducer) error {
	if err := o.limiter.Wait(ctx, "Orchestrate"); err != nil {
		return &TransportError{Err: err}
	}

	u, err := url.Parse(o.cfg.OrchestrateURL)
	if err != nil {
		return &TransportError{Err: err}
	}
	q := u.Query()
	q.Set("command", command)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &TransportError{Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	if o.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.BearerToken)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Status: resp.StatusCode}
	}

	dec := stream.NewDecoder(resp.Body)
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &TransportError{Err: err}
		}

		reducer.Apply(ev)
		if progress, ok := reducer.Progress(); ok {
			o.publishProgress(progress)
		}
	}

	if skipped := dec.Skipped(); skipped > 0 && o.metrics != nil {
		o.metrics.FramesSkipped.Add(ctx, int64(skipped))
	}
	return nil
}

func (o *Orchestrator) publishProgress(p domain.ProgressState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status.Phase != domain.PhaseRunning {
		return
	}
	progress := p
	o.status.Progress = &progress
}

func (o *Orchestrator) persist(ctx context.Context, runID, command string, id domain.Identity, graph domain.AgentGraph, payload normalize.Payload, terminal []byte) {
	if o.sink == nil {
		return
	}

	if err := o.limiter.Wait(ctx, "InstallData"); err != nil {
		o.logger.Error("persistence skipped", "run_id", runID, "error", err)
		return
	}

	record := o.sink.BuildRecord(runID, command, graph, payload, terminal)
	if err := o.sink.PersistRun(ctx, record); err != nil {
		o.logger.Error("run record persistence failed", "run_id", runID, "error", err)
		if o.metrics != nil {
			o.metrics.RecordPersist(ctx, "error")
		}
	} else if o.metrics != nil {
		o.metrics.RecordPersist(ctx, "ok")
	}

	if err := o.limiter.Wait(ctx, "Audit"); err != nil {
		o.logger.Warn("audit skipped", "run_id", runID, "error", err)
		return
	}
	event := domain.NewAuditEvent(id.UserID, command, len(graph.Nodes), len(graph.Connections))
	if err := o.sink.Audit(ctx, event); err != nil {
		o.logger.Warn("audit call failed", "run_id", runID, "error", err)
	}
}

func (o *Orchestrator) complete(ctx context.Context, runID string, result domain.NormalizedResult, graph domain.AgentGraph, started time.Time) {
	o.mu.Lock()
	if o.status.RunID != runID || o.status.Phase != domain.PhaseRunning {
		// Stopped or reset while finishing; the result is dropped.
		o.mu.Unlock()
		return
	}
	o.status.Phase = domain.PhaseCompleted
	o.status.Result = &result
	o.status.Graph = &graph
	o.status.Progress = &domain.ProgressState{
		Step:     "completed",
		Progress: 100,
		Message:  "Workflow complete",
	}
	o.status.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.RecordRunFinished(ctx, "completed", time.Since(started))
	}
	o.logger.Info("run completed", "run_id", runID,
		"agents", len(graph.Nodes), "duration", time.Since(started))
}

func (o *Orchestrator) fail(ctx context.Context, runID string, err error, started time.Time) {
	o.mu.Lock()
	if o.status.RunID != runID || o.status.Phase != domain.PhaseRunning {
		o.mu.Unlock()
		return
	}
	o.status.Phase = domain.PhaseFailed
	o.status.Error = err.Error()
	o.status.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.RecordRunFinished(ctx, "failed", time.Since(started))
	}
	o.logger.Error("run failed", "run_id", runID, "error", err)
}
