package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/swarmlink/orchestrate-go/internal/config"
	"github.com/swarmlink/orchestrate-go/internal/domain"
	"github.com/swarmlink/orchestrate-go/internal/installdata"
	"github.com/swarmlink/orchestrate-go/internal/observability"
	"github.com/swarmlink/orchestrate-go/internal/ratelimit"
)

// ErrRunNotFound is returned for lookups of unknown run IDs.
var ErrRunNotFound = fmt.Errorf("orchestrator: run not found")

// Registry manages many concurrent runs, one Orchestrator per run, and
// backs the API and MCP surfaces. Tenant run budgets are enforced at
// start.
type Registry struct {
	cfg     config.Config
	sink    *installdata.Client
	budget  *ratelimit.RunBudget
	metrics *observability.Metrics
	logger  *slog.Logger

	mu   sync.RWMutex
	runs map[string]*Orchestrator
}

// NewRegistry creates a run registry.
func NewRegistry(cfg config.Config, sink *installdata.Client) *Registry {
	return &Registry{
		cfg:    cfg,
		sink:   sink,
		budget: ratelimit.NewRunBudget(30, time.Minute),
		logger: slog.Default(),
		runs:   make(map[string]*Orchestrator),
	}
}

// SetMetrics attaches metric instruments to all future runs.
func (r *Registry) SetMetrics(m *observability.Metrics) {
	r.metrics = m
}

// StartRun begins a new run and returns its initial status snapshot.
func (r *Registry) StartRun(ctx context.Context, command string, id domain.Identity) (domain.RunStatus, error) {
	if command == "" {
		return domain.RunStatus{}, fmt.Errorf("orchestrator: command is required")
	}
	if err := r.budget.Check(id.TenantID); err != nil {
		return domain.RunStatus{}, err
	}

	o := New(r.cfg, r.sink)
	if r.metrics != nil {
		o.SetMetrics(r.metrics)
	}

	runID, err := o.Start(ctx, command, id)
	if err != nil {
		return domain.RunStatus{}, err
	}
	r.budget.Record(id.TenantID)

	r.mu.Lock()
	r.runs[runID] = o
	r.mu.Unlock()

	return o.Snapshot(), nil
}

// Get returns the status of one run.
func (r *Registry) Get(runID string) (domain.RunStatus, error) {
	o, ok := r.orchestrator(runID)
	if !ok {
		return domain.RunStatus{}, ErrRunNotFound
	}
	return o.Snapshot(), nil
}

// List returns all known runs, newest first.
func (r *Registry) List() []domain.RunStatus {
	r.mu.RLock()
	statuses := make([]domain.RunStatus, 0, len(r.runs))
	for _, o := range r.runs {
		statuses = append(statuses, o.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].StartedAt != statuses[j].StartedAt {
			return statuses[i].StartedAt > statuses[j].StartedAt
		}
		return statuses[i].RunID < statuses[j].RunID
	})
	return statuses
}

// Cancel aborts an in-flight run. Cancelling a terminal run is a
// no-op.
func (r *Registry) Cancel(runID string) error {
	o, ok := r.orchestrator(runID)
	if !ok {
		return ErrRunNotFound
	}
	o.Stop()
	return nil
}

// Done exposes the completion channel of one run, for callers that
// block on it.
func (r *Registry) Done(runID string) (<-chan struct{}, error) {
	o, ok := r.orchestrator(runID)
	if !ok {
		return nil, ErrRunNotFound
	}
	return o.Done(), nil
}

func (r *Registry) orchestrator(runID string) (*Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.runs[runID]
	return o, ok
}
