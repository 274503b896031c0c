package orchestrator

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/swarmlink/orchestrate-go/internal/domain"
	"github.com/swarmlink/orchestrate-go/internal/stream"
)

// Reducer folds the event sequence of one run into progress state and
// at most one terminal payload. The first workflow_complete wins;
// later ones are logged and ignored.
type Reducer struct {
	progress    domain.ProgressState
	hasProgress bool
	terminal    json.RawMessage
	lastEvent   *stream.Event
}

// Apply folds one event into the reducer.
func (r *Reducer) Apply(ev *stream.Event) {
	r.lastEvent = ev

	switch ev.Event {
	case domain.EventStepStart:
		msg := ev.Message
		if msg == "" {
			msg = fmt.Sprintf("Starting %s...", ev.Step)
		}
		r.progress = domain.ProgressState{Step: ev.Step, Progress: 0, Message: msg}
		r.hasProgress = true

	case domain.EventProgress:
		msg := ev.Message
		if msg == "" {
			msg = fmt.Sprintf("Processing %s... %d%%", ev.Step, ev.Progress)
		}
		r.progress = domain.ProgressState{Step: ev.Step, Progress: ev.Progress, Message: msg}
		r.hasProgress = true

	case domain.EventWorkflowComplete:
		if r.terminal != nil {
			slog.Warn("duplicate terminal event ignored", "step", ev.Step)
			return
		}
		r.terminal = ev.Payload()
	}
	// Unknown kinds update lastEvent only.
}

// Progress returns the current progress state and whether any
// progress-bearing event has been seen.
func (r *Reducer) Progress() (domain.ProgressState, bool) {
	return r.progress, r.hasProgress
}

// Terminal returns the captured terminal payload, nil if none arrived.
func (r *Reducer) Terminal() json.RawMessage {
	return r.terminal
}

// LastEvent returns the most recent event of any kind, for
// observability.
func (r *Reducer) LastEvent() *stream.Event {
	return r.lastEvent
}
