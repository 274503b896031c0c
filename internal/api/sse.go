package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/swarmlink/orchestrate-go/internal/domain"
	"github.com/swarmlink/orchestrate-go/internal/orchestrator"
)

// SSEEventType identifies a re-stream event.
type SSEEventType string

const (
	SSERunStarted   SSEEventType = "RUN_STARTED"
	SSERunFinished  SSEEventType = "RUN_FINISHED"
	SSERunError     SSEEventType = "RUN_ERROR"
	SSEStepStarted  SSEEventType = "STEP_STARTED"
	SSEStepFinished SSEEventType = "STEP_FINISHED"
	SSEStateDelta   SSEEventType = "STATE_DELTA"
)

// SSEEvent is one event emitted to a streaming client.
type SSEEvent struct {
	Type      SSEEventType `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	RunID     string       `json:"run_id"`
	Data      any          `json:"data,omitempty"`
}

// StreamConfig controls the SSE poll loop.
type StreamConfig struct {
	PollInterval time.Duration
	MaxDuration  time.Duration
}

// DefaultStreamConfig returns sensible defaults.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PollInterval: 500 * time.Millisecond,
		MaxDuration:  30 * time.Minute,
	}
}

var streamConfig = DefaultStreamConfig()

// handleStreamRun re-streams one run's progress transitions as SSE,
// closing after the run reaches a terminal phase.
func (s *Server) handleStreamRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		http.Error(w, "run id required", http.StatusBadRequest)
		return
	}

	status, err := s.registry.Get(runID)
	if errors.Is(err, orchestrator.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithTimeout(r.Context(), streamConfig.MaxDuration)
	defer cancel()

	writeSSE(w, flusher, SSEEvent{
		Type:      SSERunStarted,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Data:      map[string]string{"command": status.Command},
	})

	var lastStep string
	var lastProgress *domain.ProgressState
	if emitTransitions(w, flusher, runID, status, &lastStep, &lastProgress) {
		return
	}

	ticker := time.NewTicker(streamConfig.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err = s.registry.Get(runID)
			if err != nil {
				writeSSE(w, flusher, SSEEvent{
					Type:      SSERunError,
					Timestamp: time.Now().UTC(),
					RunID:     runID,
					Data:      map[string]string{"message": err.Error()},
				})
				return
			}
			if emitTransitions(w, flusher, runID, status, &lastStep, &lastProgress) {
				return
			}
		}
	}
}

// emitTransitions writes step/progress changes and, for a terminal
// phase, the closing event. Returns true when the stream is done.
func emitTransitions(w http.ResponseWriter, flusher http.Flusher, runID string, status domain.RunStatus, lastStep *string, lastProgress **domain.ProgressState) bool {
	if p := status.Progress; p != nil {
		if p.Step != *lastStep {
			if *lastStep != "" {
				writeSSE(w, flusher, SSEEvent{
					Type:      SSEStepFinished,
					Timestamp: time.Now().UTC(),
					RunID:     runID,
					Data:      map[string]string{"step": *lastStep},
				})
			}
			writeSSE(w, flusher, SSEEvent{
				Type:      SSEStepStarted,
				Timestamp: time.Now().UTC(),
				RunID:     runID,
				Data:      map[string]string{"step": p.Step},
			})
			*lastStep = p.Step
		}
		if *lastProgress == nil || **lastProgress != *p {
			writeSSE(w, flusher, SSEEvent{
				Type:      SSEStateDelta,
				Timestamp: time.Now().UTC(),
				RunID:     runID,
				Data:      p,
			})
			state := *p
			*lastProgress = &state
		}
	}

	switch status.Phase {
	case domain.PhaseCompleted:
		writeSSE(w, flusher, SSEEvent{
			Type:      SSERunFinished,
			Timestamp: time.Now().UTC(),
			RunID:     runID,
			Data:      map[string]any{"phase": status.Phase, "result": status.Result},
		})
		return true
	case domain.PhaseFailed:
		writeSSE(w, flusher, SSEEvent{
			Type:      SSERunError,
			Timestamp: time.Now().UTC(),
			RunID:     runID,
			Data:      map[string]string{"message": status.Error},
		})
		return true
	}
	return false
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event SSEEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	flusher.Flush()
}
