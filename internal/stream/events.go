// Package stream decodes the orchestration backend's progress stream:
// newline-delimited frames, each a "data: " marker followed by a JSON
// event record. The event set is open; unrecognized kinds flow through
// without failing the pipeline.
package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/swarmlink/orchestrate-go/internal/domain"
)

// Marker prefixes every candidate frame line.
const Marker = "data: "

// Event is one decoded record from the stream. Body retains the full
// frame so the terminal event's payload survives whatever shape the
// backend gave it.
type Event struct {
	Event    domain.EventKind
	Step     string
	Progress int
	Message  string
	// Response is the auto_orchestrate_response field carried by
	// workflow_complete events, untouched.
	Response json.RawMessage
	Body     json.RawMessage
}

// Terminal reports whether this is the workflow_complete event.
func (e *Event) Terminal() bool {
	return e.Event == domain.EventWorkflowComplete
}

// Payload returns the terminal payload: the auto_orchestrate_response
// envelope when present, otherwise the whole event body.
func (e *Event) Payload() json.RawMessage {
	if len(e.Response) > 0 {
		return e.Response
	}
	return e.Body
}

// ParseFrame decodes one complete line. Lines without the marker are
// not frames and yield (nil, nil). A marked line with invalid JSON
// yields a non-nil error; the caller logs and skips it.
func ParseFrame(line string) (*Event, error) {
	if !strings.HasPrefix(line, Marker) {
		return nil, nil
	}
	raw := strings.TrimPrefix(line, Marker)

	var wire struct {
		Event    string          `json:"event"`
		Step     string          `json:"step"`
		Progress int             `json:"progress"`
		Message  string          `json:"message"`
		Response json.RawMessage `json:"auto_orchestrate_response"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("stream: malformed frame: %w", err)
	}

	return &Event{
		Event:    domain.EventKind(wire.Event),
		Step:     wire.Step,
		Progress: wire.Progress,
		Message:  wire.Message,
		Response: wire.Response,
		Body:     json.RawMessage(raw),
	}, nil
}
