package orchestrator

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning rejects a Start while a run is in flight.
var ErrAlreadyRunning = errors.New("orchestrator: run already in progress")

// ErrIncompleteStream marks a stream that ended without a terminal
// workflow_complete event.
var ErrIncompleteStream = errors.New("no complete workflow data received from stream")

// TransportError is a failure of the streaming request itself: the
// request could not be sent, the upstream answered non-2xx, or the
// body failed mid-read.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("orchestrator: transport: %v", e.Err)
	}
	return fmt.Sprintf("orchestrator: upstream returned status %d", e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
