package domain

// RunPhase is the lifecycle state of an orchestration run.
type RunPhase string

const (
	PhaseIdle      RunPhase = "idle"
	PhaseRunning   RunPhase = "running"
	PhaseCompleted RunPhase = "completed"
	PhaseFailed    RunPhase = "failed"
)

func (p RunPhase) Valid() bool {
	switch p {
	case PhaseIdle, PhaseRunning, PhaseCompleted, PhaseFailed:
		return true
	}
	return false
}

// Terminal reports whether the phase is a final state.
func (p RunPhase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// EventKind tags a stream event. The set is open: unrecognized kinds
// flow through the pipeline without failing it, so there is no Valid()
// here -- only Known() for the kinds the reducer acts on.
type EventKind string

const (
	EventStepStart        EventKind = "step_start"
	EventProgress         EventKind = "progress"
	EventWorkflowComplete EventKind = "workflow_complete"
)

func (k EventKind) Known() bool {
	switch k {
	case EventStepStart, EventProgress, EventWorkflowComplete:
		return true
	}
	return false
}

// ArtifactType classifies an externally supplied artifact link.
// An empty type is accepted as media for filtering purposes.
type ArtifactType string

const (
	ArtifactImage ArtifactType = "image"
	ArtifactVideo ArtifactType = "video"
	ArtifactAudio ArtifactType = "audio"
	ArtifactMedia ArtifactType = "media"
)

func (a ArtifactType) Valid() bool {
	switch a {
	case ArtifactImage, ArtifactVideo, ArtifactAudio, ArtifactMedia:
		return true
	}
	return false
}

// IsMedia reports whether a link of this type belongs in a run's
// media list. Unspecified types are included.
func (a ArtifactType) IsMedia() bool {
	return a == "" || a.Valid()
}
