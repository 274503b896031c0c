package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run-" + uuid.NewString()
}

// Identity is the authenticated caller on whose behalf a run executes.
// It is passed explicitly into the orchestrator rather than read from
// any ambient state.
type Identity struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
}

// ProgressState is the UI-facing progress of an orchestration run.
// It is overwritten, not merged, on each step_start/progress event.
type ProgressState struct {
	Step     string `json:"step"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// NormalizedResult is the displayable outcome extracted from a
// terminal payload. Immutable once created.
type NormalizedResult struct {
	Text       string   `json:"text"`
	MediaLinks []string `json:"media_links"`
}

// ArtifactLink is an externally supplied link to a generated artifact.
// When a run carries finalized artifact links they take priority over
// anything extracted from the terminal payload.
type ArtifactLink struct {
	URL  string       `json:"url"`
	Type ArtifactType `json:"type,omitempty"`
}

// AgentNode is one agent derived from a terminal payload, for graph
// rendering.
type AgentNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Connection is a directed edge between two agents.
type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AgentGraph is the projected agents-and-connections view of a run.
type AgentGraph struct {
	Nodes       []AgentNode  `json:"nodes"`
	Connections []Connection `json:"connections"`
}

// RunRecordContent nests the normalized graph alongside the raw
// terminal payload (or its summary) inside a RunRecord.
type RunRecordContent struct {
	AutoOrchestrateResult AgentGraph      `json:"autoOrchestrateResult"`
	RawData               json.RawMessage `json:"rawData"`
}

// RunRecord is the document submitted to the install-data endpoint
// after a successful run.
type RunRecord struct {
	DataName       string           `json:"dataName"`
	Description    string           `json:"description"`
	DataType       string           `json:"dataType"`
	DataContent    RunRecordContent `json:"dataContent"`
	NumberOfAgents int              `json:"numberOfAgents"`
	Overwrite      bool             `json:"overwrite"`
}

// NewRunRecord creates a RunRecord with the fixed dataType.
func NewRunRecord(name, description string) RunRecord {
	return RunRecord{
		DataName:    name,
		Description: description,
		DataType:    "json",
		Overwrite:   true,
	}
}

// PayloadSummary replaces an oversized raw payload in a RunRecord.
type PayloadSummary struct {
	Summary       string `json:"summary"`
	OriginalBytes int    `json:"original_bytes"`
	AgentCount    int    `json:"agent_count"`
	Truncated     bool   `json:"truncated"`
	RecordedAt    string `json:"recorded_at"`
}

// NewPayloadSummary creates a summary for a payload of the given size.
func NewPayloadSummary(originalBytes, agentCount int) PayloadSummary {
	return PayloadSummary{
		Summary:       "raw payload omitted: exceeds persistence size limit",
		OriginalBytes: originalBytes,
		AgentCount:    agentCount,
		Truncated:     true,
		RecordedAt:    nowUTC(),
	}
}

// AuditDetails is the detail block of an audit event.
type AuditDetails struct {
	Command          string `json:"command"`
	AgentsCount      int    `json:"agentsCount"`
	ConnectionsCount int    `json:"connectionsCount"`
}

// AuditEvent records a completed run for the audit trail. Delivery is
// best-effort.
type AuditEvent struct {
	UserID  string       `json:"userId"`
	Action  string       `json:"action"`
	Details AuditDetails `json:"details"`
}

// NewAuditEvent creates the completion audit event for a run.
func NewAuditEvent(userID, command string, agents, connections int) AuditEvent {
	return AuditEvent{
		UserID: userID,
		Action: "auto_orchestrate_completed",
		Details: AuditDetails{
			Command:          command,
			AgentsCount:      agents,
			ConnectionsCount: connections,
		},
	}
}

// RunStatus is the observable snapshot of a run, as exposed to UI
// consumers and MCP tools.
type RunStatus struct {
	RunID       string            `json:"run_id"`
	Command     string            `json:"command"`
	Phase       RunPhase          `json:"phase"`
	StartedAt   string            `json:"started_at"`
	Progress    *ProgressState    `json:"progress,omitempty"`
	Result      *NormalizedResult `json:"result,omitempty"`
	Graph       *AgentGraph       `json:"graph,omitempty"`
	Error       string            `json:"error,omitempty"`
	Identity    Identity          `json:"identity"`
	CompletedAt string            `json:"completed_at,omitempty"`
}

// NewRunStatus creates an Idle status for a new run.
func NewRunStatus(command string, id Identity) RunStatus {
	return RunStatus{
		RunID:     NewRunID(),
		Command:   command,
		Phase:     PhaseIdle,
		StartedAt: nowUTC(),
		Identity:  id,
	}
}
