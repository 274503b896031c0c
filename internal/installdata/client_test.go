package installdata_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmlink/orchestrate-go/internal/config"
	"github.com/swarmlink/orchestrate-go/internal/domain"
	"github.com/swarmlink/orchestrate-go/internal/installdata"
	"github.com/swarmlink/orchestrate-go/internal/normalize"
)

func testClient(installURL, auditURL string, limits config.Limits) *installdata.Client {
	return installdata.NewWithHTTPClient(installURL, auditURL, limits, http.DefaultClient)
}

func TestBuildRecord_KeepsSmallPayloadVerbatim(t *testing.T) {
	rawBody := json.RawMessage(`{"results":{"agentA":{}}}`)
	graph := domain.AgentGraph{
		Nodes:       []domain.AgentNode{{ID: "agentA", Name: "agentA"}},
		Connections: []domain.Connection{},
	}
	c := testClient("http://unused", "", config.DefaultLimits())

	record := c.BuildRecord("run-1", "build a thing", graph, normalize.FromRaw(rawBody), rawBody)

	assert.Equal(t, "run-1", record.DataName)
	assert.Equal(t, "build a thing", record.Description)
	assert.Equal(t, "json", record.DataType)
	assert.True(t, record.Overwrite)
	assert.Equal(t, 1, record.NumberOfAgents)
	assert.Equal(t, rawBody, record.DataContent.RawData)
	assert.Equal(t, graph, record.DataContent.AutoOrchestrateResult)
}

func TestBuildRecord_OversizePayloadSummarized(t *testing.T) {
	limits := config.DefaultLimits()
	limits.MaxPersistBytes = 64
	rawBody := json.RawMessage(`{"padding":"` + strings.Repeat("x", 200) + `"}`)
	c := testClient("http://unused", "", limits)

	record := c.BuildRecord("run-2", "cmd", domain.AgentGraph{}, normalize.FromRaw(rawBody), rawBody)

	var summary domain.PayloadSummary
	require.NoError(t, json.Unmarshal(record.DataContent.RawData, &summary))
	assert.True(t, summary.Truncated)
	assert.Equal(t, len(rawBody), summary.OriginalBytes)
	assert.Equal(t, 1, summary.AgentCount)
	assert.NotEmpty(t, summary.RecordedAt)
}

func TestAgentCount_FallbackChain(t *testing.T) {
	graph := domain.AgentGraph{Nodes: []domain.AgentNode{{ID: "a"}, {ID: "b"}}}
	assert.Equal(t, 2, installdata.AgentCount(graph, normalize.FromString("")))

	p := normalize.FromRaw(json.RawMessage(`{
		"swarm_result": {"swarm_spec": {"agents": {"a": {}, "b": {}, "c": {}}}}
	}`))
	assert.Equal(t, 3, installdata.AgentCount(domain.AgentGraph{}, p))

	p = normalize.FromRaw(json.RawMessage(`{
		"m_language_spec": "agent alpha does X\nagent beta does Y"
	}`))
	assert.Equal(t, 2, installdata.AgentCount(domain.AgentGraph{}, p))

	assert.Equal(t, 1, installdata.AgentCount(domain.AgentGraph{}, normalize.FromString("no structure")))
}

func TestPersistRun_PostsRecord(t *testing.T) {
	var got domain.RunRecord
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := installdata.NewWithHTTPClient(srv.URL, "", config.DefaultLimits(), srv.Client())
	record := domain.NewRunRecord("run-3", "desc")
	record.NumberOfAgents = 2
	record.DataContent.RawData = json.RawMessage(`{}`)

	require.NoError(t, c.PersistRun(context.Background(), record))
	assert.Equal(t, "run-3", got.DataName)
	assert.Empty(t, auth)
}

func TestPersistRun_ServerErrorReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := installdata.NewWithHTTPClient(srv.URL, "", config.DefaultLimits(), srv.Client())
	record := domain.NewRunRecord("run-4", "desc")
	record.NumberOfAgents = 1
	record.DataContent.RawData = json.RawMessage(`{}`)

	err := c.PersistRun(context.Background(), record)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestPersistRun_RejectsInvalidRecord(t *testing.T) {
	c := testClient("http://unused", "", config.DefaultLimits())
	err := c.PersistRun(context.Background(), domain.RunRecord{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid record")
}

func TestAudit_NoEndpointIsNoop(t *testing.T) {
	c := testClient("http://unused", "", config.DefaultLimits())
	event := domain.NewAuditEvent("user-1", "cmd", 1, 0)
	assert.NoError(t, c.Audit(context.Background(), event))
}

func TestAudit_PostsEvent(t *testing.T) {
	var got domain.AuditEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	c := installdata.NewWithHTTPClient("http://unused", srv.URL, config.DefaultLimits(), srv.Client())
	event := domain.NewAuditEvent("user-1", "build a thing", 3, 2)

	require.NoError(t, c.Audit(context.Background(), event))
	assert.Equal(t, "auto_orchestrate_completed", got.Action)
	assert.Equal(t, 3, got.Details.AgentsCount)
	assert.Equal(t, 2, got.Details.ConnectionsCount)
}
