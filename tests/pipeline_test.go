// Package tests contains end-to-end pipeline tests against stubbed
// upstream services.
package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmlink/orchestrate-go/internal/api"
	"github.com/swarmlink/orchestrate-go/internal/config"
	"github.com/swarmlink/orchestrate-go/internal/domain"
	"github.com/swarmlink/orchestrate-go/internal/installdata"
	"github.com/swarmlink/orchestrate-go/internal/orchestrator"
	"github.com/swarmlink/orchestrate-go/internal/testutil"
)

var identity = domain.Identity{UserID: "user-1", TenantID: "tenant-1"}

func waitDone(t *testing.T, o *orchestrator.Orchestrator) domain.RunStatus {
	t.Helper()
	select {
	case <-o.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish in time")
	}
	return o.Snapshot()
}

// The full pipeline: stream ingestion, progress reduction, terminal
// payload normalization, graph projection, persistence, and audit.
func TestPipeline_EndToEnd(t *testing.T) {
	backend := testutil.NewStreamServer(
		`{"event":"step_start","step":"plan"}`,
		`{"event":"progress","step":"plan","progress":40}`,
		`{"event":"step_start","step":"execute"}`,
		`{"event":"progress","step":"execute","progress":90,"message":"almost there"}`,
		`{"event":"workflow_complete","auto_orchestrate_response":{` +
			`"results":{"writer":{"outputs":{"draft":{"result":"final text"}}}},` +
			`"swarm_result":{"swarm_spec":{"agents":{"writer":{"role":"writes"},"critic":{"role":"reviews"}}},` +
			`"connections":[{"from":"writer","to":"critic"}]},` +
			`"media_links":["https://cdn.example.com/out.png"]}}`,
	)
	defer backend.Close()
	sink := testutil.NewSideEffectServer()
	defer sink.Close()

	cfg := config.Config{
		OrchestrateURL: backend.URL(),
		Limits:         config.DefaultLimits(),
	}
	client := installdata.NewWithHTTPClient(sink.InstallURL(), sink.AuditURL(), cfg.Limits, sink.Client())
	o := orchestrator.NewWithHTTPClient(cfg, client, backend.Client())

	runID, err := o.Start(context.Background(), "write and review a report", identity)
	require.NoError(t, err)

	status := waitDone(t, o)
	require.Equal(t, domain.PhaseCompleted, status.Phase, "error: %s", status.Error)

	require.NotNil(t, status.Result)
	assert.Equal(t, "final text", status.Result.Text)
	assert.Equal(t, []string{"https://cdn.example.com/out.png"}, status.Result.MediaLinks)

	require.NotNil(t, status.Graph)
	require.Len(t, status.Graph.Nodes, 2)
	assert.Equal(t, []domain.Connection{{From: "writer", To: "critic"}}, status.Graph.Connections)

	require.NotNil(t, status.Progress)
	assert.Equal(t, 100, status.Progress.Progress)

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, runID, records[0].DataName)
	assert.Equal(t, 2, records[0].NumberOfAgents)
	assert.Len(t, records[0].DataContent.AutoOrchestrateResult.Nodes, 2)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(records[0].DataContent.RawData, &raw))
	assert.Contains(t, raw, "results")

	audits := sink.Audits()
	require.Len(t, audits, 1)
	assert.Equal(t, "user-1", audits[0].UserID)
	assert.Equal(t, 2, audits[0].Details.AgentsCount)
	assert.Equal(t, 1, audits[0].Details.ConnectionsCount)
}

// An oversized terminal payload is summarized before persistence, and
// the run still completes with the full normalized result.
func TestPipeline_OversizePayloadSummarized(t *testing.T) {
	padding := strings.Repeat("x", 2048)
	backend := testutil.NewStreamServer(
		`{"event":"workflow_complete","auto_orchestrate_response":{"result":"compact answer","padding":"` + padding + `"}}`,
	)
	defer backend.Close()
	sink := testutil.NewSideEffectServer()
	defer sink.Close()

	limits := config.DefaultLimits()
	limits.MaxPersistBytes = 1024
	cfg := config.Config{
		OrchestrateURL: backend.URL(),
		Limits:         limits,
	}
	client := installdata.NewWithHTTPClient(sink.InstallURL(), sink.AuditURL(), limits, sink.Client())
	o := orchestrator.NewWithHTTPClient(cfg, client, backend.Client())

	_, err := o.Start(context.Background(), "cmd", identity)
	require.NoError(t, err)

	status := waitDone(t, o)
	require.Equal(t, domain.PhaseCompleted, status.Phase)
	assert.Equal(t, "compact answer", status.Result.Text)

	records := sink.Records()
	require.Len(t, records, 1)
	var summary domain.PayloadSummary
	require.NoError(t, json.Unmarshal(records[0].DataContent.RawData, &summary))
	assert.True(t, summary.Truncated)
	assert.Greater(t, summary.OriginalBytes, 1024)
}

// The HTTP API observes the same run the orchestrator drove.
func TestPipeline_ThroughAPI(t *testing.T) {
	backend := testutil.NewStreamServer(
		`{"event":"workflow_complete","auto_orchestrate_response":{"result":"api visible"}}`,
	)
	defer backend.Close()

	cfg := config.Config{
		OrchestrateURL: backend.URL(),
		Limits:         config.DefaultLimits(),
	}
	registry := orchestrator.NewRegistry(cfg, nil)
	ts := httptest.NewServer(api.New(registry, []string{"*"}))
	defer ts.Close()

	body := `{"command":"show me","user_id":"user-1","tenant_id":"tenant-1"}`
	resp, err := http.Post(ts.URL+"/api/v1/runs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started domain.RunStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))

	done, err := registry.Done(started.RunID)
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish in time")
	}

	getResp, err := http.Get(ts.URL + "/api/v1/runs/" + started.RunID)
	require.NoError(t, err)
	defer getResp.Body.Close()

	var final domain.RunStatus
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&final))
	assert.Equal(t, domain.PhaseCompleted, final.Phase)
	require.NotNil(t, final.Result)
	assert.Equal(t, "api visible", final.Result.Text)
}
