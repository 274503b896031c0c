package api_test

import (
	"bufio"
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
	"github.com/swarmlink/orchestrate-go/internal/orchestrator"
	"github.com/swarmlink/orchestrate-go/internal/testutil"
)

func newTestServer(t *testing.T, backend *testutil.StreamServer) (*httptest.Server, *orchestrator.Registry) {
	t.Helper()
	cfg := config.Config{
		OrchestrateURL: backend.URL(),
		Limits:         config.DefaultLimits(),
	}
	registry := orchestrator.NewRegistry(cfg, nil)
	srv := api.New(registry, []string{"*"})
	return httptest.NewServer(srv), registry
}

func startRun(t *testing.T, ts *httptest.Server) domain.RunStatus {
	t.Helper()
	body := `{"command": "build a thing", "user_id": "user-1", "tenant_id": "tenant-1"}`
	resp, err := http.Post(ts.URL+"/api/v1/runs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var status domain.RunStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.NotEmpty(t, status.RunID)
	return status
}

func waitForPhase(t *testing.T, registry *orchestrator.Registry, runID string, phase domain.RunPhase) {
	t.Helper()
	done, err := registry.Done(runID)
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish in time")
	}
	status, err := registry.Get(runID)
	require.NoError(t, err)
	require.Equal(t, phase, status.Phase)
}

func TestHealth(t *testing.T) {
	backend := testutil.NewStreamServer()
	defer backend.Close()
	ts, _ := newTestServer(t, backend)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestStartAndGetRun(t *testing.T) {
	backend := testutil.NewStreamServer(
		`{"event":"workflow_complete","auto_orchestrate_response":{"result":"ok"}}`,
	)
	defer backend.Close()
	ts, registry := newTestServer(t, backend)
	defer ts.Close()

	status := startRun(t, ts)
	waitForPhase(t, registry, status.RunID, domain.PhaseCompleted)

	resp, err := http.Get(ts.URL + "/api/v1/runs/" + status.RunID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched domain.RunStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetched))
	assert.Equal(t, domain.PhaseCompleted, fetched.Phase)
	require.NotNil(t, fetched.Result)
	assert.Equal(t, "ok", fetched.Result.Text)
}

func TestStartRun_MissingCommand(t *testing.T) {
	backend := testutil.NewStreamServer()
	defer backend.Close()
	ts, _ := newTestServer(t, backend)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/runs", "application/json", strings.NewReader(`{"user_id":"u"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartRun_MissingIdentity(t *testing.T) {
	backend := testutil.NewStreamServer()
	defer backend.Close()
	ts, _ := newTestServer(t, backend)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/runs", "application/json", strings.NewReader(`{"command":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListRuns(t *testing.T) {
	backend := testutil.NewStreamServer(
		`{"event":"workflow_complete","auto_orchestrate_response":{"result":"ok"}}`,
	)
	defer backend.Close()
	ts, registry := newTestServer(t, backend)
	defer ts.Close()

	status := startRun(t, ts)
	waitForPhase(t, registry, status.RunID, domain.PhaseCompleted)

	resp, err := http.Get(ts.URL + "/api/v1/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []domain.RunStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, status.RunID, runs[0].RunID)

	resp, err = http.Get(ts.URL + "/api/v1/runs?phase=failed")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	assert.Empty(t, runs)
}

func TestGetRun_NotFound(t *testing.T) {
	backend := testutil.NewStreamServer()
	defer backend.Close()
	ts, _ := newTestServer(t, backend)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/runs/run-missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetRunGraph(t *testing.T) {
	backend := testutil.NewStreamServer(
		`{"event":"workflow_complete","auto_orchestrate_response":{"results":{"agentA":{"outputs":{"o1":{"result":"done"}}}}}}`,
	)
	defer backend.Close()
	ts, registry := newTestServer(t, backend)
	defer ts.Close()

	status := startRun(t, ts)
	waitForPhase(t, registry, status.RunID, domain.PhaseCompleted)

	resp, err := http.Get(ts.URL + "/api/v1/runs/" + status.RunID + "/graph")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var graph domain.AgentGraph
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&graph))
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "agentA", graph.Nodes[0].Name)
}

func TestCancelRun(t *testing.T) {
	backend := testutil.NewStreamServer(`{"event":"step_start","step":"plan"}`)
	backend.HoldOpen()
	defer backend.Close()
	ts, registry := newTestServer(t, backend)
	defer ts.Close()

	status := startRun(t, ts)

	resp, err := http.Post(ts.URL+"/api/v1/runs/"+status.RunID+"/cancel", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	waitForPhase(t, registry, status.RunID, domain.PhaseIdle)
}

func TestCancelRun_NotFound(t *testing.T) {
	backend := testutil.NewStreamServer()
	defer backend.Close()
	ts, _ := newTestServer(t, backend)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/runs/run-missing/cancel", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	backend := testutil.NewStreamServer()
	defer backend.Close()
	ts, _ := newTestServer(t, backend)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestCORSHeaders(t *testing.T) {
	backend := testutil.NewStreamServer()
	defer backend.Close()
	ts, _ := newTestServer(t, backend)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStreamRun_Completed(t *testing.T) {
	backend := testutil.NewStreamServer(
		`{"event":"step_start","step":"plan"}`,
		`{"event":"workflow_complete","auto_orchestrate_response":{"result":"ok"}}`,
	)
	defer backend.Close()
	ts, registry := newTestServer(t, backend)
	defer ts.Close()

	status := startRun(t, ts)
	waitForPhase(t, registry, status.RunID, domain.PhaseCompleted)

	resp, err := http.Get(ts.URL + "/api/v1/runs/" + status.RunID + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := parseSSE(t, resp)
	require.NotEmpty(t, events)
	assert.Equal(t, "RUN_STARTED", events[0].Type)
	assert.Equal(t, "RUN_FINISHED", events[len(events)-1].Type)

	var sawDelta bool
	for _, ev := range events {
		if ev.Type == "STATE_DELTA" {
			sawDelta = true
		}
	}
	assert.True(t, sawDelta, "expected a STATE_DELTA event, got %v", events)
}

func TestStreamRun_Failed(t *testing.T) {
	backend := testutil.NewStreamServer(`{"event":"step_start","step":"plan"}`)
	defer backend.Close()
	ts, registry := newTestServer(t, backend)
	defer ts.Close()

	status := startRun(t, ts)
	waitForPhase(t, registry, status.RunID, domain.PhaseFailed)

	resp, err := http.Get(ts.URL + "/api/v1/runs/" + status.RunID + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	events := parseSSE(t, resp)
	require.NotEmpty(t, events)
	assert.Equal(t, "RUN_ERROR", events[len(events)-1].Type)
}

type sseEvent struct {
	Type string
	Data string
}

func parseSSE(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	var events []sseEvent
	scanner := bufio.NewScanner(resp.Body)
	var current sseEvent
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			current.Type = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			current.Data = strings.TrimPrefix(line, "data: ")
		} else if line == "" && current.Type != "" {
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}
