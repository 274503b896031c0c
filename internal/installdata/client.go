// Package installdata submits completed-run records to the install-data
// endpoint and completion events to the audit endpoint. Both calls are
// side effects of a successful run: their failure is reported to the
// caller for logging but must never invalidate the run's result.
package installdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/swarmlink/orchestrate-go/internal/config"
	"github.com/swarmlink/orchestrate-go/internal/domain"
	"github.com/swarmlink/orchestrate-go/internal/normalize"
)

// Client talks to the install-data and audit endpoints.
type Client struct {
	installURL string
	auditURL   string
	token      string
	limits     config.Limits
	httpClient *http.Client
}

// New creates a client from the service configuration.
func New(cfg config.Config) *Client {
	return &Client{
		installURL: cfg.InstallDataURL,
		auditURL:   cfg.AuditURL,
		token:      cfg.BearerToken,
		limits:     cfg.Limits,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(installURL, auditURL string, limits config.Limits, httpClient *http.Client) *Client {
	return &Client{
		installURL: installURL,
		auditURL:   auditURL,
		limits:     limits,
		httpClient: httpClient,
	}
}

// BuildRecord assembles the RunRecord for a completed run. When the raw
// terminal payload exceeds the persistence size limit, a summary block
// is stored in its place so the record itself stays well under the
// backend's body cap.
func (c *Client) BuildRecord(runID, command string, graph domain.AgentGraph, payload normalize.Payload, rawBody json.RawMessage) domain.RunRecord {
	agentCount := AgentCount(graph, payload)

	record := domain.NewRunRecord(runID, command)
	record.NumberOfAgents = agentCount
	record.DataContent.AutoOrchestrateResult = graph

	if len(rawBody) > c.limits.MaxPersistBytes {
		summary := domain.NewPayloadSummary(len(rawBody), agentCount)
		if data, err := json.Marshal(summary); err == nil {
			record.DataContent.RawData = data
		}
		return record
	}
	record.DataContent.RawData = rawBody
	return record
}

// PersistRun submits a RunRecord to the install-data endpoint. The
// response body is not interpreted beyond the status code.
func (c *Client) PersistRun(ctx context.Context, record domain.RunRecord) error {
	if err := domain.ValidateRunRecord(record); err != nil {
		return fmt.Errorf("installdata: invalid record: %w", err)
	}
	if err := c.post(ctx, c.installURL, record); err != nil {
		return fmt.Errorf("installdata: persist run %s: %w", record.DataName, err)
	}
	return nil
}

// Audit submits a completion event to the audit endpoint.
func (c *Client) Audit(ctx context.Context, event domain.AuditEvent) error {
	if c.auditURL == "" {
		return nil
	}
	if err := domain.ValidateAuditEvent(event); err != nil {
		return fmt.Errorf("installdata: invalid audit event: %w", err)
	}
	if err := c.post(ctx, c.auditURL, event); err != nil {
		return fmt.Errorf("installdata: audit: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

var agentSpecPattern = regexp.MustCompile(`agent\s+\w+`)

// AgentCount resolves the number of agents for a run record: projected
// graph nodes, then swarm-spec agent keys, then agent declarations in
// the m-language spec text, defaulting to one.
func AgentCount(graph domain.AgentGraph, p normalize.Payload) int {
	if len(graph.Nodes) > 0 {
		return len(graph.Nodes)
	}

	if obj := p.Object(); obj != nil {
		if swarmResult, ok := obj["swarm_result"].(map[string]any); ok {
			if spec, ok := swarmResult["swarm_spec"].(map[string]any); ok {
				if agents, ok := spec["agents"].(map[string]any); ok && len(agents) > 0 {
					return len(agents)
				}
			}
		}
		if spec, ok := obj["m_language_spec"].(string); ok {
			if n := len(agentSpecPattern.FindAllString(spec, -1)); n > 0 {
				return n
			}
		}
	}
	return 1
}
