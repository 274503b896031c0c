// Package mcpserver exposes orchestration runs via MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/swarmlink/orchestrate-go/internal/domain"
	"github.com/swarmlink/orchestrate-go/internal/orchestrator"
)

// RegisterTools registers all orchestration MCP tools on the given server.
func RegisterTools(server *mcp.Server, registry *orchestrator.Registry) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "start_run",
			Description: "Start an auto-orchestration run for a free-text workflow command",
		},
		startRunHandler(registry),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_runs",
			Description: "List known orchestration runs with phase and progress",
		},
		listRunsHandler(registry),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_run_status",
			Description: "Get the full status of one orchestration run",
		},
		getRunStatusHandler(registry),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_run_result",
			Description: "Get the normalized result and agent graph of a completed run",
		},
		getRunResultHandler(registry),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "cancel_run",
			Description: "Cancel an in-flight orchestration run",
		},
		cancelRunHandler(registry),
	)
}

type startRunInput struct {
	Command  string `json:"command"`
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id,omitempty"`
}

func startRunHandler(registry *orchestrator.Registry) mcp.ToolHandlerFor[startRunInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input startRunInput) (*mcp.CallToolResult, any, error) {
		if input.Command == "" || input.UserID == "" {
			return errorResult("command and user_id are required"), nil, nil
		}

		id := domain.Identity{UserID: input.UserID, TenantID: input.TenantID}
		status, err := registry.StartRun(ctx, input.Command, id)
		if err != nil {
			return nil, nil, fmt.Errorf("start_run: %w", err)
		}

		return textResult(status)
	}
}

type listRunsInput struct {
	Phase string `json:"phase,omitempty"`
}

func listRunsHandler(registry *orchestrator.Registry) mcp.ToolHandlerFor[listRunsInput, any] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input listRunsInput) (*mcp.CallToolResult, any, error) {
		runs := registry.List()
		if input.Phase != "" {
			filtered := runs[:0]
			for _, run := range runs {
				if string(run.Phase) == input.Phase {
					filtered = append(filtered, run)
				}
			}
			runs = filtered
		}
		return textResult(runs)
	}
}

type runIDInput struct {
	RunID string `json:"run_id"`
}

func getRunStatusHandler(registry *orchestrator.Registry) mcp.ToolHandlerFor[runIDInput, any] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input runIDInput) (*mcp.CallToolResult, any, error) {
		if input.RunID == "" {
			return errorResult("run_id is required"), nil, nil
		}

		status, err := registry.Get(input.RunID)
		if errors.Is(err, orchestrator.ErrRunNotFound) {
			return errorResult("run not found: " + input.RunID), nil, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("get_run_status: %w", err)
		}

		return textResult(status)
	}
}

func getRunResultHandler(registry *orchestrator.Registry) mcp.ToolHandlerFor[runIDInput, any] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input runIDInput) (*mcp.CallToolResult, any, error) {
		if input.RunID == "" {
			return errorResult("run_id is required"), nil, nil
		}

		status, err := registry.Get(input.RunID)
		if errors.Is(err, orchestrator.ErrRunNotFound) {
			return errorResult("run not found: " + input.RunID), nil, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("get_run_result: %w", err)
		}
		if status.Phase != domain.PhaseCompleted {
			return errorResult(fmt.Sprintf("run %s has no result yet (phase %s)", input.RunID, status.Phase)), nil, nil
		}

		return textResult(map[string]any{
			"result": status.Result,
			"graph":  status.Graph,
		})
	}
}

func cancelRunHandler(registry *orchestrator.Registry) mcp.ToolHandlerFor[runIDInput, any] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input runIDInput) (*mcp.CallToolResult, any, error) {
		if input.RunID == "" {
			return errorResult("run_id is required"), nil, nil
		}

		err := registry.Cancel(input.RunID)
		if errors.Is(err, orchestrator.ErrRunNotFound) {
			return errorResult("run not found: " + input.RunID), nil, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("cancel_run: %w", err)
		}

		return textResult(map[string]string{"result": "cancelled"})
	}
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
