// Command mcp-orchestrate runs the MCP tool server for orchestration
// runs. Uses stdio transport for integration with AI assistants.
package main

import (
	"context"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/swarmlink/orchestrate-go/internal/config"
	"github.com/swarmlink/orchestrate-go/internal/installdata"
	"github.com/swarmlink/orchestrate-go/internal/mcpserver"
	"github.com/swarmlink/orchestrate-go/internal/orchestrator"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	registry := orchestrator.NewRegistry(cfg, installdata.New(cfg))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "orchestrate-go",
		Version: "v1.0.0",
	}, nil)
	mcpserver.RegisterTools(server, registry)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
