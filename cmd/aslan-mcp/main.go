package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	reg := NewRegistry()

	mcpServer := server.NewMCPServer("aslan-mcp", "0.1.0")
	for _, tool := range reg.Tools() {
		tool := tool
		mcpServer.AddTool(
			mcp.NewToolWithRawSchema(tool.Name, tool.Description, tool.InputSchema),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				params, err := json.Marshal(req.Params.Arguments)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				result, err := reg.HandleTool(tool.Name, params)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				out, err := json.Marshal(result)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				return mcp.NewToolResultText(string(out)), nil
			},
		)
	}

	if err := server.ServeStdio(mcpServer); err != nil {
		log.Fatal(fmt.Errorf("serve stdio: %w", err))
	}
}
