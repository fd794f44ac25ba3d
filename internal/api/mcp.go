package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/mavkus/internal/service"
)

// MCPService is the part of the serving layer exposed as MCP tools.
type MCPService interface {
	ProcessTurn(ctx context.Context, userID, message string, enableCritique bool) (service.TurnResult, error)
	GetStats(ctx context.Context, userID string) (service.UserStats, error)
	ClearMemory(ctx context.Context, userID string) error
}

// NewMCPServer creates an MCP server with the chat tools registered.
func NewMCPServer(svc MCPService) *server.MCPServer {
	s := server.NewMCPServer(
		"mavkus",
		Version,
		server.WithToolCapabilities(true),
		server.WithInstructions("mavkus: personal AI tutor that learns each user's style and consults a science specialist when needed."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send a message to the user's assistant and return its answer with routing metadata."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("message", mcp.Description("Message text (max 2000 characters)"), mcp.Required()),
			mcp.WithBoolean("enable_critique", mcp.Description("Score the answer and learn from it (default true)")),
		),
		mcpChat(svc),
	)

	s.AddTool(
		mcp.NewTool("get_stats",
			mcp.WithDescription("Return account counters and the learned profile of a user."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
		),
		mcpGetStats(svc),
	)

	s.AddTool(
		mcp.NewTool("clear_memory",
			mcp.WithDescription("Forget everything learned about a user."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
		),
		mcpClearMemory(svc),
	)

	return s
}

func mcpChat(svc MCPService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		critique := req.GetBool("enable_critique", true)

		res, err := svc.ProcessTurn(ctx, userID, message, critique)
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]any{
			"response":        res.Response,
			"conversation_id": res.ConversationID,
			"metadata":        res.Metadata,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetStats(svc MCPService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		st, err := svc.GetStats(ctx, userID)
		if errors.Is(err, service.ErrUserNotFound) {
			return mcpError(fmt.Sprintf("user %s not found", userID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("stats failed: %v", err)), nil
		}

		b, err := json.Marshal(st)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpClearMemory(svc MCPService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		if err := svc.ClearMemory(ctx, userID); err != nil {
			return mcpError(fmt.Sprintf("clear failed: %v", err)), nil
		}
		return mcpText("Memory cleared for " + userID), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
