package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/mavkus/internal/orchestrator"
	"github.com/kalambet/mavkus/internal/service"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "no content in result")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_Chat(t *testing.T) {
	svc := &mockService{turn: service.TurnResult{
		Response:       "Ciao!",
		ConversationID: "conv-1",
		Metadata:       orchestrator.Metadata{RoutedToSpecialist: true},
	}}
	handler := mcpChat(svc)

	result, err := handler(context.Background(), makeCallToolRequest("chat", map[string]any{
		"user_id": "u1",
		"message": "ciao",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, toolText(t, result))

	var out struct {
		Response       string                `json:"response"`
		ConversationID string                `json:"conversation_id"`
		Metadata       orchestrator.Metadata `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &out))
	assert.Equal(t, "Ciao!", out.Response)
	assert.Equal(t, "conv-1", out.ConversationID)
	assert.True(t, out.Metadata.RoutedToSpecialist)
	assert.True(t, svc.lastCritique, "enable_critique should default to true")
}

func TestMCPTool_Chat_CritiqueDisabled(t *testing.T) {
	svc := &mockService{}
	handler := mcpChat(svc)

	_, err := handler(context.Background(), makeCallToolRequest("chat", map[string]any{
		"user_id":         "u1",
		"message":         "ciao",
		"enable_critique": false,
	}))
	require.NoError(t, err)
	assert.False(t, svc.lastCritique)
}

func TestMCPTool_Chat_MissingArgs(t *testing.T) {
	handler := mcpChat(&mockService{})

	result, err := handler(context.Background(), makeCallToolRequest("chat", map[string]any{"user_id": "u1"}))
	require.NoError(t, err)
	assert.True(t, result.IsError, "missing message")
}

func TestMCPTool_Chat_ServiceError(t *testing.T) {
	handler := mcpChat(&mockService{err: service.ErrInvalidMessage})

	result, err := handler(context.Background(), makeCallToolRequest("chat", map[string]any{
		"user_id": "u1",
		"message": " ",
	}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, toolText(t, result), "invalid message")
}

func TestMCPTool_GetStats(t *testing.T) {
	svc := &mockService{stats: service.UserStats{
		UserID:  "u1",
		Account: service.AccountStats{TotalConversations: 3},
	}}
	handler := mcpGetStats(svc)

	result, err := handler(context.Background(), makeCallToolRequest("get_stats", map[string]any{"user_id": "u1"}))
	require.NoError(t, err)
	require.False(t, result.IsError, toolText(t, result))

	var st service.UserStats
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &st))
	assert.Equal(t, 3, st.Account.TotalConversations)
}

func TestMCPTool_GetStats_UnknownUser(t *testing.T) {
	handler := mcpGetStats(&mockService{err: service.ErrUserNotFound})

	result, err := handler(context.Background(), makeCallToolRequest("get_stats", map[string]any{"user_id": "ghost"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(t, result), "not found")
}

func TestMCPTool_ClearMemory(t *testing.T) {
	svc := &mockService{}
	handler := mcpClearMemory(svc)

	result, err := handler(context.Background(), makeCallToolRequest("clear_memory", map[string]any{"user_id": "u1"}))
	require.NoError(t, err)
	require.False(t, result.IsError, toolText(t, result))
	assert.Equal(t, "u1", svc.cleared)

	svc.err = errors.New("boom")
	result, _ = handler(context.Background(), makeCallToolRequest("clear_memory", map[string]any{"user_id": "u1"}))
	assert.True(t, result.IsError, "clearing fails")
}

func TestNewMCPServer_RegistersTools(t *testing.T) {
	s := NewMCPServer(&mockService{})
	req := `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`
	resp := s.HandleMessage(context.Background(), json.RawMessage(req))

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"chat", "get_stats", "clear_memory"} {
		assert.Contains(t, string(raw), `"name":"`+name+`"`, "tool %q not registered", name)
	}
}
