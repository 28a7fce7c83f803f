package toolchat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAgent serves canned chat-completion responses in order; the last one
// repeats if the conversation keeps going. Every request body is recorded.
type scriptedAgent struct {
	mu        sync.Mutex
	responses []string
	requests  []map[string]any
	srv       *httptest.Server
}

func newScriptedAgent(t *testing.T, responses ...string) *scriptedAgent {
	t.Helper()
	s := &scriptedAgent{responses: responses}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		s.mu.Lock()
		s.requests = append(s.requests, body)
		idx := min(len(s.requests)-1, len(s.responses)-1)
		resp := s.responses[idx]
		s.mu.Unlock()

		fmt.Fprint(w, resp)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *scriptedAgent) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedAgent) request(i int) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func (s *scriptedAgent) client(t *testing.T, name string) *Client {
	t.Helper()
	c := NewClient(localEndpoint(t, s.srv.URL, name, "test-model"))
	t.Cleanup(c.Close)
	return c
}

func contentResponse(content string) string {
	return fmt.Sprintf(`{"choices": [{"index": 0, "message": {"role": "assistant", "content": %q}, "finish_reason": "stop"}]}`, content)
}

func toolCallResponse(callID, tool, args string) string {
	return fmt.Sprintf(`{"choices": [{"index": 0, "message": {
		"role": "assistant", "content": "",
		"tool_calls": [{"id": %q, "type": "function", "function": {"name": %q, "arguments": %q}}]
	}, "finish_reason": "tool_calls"}]}`, callID, tool, args)
}

func TestChatWithTools_DirectAnswer(t *testing.T) {
	srv := newScriptedAgent(t, contentResponse("just an answer"))
	agent := NewAgent(srv.client(t, "architect"), NewRegistry())

	result, err := agent.ChatWithTools(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, "just an answer", result.Final.Choices[0].Message.Content)
	// Transcript holds the user turn and the final answer; no tool traffic happened.
	require.Len(t, result.Transcript, 2)
	assert.Equal(t, RoleUser, result.Transcript[0].Role)
	assert.Equal(t, RoleAssistant, result.Transcript[1].Role)
	assert.Equal(t, "just an answer", result.Transcript[1].Content)
}

func TestChatWithTools_OneToolRoundTrip(t *testing.T) {
	srv := newScriptedAgent(t,
		toolCallResponse("call_1", "validate_architecture", `{"scope": "full"}`),
		contentResponse("the architecture is sound"),
	)

	var gotArgs map[string]any
	reg := NewRegistry()
	reg.RegisterHandler("architect", "validate_architecture", func(_ context.Context, args map[string]any) (any, error) {
		gotArgs = args
		return map[string]any{"valid": true}, nil
	})
	agent := NewAgent(srv.client(t, "architect"), reg)

	result, err := agent.ChatWithTools(context.Background(), "check my design", WithSystem("You are an architect."))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, 2, srv.requestCount())
	assert.Equal(t, map[string]any{"scope": "full"}, gotArgs)
	assert.Equal(t, "the architecture is sound", result.Final.Choices[0].Message.Content)

	// system, user, assistant tool request, tool result, final answer.
	require.Len(t, result.Transcript, 5)
	assert.Equal(t, RoleSystem, result.Transcript[0].Role)
	assert.Equal(t, RoleUser, result.Transcript[1].Role)
	assert.Equal(t, RoleAssistant, result.Transcript[2].Role)
	require.Len(t, result.Transcript[2].ToolCalls, 1)
	assert.Equal(t, "the architecture is sound", result.Transcript[4].Content)

	toolTurn := result.Transcript[3]
	assert.Equal(t, RoleTool, toolTurn.Role)
	assert.Equal(t, "call_1", toolTurn.ToolCallID)
	assert.Equal(t, "validate_architecture", toolTurn.Name)
	var toolResult ToolResult
	require.NoError(t, json.Unmarshal([]byte(toolTurn.Content), &toolResult))
	assert.True(t, toolResult.Success)
	assert.JSONEq(t, `{"valid": true}`, string(toolResult.Result))

	// The second request must carry the whole transcript back to the model.
	second := srv.request(1)
	messages, ok := second["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 4)
}

func TestChatWithTools_IterationCeiling(t *testing.T) {
	srv := newScriptedAgent(t, toolCallResponse("call_1", "loop_forever", `{}`))

	reg := NewRegistry()
	reg.RegisterHandler("architect", "loop_forever", func(_ context.Context, _ map[string]any) (any, error) {
		return "again", nil
	})
	agent := NewAgent(srv.client(t, "architect"), reg)

	result, err := agent.ChatWithTools(context.Background(), "go", WithMaxIterations(3))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Iterations)
	assert.Equal(t, 3, srv.requestCount())
	// The last response still requested tools; it is returned as-is.
	require.Len(t, result.Final.Choices, 1)
	assert.Len(t, result.Final.Choices[0].Message.ToolCalls, 1)
}

func TestChatWithTools_ToolFailureContinuesConversation(t *testing.T) {
	srv := newScriptedAgent(t,
		toolCallResponse("call_1", "flaky_tool", `{}`),
		contentResponse("tool failed, answering from memory"),
	)

	reg := NewRegistry()
	executor := NewExecutor(reg, WithMaxRetries(1))
	agent := NewAgent(srv.client(t, "architect"), reg, WithExecutor(executor))

	result, err := agent.ChatWithTools(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Iterations)

	// user, assistant tool request, tool result, final answer.
	require.Len(t, result.Transcript, 4)
	toolTurn := result.Transcript[2]
	assert.Equal(t, RoleTool, toolTurn.Role)
	var toolResult ToolResult
	require.NoError(t, json.Unmarshal([]byte(toolTurn.Content), &toolResult))
	assert.False(t, toolResult.Success)
	assert.Equal(t, KindNoHandler, toolResult.Kind)
	assert.Contains(t, toolResult.Error, "architect:flaky_tool")
}

func TestChatWithTools_TransportErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(localEndpoint(t, srv.URL, "architect", "m"))
	defer client.Close()
	agent := NewAgent(client, NewRegistry())

	result, err := agent.ChatWithTools(context.Background(), "hello")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsTransportError(err))
}

func TestChatWithTools_MultipleToolCallsKeepOrder(t *testing.T) {
	srv := newScriptedAgent(t,
		`{"choices": [{"index": 0, "message": {
			"role": "assistant", "content": "",
			"tool_calls": [
				{"id": "call_a", "type": "function", "function": {"name": "first", "arguments": "{}"}},
				{"id": "call_b", "type": "function", "function": {"name": "second", "arguments": "{}"}}
			]
		}}]}`,
		contentResponse("done"),
	)

	reg := NewRegistry()
	reg.RegisterHandler("architect", "first", func(_ context.Context, _ map[string]any) (any, error) { return 1, nil })
	reg.RegisterHandler("architect", "second", func(_ context.Context, _ map[string]any) (any, error) { return 2, nil })
	agent := NewAgent(srv.client(t, "architect"), reg)

	result, err := agent.ChatWithTools(context.Background(), "go")
	require.NoError(t, err)

	// user, assistant, tool, tool, final answer; tool turns keep request order.
	require.Len(t, result.Transcript, 5)
	assert.Equal(t, "call_a", result.Transcript[2].ToolCallID)
	assert.Equal(t, "call_b", result.Transcript[3].ToolCallID)
	assert.Equal(t, "done", result.Transcript[4].Content)
}

func TestChatWithTools_AdvertisesRegistryTools(t *testing.T) {
	srv := newScriptedAgent(t, contentResponse("ok"))

	reg := NewRegistry()
	descriptor, err := DescriptorFor[searchArgs]("search_docs", "Search documentation")
	require.NoError(t, err)
	reg.SetTools("architect", []ToolDescriptor{descriptor})
	agent := NewAgent(srv.client(t, "architect"), reg)

	_, err = agent.ChatWithTools(context.Background(), "hello")
	require.NoError(t, err)

	tools, ok := srv.request(0)["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
}

func TestChatWithTools_HistoryPrecedesUserMessage(t *testing.T) {
	srv := newScriptedAgent(t, contentResponse("ok"))
	agent := NewAgent(srv.client(t, "architect"), NewRegistry())

	history := []Message{
		{Role: RoleUser, Content: "earlier question"},
		{Role: RoleAssistant, Content: "earlier answer"},
	}
	result, err := agent.ChatWithTools(context.Background(), "follow-up",
		WithSystem("You are helpful."), WithHistory(history))
	require.NoError(t, err)

	require.Len(t, result.Transcript, 5)
	assert.Equal(t, RoleSystem, result.Transcript[0].Role)
	assert.Equal(t, "earlier question", result.Transcript[1].Content)
	assert.Equal(t, "earlier answer", result.Transcript[2].Content)
	assert.Equal(t, "follow-up", result.Transcript[3].Content)
	assert.Equal(t, RoleAssistant, result.Transcript[4].Role)
}
