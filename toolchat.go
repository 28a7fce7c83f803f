package toolchat

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message roles in the OpenAI chat format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Endpoint identifies one OpenAI-compatible model server. Name is the logical
// agent identity used for registry lookups; Model is the identifier sent in
// every request. Endpoint is a value type and is never mutated after construction.
type Endpoint struct {
	Name  string
	Host  string
	Port  int
	Model string
}

// BaseURL returns the API root for this endpoint.
func (e Endpoint) BaseURL() string {
	return fmt.Sprintf("http://%s:%d/v1", e.Host, e.Port)
}

// Message is one conversational turn. Assistant turns may carry ToolCalls
// instead of (or alongside) Content; tool turns carry ToolCallID and Name
// referencing the call they answer. Conversation state is an ordered []Message
// replayed verbatim to the model on every turn.
type Message struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []ToolCallPayload `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Name       string            `json:"name,omitempty"`
}

// ToolCallPayload is a tool call as it appears on the wire inside an assistant message.
type ToolCallPayload struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the requested function; Arguments is the raw JSON payload
// exactly as the model produced it (possibly malformed).
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a single execution request extracted from a model response.
// Agent is attached during extraction so the executor can resolve the handler
// without further context. Args stays raw until the executor decodes it.
type ToolCall struct {
	ID    string
	Agent string
	Name  string
	Args  json.RawMessage
}

// FailureKind discriminates why a tool call failed, so callers never have to
// parse the error string. Empty on success.
type FailureKind string

const (
	KindBadArguments FailureKind = "bad_arguments"
	KindNoHandler    FailureKind = "no_handler"
	KindHandlerError FailureKind = "handler_error"
)

// ToolResult is the normalized outcome of one tool call. Exactly one of
// Result and Error is populated. The JSON encoding of the whole record is what
// gets folded back into the conversation as the tool turn's content.
type ToolResult struct {
	CallID   string          `json:"tool_call_id"`
	ToolName string          `json:"tool_name"`
	Success  bool            `json:"success"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Kind     FailureKind     `json:"error_kind,omitempty"`
}

// ToolDescriptor is a static tool schema advertised to the model. It is never
// consulted during dispatch; only the registry's handler table is.
type ToolDescriptor struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec describes a callable function in OpenAI tool format.
// Parameters must be a JSON Schema of type "object".
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Handler executes one tool call with its decoded argument set and returns a
// JSON-serializable result, or an error to signal failure. Handlers are looked
// up by (agent, tool name) in a Registry. See NewHandler for a typed variant.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// ToolChoice selects how the model may use offered tools. The zero value means
// "auto". Construct named choices with ToolChoiceTool; arbitrary strings go
// through ParseToolChoice so an invalid policy is rejected before any network call.
type ToolChoice struct {
	keyword string
	tool    string
}

// Keyword tool-choice policies.
var (
	ToolChoiceAuto     = ToolChoice{keyword: "auto"}
	ToolChoiceRequired = ToolChoice{keyword: "required"}
	ToolChoiceNone     = ToolChoice{keyword: "none"}
)

// ToolChoiceTool forces the model to call the named tool.
func ToolChoiceTool(name string) ToolChoice {
	return ToolChoice{tool: name}
}

// ParseToolChoice converts a policy string ("auto", "required", "none") into a
// ToolChoice. Unknown keywords are an error; use ToolChoiceTool for named tools.
func ParseToolChoice(s string) (ToolChoice, error) {
	switch s {
	case "auto":
		return ToolChoiceAuto, nil
	case "required":
		return ToolChoiceRequired, nil
	case "none":
		return ToolChoiceNone, nil
	default:
		return ToolChoice{}, fmt.Errorf("%w: %q", ErrBadToolChoice, s)
	}
}

// IsZero reports whether tc is the zero value (treated as "auto" on the wire).
func (tc ToolChoice) IsZero() bool {
	return tc.keyword == "" && tc.tool == ""
}

func (tc ToolChoice) String() string {
	if tc.tool != "" {
		return tc.tool
	}
	if tc.keyword == "" {
		return "auto"
	}
	return tc.keyword
}

// MarshalJSON emits the keyword form ("auto") or the named-function object form
// ({"type":"function","function":{"name":...}}) the endpoint expects.
func (tc ToolChoice) MarshalJSON() ([]byte, error) {
	if tc.tool != "" {
		return json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": tc.tool},
		})
	}
	return json.Marshal(tc.String())
}
