package toolchat

import "encoding/json"

// ExtractToolCalls returns the tool calls requested by the first choice of a
// response, tagged with the given agent identity. A response without tool calls
// (the model answered directly) yields an empty slice; extraction never fails.
// Argument payloads are kept raw so a malformed payload surfaces later as a
// per-call ToolResult failure, not an extraction error.
func ExtractToolCalls(agent string, resp *ChatResponse) []ToolCall {
	if resp == nil || len(resp.Choices) == 0 {
		return nil
	}
	payloads := resp.Choices[0].Message.ToolCalls
	if len(payloads) == 0 {
		return nil
	}
	calls := make([]ToolCall, 0, len(payloads))
	for _, p := range payloads {
		calls = append(calls, ToolCall{
			ID:    p.ID,
			Agent: agent,
			Name:  p.Function.Name,
			Args:  json.RawMessage(p.Function.Arguments),
		})
	}
	return calls
}
