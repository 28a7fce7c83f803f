package toolchat

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Event-stream framing used by OpenAI-compatible endpoints: each payload line
// is prefixed "data: " and the stream ends with "data: [DONE]".
const (
	streamDataPrefix = "data: "
	streamDone       = "[DONE]"
)

// ChatChunk is one incremental fragment of a streamed response. Each chunk
// carries deltas to the in-progress assistant message, not a complete Message.
type ChatChunk struct {
	ID      string        `json:"id,omitempty"`
	Model   string        `json:"model,omitempty"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is one choice's delta within a chunk.
type ChunkChoice struct {
	Index        int    `json:"index"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Delta carries the incremental parts of an assistant message.
type Delta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is an incremental fragment of one tool call, identified by its
// index within the assistant message. Function.Arguments arrives in pieces and
// must be concatenated across fragments.
type ToolCallDelta struct {
	Index    int          `json:"index"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// decodeEventStream reads event lines from r and invokes yield once per decoded
// chunk. Lines without the "data: " prefix (keep-alives, comments) are skipped;
// the "[DONE]" sentinel terminates the sequence without emitting. A prefixed
// line whose remainder is not valid JSON is a decode error.
func decodeEventStream(r io.Reader, yield func(ChatChunk) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), streamDataPrefix)
		if !ok {
			continue
		}
		if data == streamDone {
			return nil
		}
		var chunk ChatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("decode stream chunk: %w", err)
		}
		if err := yield(chunk); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Accumulator folds streamed chunks into a complete ChatResponse so the tool
// call extractor can run on a reassembled message. Zero value is ready to use.
//
//	var acc toolchat.Accumulator
//	err := client.CompleteStream(ctx, req, func(chunk toolchat.ChatChunk) error {
//	    acc.Add(chunk)
//	    return nil
//	})
//	resp := acc.Response()
type Accumulator struct {
	resp ChatResponse
}

// Add folds one chunk into the accumulated response. Content deltas are
// appended; tool-call fragments are merged by index, concatenating their
// argument pieces.
func (a *Accumulator) Add(chunk ChatChunk) {
	if a.resp.ID == "" {
		a.resp.ID = chunk.ID
	}
	if a.resp.Model == "" {
		a.resp.Model = chunk.Model
	}
	for _, cc := range chunk.Choices {
		for len(a.resp.Choices) <= cc.Index {
			a.resp.Choices = append(a.resp.Choices, Choice{Index: len(a.resp.Choices)})
		}
		choice := &a.resp.Choices[cc.Index]
		if cc.Delta.Role != "" {
			choice.Message.Role = cc.Delta.Role
		}
		choice.Message.Content += cc.Delta.Content
		if cc.FinishReason != "" {
			choice.FinishReason = cc.FinishReason
		}
		for _, td := range cc.Delta.ToolCalls {
			for len(choice.Message.ToolCalls) <= td.Index {
				choice.Message.ToolCalls = append(choice.Message.ToolCalls, ToolCallPayload{Type: "function"})
			}
			call := &choice.Message.ToolCalls[td.Index]
			if td.ID != "" {
				call.ID = td.ID
			}
			if td.Type != "" {
				call.Type = td.Type
			}
			if td.Function.Name != "" {
				call.Function.Name = td.Function.Name
			}
			call.Function.Arguments += td.Function.Arguments
		}
	}
}

// Response returns the response assembled so far. Call it after the stream is
// exhausted; the returned value shares no state with future Add calls.
func (a *Accumulator) Response() *ChatResponse {
	out := a.resp
	out.Choices = make([]Choice, len(a.resp.Choices))
	copy(out.Choices, a.resp.Choices)
	for i := range out.Choices {
		calls := out.Choices[i].Message.ToolCalls
		if len(calls) > 0 {
			out.Choices[i].Message.ToolCalls = append([]ToolCallPayload(nil), calls...)
		}
	}
	return &out
}
