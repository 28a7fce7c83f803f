// Package testutil provides test helpers for toolchat: a scripted
// OpenAI-compatible agent server and canned registries/handlers.
package testutil

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/skosovsky/toolchat"
)

// Step scripts one chat-completion response. Either Content (a direct answer)
// or ToolCalls (a tool-requesting turn) is set; a non-zero Status makes the
// server reply with that HTTP status and Body instead.
type Step struct {
	Content   string
	ToolCalls []ToolCallSpec
	Status    int
	Body      string
}

// ToolCallSpec is one scripted tool call. A fresh call id is minted when ID is empty.
type ToolCallSpec struct {
	ID   string
	Name string
	Args string
}

// Request is one recorded chat-completion request body.
type Request struct {
	Model       string                     `json:"model"`
	Messages    []toolchat.Message         `json:"messages"`
	Temperature float64                    `json:"temperature"`
	MaxTokens   int                        `json:"max_tokens"`
	Stream      bool                       `json:"stream"`
	Tools       []toolchat.ToolDescriptor  `json:"tools"`
	ToolChoice  json.RawMessage            `json:"tool_choice"`
}

// AgentServer is a scripted OpenAI-compatible server for tests. Each
// chat-completion request consumes the next step; once the script is
// exhausted the last step repeats, so "model requests tools forever" is
// scripted with a single tool-call step. Streaming requests get the same step
// as SSE chunks. Every request body is recorded.
type AgentServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	steps    []Step
	next     int
	requests []Request
}

// NewAgentServer starts a scripted server. Close it when done.
func NewAgentServer(steps ...Step) *AgentServer {
	if len(steps) == 0 {
		steps = []Step{{Content: "ok"}}
	}
	s := &AgentServer{steps: steps}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", s.handleCompletions)
	mux.HandleFunc("/v1/models", s.handleModels)
	s.srv = httptest.NewServer(mux)
	return s
}

// Close shuts the server down.
func (s *AgentServer) Close() { s.srv.Close() }

// URL returns the server's base URL.
func (s *AgentServer) URL() string { return s.srv.URL }

// Endpoint returns a toolchat.Endpoint pointing at this server.
func (s *AgentServer) Endpoint(name, model string) toolchat.Endpoint {
	u, err := url.Parse(s.srv.URL)
	if err != nil {
		panic(fmt.Sprintf("testutil: parse server url: %v", err))
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		panic(fmt.Sprintf("testutil: split server host: %v", err))
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		panic(fmt.Sprintf("testutil: parse server port: %v", err))
	}
	return toolchat.Endpoint{Name: name, Host: host, Port: port, Model: model}
}

// Requests returns a copy of all recorded chat-completion request bodies.
func (s *AgentServer) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns how many chat-completion requests were served.
func (s *AgentServer) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *AgentServer) takeStep(req Request) Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	step := s.steps[s.next]
	if s.next < len(s.steps)-1 {
		s.next++
	}
	return step
}

func (s *AgentServer) handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	step := s.takeStep(req)

	if step.Status != 0 {
		w.WriteHeader(step.Status)
		fmt.Fprint(w, step.Body)
		return
	}
	if req.Stream {
		s.writeStream(w, step)
		return
	}
	s.writeResponse(w, req.Model, step)
}

func (s *AgentServer) handleModels(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"object":"list","data":[{"id":"architect","object":"model"}]}`)
}

func payloadsFor(step Step) []toolchat.ToolCallPayload {
	payloads := make([]toolchat.ToolCallPayload, 0, len(step.ToolCalls))
	for _, tc := range step.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		payloads = append(payloads, toolchat.ToolCallPayload{
			ID:   id,
			Type: "function",
			Function: toolchat.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Args,
			},
		})
	}
	return payloads
}

func (s *AgentServer) writeResponse(w http.ResponseWriter, model string, step Step) {
	resp := toolchat.ChatResponse{
		ID:    "chatcmpl-" + uuid.NewString(),
		Model: model,
		Choices: []toolchat.Choice{{
			Message: toolchat.Message{
				Role:      toolchat.RoleAssistant,
				Content:   step.Content,
				ToolCalls: payloadsFor(step),
			},
			FinishReason: finishReason(step),
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeStream replays the step as SSE: role first, then the content split in
// two, then each tool call with its arguments split across two fragments, so
// consumers must reassemble exactly like against a real server.
func (s *AgentServer) writeStream(w http.ResponseWriter, step Step) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	emit := func(chunk toolchat.ChatChunk) {
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	emit(chunkWithDelta(toolchat.Delta{Role: toolchat.RoleAssistant}))
	if step.Content != "" {
		half := len(step.Content) / 2
		emit(chunkWithDelta(toolchat.Delta{Content: step.Content[:half]}))
		emit(chunkWithDelta(toolchat.Delta{Content: step.Content[half:]}))
	}
	for i, p := range payloadsFor(step) {
		args := p.Function.Arguments
		half := len(args) / 2
		emit(chunkWithDelta(toolchat.Delta{ToolCalls: []toolchat.ToolCallDelta{{
			Index:    i,
			ID:       p.ID,
			Type:     p.Type,
			Function: toolchat.FunctionCall{Name: p.Function.Name, Arguments: args[:half]},
		}}}))
		emit(chunkWithDelta(toolchat.Delta{ToolCalls: []toolchat.ToolCallDelta{{
			Index:    i,
			Function: toolchat.FunctionCall{Arguments: args[half:]},
		}}}))
	}

	finish := toolchat.ChatChunk{Choices: []toolchat.ChunkChoice{{FinishReason: finishReason(step)}}}
	emit(finish)
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func chunkWithDelta(d toolchat.Delta) toolchat.ChatChunk {
	return toolchat.ChatChunk{Choices: []toolchat.ChunkChoice{{Delta: d}}}
}

func finishReason(step Step) string {
	if len(step.ToolCalls) > 0 {
		return "tool_calls"
	}
	return "stop"
}
