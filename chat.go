package toolchat

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Agent drives multi-turn conversations with one endpoint, executing requested
// tool calls between turns. One ChatWithTools call owns its conversation state
// exclusively; run independent Agents (or concurrent calls on one Agent) for
// parallel conversations — the shared Registry is read-only during chats.
type Agent struct {
	name     string
	client   *Client
	registry *Registry
	executor *Executor
	logger   *slog.Logger
}

// NewAgent binds a transport client and a registry into a conversation driver.
// The registry key for handler lookups and tool advertisement is the client
// endpoint's Name.
func NewAgent(client *Client, registry *Registry, opts ...AgentOption) *Agent {
	o := agentOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	executor := o.executor
	if executor == nil {
		executor = NewExecutor(registry)
	}
	return &Agent{
		name:     client.Endpoint().Name,
		client:   client,
		registry: registry,
		executor: executor,
		logger:   o.logger,
	}
}

// Name returns the agent identity used for registry lookups.
func (a *Agent) Name() string { return a.name }

// ChatResult is the outcome of one ChatWithTools call: the final model
// response, the number of send operations performed, and the complete
// transcript for audit or follow-up turns.
type ChatResult struct {
	Final      *ChatResponse
	Iterations int
	Transcript []Message
}

// ChatWithTools runs the multi-turn loop: send the conversation with the tool
// schemas, extract requested tool calls, execute them, fold the results back in
// as tool turns, and repeat until the model stops requesting tools or the
// iteration ceiling is reached (the last response is returned in that case).
//
// Transport errors abort the conversation and are returned. Tool failures never
// do: they are reported to the model inside a tool turn so it can react within
// the same exchange.
func (a *Agent) ChatWithTools(ctx context.Context, userMessage string, opts ...ChatOption) (*ChatResult, error) {
	o := defaultChatOptions()
	for _, opt := range opts {
		opt(&o)
	}

	messages := make([]Message, 0, len(o.history)+2)
	if o.system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: o.system})
	}
	messages = append(messages, o.history...)
	messages = append(messages, Message{Role: RoleUser, Content: userMessage})

	tools := o.tools
	if tools == nil {
		tools = a.registry.ToolsForAgent(a.name)
	}

	var final *ChatResponse
	iterations := 0
	for iterations < o.maxIterations {
		iterations++
		resp, err := a.client.Complete(ctx, CompletionRequest{
			Messages:    messages,
			Tools:       tools,
			ToolChoice:  o.toolChoice,
			Temperature: o.temperature,
			MaxTokens:   o.maxTokens,
		})
		if err != nil {
			return nil, err
		}
		final = resp

		calls := ExtractToolCalls(a.name, resp)
		if len(calls) == 0 {
			if len(resp.Choices) > 0 {
				messages = append(messages, Message{Role: RoleAssistant, Content: resp.Choices[0].Message.Content})
			}
			break
		}

		assistant := resp.Choices[0].Message
		messages = append(messages, Message{
			Role:      RoleAssistant,
			Content:   assistant.Content,
			ToolCalls: assistant.ToolCalls,
		})

		a.logger.Info("executing tool calls", "agent", a.name, "iteration", iterations, "calls", len(calls))
		for _, result := range a.executor.ExecuteAll(ctx, calls) {
			content, _ := json.Marshal(result)
			messages = append(messages, Message{
				Role:       RoleTool,
				Content:    string(content),
				ToolCallID: result.CallID,
				Name:       result.ToolName,
			})
		}
	}

	return &ChatResult{Final: final, Iterations: iterations, Transcript: messages}, nil
}
