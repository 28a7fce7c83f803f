// Package toolchat drives tool-calling conversations against locally hosted,
// OpenAI-compatible model endpoints.
//
// # Overview
//
// A model may answer a chat request by asking for tools to be invoked. This
// package implements the orchestration around that: extract the tool calls
// from a response, dispatch them to registered handlers with bounded retries,
// fold every result (success or failure) back into the conversation as a
// tool turn, and repeat until the model answers directly or an iteration
// ceiling is hit.
//
// Pipeline: Client (POST /chat/completions, plain or streamed) → ExtractToolCalls →
// Executor (decode args, lookup, retry with exponential backoff) → ToolResult →
// Agent appends tool turns and loops.
//
// # Key concepts
//
//   - Tool failures are data, not errors: undecodable arguments, missing
//     handlers, and handlers that keep failing all become a ToolResult with
//     Success=false and a FailureKind, reported to the model so it can react.
//     Only transport failures (ErrTimeout, ErrUnreachable, RemoteError) abort
//     a conversation.
//   - The Registry is built at startup and read-only during chats, so any
//     number of concurrent conversations may share it.
//   - Single Source of Truth: NewHandler and DescriptorFor derive the schema
//     advertised to the model and the validation of its arguments from the
//     same Go struct.
//
// # Example
//
//	reg := toolchat.NewRegistry()
//	reg.RegisterHandler("architect", "validate_architecture",
//	    func(_ context.Context, args map[string]any) (any, error) {
//	        return map[string]any{"score": 85}, nil
//	    })
//	if err := reg.LoadSchemas("tools"); err != nil { ... }
//
//	client := toolchat.NewClient(toolchat.Endpoint{
//	    Name: "architect", Host: "localhost", Port: 8000, Model: "architect",
//	})
//	agent := toolchat.NewAgent(client, reg)
//	result, err := agent.ChatWithTools(ctx, "Design a login API")
package toolchat
