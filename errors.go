package toolchat

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to check.
var (
	// ErrTimeout means a network call exceeded its budget. Fatal to the conversation.
	ErrTimeout = errors.New("agent request timed out")
	// ErrUnreachable means the connection was refused or reset. Fatal to the conversation.
	ErrUnreachable = errors.New("agent unreachable")
	// ErrNoHandler means no handler is registered for a requested (agent, tool) pair.
	// Surfaced to the model as a failed ToolResult, never raised from the orchestrator.
	ErrNoHandler = errors.New("no handler registered")
	// ErrBadArguments means a tool-call argument payload could not be decoded or
	// failed schema validation. Surfaced to the model, never retried.
	ErrBadArguments = errors.New("invalid tool arguments")
	// ErrBadToolChoice means a tool-choice policy string is not a known keyword.
	ErrBadToolChoice = errors.New("invalid tool choice")
	// ErrInvalidDescriptor means a tool declaration does not follow the OpenAI function format.
	ErrInvalidDescriptor = errors.New("invalid tool descriptor")
)

// RemoteError is a non-2xx reply from the agent endpoint, carrying the server's
// error body. Transport-level: aborts the conversation rather than becoming a
// ToolResult.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("agent returned HTTP %d: %s", e.StatusCode, e.Body)
}

// IsTransportError reports whether err belongs to the fatal transport taxonomy
// (timeout, unreachable, remote HTTP error) as opposed to a per-call tool failure.
func IsTransportError(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnreachable) {
		return true
	}
	var re *RemoteError
	return errors.As(err, &re)
}

// panicError wraps a recovered panic value so it can travel as an ordinary error.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
