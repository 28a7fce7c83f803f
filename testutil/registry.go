package testutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/skosovsky/toolchat"
)

// NewTestRegistry returns a Registry with the given handlers registered under
// one agent name, suitable for tests.
func NewTestRegistry(agent string, handlers map[string]toolchat.Handler) *toolchat.Registry {
	reg := toolchat.NewRegistry()
	for tool, h := range handlers {
		reg.RegisterHandler(agent, tool, h)
	}
	return reg
}

// StaticHandler returns a handler that always succeeds with result.
func StaticHandler(result any) toolchat.Handler {
	return func(context.Context, map[string]any) (any, error) {
		return result, nil
	}
}

// FailingHandler returns a handler that fails the first failures invocations
// with the given error and then succeeds with result. The returned counter
// reports total invocations.
func FailingHandler(failures int, err error, result any) (toolchat.Handler, *atomic.Int32) {
	var calls atomic.Int32
	handler := func(context.Context, map[string]any) (any, error) {
		n := calls.Add(1)
		if int(n) <= failures {
			return nil, fmt.Errorf("attempt %d: %w", n, err)
		}
		return result, nil
	}
	return handler, &calls
}
