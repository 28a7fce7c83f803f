package toolchat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Executor invokes handlers for extracted tool calls with bounded retry and
// normalizes every outcome into a ToolResult. It never returns an error:
// argument, dispatch, and handler failures are all folded into the result so
// the orchestrator can report them to the model as ordinary tool turns.
type Executor struct {
	registry *Registry
	opts     executorOptions
}

// NewExecutor creates an Executor dispatching against the given registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	o := defaultExecutorOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Executor{registry: registry, opts: o}
}

// Execute runs one tool call:
//
//  1. Decode the raw argument payload. On failure, return a failed result
//     immediately; the payload will not parse differently on a second attempt.
//  2. Look up the handler for (agent, tool). If absent, return a failed result
//     naming the missing key and the registered keys.
//  3. Invoke the handler up to maxRetries times. Each failed attempt before the
//     last sleeps one backoff unit shifted left by the attempt number (1, 2, 4,
//     ... units). The first returned value wins; the last attempt's error
//     becomes the result's error.
//
// Context cancellation during a backoff sleep abandons the remaining attempts
// and reports the last handler error.
func (e *Executor) Execute(ctx context.Context, call ToolCall) ToolResult {
	var args map[string]any
	if err := json.Unmarshal(call.Args, &args); err != nil {
		return e.failure(call, KindBadArguments, fmt.Sprintf("failed to parse tool arguments: %v", err))
	}

	handler, ok := e.registry.Handler(call.Agent, call.Name)
	if !ok {
		return e.failure(call, KindNoHandler, fmt.Sprintf(
			"no handler registered for %s (registered: %s)",
			handlerKey(call.Agent, call.Name), strings.Join(e.registry.HandlerKeys(), ", ")))
	}

	var lastErr error
	for attempt := 0; attempt < e.opts.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, e.opts.backoffUnit<<(attempt-1)); err != nil {
				e.opts.logger.Warn("tool retry abandoned", "tool", call.Name, "call_id", call.ID, "reason", err)
				break
			}
		}
		result, err := e.invoke(ctx, handler, args)
		if err == nil {
			payload, merr := json.Marshal(result)
			if merr != nil {
				return e.failure(call, KindHandlerError, fmt.Sprintf("tool result is not serializable: %v", merr))
			}
			return ToolResult{CallID: call.ID, ToolName: call.Name, Success: true, Result: payload}
		}
		lastErr = err
		e.opts.logger.Warn("tool attempt failed",
			"tool", call.Name, "call_id", call.ID, "attempt", attempt+1, "max", e.opts.maxRetries, "error", err)
	}
	return e.failure(call, KindHandlerError, lastErr.Error())
}

// ExecuteAll runs calls one after another, in order, and returns one result per
// call. Calls within a turn are independent; a failure does not stop the rest.
func (e *Executor) ExecuteAll(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, e.Execute(ctx, call))
	}
	return results
}

func (e *Executor) invoke(ctx context.Context, handler Handler, args map[string]any) (result any, err error) {
	if e.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				result = nil
				err = &panicError{p: p}
			}
		}()
	}
	return handler(ctx, args)
}

func (e *Executor) failure(call ToolCall, kind FailureKind, msg string) ToolResult {
	e.opts.logger.Debug("tool call failed", "tool", call.Name, "call_id", call.ID, "kind", string(kind))
	return ToolResult{CallID: call.ID, ToolName: call.Name, Success: false, Error: msg, Kind: kind}
}

// sleepContext sleeps for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
