package toolchat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteError_Message(t *testing.T) {
	err := &RemoteError{StatusCode: 503, Body: "model loading"}
	assert.Equal(t, "agent returned HTTP 503: model loading", err.Error())
}

func TestIsTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", ErrTimeout, true},
		{"wrapped timeout", fmt.Errorf("send: %w", ErrTimeout), true},
		{"unreachable", ErrUnreachable, true},
		{"remote", &RemoteError{StatusCode: 500, Body: "oops"}, true},
		{"wrapped remote", fmt.Errorf("send: %w", &RemoteError{StatusCode: 404}), true},
		{"no handler", ErrNoHandler, false},
		{"bad arguments", ErrBadArguments, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransportError(tt.err))
		})
	}
}

func TestPanicError_Message(t *testing.T) {
	err := &panicError{p: "index out of range"}
	assert.Equal(t, "panic: index out of range", err.Error())
}
