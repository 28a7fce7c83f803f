package toolchat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandler_DecodesTypedArgs(t *testing.T) {
	handler, err := NewHandler(func(_ context.Context, args searchArgs) (any, error) {
		return map[string]any{"query": args.Query, "limit": args.Limit}, nil
	})
	require.NoError(t, err)

	result, err := handler(context.Background(), map[string]any{"query": "golang", "limit": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"query": "golang", "limit": 3}, result)
}

func TestNewHandler_RejectsBadArgsBeforeFn(t *testing.T) {
	called := false
	handler, err := NewHandler(func(_ context.Context, _ searchArgs) (any, error) {
		called = true
		return nil, nil
	})
	require.NoError(t, err)

	_, err = handler(context.Background(), map[string]any{"query": "golang", "limit": "three"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadArguments)
	assert.False(t, called)
}

func TestNewHandler_ValidatableEnforced(t *testing.T) {
	handler, err := NewHandler(func(_ context.Context, args rangeArgs) (any, error) {
		return args.To - args.From, nil
	})
	require.NoError(t, err)

	result, err := handler(context.Background(), map[string]any{"from": float64(2), "to": float64(7)})
	require.NoError(t, err)
	assert.Equal(t, 5, result)

	_, err = handler(context.Background(), map[string]any{"from": float64(7), "to": float64(2)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadArguments)
}

func TestDescriptorFor_MatchesHandlerSchema(t *testing.T) {
	descriptor, err := DescriptorFor[searchArgs]("search_docs", "Search documentation")
	require.NoError(t, err)
	require.NoError(t, ValidateDescriptor(descriptor))

	assert.Equal(t, "function", descriptor.Type)
	assert.Equal(t, "search_docs", descriptor.Function.Name)
	assert.Equal(t, "object", descriptor.Function.Parameters["type"])

	props, ok := descriptor.Function.Parameters["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
}
