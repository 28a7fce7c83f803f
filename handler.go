package toolchat

import (
	"context"
	"encoding/json"
)

// NewHandler builds a Handler from a typed function. The argument set is
// re-encoded and decoded into T through an ArgCodec, so fn only ever sees
// arguments that passed schema validation; anything else fails as
// ErrBadArguments before fn runs. Returns an error if schema generation for T fails.
func NewHandler[T any](fn func(ctx context.Context, args T) (any, error)) (Handler, error) {
	codec, err := NewArgCodec[T]()
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, args map[string]any) (any, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		typed, err := codec.Decode(raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, typed)
	}, nil
}

// DescriptorFor generates a ToolDescriptor for a tool whose arguments are the
// struct T, using the same schema NewHandler validates against. Pair it with
// NewHandler so the declaration sent to the model and the validation of what
// comes back can never drift apart.
func DescriptorFor[T any](name, description string) (ToolDescriptor, error) {
	codec, err := NewArgCodec[T]()
	if err != nil {
		return ToolDescriptor{}, err
	}
	return ToolDescriptor{
		Type: "function",
		Function: FunctionSpec{
			Name:        name,
			Description: description,
			Parameters:  codec.Schema(),
		},
	}, nil
}
