package automation

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Validator is implemented by request types that need cross-field or
// required-field checks beyond what decoding enforces.
type Validator interface {
	Validate() error
}

// Typed wraps a function taking a typed request into a Handler. It decodes
// the intent's keyword arguments into Req with mapstructure (weakly typed, so
// JSON numbers arriving as float64 still fill int fields) and runs the
// request's Validate method when present.
//
// Decode and validation failures wrap ErrInvalidArgs so the dispatcher can
// tell argument mismatches apart from execution failures.
func Typed[Req any](fn func(context.Context, Req) (Result, error)) Handler {
	return func(ctx context.Context, args map[string]any) (Result, error) {
		var req Req

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &req,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return Result{}, fmt.Errorf("building argument decoder: %w", err)
		}

		if err := decoder.Decode(args); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}

		if v, ok := any(req).(Validator); ok {
			if err := v.Validate(); err != nil {
				return Result{}, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
			}
		}

		return fn(ctx, req)
	}
}
