package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnknownModel  = errors.New("no envelope registered for model")
	ErrEmptyResponse = errors.New("empty response body")
	ErrMissingText   = errors.New("response has no generated text")
)

// Invoker sends one prompt to a hosted text-generation model and returns
// the generated text. Implementations never retry and never fall back.
type Invoker interface {
	Invoke(ctx context.Context, prompt, modelID string) (string, error)
}

// ModelInvocationError wraps every failure of a single model call.
type ModelInvocationError struct {
	ModelID string
	Cause   error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("invoke model %s: %v", e.ModelID, e.Cause)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Cause
}

func invocationError(modelID string, cause error) error {
	return &ModelInvocationError{ModelID: modelID, Cause: cause}
}
