// README: Text-generation boundary shared by every NLU backend.
package nlu

import (
	"context"
	"errors"
)

var (
	ErrEmptyResponse = errors.New("nlu: empty response")
	ErrNoJSON        = errors.New("nlu: no json object in response")
	ErrSchema        = errors.New("nlu: response does not match slot schema")
)

// Request is one prompt. JSON asks the backend for a JSON-only answer where it supports that.
type Request struct {
	Instruction string
	Text        string
	Temperature float32
	MaxTokens   int
	JSON        bool
}

// Provider sends a prompt and returns the raw model text. It may fail or time out.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}
