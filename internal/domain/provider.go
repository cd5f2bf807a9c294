package domain

import "context"

// Provider is the chat-completion backend with function-calling support.
//
// Chat returns (nil, nil) when the upstream call succeeded but carried no
// usable payload (no candidates, no content). Callers must treat that as a
// distinct fatal condition from a transport error.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
	Healthy(ctx context.Context) error
}
