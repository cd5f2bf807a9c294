package domain

import "context"

// Tool is a side-effecting function the model can call. Execute returns a
// structured payload that is serialized into the provider's functionResponse;
// expected failures (missing credential, upstream not-found) go inside the
// payload as {"error": "..."} so the conversation loop never aborts on them.
// A non-nil error means an unexpected internal failure.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (map[string]any, error)
}
