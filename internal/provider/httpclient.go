package provider

import (
	"net/http"
	"time"
)

const defaultHTTPTimeout = 120 * time.Second

// newHTTPClient returns the shared client configuration for provider calls.
// Generation requests can be slow, so the timeout is generous; callers that
// need a tighter bound pass a context deadline.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}
