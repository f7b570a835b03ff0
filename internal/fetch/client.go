// Package fetch provides HTTP clients for the engine's external
// collaborators: the advisory completion backend and the whale
// discovery subgraph.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrNoAPIKey signals a missing advisory credential. This is a
// configuration error: it is surfaced immediately at call time and
// never retried.
var ErrNoAPIKey = errors.New("advisory API key not configured")

// Completer is the advisory collaborator contract: one prompt string
// and a model identifier in, one raw response string out.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// newDecisionClient builds the HTTP client used on the decision path.
// RetryMax is zero: a failed advisory attempt yields the fallback
// recommendation rather than re-invoking the collaborator, to bound
// latency and cost per decision.
func newDecisionClient(timeout time.Duration) *http.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 0
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	return c.StandardClient()
}

// newBackgroundClient builds the HTTP client used by background
// refresh tasks, where retries are cheap and latency does not gate a
// user decision.
func newBackgroundClient(timeout time.Duration) *http.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	return c.StandardClient()
}
