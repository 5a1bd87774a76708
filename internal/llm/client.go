// Package llm wraps the external reasoning capability. Every structured
// response crosses a validating decoder before it may touch workflow state;
// raw model text never drives a transition directly.
package llm

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// Client is the reasoning capability boundary: prompt in, text out.
// Calls are fallible and carry no internal retry; failure is a normal
// error path for callers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RateLimited wraps a client with a requests-per-minute limiter so one
// busy conversation cannot exhaust the provider quota.
type RateLimited struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimited builds a rate-limited client. rpm <= 0 disables limiting.
func NewRateLimited(inner Client, rpm int) *RateLimited {
	limit := rate.Inf
	burst := 1
	if rpm > 0 {
		limit = rate.Limit(float64(rpm) / 60.0)
		burst = rpm
	}
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Complete(ctx, prompt)
}

// ErrScriptExhausted is returned by a Scripted client with no responses left.
var ErrScriptExhausted = errors.New("llm: scripted responses exhausted")

// Scripted replays canned responses in order and records the prompts it
// received. Used by tests and the offline demo binary.
type Scripted struct {
	mu        sync.Mutex
	responses []string
	next      int

	// Err, when set, is returned by every call instead of a response.
	Err error

	// Prompts collects every prompt received, in order.
	Prompts []string
}

// NewScripted returns a client that replays the given responses.
func NewScripted(responses ...string) *Scripted {
	return &Scripted{responses: responses}
}

func (s *Scripted) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Prompts = append(s.Prompts, prompt)
	if s.Err != nil {
		return "", s.Err
	}
	if s.next >= len(s.responses) {
		return "", ErrScriptExhausted
	}
	resp := s.responses[s.next]
	s.next++
	return resp, nil
}
