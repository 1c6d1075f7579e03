package mock

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ineyio/quotaledger"
)

// ErrUnavailable is returned once a completer configured WithFailAfter runs out of calls.
var ErrUnavailable = errors.New("mock: completer unavailable")

// Completer is a mock pipeline for testing.
type Completer struct {
	latency      time.Duration
	failAfter    int
	callCount    atomic.Int64
	staticErr    error
	usage        quotaledger.Usage
	responseFunc func(quotaledger.CompletionRequest) (quotaledger.CompletionResponse, error)
}

var _ quotaledger.Completer = (*Completer)(nil)

// Option configures a mock Completer.
type Option func(*Completer)

// New creates a mock completer with the given options.
func New(opts ...Option) *Completer {
	c := &Completer{
		usage: quotaledger.Usage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(c *Completer) { c.latency = d }
}

// WithFailAfter makes the completer fail after N successful calls.
func WithFailAfter(n int) Option {
	return func(c *Completer) { c.failAfter = n }
}

// WithError makes the completer always return this error.
func WithError(err error) Option {
	return func(c *Completer) { c.staticErr = err }
}

// WithUsage sets the usage returned by the mock.
func WithUsage(u quotaledger.Usage) Option {
	return func(c *Completer) { c.usage = u }
}

// WithTotalTokens sets a usage whose total is n, split evenly between prompt and completion.
func WithTotalTokens(n int64) Option {
	return func(c *Completer) {
		c.usage = quotaledger.Usage{PromptTokens: n / 2, CompletionTokens: n - n/2, TotalTokens: n}
	}
}

// WithResponseFunc sets a custom response function.
func WithResponseFunc(fn func(quotaledger.CompletionRequest) (quotaledger.CompletionResponse, error)) Option {
	return func(c *Completer) { c.responseFunc = fn }
}

func (c *Completer) Complete(ctx context.Context, req quotaledger.CompletionRequest) (quotaledger.CompletionResponse, error) {
	if c.latency > 0 {
		select {
		case <-time.After(c.latency):
		case <-ctx.Done():
			return quotaledger.CompletionResponse{}, ctx.Err()
		}
	}

	count := c.callCount.Add(1)

	if c.staticErr != nil {
		return quotaledger.CompletionResponse{}, c.staticErr
	}

	if c.failAfter > 0 && int(count) > c.failAfter {
		return quotaledger.CompletionResponse{}, ErrUnavailable
	}

	if c.responseFunc != nil {
		return c.responseFunc(req)
	}

	return quotaledger.CompletionResponse{
		ID:      "mock-response-id",
		Content: "Hello from mock pipeline",
		Model:   req.Model,
		Usage:   c.usage,
	}, nil
}

// CallCount returns the number of calls made to the completer.
func (c *Completer) CallCount() int64 { return c.callCount.Load() }
