package contxt

import (
	"context"
	"time"
)

// NewContext returns a context cancelled after timeout. It is meant for work
// started from listeners and callbacks that carry no context of their own.
func NewContext(timeout time.Duration) context.Context {
	return WithTimeout(context.Background(), timeout)
}

// WithTimeout is context.WithTimeout with the cancel func released
// automatically once the deadline passes or parent is done.
func WithTimeout(parent context.Context, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(parent, timeout)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ctx
}
