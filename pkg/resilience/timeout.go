package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a deadline and stops waiting for it once the
// deadline passes, even if fn ignores its context. The result reports
// context.DeadlineExceeded for an expired deadline and the parent's error
// when ctx itself was cancelled. A non-positive limit calls fn directly.
func WithTimeout(ctx context.Context, limit time.Duration, op string, fn func(context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	ctx2, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- fn(ctx2) }()

	select {
	case err := <-errc:
		return err
	case <-ctx2.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: %w after %v", op, context.DeadlineExceeded, limit)
	}
}
