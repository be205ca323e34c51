package stage

import (
	"context"
	"log"
	"time"
)

// Retrier re-runs remote stage calls that failed at the transport level.
// The delay between attempts is flat; waiting honors the caller's
// context so a retry loop in one session never blocks another.
type Retrier struct {
	Attempts int
	Delay    time.Duration
}

// Do invokes fn up to r.Attempts times. Non-transient errors pass
// through on first sight; once the attempts are spent the final
// transport failure is surfaced as an *UnavailableError.
func (r Retrier) Do(ctx context.Context, stage Name, fn func(context.Context) error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		last = err

		if attempt == attempts {
			break
		}

		log.Printf("[retry] %s stage attempt %d/%d failed: %v", stage, attempt, attempts, err)
		if err := sleep(ctx, r.Delay); err != nil {
			return err
		}
	}

	return &UnavailableError{Stage: stage, Attempts: attempts, Err: last}
}

// Execute runs a typed stage call through the retrier.
func Execute[T any](ctx context.Context, r Retrier, stage Name, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, stage, func(ctx context.Context) error {
		value, callErr := fn(ctx)
		if callErr != nil {
			return callErr
		}
		result = value
		return nil
	})
	return result, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
