// Package poll waits for eventually-consistent results by re-running a probe a bounded
// number of times.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultAttempts is the retry budget used by the contract suite.
	DefaultAttempts = 100

	// DefaultInterval is the pause between probe attempts used by the contract suite.
	DefaultInterval = time.Millisecond * 100
)

// ErrExhausted matches any *ExhaustedError with errors.Is.
var ErrExhausted = errors.New("poll attempts exhausted")

// ExhaustedError is returned when every attempt produced an empty result.
type ExhaustedError struct {
	// Attempts is the number of times the probe was invoked.
	Attempts int

	// LastErr is the last error returned (or panic raised) by the probe, if any.
	LastErr error
}

func (e *ExhaustedError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("no result after %d attempts; last probe error: %s", e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("no result after %d attempts", e.Attempts)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Probe is re-invoked until it returns a non-empty slice. An error means "not yet".
type Probe[T any] func() ([]T, error)

// Handle is the result of a poll running on its own goroutine.
type Handle[T any] struct {
	done     chan struct{}
	result   []T
	attempts int
	err      error
}

// Start begins polling in the background. The probe is invoked up to maxAttempts+1 times,
// with interval between consecutive attempts. Errors and panics from the probe are
// swallowed; the last one is reported in the ExhaustedError if no attempt succeeds.
func Start[T any](ctx context.Context, maxAttempts int, interval time.Duration, probe Probe[T]) *Handle[T] {
	h := &Handle[T]{done: make(chan struct{})}
	go h.run(ctx, maxAttempts, interval, probe)
	return h
}

// Until polls and waits for the outcome.
func Until[T any](ctx context.Context, maxAttempts int, interval time.Duration, probe Probe[T]) ([]T, error) {
	return Start(ctx, maxAttempts, interval, probe).Wait()
}

func (h *Handle[T]) run(ctx context.Context, maxAttempts int, interval time.Duration, probe Probe[T]) {
	defer close(h.done)
	var lastErr error
	for attempt := 0; attempt <= maxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				h.err = ctx.Err()
				return
			case <-timer.C:
			}
		}
		h.attempts++
		result, err := invoke(probe)
		if err != nil {
			lastErr = err
			continue
		}
		if len(result) > 0 {
			h.result = result
			return
		}
	}
	h.err = &ExhaustedError{Attempts: h.attempts, LastErr: lastErr}
}

func invoke[T any](probe Probe[T]) (result []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return probe()
}

// Done returns a channel that is closed when polling has finished.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until polling has finished and returns the first non-empty result.
func (h *Handle[T]) Wait() ([]T, error) {
	<-h.done
	return h.result, h.err
}

// WaitContext is like Wait but stops waiting when ctx is done. Polling itself continues
// until its own context ends or its budget runs out.
func (h *Handle[T]) WaitContext(ctx context.Context) ([]T, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Attempts returns how many times the probe was invoked. It is only meaningful after Done
// is closed.
func (h *Handle[T]) Attempts() int {
	<-h.done
	return h.attempts
}
