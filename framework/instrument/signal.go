package instrument

import (
	"context"
	"sync"
)

// Signal is a one-shot event. It can be set any number of times but only the first has an
// effect, and it is never reset. Any number of goroutines may wait on it.
type Signal struct {
	ch   chan struct{}
	once sync.Once
}

// NewSignal returns an unset Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Set marks the signal as set and wakes all waiters.
func (s *Signal) Set() {
	s.once.Do(func() { close(s.ch) })
}

// IsSet reports whether Set has been called.
func (s *Signal) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed when the signal is set.
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Wait blocks until the signal is set.
func (s *Signal) Wait() {
	<-s.ch
}

// WaitContext blocks until the signal is set or ctx is done.
func (s *Signal) WaitContext(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
