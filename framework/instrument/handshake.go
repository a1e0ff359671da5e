// Package instrument contains the primitives that let a test observe and synchronize with
// collaborator functions called by code running on other goroutines.
//
// Code under test reaches its collaborators through a Slot. Within a Scope, a test can
// replace a slot's function with a stand-in (Replace), wrap it in a call Recorder (Record),
// or install a Handshake (Coordinate) that holds the collaborator at its entry until the test
// releases it.
package instrument

import (
	"context"
	"time"
)

// DefaultTimeout is the deadline a test should apply around blocking Handshake calls when it
// has no better bound of its own.
const DefaultTimeout = time.Minute * 5

// Handshake is a rendezvous between a test driver and a collaborator invoked by code under
// test.
//
// When the collaborator is invoked, the replacement sets Reached and then holds the caller
// until the driver sets Released. Only then does it call the original function with the
// original argument. Completed is set once the original returns. While the collaborator is
// held, the driver can inspect everything the code under test did before reaching it.
type Handshake struct {
	reached   *Signal
	released  *Signal
	completed *Signal
}

// Coordinate installs a Handshake on slot until sc is closed. Closing sc also releases any
// invocation that is still being held.
func Coordinate[A, R any](sc *Scope, slot *Slot[func(A) R]) *Handshake {
	original := slot.Load()
	h := &Handshake{
		reached:   NewSignal(),
		released:  NewSignal(),
		completed: NewSignal(),
	}
	Replace(sc, slot, func(args A) R {
		h.reached.Set()
		h.released.Wait()
		defer h.completed.Set()
		return original(args)
	})
	sc.push(h.released.Set)
	return h
}

// Trigger blocks until the collaborator has been invoked, releases it, and waits for the
// original collaborator to return. If the collaborator is never invoked, Trigger never
// returns; use TriggerContext to bound the wait.
func (h *Handshake) Trigger() {
	h.reached.Wait()
	h.released.Set()
	h.completed.Wait()
}

// TriggerContext is like Trigger but gives up when ctx is done. If ctx ends before the
// collaborator is reached, the collaborator stays held.
func (h *Handshake) TriggerContext(ctx context.Context) error {
	if err := h.reached.WaitContext(ctx); err != nil {
		return err
	}
	h.released.Set()
	return h.completed.WaitContext(ctx)
}

// AwaitReached blocks until the collaborator has been invoked, without releasing it.
func (h *Handshake) AwaitReached(ctx context.Context) error {
	return h.reached.WaitContext(ctx)
}

// AwaitCompletion blocks until the original collaborator has returned, or ctx is done.
func (h *Handshake) AwaitCompletion(ctx context.Context) error {
	return h.completed.WaitContext(ctx)
}

// Reached is set when the collaborator is entered.
func (h *Handshake) Reached() *Signal { return h.reached }

// Released is set by the driver to let the held collaborator proceed.
func (h *Handshake) Released() *Signal { return h.released }

// Completed is set when the original collaborator returns.
func (h *Handshake) Completed() *Signal { return h.completed }
