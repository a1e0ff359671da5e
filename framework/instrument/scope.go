package instrument

import "sync"

// Slot holds a collaborator function that code under test calls through, so that tests can
// substitute it for a limited time.
type Slot[F any] struct {
	fn   F
	lock sync.RWMutex
}

// NewSlot returns a Slot bound to fn.
func NewSlot[F any](fn F) *Slot[F] {
	return &Slot[F]{fn: fn}
}

// Load returns the function currently bound to the slot.
func (s *Slot[F]) Load() F {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.fn
}

func (s *Slot[F]) swap(fn F) F {
	s.lock.Lock()
	old := s.fn
	s.fn = fn
	s.lock.Unlock()
	return old
}

// Scope tracks substitutions made with Replace, Record, or Coordinate, and undoes them
// when it is closed. A Scope is single-use.
type Scope struct {
	restores []func()
	closed   bool
	lock     sync.Mutex
}

// NewScope returns an open Scope. The caller must call Close, typically with t.Cleanup.
func NewScope() *Scope {
	return &Scope{}
}

// Intercept runs body with a new Scope and restores every substitution when body exits,
// whether it returns, panics, or calls runtime.Goexit (as t.FailNow does).
func Intercept(body func(*Scope)) {
	sc := NewScope()
	defer sc.Close()
	body(sc)
}

// Close restores the original bindings, innermost substitution first. Calling Close more
// than once has no further effect.
func (sc *Scope) Close() {
	sc.lock.Lock()
	restores := sc.restores
	sc.restores = nil
	sc.closed = true
	sc.lock.Unlock()

	for i := len(restores) - 1; i >= 0; i-- {
		restores[i]()
	}
}

func (sc *Scope) push(restore func()) {
	sc.lock.Lock()
	if sc.closed {
		sc.lock.Unlock()
		restore()
		panic("instrument: substitution made on a closed Scope")
	}
	sc.restores = append(sc.restores, restore)
	sc.lock.Unlock()
}

// Replace binds standIn to slot until sc is closed.
func Replace[F any](sc *Scope, slot *Slot[F], standIn F) {
	previous := slot.swap(standIn)
	sc.push(func() { slot.swap(previous) })
}

// Record binds a Recorder wrapping the slot's current function until sc is closed, and
// returns the Recorder.
func Record[A, R any](sc *Scope, slot *Slot[func(A) R]) *Recorder[A, R] {
	rec := Wrap(slot.Load())
	Replace(sc, slot, rec.Func())
	return rec
}
