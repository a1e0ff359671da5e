package instrument

import "sync"

// Recorder wraps a collaborator function and records the argument of every call made
// through it.
//
// Collaborators take a single argument value. A collaborator with several parameters
// declares an argument struct, so that one Recorder type works for any signature.
type Recorder[A, R any] struct {
	target func(A) R
	calls  []A
	lock   sync.Mutex
}

// Wrap returns a Recorder that delegates to target.
func Wrap[A, R any](target func(A) R) *Recorder[A, R] {
	return &Recorder[A, R]{target: target}
}

// Call invokes the wrapped function and then records args. The call is visible to Count
// and Calls as soon as Call returns. If the wrapped function panics, nothing is recorded.
func (r *Recorder[A, R]) Call(args A) R {
	result := r.target(args)
	r.lock.Lock()
	r.calls = append(r.calls, args)
	r.lock.Unlock()
	return result
}

// Func returns the recorder as a plain function value, for installing in a Slot.
func (r *Recorder[A, R]) Func() func(A) R {
	return r.Call
}

// Count returns the number of completed calls.
func (r *Recorder[A, R]) Count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.calls)
}

// Calls returns a copy of the recorded arguments in invocation order.
func (r *Recorder[A, R]) Calls() []A {
	r.lock.Lock()
	ret := append([]A(nil), r.calls...)
	r.lock.Unlock()
	return ret
}
