package instrument

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeArgs struct {
	key   string
	value int
}

type fakeStore struct {
	writes atomic.Int32
}

func (s *fakeStore) write(storeArgs) error {
	s.writes.Add(1)
	return nil
}

func TestSignalSetIsIdempotentAndWakesAllWaiters(t *testing.T) {
	g := gomega.NewWithT(t)
	s := NewSignal()
	assert.False(t, s.IsSet())

	woken := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		go func() {
			s.Wait()
			woken <- struct{}{}
		}()
	}
	g.Consistently(woken, "50ms").ShouldNot(gomega.Receive())

	s.Set()
	s.Set()

	for i := 0; i < 3; i++ {
		g.Eventually(woken).Should(gomega.Receive())
	}
	assert.True(t, s.IsSet())
	g.Expect(s.Done()).To(gomega.BeClosed())
}

func TestSignalWaitContextTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := NewSignal().WaitContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTriggerDoesNotReturnBeforeCollaboratorIsInvoked(t *testing.T) {
	g := gomega.NewWithT(t)
	store := &fakeStore{}
	slot := NewSlot(store.write)
	gate := make(chan struct{})

	Intercept(func(sc *Scope) {
		h := Coordinate(sc, slot)

		go func() {
			<-gate
			_ = slot.Load()(storeArgs{"a", 1})
		}()

		triggered := make(chan struct{})
		go func() {
			h.Trigger()
			close(triggered)
		}()

		g.Consistently(triggered, "100ms").ShouldNot(gomega.BeClosed())
		assert.False(t, h.Reached().IsSet())
		assert.False(t, h.Released().IsSet())

		close(gate)
		g.Eventually(triggered).Should(gomega.BeClosed())
		assert.True(t, h.Completed().IsSet())
		assert.Equal(t, int32(1), store.writes.Load())
	})
}

func TestCollaboratorIsHeldUntilTrigger(t *testing.T) {
	g := gomega.NewWithT(t)
	store := &fakeStore{}
	slot := NewSlot(store.write)

	Intercept(func(sc *Scope) {
		h := Coordinate(sc, slot)
		returned := make(chan error, 1)
		go func() { returned <- slot.Load()(storeArgs{"b", 2}) }()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, h.AwaitReached(ctx))

		g.Consistently(returned, "100ms").ShouldNot(gomega.Receive())
		assert.Equal(t, int32(0), store.writes.Load())
		assert.False(t, h.Released().IsSet())
		assert.False(t, h.Completed().IsSet())

		require.NoError(t, h.TriggerContext(ctx))
		assert.Equal(t, int32(1), store.writes.Load())
		g.Eventually(returned).Should(gomega.Receive(gomega.BeNil()))
	})
}

func TestHandshakeOrdersReleaseBeforeOriginalAndCompletionAfter(t *testing.T) {
	var reachedSeen, releasedSeen, completedSeen bool
	var h *Handshake
	original := func(storeArgs) error {
		reachedSeen = h.Reached().IsSet()
		releasedSeen = h.Released().IsSet()
		completedSeen = h.Completed().IsSet()
		return nil
	}
	slot := NewSlot(original)

	Intercept(func(sc *Scope) {
		h = Coordinate(sc, slot)
		done := make(chan error, 1)
		go func() { done <- slot.Load()(storeArgs{"c", 3}) }()

		h.Trigger()
		assert.True(t, h.Completed().IsSet())
		require.NoError(t, <-done)
	})

	assert.True(t, reachedSeen)
	assert.True(t, releasedSeen)
	assert.False(t, completedSeen)
}

func TestHandshakePassesThroughResult(t *testing.T) {
	slot := NewSlot(func(n int) int { return n * 10 })

	Intercept(func(sc *Scope) {
		h := Coordinate(sc, slot)
		result := make(chan int, 1)
		go func() { result <- slot.Load()(4) }()

		h.Trigger()
		assert.Equal(t, 40, <-result)
	})
}

func TestHandshakeMarksCompletionWhenOriginalPanics(t *testing.T) {
	slot := NewSlot(func(n int) int {
		panic("negative")
	})

	Intercept(func(sc *Scope) {
		h := Coordinate(sc, slot)
		recovered := make(chan interface{}, 1)
		go func() {
			defer func() { recovered <- recover() }()
			slot.Load()(-1)
		}()

		h.Trigger()
		assert.Equal(t, "negative", <-recovered)
		assert.True(t, h.Completed().IsSet())
	})
}

func TestTriggerContextBoundsAHandshakeThatNeverFires(t *testing.T) {
	slot := NewSlot((&fakeStore{}).write)

	Intercept(func(sc *Scope) {
		h := Coordinate(sc, slot)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, h.TriggerContext(ctx), context.DeadlineExceeded)
		assert.False(t, h.Released().IsSet())
	})
}

func TestTriggerContextBoundsASlowCollaborator(t *testing.T) {
	unblock := make(chan struct{})
	defer close(unblock)
	slot := NewSlot(func(storeArgs) error {
		<-unblock
		return nil
	})

	Intercept(func(sc *Scope) {
		h := Coordinate(sc, slot)
		go func() { _ = slot.Load()(storeArgs{"d", 4}) }()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, h.TriggerContext(ctx), context.DeadlineExceeded)
		assert.True(t, h.Reached().IsSet())
		assert.True(t, h.Released().IsSet())
		assert.False(t, h.Completed().IsSet())
	})
}

func TestClosingScopeReleasesHeldCollaborator(t *testing.T) {
	g := gomega.NewWithT(t)
	store := &fakeStore{}
	slot := NewSlot(store.write)
	returned := make(chan error, 1)

	Intercept(func(sc *Scope) {
		h := Coordinate(sc, slot)
		go func() { returned <- slot.Load()(storeArgs{"e", 5}) }()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, h.AwaitReached(ctx))
	})

	g.Eventually(returned).Should(gomega.Receive(gomega.BeNil()))
	assert.Equal(t, int32(1), store.writes.Load())
}
