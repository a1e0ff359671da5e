package commands

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewPermitPoolDefaultsCapacity(t *testing.T) {
	assert.Equal(t, DefaultPermits, NewPermitPool(0).Capacity())
	assert.Equal(t, 7, NewPermitPool(7).Capacity())
}

func TestTryAcquireFailsWhenExhausted(t *testing.T) {
	pool := NewPermitPool(2)
	p1, ok1 := pool.TryAcquire()
	_, ok2 := pool.TryAcquire()
	_, ok3 := pool.TryAcquire()

	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.False(t, ok3)
	assert.Equal(t, 2, pool.Outstanding())

	p1.Release()
	_, ok4 := pool.TryAcquire()
	assert.True(t, ok4)
	assert.Equal(t, 3, pool.Acquired())
}

func TestReleaseIsIdempotent(t *testing.T) {
	pool := NewPermitPool(1)
	p, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	p.Release()
	p.Release()
	assert.Equal(t, 0, pool.Outstanding())

	_, ok := pool.TryAcquire()
	assert.True(t, ok)
	_, ok = pool.TryAcquire()
	assert.False(t, ok, "a double release must not add capacity")

	var nilPermit *Permit
	nilPermit.Release()
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	pool := NewPermitPool(1)
	held, _ := pool.TryAcquire()

	got := make(chan *Permit)
	go func() {
		p, _ := pool.Acquire(context.Background())
		got <- p
	}()

	select {
	case <-got:
		t.Fatal("acquired a permit from an exhausted pool")
	case <-time.After(50 * time.Millisecond):
	}
	held.Release()
	select {
	case p := <-got:
		assert.NotNil(t, p)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for permit after release")
	}
}

func TestAcquireGivesUpWhenContextEnds(t *testing.T) {
	pool := NewPermitPool(1)
	_, _ = pool.TryAcquire()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p, err := pool.Acquire(ctx)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, pool.Acquired())
}

func TestOutstandingNeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 8).Draw(rt, "capacity")
		workers := rapid.IntRange(1, 40).Draw(rt, "workers")
		pool := NewPermitPool(capacity)

		var peak atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p, err := pool.Acquire(context.Background())
				if err != nil {
					return
				}
				n := int64(pool.Outstanding())
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				p.Release()
			}()
		}
		wg.Wait()

		if int(peak.Load()) > capacity {
			rt.Fatalf("outstanding reached %d with capacity %d", peak.Load(), capacity)
		}
		if pool.Acquired() != workers || pool.Outstanding() != 0 {
			rt.Fatalf("acquired %d outstanding %d after %d workers", pool.Acquired(), pool.Outstanding(), workers)
		}
	})
}
