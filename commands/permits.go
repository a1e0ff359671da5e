package commands

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultPermits is the capacity of a PermitPool created with a non-positive capacity.
const DefaultPermits = 100

// PermitPool bounds the number of enqueue operations in progress at once.
type PermitPool struct {
	sem         *semaphore.Weighted
	capacity    int64
	outstanding atomic.Int64
	acquired    atomic.Int64
}

// Permit is one unit of capacity drawn from a PermitPool.
type Permit struct {
	pool    *PermitPool
	release sync.Once
}

// NewPermitPool returns a pool of capacity permits. A capacity below 1 means
// DefaultPermits.
func NewPermitPool(capacity int) *PermitPool {
	if capacity < 1 {
		capacity = DefaultPermits
	}
	return &PermitPool{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire blocks until a permit is available or ctx is done.
func (p *PermitPool) Acquire(ctx context.Context) (*Permit, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return p.issue(), nil
}

// TryAcquire returns a permit only if one is available right now.
func (p *PermitPool) TryAcquire() (*Permit, bool) {
	if !p.sem.TryAcquire(1) {
		return nil, false
	}
	return p.issue(), true
}

func (p *PermitPool) issue() *Permit {
	p.outstanding.Add(1)
	p.acquired.Add(1)
	return &Permit{pool: p}
}

// Outstanding is the number of permits acquired and not yet released.
func (p *PermitPool) Outstanding() int {
	return int(p.outstanding.Load())
}

// Acquired is the number of permits ever acquired from the pool.
func (p *PermitPool) Acquired() int {
	return int(p.acquired.Load())
}

// Capacity is the number of permits the pool was created with.
func (p *PermitPool) Capacity() int {
	return int(p.capacity)
}

// Release returns the permit to its pool. Only the first call has any effect.
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.release.Do(func() {
		p.pool.outstanding.Add(-1)
		p.pool.sem.Release(1)
	})
}
