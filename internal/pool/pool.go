// Package pool implements the Buffer Pool capability: fixed-size byte
// regions issued and reclaimed under a global capacity cap.
//
// This is the concrete default for the external collaborator the core
// spec treats as out of scope; the Stream Table only ever talks to it
// through Ref, never holding the Pool itself past a checkout.
package pool

import (
	"sync"

	"github.com/valyala/bytebufferpool"
)

// Pool hands out regionSize-byte Regions, refusing checkouts once
// capacity concurrently-outstanding regions are in use.
type Pool struct {
	mu         sync.Mutex
	allocator  bytebufferpool.Pool
	regionSize int
	capacity   int
	inUse      int
}

// New creates a Pool issuing regions of regionSize bytes, capped at
// capacity concurrent checkouts.
func New(regionSize, capacity int) *Pool {
	return &Pool{regionSize: regionSize, capacity: capacity}
}

// RegionSize reports the fixed size of every region this pool issues.
func (p *Pool) RegionSize() int { return p.regionSize }

// Checkout hands out one region, or false if the pool is at capacity.
func (p *Pool) Checkout() (*Region, bool) {
	p.mu.Lock()
	if p.inUse >= p.capacity {
		p.mu.Unlock()
		return nil, false
	}
	p.inUse++
	p.mu.Unlock()

	buf := p.allocator.Get()
	if cap(buf.B) < p.regionSize {
		buf.B = make([]byte, p.regionSize)
	} else {
		buf.B = buf.B[:p.regionSize]
	}
	return &Region{pool: p, buf: buf}, true
}

func (p *Pool) release(buf *bytebufferpool.ByteBuffer) {
	p.allocator.Put(buf)
	p.mu.Lock()
	p.inUse--
	p.mu.Unlock()
}

// InUse reports the number of regions currently checked out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Region is an exclusively-owned, fixed-size byte region checked out
// from a Pool. It is released exactly once, by its owning Stream.
type Region struct {
	pool     *Pool
	buf      *bytebufferpool.ByteBuffer
	released bool
}

// Bytes returns the region's backing storage. The slice is valid only
// until Release is called.
func (r *Region) Bytes() []byte { return r.buf.B }

// Release returns the region to its pool. Safe to call more than once.
func (r *Region) Release() {
	if r == nil || r.released {
		return
	}
	r.released = true
	r.pool.release(r.buf)
}

// Ref is a weak reference to a Pool: it never keeps a forcibly
// terminated pool's allocator reachable, so a torn-down pool cannot be
// resurrected by a late checkout.
type Ref struct {
	mu sync.Mutex
	p  *Pool
}

// NewRef wraps p in a weak handle.
func NewRef(p *Pool) *Ref {
	return &Ref{p: p}
}

// Upgrade returns the live pool, or false once Invalidate has run.
func (r *Ref) Upgrade() (*Pool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.p == nil {
		return nil, false
	}
	return r.p, true
}

// Invalidate severs the weak reference. Subsequent Upgrade calls fail.
func (r *Ref) Invalidate() {
	r.mu.Lock()
	r.p = nil
	r.mu.Unlock()
}
