package client

import (
	"github.com/pkg/errors"

	"async-http/engine"
	"async-http/lib/ds/queue"
)

var errSlotBookkeeping = errors.New("connection slot bookkeeping mismatch")

// connPool is a fixed-capacity arena of reusable conns. Slots are tracked by
// index: the free list and the bound set stay disjoint, verified on every
// acquire and release. Conns, and the engine handles they wrap, are created
// once and recycled, never reallocated.
type connPool struct {
	stash []conn

	free  *queue.CircularQueue[int]
	bound map[int]struct{}

	byHandle map[engine.Handle]*conn
}

func newConnPool(eng engine.Engine, capacity uint) *connPool {
	p := &connPool{
		stash:    make([]conn, capacity),
		free:     queue.NewCircular[int](capacity),
		bound:    make(map[int]struct{}, capacity),
		byHandle: make(map[engine.Handle]*conn, capacity),
	}

	for i := range p.stash {
		p.stash[i].handle = eng.NewHandle()
		p.stash[i].slot = i
		p.byHandle[p.stash[i].handle] = &p.stash[i]
		p.free.Enqueue(i)
	}

	return p
}

func (p *connPool) capacity() uint { return uint(len(p.stash)) }

// freeCount reports how many conns can currently be acquired. Callers check
// it before acquiring; a nil conn is the only exhaustion signal acquire
// gives.
func (p *connPool) freeCount() uint { return p.free.Len() }

// acquire returns a free conn, or nil when the pool is saturated. A non-nil
// error means the free/bound bookkeeping disagrees.
func (p *connPool) acquire() (*conn, error) {
	idx, err := p.free.Dequeue()
	if err != nil {
		return nil, nil
	}

	if _, ok := p.bound[idx]; ok {
		return nil, errors.Wrapf(errSlotBookkeeping, "slot %d is both free and bound", idx)
	}
	p.bound[idx] = struct{}{}

	return &p.stash[idx], nil
}

// release clears the conn's per-request state and returns its slot to the
// free set.
func (p *connPool) release(c *conn) error {
	if _, ok := p.bound[c.slot]; !ok {
		return errors.Wrapf(errSlotBookkeeping, "slot %d released while not bound", c.slot)
	}
	delete(p.bound, c.slot)

	c.clear()

	if !p.free.Enqueue(c.slot) {
		return errors.Wrapf(errSlotBookkeeping, "free list rejected slot %d", c.slot)
	}

	return nil
}

// lookup finds the conn owning an engine handle.
func (p *connPool) lookup(h engine.Handle) (*conn, bool) {
	c, ok := p.byHandle[h]
	return c, ok
}
