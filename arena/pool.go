package arena

import (
	"errors"
	"fmt"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/internal/contract"
)

// PoolSize is the number of scratch arenas owned by a Pool.
const PoolSize = 4

// ErrPoolInUse is returned by Pool.Close while scratches are still held.
var ErrPoolInUse = errors.New("arena: scratch pool still in use")

// PoolOptions configures NewPool. Arena applies to every slot; its Name is
// suffixed with the slot index.
type PoolOptions struct {
	Arena Options
}

// Pool is a fixed set of scratch arenas owned by one goroutine.
type Pool struct {
	arenas [PoolSize]*Arena
	inUse  [PoolSize]bool
	stack  []*Scratch // held scratches, in acquisition order
}

// Scratch is a borrowed pool arena. Release it on every exit path.
type Scratch struct {
	pool     *Pool
	slot     int
	mark     int
	released bool
}

// NewPool reserves PoolSize arenas.
func NewPool(opts PoolOptions) (*Pool, error) {
	name := opts.Arena.Name
	if name == "" {
		name = "scratch"
	}
	p := &Pool{stack: make([]*Scratch, 0, PoolSize)}
	for i := range p.arenas {
		o := opts.Arena
		o.Name = fmt.Sprintf("%s-%d", name, i)
		a, err := New(o)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.arenas[i] = a
	}
	return p, nil
}

// Acquire borrows the first unused arena that is not one of conflicts and
// captures its restore point. Pass the allocators the caller is already
// writing results into so scratch space never aliases them.
func (p *Pool) Acquire(conflicts ...alloc.Allocator) *Scratch {
	for i, a := range p.arenas {
		if a == nil {
			contract.Failf("pool.Acquire", "pool is closed")
		}
		if p.inUse[i] || conflictsWith(a, conflicts) {
			continue
		}
		p.inUse[i] = true
		s := &Scratch{pool: p, slot: i, mark: a.Mark()}
		p.stack = append(p.stack, s)
		return s
	}
	contract.Failf("pool.Acquire", "all %d scratch arenas are held (%d nested)", PoolSize, len(p.stack))
	return nil
}

// With runs fn with a scratch that is released when fn returns or panics.
func (p *Pool) With(fn func(s *Scratch), conflicts ...alloc.Allocator) {
	s := p.Acquire(conflicts...)
	defer s.Release()
	fn(s)
}

// Held returns the number of scratches currently acquired.
func (p *Pool) Held() int {
	return len(p.stack)
}

// Arena returns the arena in slot i.
func (p *Pool) Arena(i int) *Arena {
	contract.Index("pool.Arena", i, PoolSize)
	return p.arenas[i]
}

// Close releases every arena. It fails while scratches are held.
func (p *Pool) Close() error {
	if len(p.stack) > 0 {
		return fmt.Errorf("%w: %d held", ErrPoolInUse, len(p.stack))
	}
	var errs []error
	for i, a := range p.arenas {
		if a == nil {
			continue
		}
		errs = append(errs, a.Release())
		p.arenas[i] = nil
	}
	return errors.Join(errs...)
}

// Allocator returns the capability of the borrowed arena.
func (s *Scratch) Allocator() alloc.Allocator {
	return s.Arena().Allocator()
}

// Arena returns the borrowed arena.
func (s *Scratch) Arena() *Arena {
	if s.released {
		contract.Failf("scratch.Arena", "scratch used after Release")
	}
	return s.pool.arenas[s.slot]
}

// Slot returns the pool slot backing s.
func (s *Scratch) Slot() int { return s.slot }

// RestorePoint returns the arena cursor captured by Acquire.
func (s *Scratch) RestorePoint() int { return s.mark }

// Release rewinds the arena to the restore point and returns the slot to the
// pool. Scratches must be released in reverse acquisition order.
func (s *Scratch) Release() {
	p := s.pool
	if s.released {
		contract.Failf("scratch.Release", "slot %d released twice", s.slot)
	}
	if top := p.stack[len(p.stack)-1]; top != s {
		contract.Failf("scratch.Release", "slot %d released before slot %d", s.slot, top.slot)
	}
	p.arenas[s.slot].Reset(s.mark)
	p.inUse[s.slot] = false
	p.stack = p.stack[:len(p.stack)-1]
	s.released = true
}

func conflictsWith(a *Arena, conflicts []alloc.Allocator) bool {
	self := a.Allocator()
	for _, c := range conflicts {
		if c == self {
			return true
		}
	}
	return false
}
