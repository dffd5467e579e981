// Package comm implements an in-process SPMD message-passing runtime.
//
// A World is a fixed set of ranks, each driven by its own goroutine running
// identical control flow over distinct local data. Ranks talk through
// communicators: non-blocking point-to-point sends and receives plus the
// usual collectives (allreduce, allgather(v), gatherv, scatterv, bcast,
// reduce-scatter). Communicators can be split by color/key into
// subcommunicators, which is how process fibers and slabs are formed.
//
// Every collective is a rendezvous: all ranks of the communicator must reach
// the same call in the same order or the run deadlocks, exactly as in the
// message-passing model this package mirrors.
package comm

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Op identifies a reduction operation.
type Op int

// Supported reduction operations.
const (
	SUM Op = iota
	MAX
)

// String returns a human-readable name for the reduction op.
func (op Op) String() string {
	switch op {
	case SUM:
		return "sum"
	case MAX:
		return "max"
	default:
		return "unknown"
	}
}

// Number is the element constraint for reductions.
type Number interface {
	constraints.Integer | constraints.Float
}

// message is a posted point-to-point payload. The data slice is always a
// private copy made at post time.
type message struct {
	data any
}

// link is an unbounded FIFO queue for one (src, dst) rank pair. FIFO order
// is the only matching rule: there are no tags.
type link struct {
	mu   sync.Mutex
	cond *sync.Cond
	q    []message
}

func newLink() *link {
	l := &link{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *link) push(m message) {
	l.mu.Lock()
	l.q = append(l.q, m)
	l.mu.Unlock()
	l.cond.Signal()
}

func (l *link) pop() message {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.q) == 0 {
		l.cond.Wait()
	}
	m := l.q[0]
	l.q = l.q[1:]
	return m
}

// group is the state shared by all rank handles of one communicator.
type group struct {
	size  int
	links [][]*link // links[src][dst]

	// Rendezvous state for collectives. A group runs one collective at a
	// time; SPMD call ordering guarantees all ranks agree on which.
	mu      sync.Mutex
	cond    *sync.Cond
	parts   []any
	arrived int
	leaving int
	result  any
}

func newGroup(size int) *group {
	g := &group{
		size:  size,
		links: make([][]*link, size),
		parts: make([]any, size),
	}
	g.cond = sync.NewCond(&g.mu)
	for i := range g.links {
		g.links[i] = make([]*link, size)
		for j := range g.links[i] {
			g.links[i][j] = newLink()
		}
	}
	return g
}

// exchange is the rendezvous primitive under every collective: each rank
// deposits a contribution, the last rank to arrive runs combine over all of
// them, and every rank leaves with the combined result. The last rank to
// leave resets the slot for the next collective.
func (g *group) exchange(rank int, part any, combine func(parts []any) any) any {
	g.mu.Lock()
	defer g.mu.Unlock()

	// A rank may re-enter for the next collective while peers are still
	// draining the previous one.
	for g.leaving > 0 {
		g.cond.Wait()
	}

	g.parts[rank] = part
	g.arrived++
	if g.arrived == g.size {
		g.result = combine(g.parts)
		g.arrived = 0
		g.leaving = g.size
		g.cond.Broadcast()
	} else {
		for g.leaving == 0 {
			g.cond.Wait()
		}
	}

	res := g.result
	g.leaving--
	if g.leaving == 0 {
		for i := range g.parts {
			g.parts[i] = nil
		}
		g.result = nil
		g.cond.Broadcast()
	}
	return res
}

// Comm is one rank's handle on a communicator.
type Comm struct {
	g    *group
	rank int
}

// NewWorld creates a communicator over size ranks and returns one handle
// per rank, in rank order.
func NewWorld(size int) ([]*Comm, error) {
	if size <= 0 {
		return nil, errors.Errorf("comm: world size must be positive, got %d", size)
	}
	g := newGroup(size)
	comms := make([]*Comm, size)
	for r := range comms {
		comms[r] = &Comm{g: g, rank: r}
	}
	return comms, nil
}

// Rank returns this handle's rank within the communicator.
func (c *Comm) Rank() int {
	return c.rank
}

// Size returns the number of ranks in the communicator.
func (c *Comm) Size() int {
	return c.g.size
}

// Barrier blocks until every rank of the communicator has entered it.
func (c *Comm) Barrier() {
	c.g.exchange(c.rank, nil, func([]any) any { return nil })
}

// splitPart is one rank's contribution to a Split.
type splitPart struct {
	color int
	key   int
}

// Split partitions the communicator into disjoint subcommunicators, one per
// distinct color. Ranks sharing a color are ordered by (key, old rank).
// Collective: every rank must call it; the returned handle belongs to the
// subcommunicator of the caller's color.
func (c *Comm) Split(color, key int) *Comm {
	res := c.g.exchange(c.rank, splitPart{color: color, key: key}, func(parts []any) any {
		byColor := make(map[int][]int) // color -> old ranks
		for r, p := range parts {
			sp := p.(splitPart)
			byColor[sp.color] = append(byColor[sp.color], r)
		}
		handles := make([]*Comm, len(parts))
		for _, members := range byColor {
			sort.Slice(members, func(i, j int) bool {
				ki := parts[members[i]].(splitPart).key
				kj := parts[members[j]].(splitPart).key
				if ki != kj {
					return ki < kj
				}
				return members[i] < members[j]
			})
			sub := newGroup(len(members))
			for newRank, oldRank := range members {
				handles[oldRank] = &Comm{g: sub, rank: newRank}
			}
		}
		return handles
	})
	return res.([]*Comm)[c.rank]
}
