// Package dist describes how a tensor's elements are laid out across the
// ranks of a communicator, and derives the process-fiber and slab
// subcommunicators the distributed kernels ride on.
package dist

import (
	"github.com/pkg/errors"

	"github.com/tucker-ml/tucker/internal/comm"
	"github.com/tucker-ml/tucker/internal/shape"
)

// Kind identifies a distribution variant. The set is closed: operations
// dispatch on it and reject combinations they do not cover.
type Kind int

// Supported distribution variants.
const (
	// Local data is private to one process; no communicator semantics.
	Local Kind = iota
	// Replicated data is held identically by every rank.
	Replicated
	// Cartesian data is block-partitioned over a process grid: each rank
	// owns the rectangular hyper-slab addressed by its grid coordinate.
	Cartesian
)

// String returns a human-readable variant name.
func (k Kind) String() string {
	switch k {
	case Local:
		return "local"
	case Replicated:
		return "replicated"
	case Cartesian:
		return "cartesian-block"
	default:
		return "unknown"
	}
}

// Distribution is the shared descriptor query set of the closed variant
// family.
type Distribution interface {
	Kind() Kind
	// LocalShape returns the per-mode extents rank owns of a tensor with
	// the given global shape.
	LocalShape(rank int, global shape.Shape) shape.Shape
	// LocalSize returns the number of elements rank owns.
	LocalSize(rank int, global shape.Shape) int
}

// LocalDist marks single-process data.
type LocalDist struct{}

// Kind returns Local.
func (LocalDist) Kind() Kind { return Local }

// LocalShape returns the global shape: local data is whole by definition.
func (LocalDist) LocalShape(_ int, global shape.Shape) shape.Shape { return global.Clone() }

// LocalSize returns the full element count.
func (LocalDist) LocalSize(_ int, global shape.Shape) int { return global.NumElements() }

// ReplicatedDist marks data every rank holds in full.
type ReplicatedDist struct{}

// Kind returns Replicated.
func (ReplicatedDist) Kind() Kind { return Replicated }

// LocalShape returns the global shape: every copy is whole.
func (ReplicatedDist) LocalShape(_ int, global shape.Shape) shape.Shape { return global.Clone() }

// LocalSize returns the full element count.
func (ReplicatedDist) LocalSize(_ int, global shape.Shape) int { return global.NumElements() }

// CartesianBlock partitions each mode k of a tensor into par[k] balanced
// contiguous blocks; rank r owns the block addressed by its grid coordinate,
// the row-major unravel of r over par. Lexicographic coordinate order equals
// rank order.
type CartesianBlock struct {
	par   shape.Shape
	world *comm.Comm
	coord []int

	// Fiber and slab subcommunicators per mode, built on first use. A
	// split is collective, so lazy construction stays deadlock-free only
	// because all ranks request the same mode at the same point of the
	// SPMD control flow.
	fibers []*comm.Comm
	slabs  []*comm.Comm
}

// NewCartesianBlock validates par against the communicator and binds the
// caller's grid coordinate.
func NewCartesianBlock(par shape.Shape, world *comm.Comm) (*CartesianBlock, error) {
	if err := par.Validate(); err != nil {
		return nil, errors.Wrap(err, "dist: invalid partition")
	}
	if par.NumElements() != world.Size() {
		return nil, errors.Errorf("dist: partition %v covers %d ranks, communicator has %d", par, par.NumElements(), world.Size())
	}
	d := &CartesianBlock{
		par:    par.Clone(),
		world:  world,
		fibers: make([]*comm.Comm, len(par)),
		slabs:  make([]*comm.Comm, len(par)),
	}
	d.coord = d.Coord(world.Rank())
	return d, nil
}

// Kind returns Cartesian.
func (d *CartesianBlock) Kind() Kind { return Cartesian }

// Par returns the process grid extents.
func (d *CartesianBlock) Par() shape.Shape { return d.par }

// Comm returns the communicator the grid is laid over.
func (d *CartesianBlock) Comm() *comm.Comm { return d.world }

// NDim returns the grid order.
func (d *CartesianBlock) NDim() int { return len(d.par) }

// Coord returns the grid coordinate of any rank: its row-major unravel
// over par.
func (d *CartesianBlock) Coord(rank int) []int {
	c := make([]int, len(d.par))
	d.par.Unravel(rank, c)
	return c
}

// LocalShape returns the block extents rank owns of a tensor with the given
// global shape.
func (d *CartesianBlock) LocalShape(rank int, global shape.Shape) shape.Shape {
	c := d.Coord(rank)
	local := make(shape.Shape, len(global))
	for k := range global {
		local[k] = shape.BlockLen(global[k], d.par[k], c[k])
	}
	return local
}

// LocalSize returns the number of elements rank owns.
func (d *CartesianBlock) LocalSize(rank int, global shape.Shape) int {
	return d.LocalShape(rank, global).NumElements()
}

// BlockRange returns the half-open global index range [lo, hi) rank owns
// along mode n.
func (d *CartesianBlock) BlockRange(rank int, global shape.Shape, n int) (lo, hi int) {
	c := d.Coord(rank)
	return shape.BlockLow(global[n], d.par[n], c[n]), shape.BlockHigh(global[n], d.par[n], c[n])
}

// ProcessFiber returns (slabColor, fiberRank) for mode n: fiberRank is the
// caller's coordinate along n, and slabColor encodes the other N−1
// coordinates as a mixed-radix integer over par with mode n removed. Ranks
// sharing a slabColor form the fiber along mode n.
func (d *CartesianBlock) ProcessFiber(n int) (slabColor, fiberRank int) {
	for k := range d.par {
		if k == n {
			continue
		}
		slabColor = slabColor*d.par[k] + d.coord[k]
	}
	return slabColor, d.coord[n]
}

// FiberComm returns the subcommunicator of the mode-n fiber: the ranks
// whose coordinates differ only in coordinate n, ordered by that
// coordinate. Built lazily on first request and cached.
func (d *CartesianBlock) FiberComm(n int) *comm.Comm {
	if d.fibers[n] == nil {
		slabColor, fiberRank := d.ProcessFiber(n)
		d.fibers[n] = d.world.Split(slabColor, fiberRank)
	}
	return d.fibers[n]
}

// SlabComm returns the complementary subcommunicator of FiberComm(n): the
// ranks sharing the caller's coordinate n, forming the slab perpendicular
// to the mode. Built lazily on first request and cached.
func (d *CartesianBlock) SlabComm(n int) *comm.Comm {
	if d.slabs[n] == nil {
		slabColor, fiberRank := d.ProcessFiber(n)
		d.slabs[n] = d.world.Split(fiberRank, slabColor)
	}
	return d.slabs[n]
}
