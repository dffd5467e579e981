// Package tensor provides the dense N-dimensional tensor the distributed
// kernels operate on. A tensor owns a contiguous row-major local buffer and
// carries its global shape, its distribution descriptor, and the
// communicator the distribution is laid over; descriptors and communicators
// are shared handles, not owned.
package tensor

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/tucker-ml/tucker/internal/comm"
	"github.com/tucker-ml/tucker/internal/dist"
	"github.com/tucker-ml/tucker/internal/kernel"
	"github.com/tucker-ml/tucker/internal/shape"
)

// Float is the element constraint for tensors.
type Float = kernel.Float

// Tensor is a dense tensor of element type T. Depending on its
// distribution, the local buffer holds either the caller's block of the
// global index space (CartesianBlock) or a full copy (Replicated, Local).
type Tensor[T Float] struct {
	data   []T
	global shape.Shape
	local  shape.Shape
	dist   dist.Distribution
	comm   *comm.Comm
}

// NewBlock allocates a block-distributed tensor over the grid d: the caller
// holds exactly its hyper-slab of the global shape.
func NewBlock[T Float](d *dist.CartesianBlock, global shape.Shape) (*Tensor[T], error) {
	if err := global.Validate(); err != nil {
		return nil, errors.Wrap(err, "tensor: invalid global shape")
	}
	if len(global) != d.NDim() {
		return nil, errors.Errorf("tensor: %dD shape over %dD process grid", len(global), d.NDim())
	}
	local := d.LocalShape(d.Comm().Rank(), global)
	return &Tensor[T]{
		data:   make([]T, local.NumElements()),
		global: global.Clone(),
		local:  local,
		dist:   d,
		comm:   d.Comm(),
	}, nil
}

// NewReplicated allocates a replicated tensor: every rank of c holds an
// identical full copy.
func NewReplicated[T Float](c *comm.Comm, global shape.Shape) (*Tensor[T], error) {
	if err := global.Validate(); err != nil {
		return nil, errors.Wrap(err, "tensor: invalid global shape")
	}
	return &Tensor[T]{
		data:   make([]T, global.NumElements()),
		global: global.Clone(),
		local:  global.Clone(),
		dist:   dist.ReplicatedDist{},
		comm:   c,
	}, nil
}

// FromSlice builds a replicated tensor from data, which must match the
// global element count. The slice is copied.
func FromSlice[T Float](c *comm.Comm, global shape.Shape, data []T) (*Tensor[T], error) {
	t, err := NewReplicated[T](c, global)
	if err != nil {
		return nil, err
	}
	if len(data) != len(t.data) {
		return nil, errors.Errorf("tensor: shape %v requires %d elements, got %d", global, len(t.data), len(data))
	}
	copy(t.data, data)
	return t, nil
}

// Data returns the local buffer. Modifications are visible to the tensor.
func (t *Tensor[T]) Data() []T { return t.data }

// Size returns the local element count.
func (t *Tensor[T]) Size() int { return len(t.data) }

// Shape returns the local extents.
func (t *Tensor[T]) Shape() shape.Shape { return t.local }

// ShapeGlobal returns the global extents.
func (t *Tensor[T]) ShapeGlobal() shape.Shape { return t.global }

// Dist returns the shared distribution descriptor.
func (t *Tensor[T]) Dist() dist.Distribution { return t.dist }

// Comm returns the communicator the tensor lives on.
func (t *Tensor[T]) Comm() *comm.Comm { return t.comm }

// NDim returns the tensor order.
func (t *Tensor[T]) NDim() int { return len(t.global) }

// Clone returns a deep copy of the tensor. The distribution descriptor and
// communicator are shared, matching their shared-handle lifecycle.
func (t *Tensor[T]) Clone() *Tensor[T] {
	cp := &Tensor[T]{
		data:   make([]T, len(t.data)),
		global: t.global.Clone(),
		local:  t.local.Clone(),
		dist:   t.dist,
		comm:   t.comm,
	}
	copy(cp.data, t.data)
	return cp
}

// Randn fills the local buffer with i.i.d. N(0, 1) samples. Seeding is the
// caller's concern; distributed fills want one stream per rank.
func (t *Tensor[T]) Randn(rng *rand.Rand) {
	kernel.Randn(t.data, rng)
}

// FNorm returns the Frobenius norm of the whole tensor. For a
// block-distributed tensor the squared local norms are summed across the
// communicator, so every rank returns the same value.
func FNorm[T Float](t *Tensor[T]) (float64, error) {
	sq := kernel.SumSquares(t.data, len(t.data))
	if t.dist.Kind() == dist.Cartesian {
		total, err := comm.AllreduceScalar(t.comm, sq, comm.SUM)
		if err != nil {
			return 0, errors.Wrap(err, "tensor: fnorm reduction")
		}
		sq = total
	}
	return math.Sqrt(sq), nil
}
