package tensor

import (
	"github.com/pkg/errors"

	"github.com/tucker-ml/tucker/internal/comm"
	"github.com/tucker-ml/tucker/internal/dist"
	"github.com/tucker-ml/tucker/internal/shape"
)

// blockCounts returns the per-rank element counts and displacements of the
// packed "contiguous blocks in rank order" layout.
func blockCounts(d *dist.CartesianBlock, global shape.Shape) (counts, displs []int) {
	size := d.Comm().Size()
	counts = make([]int, size)
	displs = make([]int, size)
	off := 0
	for r := 0; r < size; r++ {
		counts[r] = d.LocalSize(r, global)
		displs[r] = off
		off += counts[r]
	}
	return counts, displs
}

// packedToRowMajor scatters rank r's contiguous block from packed into the
// row-major global buffer, or the reverse when invert is set.
func packedToRowMajor[T Float](global, packed []T, d *dist.CartesianBlock, gshape shape.Shape, r, displ int, invert bool) {
	local := d.LocalShape(r, gshape)
	n := local.NumElements()
	if n == 0 {
		return
	}
	coord := d.Coord(r)
	lo := make([]int, len(gshape))
	for k := range gshape {
		lo[k] = shape.BlockLow(gshape[k], d.Par()[k], coord[k])
	}
	strides := gshape.Strides()

	lidx := make([]int, len(gshape))
	for i := 0; i < n; i++ {
		local.Unravel(i, lidx)
		goff := 0
		for k := range gshape {
			goff += (lo[k] + lidx[k]) * strides[k]
		}
		if invert {
			packed[displ+i] = global[goff]
		} else {
			global[goff] = packed[displ+i]
		}
	}
}

// Gather collapses a block-distributed tensor into a replicated one: the
// root gathers every rank's block, reorders the concatenation into global
// row-major order, and broadcasts the result. Every rank returns the full
// copy.
func Gather[T Float](a *Tensor[T]) (*Tensor[T], error) {
	d, ok := a.dist.(*dist.CartesianBlock)
	if !ok {
		return nil, errors.Errorf("tensor: gather needs a cartesian-block tensor, got %s", a.dist.Kind())
	}
	c := a.comm
	counts, displs := blockCounts(d, a.global)

	var packed []T
	if c.Rank() == 0 {
		packed = make([]T, a.global.NumElements())
	}
	if err := comm.Gatherv(c, a.data, packed, counts, displs, 0); err != nil {
		return nil, errors.Wrap(err, "tensor: gather")
	}

	out, err := NewReplicated[T](c, a.global)
	if err != nil {
		return nil, err
	}
	if c.Rank() == 0 {
		for r := 0; r < c.Size(); r++ {
			packedToRowMajor(out.data, packed, d, a.global, r, displs[r], false)
		}
	}
	if err := comm.Bcast(c, out.data, 0); err != nil {
		return nil, errors.Wrap(err, "tensor: gather broadcast")
	}
	return out, nil
}

// Scatter distributes a replicated (or root-local) tensor over the grid d:
// the root reorders its row-major buffer into per-rank contiguous blocks
// and scatters them. The source buffer is left intact. Inverse of Gather.
func Scatter[T Float](a *Tensor[T], d *dist.CartesianBlock, root int) (*Tensor[T], error) {
	if a.dist.Kind() == dist.Cartesian {
		return nil, errors.Errorf("tensor: scatter needs a replicated or local source, got %s", a.dist.Kind())
	}
	if len(a.global) != d.NDim() {
		return nil, errors.Errorf("tensor: %dD tensor over %dD process grid", len(a.global), d.NDim())
	}
	c := d.Comm()
	counts, displs := blockCounts(d, a.global)

	out, err := NewBlock[T](d, a.global)
	if err != nil {
		return nil, err
	}
	var packed []T
	if c.Rank() == root {
		packed = make([]T, a.global.NumElements())
		for r := 0; r < c.Size(); r++ {
			packedToRowMajor(a.data, packed, d, a.global, r, displs[r], true)
		}
	}
	if err := comm.Scatterv(c, packed, out.data, counts, displs, root); err != nil {
		return nil, errors.Wrap(err, "tensor: scatter")
	}
	return out, nil
}
