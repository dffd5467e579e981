// Package tucker implements the distributed Tucker decomposition: the
// tensor-times-matrix and Gram kernels over a Cartesian block distribution,
// and the HOOI alternating-least-squares driver on top of them.
package tucker

import (
	"github.com/pkg/errors"

	"github.com/tucker-ml/tucker/internal/comm"
	"github.com/tucker-ml/tucker/internal/dist"
	"github.com/tucker-ml/tucker/internal/kernel"
	"github.com/tucker-ml/tucker/internal/shape"
	"github.com/tucker-ml/tucker/internal/tensor"
)

// otherSize returns the product of local extents over all modes but n.
func otherSize(local shape.Shape, n int) int {
	l := 1
	for k := range local {
		if k != n {
			l *= local[k]
		}
	}
	return l
}

// TTM computes the mode-n product A ×_n M. A must be block-distributed and M
// a replicated J×I_n matrix with I_n matching A's global mode-n extent. The
// result keeps A's partition grid, with mode n resized to J under the same
// balanced block map.
//
// The kernel runs a ring over the mode-n process fiber: partial output
// blocks rotate rank to rank while each rank folds in the contribution of
// its own slab of A, overlapping the local GEMM with the in-flight
// exchange. After P_n steps each rank holds exactly its own output block.
func TTM[T tensor.Float](a, m *tensor.Tensor[T], n int) (*tensor.Tensor[T], error) {
	d, ok := a.Dist().(*dist.CartesianBlock)
	if !ok {
		return nil, errors.Errorf("ttm: tensor must be cartesian-block distributed, got %s", a.Dist().Kind())
	}
	if n < 0 || n >= a.NDim() {
		return nil, errors.Errorf("ttm: mode %d out of range for order-%d tensor", n, a.NDim())
	}
	if m.Dist().Kind() != dist.Replicated {
		return nil, errors.Errorf("ttm: factor must be replicated, got %s", m.Dist().Kind())
	}
	if m.NDim() != 2 {
		return nil, errors.Errorf("ttm: factor must be a matrix, got order %d", m.NDim())
	}
	in := a.ShapeGlobal()[n]
	j := m.ShapeGlobal()[0]
	if m.ShapeGlobal()[1] != in {
		return nil, errors.Errorf("ttm: factor is %v, mode %d has global extent %d", m.ShapeGlobal(), n, in)
	}

	outGlobal := a.ShapeGlobal().Clone()
	outGlobal[n] = j
	out, err := tensor.NewBlock[T](d, outGlobal)
	if err != nil {
		return nil, err
	}

	fc := d.FiberComm(n)
	p, r := fc.Size(), fc.Rank()
	local := a.Shape()
	aLen := local[n]
	aLo := shape.BlockLow(in, p, r)
	l := otherSize(local, n)

	abuf := make([]T, aLen*l)
	kernel.Tenmat(abuf, a.Data(), local, n)

	maxSeg := 0
	for c := 0; c < p; c++ {
		if seg := shape.BlockLen(j, p, c); seg > maxSeg {
			maxSeg = seg
		}
	}

	bufs := [2][]T{make([]T, maxSeg*l), make([]T, maxSeg*l)}
	partial := make([]T, maxSeg*l)
	next, prev := (r+1)%p, (r-1+p)%p

	var sreq, rreq *comm.Request
	for i := 0; i < p; i++ {
		// Output segment riding through this rank at step i; at the last
		// step it is the rank's own.
		k := ((r-i-1)%p + p) % p
		jLo := shape.BlockLow(j, p, k)
		jLen := shape.BlockLen(j, p, k)

		// partial = M[jLo:jLo+jLen, aLo:aLo+aLen] · A_(n), overlapping the
		// exchange posted at the previous step. An empty local slab still
		// contributes an explicit zero block to the rotating sum.
		if jLen > 0 {
			kernel.MatMulGeneral(partial, m.Data()[jLo*in+aLo:], abuf, jLen, l, aLen, false, false, in, l, l)
		}

		if i == 0 {
			kernel.Copy(bufs[0], partial, jLen*l)
		} else {
			if err := comm.Wait(sreq, rreq); err != nil {
				return nil, errors.Wrap(err, "ttm: ring exchange")
			}
			kernel.AddInplace(bufs[i%2], partial, jLen*l)
		}
		if i < p-1 {
			sreq = comm.ISend(fc, bufs[i%2], next)
			rreq = comm.IRecv(fc, bufs[(i+1)%2], prev)
		}
	}

	kernel.Matten(out.Data(), bufs[(p-1)%2], out.Shape(), n)
	return out, nil
}

// TTMC applies a sequence of mode products A ×_{modes[0]} ms[0] ×_{modes[1]}
// ms[1] ⋯ in the given order. Pure: the input tensor is never modified, and
// the result is always a fresh tensor.
func TTMC[T tensor.Float](a *tensor.Tensor[T], ms []*tensor.Tensor[T], modes []int) (*tensor.Tensor[T], error) {
	if len(ms) != len(modes) {
		return nil, errors.Errorf("ttmc: %d factors for %d modes", len(ms), len(modes))
	}
	y := a
	for i := range ms {
		var err error
		y, err = TTM(y, ms[i], modes[i])
		if err != nil {
			return nil, errors.Wrapf(err, "ttmc: factor %d along mode %d", i, modes[i])
		}
	}
	if y == a {
		return a.Clone(), nil
	}
	return y, nil
}
