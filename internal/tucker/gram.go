package tucker

import (
	"github.com/pkg/errors"

	"github.com/tucker-ml/tucker/internal/comm"
	"github.com/tucker-ml/tucker/internal/dist"
	"github.com/tucker-ml/tucker/internal/kernel"
	"github.com/tucker-ml/tucker/internal/shape"
	"github.com/tucker-ml/tucker/internal/tensor"
)

// Gram computes the mode-n Gram matrix A_(n)·A_(n)ᵀ of a block-distributed
// tensor. The result is a replicated I_n×I_n symmetric matrix.
func Gram[T tensor.Float](a *tensor.Tensor[T], n int) (*tensor.Tensor[T], error) {
	return TTTExcept(a, a, n)
}

// TTTExcept computes A_(n)·B_(n)ᵀ for two block-distributed tensors that
// agree on every mode and every local extent except possibly mode n. The
// result is a replicated I_n^A×I_n^B matrix.
//
// The kernel rotates B's matricized blocks around the mode-n process fiber
// while each rank multiplies them against its own matricized slab of A,
// staging partial rows in a local buffer laid out over B's full mode-n
// extent. The staged rows are then summed across the perpendicular slab and
// allgathered along the fiber, leaving the full product on every rank.
func TTTExcept[T tensor.Float](a, b *tensor.Tensor[T], n int) (*tensor.Tensor[T], error) {
	da, ok := a.Dist().(*dist.CartesianBlock)
	if !ok {
		return nil, errors.Errorf("ttt: first tensor must be cartesian-block distributed, got %s", a.Dist().Kind())
	}
	db, ok := b.Dist().(*dist.CartesianBlock)
	if !ok {
		return nil, errors.Errorf("ttt: second tensor must be cartesian-block distributed, got %s", b.Dist().Kind())
	}
	if n < 0 || n >= a.NDim() {
		return nil, errors.Errorf("ttt: mode %d out of range for order-%d tensor", n, a.NDim())
	}
	if !da.Par().Equal(db.Par()) {
		return nil, errors.Errorf("ttt: partition grids differ: %v vs %v", da.Par(), db.Par())
	}
	for k := range a.ShapeGlobal() {
		if k == n {
			continue
		}
		if a.ShapeGlobal()[k] != b.ShapeGlobal()[k] || a.Shape()[k] != b.Shape()[k] {
			return nil, errors.Errorf("ttt: tensors must agree on every mode but %d: %v vs %v", n, a.ShapeGlobal(), b.ShapeGlobal())
		}
	}

	fc := da.FiberComm(n)
	sc := da.SlabComm(n)
	p, r := fc.Size(), fc.Rank()

	l := otherSize(a.Shape(), n)
	aRows, bRows := a.Shape()[n], b.Shape()[n]
	inA, inB := a.ShapeGlobal()[n], b.ShapeGlobal()[n]

	abuf := make([]T, aRows*l)
	kernel.Tenmat(abuf, a.Data(), a.Shape(), n)
	bbuf := make([]T, bRows*l)
	kernel.Tenmat(bbuf, b.Data(), b.Shape(), n)

	// Every fiber member sizes the rotating buffers to the largest peer
	// block so any of them fits on arrival.
	maxSize, err := comm.AllreduceScalar(fc, bRows*l, comm.MAX)
	if err != nil {
		return nil, errors.Wrap(err, "ttt: buffer sizing")
	}
	bufs := [2][]T{make([]T, maxSize), make([]T, maxSize)}
	kernel.Copy(bufs[0], bbuf, bRows*l)

	// Per-peer row counts along the fiber, and the column offsets of each
	// peer's block in the staging buffer.
	bRowLen := make([]int, p)
	if err := comm.Allgather(fc, []int{bRows}, bRowLen); err != nil {
		return nil, errors.Wrap(err, "ttt: row-length exchange")
	}
	aRowLen := make([]int, p)
	if err := comm.Allgather(fc, []int{aRows}, aRowLen); err != nil {
		return nil, errors.Wrap(err, "ttt: row-length exchange")
	}
	colOff := make([]int, p)
	for q := 1; q < p; q++ {
		colOff[q] = colOff[q-1] + bRowLen[q-1]
	}

	// Staging area: this rank's rows of the product, over B's full extent.
	gramBuf := make([]T, aRows*inB)

	next, prev := (r+1)%p, (r-1+p)%p
	var sreq, rreq *comm.Request
	for i := 0; i < p; i++ {
		// B block in hand at step i.
		q := ((r-i)%p + p) % p
		if i > 0 {
			if err := comm.Wait(sreq, rreq); err != nil {
				return nil, errors.Wrap(err, "ttt: ring exchange")
			}
		}
		if i < p-1 {
			sreq = comm.ISend(fc, bufs[i%2], next)
			rreq = comm.IRecv(fc, bufs[(i+1)%2], prev)
		}
		// gramBuf[:, colOff[q] : colOff[q]+bRowLen[q]] = A_(n) · blockᵀ,
		// overlapping the rotation just posted.
		if aRows > 0 && bRowLen[q] > 0 {
			kernel.MatMulGeneral(gramBuf[colOff[q]:], abuf, bufs[i%2], aRows, bRowLen[q], l, false, true, l, l, inB)
		}
	}

	// Each slab holds a partial product over its share of the contracted
	// modes; summing across the slab completes this rank's rows.
	if err := comm.AllreduceInplace(sc, gramBuf, comm.SUM); err != nil {
		return nil, errors.Wrap(err, "ttt: slab reduction")
	}

	// Replicate: concatenating the fiber members' row blocks in fiber-rank
	// order is exactly the row-major product matrix.
	out, err := tensor.NewReplicated[T](a.Comm(), shape.Shape{inA, inB})
	if err != nil {
		return nil, err
	}
	counts := make([]int, p)
	for q := range counts {
		counts[q] = aRowLen[q] * inB
	}
	if err := comm.Allgatherv(fc, gramBuf, out.Data(), counts); err != nil {
		return nil, errors.Wrap(err, "ttt: row replication")
	}
	return out, nil
}
