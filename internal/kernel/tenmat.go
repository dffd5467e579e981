package kernel

import (
	"fmt"

	"github.com/tucker-ml/tucker/internal/parallel"
	"github.com/tucker-ml/tucker/internal/shape"
)

// Buffers are viewed as (outer, I_n, inner) where outer is the product of
// extents before mode n and inner the product after it. Mode-n
// matricization keeps the remaining modes in their row-major order, so a
// column index is the (outer, inner) pair with inner varying fastest. Tenmat
// and Matten are exact inverses under that convention, which is all the
// distributed kernels rely on; the convention never leaves local buffers.

func modeSplit(sh shape.Shape, n int) (outer, extent, inner int) {
	if n < 0 || n >= len(sh) {
		panic(fmt.Sprintf("tenmat: mode %d out of range for %dD shape", n, len(sh)))
	}
	outer, inner = 1, 1
	for k := 0; k < n; k++ {
		outer *= sh[k]
	}
	for k := n + 1; k < len(sh); k++ {
		inner *= sh[k]
	}
	return outer, sh[n], inner
}

// Tenmat writes the mode-n matricization of the row-major tensor src with
// shape sh into dst: an (sh[n] × rest) row-major matrix whose columns are
// the mode-n fibers.
func Tenmat[T Float](dst, src []T, sh shape.Shape, n int) {
	outer, extent, inner := modeSplit(sh, n)
	if outer == 1 {
		Copy(dst, src, extent*inner)
		return
	}
	cfg := parallel.DefaultConfig()
	parallel.For(outer*extent, func(t int) {
		o, i := t/extent, t%extent
		copy(dst[(i*outer+o)*inner:(i*outer+o)*inner+inner], src[(o*extent+i)*inner:(o*extent+i)*inner+inner])
	}, cfg)
}

// Tenmatt writes the transpose of the mode-n matricization: a
// (rest × sh[n]) row-major matrix. Useful when the consumer wants the fiber
// index contiguous per column without a second transpose pass.
func Tenmatt[T Float](dst, src []T, sh shape.Shape, n int) {
	outer, extent, inner := modeSplit(sh, n)
	cfg := parallel.DefaultConfig()
	parallel.For(outer*extent, func(t int) {
		o, i := t/extent, t%extent
		base := (o*extent + i) * inner
		for j := 0; j < inner; j++ {
			dst[(o*inner+j)*extent+i] = src[base+j]
		}
	}, cfg)
}

// Matten is the inverse of Tenmat: it folds the (sh[n] × rest) row-major
// matrix src back into the row-major tensor dst with shape sh.
func Matten[T Float](dst, src []T, sh shape.Shape, n int) {
	outer, extent, inner := modeSplit(sh, n)
	if outer == 1 {
		Copy(dst, src, extent*inner)
		return
	}
	cfg := parallel.DefaultConfig()
	parallel.For(outer*extent, func(t int) {
		o, i := t/extent, t%extent
		copy(dst[(o*extent+i)*inner:(o*extent+i)*inner+inner], src[(i*outer+o)*inner:(i*outer+o)*inner+inner])
	}, cfg)
}
