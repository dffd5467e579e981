package kernel

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// EighTop computes the r leading eigenpairs of the symmetric n×n row-major
// matrix g. It returns an n×r row-major matrix whose columns are the
// eigenvectors ordered by descending eigenvalue, and the matching
// eigenvalues. The factorization always runs in float64.
func EighTop[T Float](g []T, n, r int) ([]T, []float64, error) {
	if r < 1 || r > n {
		return nil, nil, errors.Errorf("eigh: rank %d out of range for %d×%d matrix", r, n, n)
	}
	if len(g) < n*n {
		return nil, nil, errors.Errorf("eigh: buffer holds %d elements, need %d", len(g), n*n)
	}

	gd := make([]float64, n*n)
	for i := range gd {
		gd[i] = float64(g[i])
	}

	var es mat.EigenSym
	if ok := es.Factorize(mat.NewSymDense(n, gd), true); !ok {
		return nil, nil, errors.New("eigh: symmetric eigendecomposition failed to converge")
	}

	var ev mat.Dense
	es.VectorsTo(&ev)
	all := es.Values(nil) // ascending

	vecs := make([]T, n*r)
	vals := make([]float64, r)
	for c := 0; c < r; c++ {
		src := n - 1 - c
		vals[c] = all[src]
		for row := 0; row < n; row++ {
			vecs[row*r+c] = T(ev.At(row, src))
		}
	}
	return vecs, vals, nil
}
