package tucker

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/tucker-ml/tucker/internal/kernel"
	"github.com/tucker-ml/tucker/internal/shape"
	"github.com/tucker-ml/tucker/internal/summary"
	"github.com/tucker-ml/tucker/internal/tensor"
)

// transposed returns a replicated copy of Uᵀ, ready to contract a mode down
// to the factor's rank.
func transposed[T tensor.Float](u *tensor.Tensor[T]) (*tensor.Tensor[T], error) {
	sh := u.ShapeGlobal()
	ut := make([]T, len(u.Data()))
	kernel.Transpose(ut, u.Data(), sh[0], sh[1])
	return tensor.FromSlice(u.Comm(), shape.Shape{sh[1], sh[0]}, ut)
}

// phaseTimer records into the summary registry only when enabled. The
// registry is shared by every in-process rank, so only rank 0 records;
// phases are collective, making its timings representative.
func phaseTimer(enabled bool, name string) func() {
	if !enabled {
		return func() {}
	}
	return summary.Time(name)
}

// updateFactor extracts the leading eigenvectors of the replicated mode-n
// Gram matrix g and rebuilds the factor as a replicated I_n×R_n matrix. The
// second return is the captured energy, the sum of the kept eigenvalues.
func updateFactor[T tensor.Float](g *tensor.Tensor[T], rank int, timed bool) (*tensor.Tensor[T], float64, error) {
	in := g.ShapeGlobal()[0]
	stop := phaseTimer(timed, "eigh")
	vecs, vals, err := kernel.EighTop(g.Data(), in, rank)
	stop()
	if err != nil {
		return nil, 0, err
	}
	energy := 0.0
	for _, v := range vals {
		energy += v
	}
	u, err := tensor.FromSlice(g.Comm(), shape.Shape{in, rank}, vecs)
	if err != nil {
		return nil, 0, err
	}
	return u, energy, nil
}

// HOOIALS runs iters sweeps of higher-order orthogonal iteration on the
// block-distributed tensor a, targeting the given Tucker ranks. It returns
// the core tensor G, block-distributed under a's grid, and the replicated
// orthonormal factor matrices U_1…U_N.
//
// The factors are initialised with one HOSVD sweep. Each HOOI sweep then
// walks the modes in ascending order; for mode n the residual
// Y = A ×_{k≠n} U_kᵀ is built by TTM chaining over k ≠ n, ascending — the
// fixed order keeps floating-point rounding identical on every rank.
func HOOIALS[T tensor.Float](a *tensor.Tensor[T], ranks shape.Shape, iters int) (*tensor.Tensor[T], []*tensor.Tensor[T], error) {
	n := a.NDim()
	if len(ranks) != n {
		return nil, nil, errors.Errorf("hooi: %d ranks for an order-%d tensor", len(ranks), n)
	}
	for k, r := range ranks {
		if r < 1 || r > a.ShapeGlobal()[k] {
			return nil, nil, errors.Errorf("hooi: rank %d out of range [1, %d] for mode %d", r, a.ShapeGlobal()[k], k)
		}
	}

	rank0 := a.Comm().Rank() == 0
	normA, err := tensor.FNorm(a)
	if err != nil {
		return nil, nil, err
	}

	// HOSVD sweep: mode-k Gram of A, leading R_k eigenvectors.
	u := make([]*tensor.Tensor[T], n)
	for k := 0; k < n; k++ {
		stop := phaseTimer(rank0, "hosvd")
		g, err := Gram(a, k)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "hooi: hosvd gram of mode %d", k)
		}
		u[k], _, err = updateFactor(g, ranks[k], rank0)
		stop()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "hooi: hosvd factor of mode %d", k)
		}
	}

	for it := 1; it <= iters; it++ {
		for mode := 0; mode < n; mode++ {
			stop := phaseTimer(rank0, "ttm-chain")
			y := a
			for k := 0; k < n; k++ {
				if k == mode {
					continue
				}
				ut, err := transposed(u[k])
				if err != nil {
					return nil, nil, err
				}
				y, err = TTM(y, ut, k)
				if err != nil {
					return nil, nil, errors.Wrapf(err, "hooi: iteration %d mode %d contraction along %d", it, mode, k)
				}
			}
			stop()

			stop = phaseTimer(rank0, "gram")
			g, err := Gram(y, mode)
			stop()
			if err != nil {
				return nil, nil, errors.Wrapf(err, "hooi: iteration %d gram of mode %d", it, mode)
			}

			var energy float64
			u[mode], energy, err = updateFactor(g, ranks[mode], rank0)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "hooi: iteration %d factor of mode %d", it, mode)
			}
			if rank0 {
				klog.V(1).Infof("hooi iter %d mode %d: residual %.6e", it, mode, normA*normA-energy)
			}
		}
	}

	// Core: contract every mode with its factor transpose.
	stop := phaseTimer(rank0, "core")
	uts := make([]*tensor.Tensor[T], n)
	modes := make([]int, n)
	for k := 0; k < n; k++ {
		ut, err := transposed(u[k])
		if err != nil {
			return nil, nil, err
		}
		uts[k], modes[k] = ut, k
	}
	g, err := TTMC(a, uts, modes)
	stop()
	if err != nil {
		return nil, nil, errors.Wrap(err, "hooi: core contraction")
	}

	// Collective: every rank participates in the norm reduction.
	normG, err := tensor.FNorm(g)
	if err != nil {
		return nil, nil, err
	}
	if rank0 {
		klog.Infof("hooi done: |A|^2 = %.6e, |G|^2 = %.6e, residual %.6e", normA*normA, normG*normG, normA*normA-normG*normG)
	}
	return g, u, nil
}
