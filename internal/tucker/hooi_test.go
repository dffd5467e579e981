package tucker

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tucker-ml/tucker/internal/comm"
	"github.com/tucker-ml/tucker/internal/dist"
	"github.com/tucker-ml/tucker/internal/kernel"
	"github.com/tucker-ml/tucker/internal/shape"
	"github.com/tucker-ml/tucker/internal/tensor"
)

// Two orthonormal columns of length 4 used as the true factor on every mode.
var trueFactor = []float64{
	0.5, 0.5,
	0.5, -0.5,
	0.5, 0.5,
	0.5, -0.5,
}

// buildLowRank returns the dense 4×4×4 tensor G* ×_1 U* ×_2 U* ×_3 U* for a
// random 2×2×2 core.
func buildLowRank(rng *rand.Rand) []float64 {
	core := make([]float64, 8)
	kernel.Randn(core, rng)

	data := core
	sh := shape.Shape{2, 2, 2}
	for n := 0; n < 3; n++ {
		data, sh = refTTM(data, sh, trueFactor, 4, n)
	}
	return data
}

// subspaceError measures how far span(u) is from span(trueFactor):
// ‖UᵀU*U*ᵀU − I‖ per the recovered-subspace criterion.
func subspaceError(u []float64, in, r int) float64 {
	// p = U*ᵀ·U (r×r)
	p := make([]float64, r*r)
	kernel.MatMulGeneral(p, trueFactor, u, r, r, in, true, false, r, r, r)
	// q = pᵀ·p − I
	q := make([]float64, r*r)
	kernel.MatMulGeneral(q, p, p, r, r, r, true, false, r, r, r)
	for i := 0; i < r; i++ {
		q[i*r+i] -= 1
	}
	return kernel.FNorm(q, len(q))
}

// HOOI on a synthetic low-rank tensor must recover the true subspaces up to
// rotation, and the factors must stay column-orthonormal.
func TestHOOIRecoversLowRankTensor(t *testing.T) {
	dense := buildLowRank(rand.New(rand.NewSource(12345)))

	runWorld(t, 4, func(c *comm.Comm) {
		d, err := dist.NewCartesianBlock(shape.Shape{2, 2, 1}, c)
		if !assert.NoError(t, err) {
			return
		}
		rep, err := tensor.FromSlice(c, shape.Shape{4, 4, 4}, dense)
		if !assert.NoError(t, err) {
			return
		}
		a, err := tensor.Scatter(rep, d, 0)
		if !assert.NoError(t, err) {
			return
		}

		g, u, err := HOOIALS(a, shape.Shape{2, 2, 2}, 5)
		if !assert.NoError(t, err) {
			return
		}
		assert.True(t, g.ShapeGlobal().Equal(shape.Shape{2, 2, 2}))
		assert.Len(t, u, 3)

		for k, uk := range u {
			assert.True(t, uk.ShapeGlobal().Equal(shape.Shape{4, 2}))

			// Column orthonormality: UᵀU = I.
			gram := make([]float64, 4)
			kernel.MatMulGeneral(gram, uk.Data(), uk.Data(), 2, 2, 4, true, false, 2, 2, 2)
			gram[0] -= 1
			gram[3] -= 1
			assert.Lessf(t, kernel.FNorm(gram, 4), 1e-10, "mode %d orthonormality", k)

			assert.Lessf(t, subspaceError(uk.Data(), 4, 2), 1e-8, "mode %d subspace", k)
		}

		// A perfect rank-(2,2,2) tensor leaves no residual: the core
		// captures the full energy.
		normA, err := tensor.FNorm(a)
		if !assert.NoError(t, err) {
			return
		}
		normG, err := tensor.FNorm(g)
		if !assert.NoError(t, err) {
			return
		}
		assert.InDelta(t, normA*normA, normG*normG, 1e-8)
	})
}

// The captured energy must not decrease when iterating longer.
func TestHOOIResidualMonotone(t *testing.T) {
	dense := make([]float64, 4*4*4)
	kernel.Randn(dense, rand.New(rand.NewSource(999)))

	var norm1, norm5 float64
	for _, run := range []struct {
		iters int
		out   *float64
	}{{1, &norm1}, {5, &norm5}} {
		iters, out := run.iters, run.out
		runWorld(t, 2, func(c *comm.Comm) {
			d, err := dist.NewCartesianBlock(shape.Shape{2, 1, 1}, c)
			if !assert.NoError(t, err) {
				return
			}
			rep, err := tensor.FromSlice(c, shape.Shape{4, 4, 4}, dense)
			if !assert.NoError(t, err) {
				return
			}
			a, err := tensor.Scatter(rep, d, 0)
			if !assert.NoError(t, err) {
				return
			}
			g, _, err := HOOIALS(a, shape.Shape{2, 2, 2}, iters)
			if !assert.NoError(t, err) {
				return
			}
			// Collective: every rank joins the reduction.
			n, err := tensor.FNorm(g)
			if assert.NoError(t, err) && c.Rank() == 0 {
				*out = n
			}
		})
	}
	assert.GreaterOrEqual(t, norm5*norm5, norm1*norm1-1e-9)
}

func TestHOOIRejectsBadRanks(t *testing.T) {
	runWorld(t, 1, func(c *comm.Comm) {
		d, err := dist.NewCartesianBlock(shape.Shape{1, 1}, c)
		if !assert.NoError(t, err) {
			return
		}
		a, err := tensor.NewBlock[float64](d, shape.Shape{4, 4})
		if !assert.NoError(t, err) {
			return
		}
		a.Randn(rand.New(rand.NewSource(1)))

		_, _, err = HOOIALS(a, shape.Shape{2}, 1)
		assert.Error(t, err, "rank count mismatch")
		_, _, err = HOOIALS(a, shape.Shape{2, 5}, 1)
		assert.Error(t, err, "rank above mode extent")
		_, _, err = HOOIALS(a, shape.Shape{2, 0}, 1)
		assert.Error(t, err, "zero rank")
	})
}

// One-rank HOSVD sanity check: factors of a diagonal-structured matrix line
// up with the coordinate axes.
func TestHOSVDInitAxisAligned(t *testing.T) {
	runWorld(t, 1, func(c *comm.Comm) {
		d, err := dist.NewCartesianBlock(shape.Shape{1, 1}, c)
		if !assert.NoError(t, err) {
			return
		}
		a, err := tensor.NewBlock[float64](d, shape.Shape{3, 3})
		if !assert.NoError(t, err) {
			return
		}
		// diag(3, 1, 2): leading mode-0 singular vector is e_0.
		a.Data()[0], a.Data()[4], a.Data()[8] = 3, 1, 2

		_, u, err := HOOIALS(a, shape.Shape{1, 1}, 1)
		if !assert.NoError(t, err) {
			return
		}
		assert.InDelta(t, 1, math.Abs(u[0].Data()[0]), 1e-12)
		assert.InDelta(t, 0, u[0].Data()[1], 1e-12)
		assert.InDelta(t, 0, u[0].Data()[2], 1e-12)
	})
}
