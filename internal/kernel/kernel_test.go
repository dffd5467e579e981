package kernel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/tucker-ml/tucker/internal/shape"
)

const eps = 1e-12

func almostEqual(t *testing.T, want, got, tol float64, msg string) {
	t.Helper()
	if math.Abs(want-got) > tol {
		t.Errorf("%s: want %v, got %v", msg, want, got)
	}
}

// Naive reference for C = A·B over dense row-major matrices.
func refMatMul(a, b []float64, m, n, k int) []float64 {
	c := make([]float64, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			s := 0.0
			for l := 0; l < k; l++ {
				s += a[i*k+l] * b[l*n+j]
			}
			c[i*n+j] = s
		}
	}
	return c
}

func TestMatMul(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m, k, n := 4, 3, 5
	a := make([]float64, m*k)
	b := make([]float64, k*n)
	Randn(a, rng)
	Randn(b, rng)

	c := make([]float64, m*n)
	MatMul(c, a, b, m, k, n)

	want := refMatMul(a, b, m, n, k)
	for i := range want {
		almostEqual(t, want[i], c[i], eps, "MatMul")
	}
}

func TestMatMulFloat32(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{5, 6, 7, 8}
	c := make([]float32, 4)
	MatMul(c, a, b, 2, 2, 2)
	want := []float32{19, 22, 43, 50}
	for i := range want {
		if c[i] != want[i] {
			t.Errorf("MatMul float32: c[%d] = %v, want %v", i, c[i], want[i])
		}
	}
}

func TestMatMulNT(t *testing.T) {
	// C = A·Bᵀ with A 2×3, B 2×3.
	a := []float64{1, 2, 3, 4, 5, 6}
	b := []float64{1, 0, 1, 0, 1, 0}
	c := make([]float64, 4)
	MatMulNT(c, a, b, 2, 2, 3)
	want := []float64{4, 2, 10, 5}
	for i := range want {
		almostEqual(t, want[i], c[i], eps, "MatMulNT")
	}
}

// Operands taken as sub-blocks of a larger matrix via leading dimensions,
// with a transposed right operand, the way the ring kernels call it.
func TestMatMulGeneralSubBlock(t *testing.T) {
	// M is 3×4; use the 2×2 block at rows 1..2, cols 1..2.
	mFull := []float64{
		0, 0, 0, 0,
		0, 1, 2, 0,
		0, 3, 4, 0,
	}
	// B is 2×2; op(B) = Bᵀ.
	b := []float64{5, 6, 7, 8}
	// C written into a 2×3 staging buffer at column 1.
	c := make([]float64, 6)

	MatMulGeneral(c[1:], mFull[1*4+1:], b, 2, 2, 2, false, true, 4, 2, 3)

	// [1 2; 3 4]·[5 7; 6 8] = [17 23; 39 53]
	want := []float64{0, 17, 23, 0, 39, 53}
	for i := range want {
		almostEqual(t, want[i], c[i], eps, "MatMulGeneral")
	}
}

func TestMatMulGeneralZeroK(t *testing.T) {
	c := []float64{1, 2, 3, 4}
	MatMulGeneral(c, nil, nil, 2, 2, 0, false, false, 1, 2, 2)
	for i, v := range c {
		if v != 0 {
			t.Errorf("zero-k GEMM must zero C, c[%d] = %v", i, v)
		}
	}
}

func TestTenmatMattenRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	sh := shape.Shape{3, 4, 5}
	src := make([]float64, sh.NumElements())
	Randn(src, rng)

	for n := 0; n < len(sh); n++ {
		matd := make([]float64, len(src))
		back := make([]float64, len(src))
		Tenmat(matd, src, sh, n)
		Matten(back, matd, sh, n)
		for i := range src {
			if back[i] != src[i] {
				t.Fatalf("mode %d: Matten(Tenmat(x)) != x at %d", n, i)
			}
		}
	}
}

func TestTenmatKnownLayout(t *testing.T) {
	// Tensor of shape (2, 2): mode-0 matricization is the matrix itself,
	// mode-1 matricization is its transpose.
	src := []float64{1, 2, 3, 4}
	sh := shape.Shape{2, 2}

	m0 := make([]float64, 4)
	Tenmat(m0, src, sh, 0)
	for i := range src {
		if m0[i] != src[i] {
			t.Fatalf("mode-0 matricization of a matrix must be the identity permutation")
		}
	}

	m1 := make([]float64, 4)
	Tenmat(m1, src, sh, 1)
	want := []float64{1, 3, 2, 4}
	for i := range want {
		if m1[i] != want[i] {
			t.Fatalf("mode-1 matricization = %v, want %v", m1, want)
		}
	}
}

func TestTenmattIsTransposedTenmat(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	sh := shape.Shape{2, 3, 4}
	src := make([]float64, sh.NumElements())
	Randn(src, rng)

	for n := 0; n < len(sh); n++ {
		rows := sh[n]
		cols := sh.NumElements() / rows

		a := make([]float64, len(src))
		at := make([]float64, len(src))
		Tenmat(a, src, sh, n)
		Tenmatt(at, src, sh, n)

		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				if a[i*cols+j] != at[j*rows+i] {
					t.Fatalf("mode %d: Tenmatt is not the transpose of Tenmat at (%d, %d)", n, i, j)
				}
			}
		}
	}
}

func TestTranspose(t *testing.T) {
	src := []float64{1, 2, 3, 4, 5, 6} // 2×3
	dst := make([]float64, 6)
	Transpose(dst, src, 2, 3)
	want := []float64{1, 4, 2, 5, 3, 6}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("Transpose = %v, want %v", dst, want)
		}
	}
}

func TestSumAndNorm(t *testing.T) {
	x := []float64{3, 4}
	almostEqual(t, 7, Sum(x, 2), eps, "Sum")
	almostEqual(t, 25, SumSquares(x, 2), eps, "SumSquares")
	almostEqual(t, 5, FNorm(x, 2), eps, "FNorm")
}

func TestEighTop(t *testing.T) {
	// [[2, 1], [1, 2]] has eigenpairs (3, [1 1]/√2) and (1, [1 -1]/√2).
	g := []float64{2, 1, 1, 2}
	vecs, vals, err := EighTop(g, 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	almostEqual(t, 3, vals[0], 1e-12, "leading eigenvalue")
	almostEqual(t, 1, vals[1], 1e-12, "second eigenvalue")

	s := 1 / math.Sqrt2
	// Columns are defined up to sign.
	almostEqual(t, s, math.Abs(vecs[0*2+0]), 1e-12, "v0[0]")
	almostEqual(t, s, math.Abs(vecs[1*2+0]), 1e-12, "v0[1]")
	almostEqual(t, vecs[0*2+0], vecs[1*2+0], 1e-12, "leading vector components agree")
	almostEqual(t, vecs[0*2+1], -vecs[1*2+1], 1e-12, "second vector components oppose")
}

func TestEighTopTruncated(t *testing.T) {
	// Diagonal matrix: top-1 eigenvector picks the largest diagonal entry.
	g := []float64{
		1, 0, 0,
		0, 5, 0,
		0, 0, 2,
	}
	vecs, vals, err := EighTop(g, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	almostEqual(t, 5, vals[0], 1e-12, "top eigenvalue")
	almostEqual(t, 1, math.Abs(vecs[1]), 1e-12, "mass on the second coordinate")
	almostEqual(t, 0, vecs[0], 1e-12, "no mass on the first coordinate")
	almostEqual(t, 0, vecs[2], 1e-12, "no mass on the third coordinate")
}

func TestEighTopBadRank(t *testing.T) {
	if _, _, err := EighTop([]float64{1}, 1, 2); err == nil {
		t.Fatal("rank larger than the matrix must fail")
	}
}
