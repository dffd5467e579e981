// Package kernel implements the dense BLAS-level operations the distributed
// layers build on: GEMM variants backed by gonum, matricization and its
// inverse, elementwise helpers, Gaussian fills, and the truncated symmetric
// eigensolver. All kernels operate on local, contiguous, row-major buffers
// and are generic in the element type.
package kernel

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Float is the element constraint for all kernels.
type Float interface {
	constraints.Float
}

// Add writes a + b element-wise into c. All three must hold n elements.
func Add[T Float](c, a, b []T, n int) {
	for i := 0; i < n; i++ {
		c[i] = a[i] + b[i]
	}
}

// AddInplace accumulates src into dst element-wise over n elements.
func AddInplace[T Float](dst, src []T, n int) {
	for i := 0; i < n; i++ {
		dst[i] += src[i]
	}
}

// Copy copies n elements from src to dst.
func Copy[T Float](dst, src []T, n int) {
	copy(dst[:n], src[:n])
}

// Scale multiplies n elements of x by alpha in place.
func Scale[T Float](x []T, alpha T, n int) {
	for i := 0; i < n; i++ {
		x[i] *= alpha
	}
}

// Sum returns the sum of the n elements of x, accumulated in float64.
func Sum[T Float](x []T, n int) float64 {
	s := 0.0
	for i := 0; i < n; i++ {
		s += float64(x[i])
	}
	return s
}

// SumSquares returns the sum of squares of the n elements of x.
func SumSquares[T Float](x []T, n int) float64 {
	s := 0.0
	for i := 0; i < n; i++ {
		v := float64(x[i])
		s += v * v
	}
	return s
}

// FNorm returns the Frobenius norm of the n elements of x.
func FNorm[T Float](x []T, n int) float64 {
	return math.Sqrt(SumSquares(x, n))
}

// Transpose writes the n×m transpose of the m×n row-major matrix src
// into dst.
func Transpose[T Float](dst, src []T, m, n int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			dst[j*m+i] = src[i*n+j]
		}
	}
}
