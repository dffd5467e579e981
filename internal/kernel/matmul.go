package kernel

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// MatMul computes C = A·B for row-major contiguous matrices:
// A is m×k, B is k×n, C is m×n.
func MatMul[T Float](c, a, b []T, m, k, n int) {
	MatMulGeneral(c, a, b, m, n, k, false, false, k, n, n)
}

// MatMulNT computes C = A·Bᵀ for row-major contiguous matrices:
// A is m×k, B is n×k, C is m×n.
func MatMulNT[T Float](c, a, b []T, m, n, k int) {
	MatMulGeneral(c, a, b, m, n, k, false, true, k, k, n)
}

// MatMulGeneral computes C = op(A)·op(B) where op(A) is m×k and op(B) is
// k×n, with explicit leading dimensions so the operands and the result may
// be sub-blocks of larger row-major matrices. transA/transB select whether
// the stored matrix is the operand or its transpose.
func MatMulGeneral[T Float](c, a, b []T, m, n, k int, transA, transB bool, lda, ldb, ldc int) {
	if m == 0 || n == 0 {
		return
	}
	if k == 0 {
		for i := 0; i < m; i++ {
			row := c[i*ldc : i*ldc+n]
			for j := range row {
				row[j] = 0
			}
		}
		return
	}

	switch cs := any(c).(type) {
	case []float32:
		gemm32(cs, any(a).([]float32), any(b).([]float32), m, n, k, transA, transB, lda, ldb, ldc)
	case []float64:
		gemm64(cs, any(a).([]float64), any(b).([]float64), m, n, k, transA, transB, lda, ldb, ldc)
	default:
		panic(fmt.Sprintf("matmul: unsupported element type %T", c))
	}
}

func gemm32(c, a, b []float32, m, n, k int, transA, transB bool, lda, ldb, ldc int) {
	ta, am, an := blas.NoTrans, m, k
	if transA {
		ta, am, an = blas.Trans, k, m
	}
	tb, bm, bn := blas.NoTrans, k, n
	if transB {
		tb, bm, bn = blas.Trans, n, k
	}
	blas32.Gemm(ta, tb, 1,
		blas32.General{Rows: am, Cols: an, Stride: lda, Data: a},
		blas32.General{Rows: bm, Cols: bn, Stride: ldb, Data: b},
		0,
		blas32.General{Rows: m, Cols: n, Stride: ldc, Data: c})
}

func gemm64(c, a, b []float64, m, n, k int, transA, transB bool, lda, ldb, ldc int) {
	ta, am, an := blas.NoTrans, m, k
	if transA {
		ta, am, an = blas.Trans, k, m
	}
	tb, bm, bn := blas.NoTrans, k, n
	if transB {
		tb, bm, bn = blas.Trans, n, k
	}
	blas64.Gemm(ta, tb, 1,
		blas64.General{Rows: am, Cols: an, Stride: lda, Data: a},
		blas64.General{Rows: bm, Cols: bn, Stride: ldb, Data: b},
		0,
		blas64.General{Rows: m, Cols: n, Stride: ldc, Data: c})
}
