// Copyright 2025 Tucker ML Project. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tucker provides the public API for the distributed Tucker
// decomposition: the tensor-times-matrix and Gram kernels and the HOOI
// alternating-least-squares driver.
//
// Example:
//
//	// on each rank's goroutine:
//	d, _ := tensor.NewCartesianBlock(par, c)
//	a, _ := tensor.NewBlock[float64](d, extents)
//	a.Randn(rng)
//	core, factors, err := tucker.HOOIALS(a, ranks, 5)
package tucker

import (
	"github.com/tucker-ml/tucker/internal/shape"
	"github.com/tucker-ml/tucker/internal/tensor"
	"github.com/tucker-ml/tucker/internal/tucker"
)

// TTM computes the mode-n product A ×_n M of a block-distributed tensor
// with a replicated matrix; the result keeps A's partition grid with mode n
// resized to M's row count.
func TTM[T tensor.Float](a, m *tensor.Tensor[T], n int) (*tensor.Tensor[T], error) {
	return tucker.TTM(a, m, n)
}

// TTMC applies a sequence of mode products in order. Pure: the input is
// never modified.
func TTMC[T tensor.Float](a *tensor.Tensor[T], ms []*tensor.Tensor[T], modes []int) (*tensor.Tensor[T], error) {
	return tucker.TTMC(a, ms, modes)
}

// Gram computes the mode-n Gram matrix A_(n)·A_(n)ᵀ as a replicated
// symmetric matrix.
func Gram[T tensor.Float](a *tensor.Tensor[T], n int) (*tensor.Tensor[T], error) {
	return tucker.Gram(a, n)
}

// TTTExcept computes A_(n)·B_(n)ᵀ for two block-distributed tensors agreeing
// on every mode but n.
func TTTExcept[T tensor.Float](a, b *tensor.Tensor[T], n int) (*tensor.Tensor[T], error) {
	return tucker.TTTExcept(a, b, n)
}

// HOOIALS runs iters sweeps of higher-order orthogonal iteration, returning
// the block-distributed core tensor and the replicated orthonormal factors.
func HOOIALS[T tensor.Float](a *tensor.Tensor[T], ranks shape.Shape, iters int) (*tensor.Tensor[T], []*tensor.Tensor[T], error) {
	return tucker.HOOIALS(a, ranks, iters)
}
