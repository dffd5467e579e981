// Copyright 2025 Tucker ML Project. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for distributed dense tensors:
// shapes, distribution descriptors over a process grid, and the tensor
// value type with its gather/scatter redistribution.
//
// Example:
//
//	world, _ := comm.NewWorld(4)
//	// on each rank's goroutine, with its own handle c:
//	d, _ := tensor.NewCartesianBlock(tensor.Shape{2, 2}, c)
//	a, _ := tensor.NewBlock[float64](d, tensor.Shape{100, 100})
//	a.Randn(rand.New(rand.NewSource(int64(c.Rank()))))
package tensor

import (
	"math/rand"

	"github.com/tucker-ml/tucker/internal/comm"
	"github.com/tucker-ml/tucker/internal/dist"
	"github.com/tucker-ml/tucker/internal/shape"
	"github.com/tucker-ml/tucker/internal/tensor"
)

// Shape represents the extents of a tensor, one entry per mode.
type Shape = shape.Shape

// Float is the element constraint for tensors: float32 or float64.
type Float = tensor.Float

// Tensor is a dense tensor whose local buffer holds either the caller's
// block of the global index space or a full replicated copy.
type Tensor[T Float] = tensor.Tensor[T]

// Distribution kinds.

// Kind identifies a distribution variant.
type Kind = dist.Kind

// Distribution variant constants.
const (
	Local      Kind = dist.Local
	Replicated Kind = dist.Replicated
	Cartesian  Kind = dist.Cartesian
)

// Distribution is the shared descriptor query set of the variant family.
type Distribution = dist.Distribution

// CartesianBlock partitions each mode into balanced contiguous blocks over
// a process grid.
type CartesianBlock = dist.CartesianBlock

// NewCartesianBlock validates the grid against the communicator and binds
// the caller's coordinate.
func NewCartesianBlock(par Shape, world *comm.Comm) (*CartesianBlock, error) {
	return dist.NewCartesianBlock(par, world)
}

// NewBlock allocates a block-distributed tensor over the grid d.
func NewBlock[T Float](d *CartesianBlock, global Shape) (*Tensor[T], error) {
	return tensor.NewBlock[T](d, global)
}

// NewReplicated allocates a tensor held in full by every rank of c.
func NewReplicated[T Float](c *comm.Comm, global Shape) (*Tensor[T], error) {
	return tensor.NewReplicated[T](c, global)
}

// FromSlice builds a replicated tensor from data, copying the slice.
func FromSlice[T Float](c *comm.Comm, global Shape, data []T) (*Tensor[T], error) {
	return tensor.FromSlice(c, global, data)
}

// Gather collapses a block-distributed tensor into a replicated one.
func Gather[T Float](a *Tensor[T]) (*Tensor[T], error) {
	return tensor.Gather(a)
}

// Scatter distributes a replicated tensor over the grid d, scattering from
// rank root. Inverse of Gather.
func Scatter[T Float](a *Tensor[T], d *CartesianBlock, root int) (*Tensor[T], error) {
	return tensor.Scatter(a, d, root)
}

// FNorm returns the Frobenius norm of the whole tensor; block-distributed
// tensors reduce across their communicator so every rank gets the same
// value.
func FNorm[T Float](t *Tensor[T]) (float64, error) {
	return tensor.FNorm(t)
}

// Randn fills a tensor's local buffer from the given source. Equivalent to
// t.Randn(rng); kept for symmetry with the constructors.
func Randn[T Float](t *Tensor[T], rng *rand.Rand) {
	t.Randn(rng)
}
