// Copyright 2025 Tucker ML Project. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package comm provides the public API for the in-process SPMD
// message-passing runtime: worlds of ranks driven by goroutines,
// communicator splitting, non-blocking point-to-point transfers, and the
// collective operations the distributed kernels are built on.
package comm

import (
	"github.com/tucker-ml/tucker/internal/comm"
)

// Comm is one rank's handle on a communicator.
type Comm = comm.Comm

// Request tracks a pending non-blocking operation.
type Request = comm.Request

// Op identifies a reduction operation.
type Op = comm.Op

// Supported reduction operations.
const (
	SUM Op = comm.SUM
	MAX Op = comm.MAX
)

// Number is the element constraint for reductions.
type Number = comm.Number

// NewWorld creates a communicator over size ranks and returns one handle
// per rank, in rank order.
func NewWorld(size int) ([]*Comm, error) {
	return comm.NewWorld(size)
}

// Wait waits on several requests and returns the first error encountered.
func Wait(reqs ...*Request) error {
	return comm.Wait(reqs...)
}

// ISend posts a non-blocking send of buf to rank to; the buffer is copied
// at post time.
func ISend[T any](c *Comm, buf []T, to int) *Request {
	return comm.ISend(c, buf, to)
}

// IRecv posts a non-blocking receive from rank from into buf.
func IRecv[T any](c *Comm, buf []T, from int) *Request {
	return comm.IRecv(c, buf, from)
}

// AllreduceInplace element-wise reduces buf across all ranks, leaving the
// result in buf everywhere.
func AllreduceInplace[T Number](c *Comm, buf []T, op Op) error {
	return comm.AllreduceInplace(c, buf, op)
}

// Bcast copies buf from root into buf on every other rank.
func Bcast[T any](c *Comm, buf []T, root int) error {
	return comm.Bcast(c, buf, root)
}

// Allgather concatenates equally sized send buffers in rank order into
// recv on every rank.
func Allgather[T any](c *Comm, send, recv []T) error {
	return comm.Allgather(c, send, recv)
}

// Allgatherv concatenates variably sized send buffers in rank order into
// recv on every rank.
func Allgatherv[T any](c *Comm, send, recv []T, counts []int) error {
	return comm.Allgatherv(c, send, recv, counts)
}

// Gatherv concatenates send buffers on root at the given displacements.
func Gatherv[T any](c *Comm, send, recv []T, counts, displs []int, root int) error {
	return comm.Gatherv(c, send, recv, counts, displs, root)
}

// Scatterv distributes segments of root's send buffer across the ranks.
func Scatterv[T any](c *Comm, send, recv []T, counts, displs []int, root int) error {
	return comm.Scatterv(c, send, recv, counts, displs, root)
}

// ReduceScatter reduces the full send buffers and scatters the result by
// segment.
func ReduceScatter[T Number](c *Comm, send, recv []T, counts []int, op Op) error {
	return comm.ReduceScatter(c, send, recv, counts, op)
}
