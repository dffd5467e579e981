package comm

import "github.com/pkg/errors"

// collErr carries a failure out of a combine function so that every rank of
// the collective observes the same error. Divergent error handling between
// ranks would deadlock the next collective.
type collErr struct {
	err error
}

func asErr(res any) error {
	if e, ok := res.(collErr); ok {
		return e.err
	}
	return nil
}

// prefix returns the exclusive prefix sums of counts.
func prefix(counts []int) []int {
	displs := make([]int, len(counts))
	sum := 0
	for i, n := range counts {
		displs[i] = sum
		sum += n
	}
	return displs
}

func reduceInto[T Number](dst, src []T, op Op) {
	switch op {
	case SUM:
		for i := range dst {
			dst[i] += src[i]
		}
	case MAX:
		for i := range dst {
			if src[i] > dst[i] {
				dst[i] = src[i]
			}
		}
	}
}

// combineReduce element-wise reduces equally sized contributions.
func combineReduce[T Number](parts []any, op Op) any {
	first := parts[0].([]T)
	out := make([]T, len(first))
	copy(out, first)
	for r := 1; r < len(parts); r++ {
		p := parts[r].([]T)
		if len(p) != len(out) {
			return collErr{errors.Errorf("comm: %s reduce length mismatch: rank %d has %d elements, rank 0 has %d", op, r, len(p), len(out))}
		}
		reduceInto(out, p, op)
	}
	return out
}

// AllreduceInplace element-wise reduces buf across all ranks and leaves the
// result in buf on every rank.
func AllreduceInplace[T Number](c *Comm, buf []T, op Op) error {
	res := c.g.exchange(c.rank, buf, func(parts []any) any {
		return combineReduce[T](parts, op)
	})
	if err := asErr(res); err != nil {
		return err
	}
	copy(buf, res.([]T))
	return nil
}

// AllreduceScalar reduces a single value across all ranks.
func AllreduceScalar[T Number](c *Comm, v T, op Op) (T, error) {
	buf := []T{v}
	if err := AllreduceInplace(c, buf, op); err != nil {
		return v, err
	}
	return buf[0], nil
}

// Bcast copies buf from root into buf on every other rank.
func Bcast[T any](c *Comm, buf []T, root int) error {
	if root < 0 || root >= c.g.size {
		return errors.Errorf("comm: bcast root %d outside communicator of size %d", root, c.g.size)
	}
	res := c.g.exchange(c.rank, buf, func(parts []any) any {
		return parts[root]
	})
	if err := asErr(res); err != nil {
		return err
	}
	src := res.([]T)
	if len(src) != len(buf) {
		return errors.Errorf("comm: bcast length mismatch: %d vs %d at root", len(buf), len(src))
	}
	if c.rank != root {
		copy(buf, src)
	}
	return nil
}

// Allgather concatenates equally sized send buffers in rank order into recv
// on every rank. recv must hold Size()*len(send) elements.
func Allgather[T any](c *Comm, send, recv []T) error {
	counts := make([]int, c.g.size)
	for i := range counts {
		counts[i] = len(send)
	}
	return Allgatherv(c, send, recv, counts)
}

// Allgatherv concatenates variably sized send buffers in rank order into
// recv on every rank. counts[r] must equal rank r's send length, and recv
// must hold their sum.
func Allgatherv[T any](c *Comm, send, recv []T, counts []int) error {
	res := c.g.exchange(c.rank, send, func(parts []any) any {
		return combineConcat[T](parts, counts)
	})
	if err := asErr(res); err != nil {
		return err
	}
	out := res.([]T)
	if len(recv) < len(out) {
		return errors.Errorf("comm: allgatherv recv buffer too small: %d < %d", len(recv), len(out))
	}
	copy(recv, out)
	return nil
}

func combineConcat[T any](parts []any, counts []int) any {
	if len(counts) != len(parts) {
		return collErr{errors.Errorf("comm: gather counts length %d does not match communicator size %d", len(counts), len(parts))}
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	out := make([]T, 0, total)
	for r, p := range parts {
		s := p.([]T)
		if len(s) != counts[r] {
			return collErr{errors.Errorf("comm: gather count mismatch: rank %d sent %d elements, counts say %d", r, len(s), counts[r])}
		}
		out = append(out, s...)
	}
	return out
}

// Gatherv concatenates send buffers on root at the given displacements.
// Non-root ranks may pass a nil recv.
func Gatherv[T any](c *Comm, send, recv []T, counts, displs []int, root int) error {
	if root < 0 || root >= c.g.size {
		return errors.Errorf("comm: gatherv root %d outside communicator of size %d", root, c.g.size)
	}
	res := c.g.exchange(c.rank, send, func(parts []any) any {
		return combineConcat[T](parts, counts)
	})
	if err := asErr(res); err != nil {
		return err
	}
	if c.rank != root {
		return nil
	}
	out := res.([]T)
	off := 0
	for r, n := range counts {
		if displs[r]+n > len(recv) {
			return errors.Errorf("comm: gatherv recv buffer too small for rank %d at displacement %d", r, displs[r])
		}
		copy(recv[displs[r]:displs[r]+n], out[off:off+n])
		off += n
	}
	return nil
}

// Scatterv distributes segments of root's send buffer: rank r receives
// counts[r] elements starting at displs[r]. Non-root ranks may pass a nil
// send. Every rank supplies identical counts and displs.
func Scatterv[T any](c *Comm, send, recv []T, counts, displs []int, root int) error {
	if root < 0 || root >= c.g.size {
		return errors.Errorf("comm: scatterv root %d outside communicator of size %d", root, c.g.size)
	}
	res := c.g.exchange(c.rank, send, func(parts []any) any {
		return parts[root]
	})
	if err := asErr(res); err != nil {
		return err
	}
	src := res.([]T)
	if len(counts) != c.g.size || len(displs) != c.g.size {
		return errors.Errorf("comm: scatterv counts/displs must have one entry per rank")
	}
	n := counts[c.rank]
	if len(recv) < n {
		return errors.Errorf("comm: scatterv recv buffer too small: %d < %d", len(recv), n)
	}
	if displs[c.rank]+n > len(src) {
		return errors.Errorf("comm: scatterv send buffer too small for rank %d at displacement %d", c.rank, displs[c.rank])
	}
	copy(recv[:n], src[displs[c.rank]:displs[c.rank]+n])
	return nil
}

// ReduceScatter element-wise reduces the full send buffers, then scatters
// the result: rank r receives the counts[r] elements of its segment.
func ReduceScatter[T Number](c *Comm, send, recv []T, counts []int, op Op) error {
	if len(counts) != c.g.size {
		return errors.Errorf("comm: reduce-scatter counts must have one entry per rank")
	}
	res := c.g.exchange(c.rank, send, func(parts []any) any {
		return combineReduce[T](parts, op)
	})
	if err := asErr(res); err != nil {
		return err
	}
	reduced := res.([]T)
	displs := prefix(counts)
	n := counts[c.rank]
	if len(recv) < n {
		return errors.Errorf("comm: reduce-scatter recv buffer too small: %d < %d", len(recv), n)
	}
	copy(recv[:n], reduced[displs[c.rank]:displs[c.rank]+n])
	return nil
}
