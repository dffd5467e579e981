package comm

import "github.com/pkg/errors"

// Request tracks a pending non-blocking operation.
type Request struct {
	done chan struct{}
	err  error
}

// Wait blocks until the operation completes and returns its error, if any.
func (r *Request) Wait() error {
	if r.done != nil {
		<-r.done
	}
	return r.err
}

// Wait waits on several requests and returns the first error encountered.
func Wait(reqs ...*Request) error {
	var first error
	for _, r := range reqs {
		if err := r.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// completed is the request returned by operations that finish at post time.
var completed = &Request{}

// ISend posts a non-blocking send of buf to rank to. The buffer is copied
// at post time, so the caller may overwrite it immediately; messages between
// a fixed (src, dst) pair are delivered in post order.
func ISend[T any](c *Comm, buf []T, to int) *Request {
	if to < 0 || to >= c.g.size {
		return &Request{err: errors.Errorf("comm: send to rank %d outside communicator of size %d", to, c.g.size)}
	}
	cp := make([]T, len(buf))
	copy(cp, buf)
	c.g.links[c.rank][to].push(message{data: cp})
	return completed
}

// IRecv posts a non-blocking receive from rank from into buf. The receive
// matches the oldest undelivered message on the (from, caller) link; the
// payload must fit in buf and have the same element type.
func IRecv[T any](c *Comm, buf []T, from int) *Request {
	r := &Request{done: make(chan struct{})}
	if from < 0 || from >= c.g.size {
		r.err = errors.Errorf("comm: recv from rank %d outside communicator of size %d", from, c.g.size)
		close(r.done)
		return r
	}
	go func() {
		defer close(r.done)
		m := c.g.links[from][c.rank].pop()
		src, ok := m.data.([]T)
		if !ok {
			r.err = errors.Errorf("comm: recv type mismatch: message holds %T", m.data)
			return
		}
		if len(src) > len(buf) {
			r.err = errors.Errorf("comm: recv buffer too small: %d < %d", len(buf), len(src))
			return
		}
		copy(buf, src)
	}()
	return r
}
