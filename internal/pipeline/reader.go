package pipeline

import (
	"context"
	"io"
)

type readResult struct {
	n   int
	err error
}

// contextReader lets a blocked Read return once ctx is done. The abandoned
// Read keeps running in the background until the source yields, so it
// reads into a private buffer rather than the caller's.
type contextReader struct {
	ctx     context.Context
	r       io.Reader
	buf     []byte
	results chan readResult
}

func newContextReader(ctx context.Context, r io.Reader) *contextReader {
	return &contextReader{
		ctx:     ctx,
		r:       r,
		results: make(chan readResult, 1),
	}
}

// Read never starts a new read once ctx is done, so at most one read is in
// flight and c.buf is only touched by it.
func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	if cap(c.buf) < len(p) {
		c.buf = make([]byte, len(p))
	}
	buf := c.buf[:len(p)]
	go func() {
		n, err := c.r.Read(buf)
		c.results <- readResult{n: n, err: err}
	}()

	select {
	case res := <-c.results:
		return copy(p, buf[:res.n]), res.err
	case <-c.ctx.Done():
		return 0, c.ctx.Err()
	}
}
