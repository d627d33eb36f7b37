package pcm

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// BytesPerSample is the width of one s16le sample.
const BytesPerSample = 2

// Frame is one block of interleaved samples across all channels.
type Frame []int16

// Chunker reads fixed-size frames from an io.Reader.
type Chunker struct {
	r       *bufio.Reader
	samples int
	buf     []byte
	done    bool
}

// NewChunker returns a Chunker that emits frames of frameSamples samples
// (frame size multiplied by channel count).
func NewChunker(r io.Reader, frameSamples int) (*Chunker, error) {
	if frameSamples <= 0 {
		return nil, fmt.Errorf("frame length must be positive, got %d samples", frameSamples)
	}
	return &Chunker{
		r:       bufio.NewReader(r),
		samples: frameSamples,
		buf:     make([]byte, frameSamples*BytesPerSample),
	}, nil
}

// Next returns the next frame. It returns io.EOF once the stream is
// exhausted. A short final frame is padded with silence. Read errors other
// than end of stream are returned wrapped.
func (c *Chunker) Next() (Frame, error) {
	if c.done {
		return nil, io.EOF
	}

	n, err := io.ReadFull(c.r, c.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.done = true
	default:
		c.done = true
		return nil, fmt.Errorf("read pcm: %w", err)
	}

	// A dangling odd byte cannot form a sample and is dropped.
	read := n / BytesPerSample
	if read == 0 {
		return nil, io.EOF
	}

	frame := make(Frame, c.samples)
	for i := range read {
		frame[i] = int16(binary.LittleEndian.Uint16(c.buf[i*BytesPerSample:]))
	}
	return frame, nil
}

// Frames calls fn with every frame in order until the stream ends or fn
// returns an error. End of stream is not an error.
func (c *Chunker) Frames(fn func(Frame) error) error {
	for {
		frame, err := c.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
}

// Bytes encodes samples as little-endian s16le bytes.
func Bytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*BytesPerSample:], uint16(s))
	}
	return buf
}
