// Package pipeline wires the chunker, the encoding stage and the container
// writer into a three stage streaming pipeline.
//
// The caller's goroutine reads and chunks PCM; the encoder and the writer each
// run in their own goroutine. Stages are joined by single-producer,
// single-consumer channels, so packet N of the output always corresponds to
// frame N of the input. Closing the frame channel is the only completion
// signal: the encoder drains and closes the packet channel, the writer drains
// and flushes. The first stage error cancels the others.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/glizzus/dca/internal/pcm"
	"golang.org/x/sync/errgroup"
)

// DefaultQueueDepth bounds how far one stage may run ahead of the next.
const DefaultQueueDepth = 64

// FrameEncoder is the encoding stage. Run must close out before returning.
type FrameEncoder interface {
	Run(ctx context.Context, in <-chan []int16, out chan<- []byte) error
}

// PacketWriter is the container writing stage.
type PacketWriter interface {
	Run(ctx context.Context, in <-chan []byte) error
	Packets() int
	Bytes() int64
}

type Options struct {
	// FrameSamples is frame size times channel count.
	FrameSamples int
	// QueueDepth is the capacity of each inter-stage channel. Zero makes
	// every hand-off synchronous.
	QueueDepth int
}

// Stats summarises a completed run.
type Stats struct {
	Frames  int
	Packets int
	// Bytes is the container size, header included.
	Bytes int64
}

// Run streams src through encoder into writer and blocks until both stages
// have exited. On success every frame read has been encoded, written and
// flushed.
func Run(ctx context.Context, src io.Reader, encoder FrameEncoder, writer PacketWriter, opts Options) (*Stats, error) {
	if opts.QueueDepth < 0 {
		return nil, fmt.Errorf("queue depth must not be negative, got %d", opts.QueueDepth)
	}
	if opts.FrameSamples <= 0 {
		return nil, fmt.Errorf("frame length must be positive, got %d samples", opts.FrameSamples)
	}

	g, gctx := errgroup.WithContext(ctx)

	// An idle source must not hold the pipeline open after cancellation.
	chunker, err := pcm.NewChunker(newContextReader(gctx, src), opts.FrameSamples)
	if err != nil {
		return nil, err
	}

	frames := make(chan []int16, opts.QueueDepth)
	packets := make(chan []byte, opts.QueueDepth)

	g.Go(func() error {
		if err := encoder.Run(gctx, frames, packets); err != nil {
			return fmt.Errorf("encoder: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := writer.Run(gctx, packets); err != nil {
			return fmt.Errorf("writer: %w", err)
		}
		return nil
	})

	stats := &Stats{}
	feedErr := chunker.Frames(func(f pcm.Frame) error {
		select {
		case frames <- f:
			stats.Frames++
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	close(frames)
	slog.Debug("chunker finished", "frames", stats.Frames)

	waitErr := g.Wait()
	stats.Packets = writer.Packets()
	stats.Bytes = writer.Bytes()

	// A stage failure cancels gctx, which the chunker then reports as well;
	// the stage error is the cause.
	if waitErr != nil {
		return stats, waitErr
	}
	if feedErr != nil {
		if errors.Is(feedErr, context.Canceled) || errors.Is(feedErr, context.DeadlineExceeded) {
			return stats, feedErr
		}
		return stats, fmt.Errorf("chunker: %w", feedErr)
	}
	return stats, nil
}
