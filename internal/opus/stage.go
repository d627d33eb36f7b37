package opus

import (
	"context"
	"fmt"
	"log/slog"
)

// Run encodes frames from in and sends packets to out in the same order. It
// closes out when it returns, whether in was drained or an error occurred.
func (e *Encoder) Run(ctx context.Context, in <-chan []int16, out chan<- []byte) error {
	defer close(out)
	slog.Debug("encoder started",
		"sampleRate", e.settings.SampleRate,
		"channels", e.settings.Channels,
		"application", e.settings.Application,
		"bitrate", e.settings.Bitrate,
	)

	frames := 0
	for {
		var frame []int16
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-in:
			if !ok {
				slog.Debug("encoder drained", "frames", frames)
				return nil
			}
			frame = f
		}

		packet, err := e.Encode(frame)
		if err != nil {
			return fmt.Errorf("frame %d: %w", frames, err)
		}
		frames++

		select {
		case out <- packet:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
