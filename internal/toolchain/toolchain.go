package toolchain

import (
	"context"
	"io"
)

// DecodeOptions describes the PCM stream the decoder must produce.
type DecodeOptions struct {
	// Volume is passed through to ffmpeg; 256 is unity.
	Volume     int
	SampleRate int
	Channels   int
}

type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// Decoder produces raw little-endian s16le PCM for path. The caller must
// close the returned stream; Close reports a failed decode.
type Decoder interface {
	Decode(ctx context.Context, path string, opts DecodeOptions) (io.ReadCloser, error)
}

// CoverExtractor returns the raw bytes of the cover art embedded in path,
// re-encoded in the requested image format.
type CoverExtractor interface {
	Cover(ctx context.Context, path, format string) ([]byte, error)
}

type Toolchain interface {
	Prober
	Decoder
	CoverExtractor
}
