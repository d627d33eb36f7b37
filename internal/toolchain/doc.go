// Package toolchain wraps the external programs the encoder collaborates with:
// ffprobe for source metadata and ffmpeg for decoding arbitrary input to raw
// s16le PCM and for extracting embedded cover art.
//
// The Prober, Decoder and CoverExtractor interfaces let callers substitute
// doubles without spawning processes.
package toolchain
