// Package pcm slices a raw little-endian signed 16-bit PCM byte stream into
// fixed-size interleaved frames, the unit the opus encoder consumes.
//
// The final frame of a stream that ends mid-frame is zero padded to the full
// frame length. An empty read at a frame boundary ends the stream.
package pcm
