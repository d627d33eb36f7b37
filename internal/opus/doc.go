// Package opus is the encoding stage: it turns interleaved PCM frames into
// opus packets using a single stateful libopus encoder.
//
// The encoder is configured exactly once, before the first frame. Frames are
// encoded strictly in arrival order; a failed frame ends the stage because
// the codec state cannot be trusted afterwards.
package opus
