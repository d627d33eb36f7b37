package opus

import (
	"fmt"

	"github.com/glizzus/dca/internal/config"
	libopus "gopkg.in/hraban/opus.v2"
)

// EncoderSettings is the immutable configuration of the encoding stage.
type EncoderSettings struct {
	SampleRate  int
	Channels    int
	Application config.Application
	// Bitrate is in kb/s.
	Bitrate   int
	FrameSize int
}

// SettingsFromConfig extracts the codec settings from an encode config.
func SettingsFromConfig(cfg *config.EncodeConfig) EncoderSettings {
	return EncoderSettings{
		SampleRate:  cfg.SampleRate,
		Channels:    cfg.Channels,
		Application: cfg.Application,
		Bitrate:     cfg.Bitrate,
		FrameSize:   cfg.FrameSize,
	}
}

// MaxPacketBytes is the worst-case size of one encoded frame.
func (s EncoderSettings) MaxPacketBytes() int {
	return s.FrameSize * s.Channels * 2
}

// FrameSamples is the number of interleaved samples the codec expects per
// frame.
func (s EncoderSettings) FrameSamples() int {
	return s.FrameSize * s.Channels
}

// Codec encodes one PCM frame into data and returns the packet length.
type Codec interface {
	Encode(pcm []int16, data []byte) (int, error)
}

var _ Codec = (*libopus.Encoder)(nil)

func application(app config.Application) (libopus.Application, error) {
	switch app {
	case config.ApplicationVoIP:
		return libopus.AppVoIP, nil
	case config.ApplicationAudio:
		return libopus.AppAudio, nil
	case config.ApplicationLowDelay:
		return libopus.AppRestrictedLowdelay, nil
	default:
		return 0, fmt.Errorf("unknown application %q", app)
	}
}

// NewCodec creates a libopus encoder and sets its target bitrate.
func NewCodec(s EncoderSettings) (Codec, error) {
	app, err := application(s.Application)
	if err != nil {
		return nil, err
	}
	if s.Channels != 1 && s.Channels != 2 {
		return nil, fmt.Errorf("unsupported channel count %d", s.Channels)
	}

	enc, err := libopus.NewEncoder(s.SampleRate, s.Channels, app)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if err := enc.SetBitrate(s.Bitrate * 1000); err != nil {
		return nil, fmt.Errorf("failed to set bitrate to %d kb/s: %w", s.Bitrate, err)
	}
	return enc, nil
}

// Encoder owns the codec instance. It is not safe for concurrent use; the
// encoding stage is its only caller.
type Encoder struct {
	codec    Codec
	settings EncoderSettings
}

// NewEncoder configures a libopus codec from settings.
func NewEncoder(settings EncoderSettings) (*Encoder, error) {
	codec, err := NewCodec(settings)
	if err != nil {
		return nil, err
	}
	return NewEncoderWithCodec(codec, settings), nil
}

// NewEncoderWithCodec wraps an already configured codec.
func NewEncoderWithCodec(codec Codec, settings EncoderSettings) *Encoder {
	return &Encoder{codec: codec, settings: settings}
}

// Encode compresses one frame. The returned packet is a fresh slice owned by
// the caller.
func (e *Encoder) Encode(frame []int16) ([]byte, error) {
	if want := e.settings.FrameSamples(); len(frame) != want {
		return nil, fmt.Errorf("frame has %d samples, want %d", len(frame), want)
	}

	buf := make([]byte, e.settings.MaxPacketBytes())
	n, err := e.codec.Encode(frame, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	if n < 0 || n > len(buf) {
		return nil, fmt.Errorf("codec reported invalid packet length %d", n)
	}
	return buf[:n], nil
}
