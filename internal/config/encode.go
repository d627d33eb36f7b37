package config

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/sethvargo/go-envconfig"
)

// Application is the codec tuning profile.
type Application string

const (
	ApplicationVoIP     Application = "voip"
	ApplicationAudio    Application = "audio"
	ApplicationLowDelay Application = "lowdelay"
)

// Applications lists every accepted application profile.
var Applications = []Application{ApplicationVoIP, ApplicationAudio, ApplicationLowDelay}

// IsValid reports whether a names a known profile.
func (a Application) IsValid() bool {
	return slices.Contains(Applications, a)
}

// PipeInput is the input name that selects standard input.
const PipeInput = "pipe:0"

const (
	MinBitrate = 1
	MaxBitrate = 512
)

// FrameSizes are the accepted samples-per-channel counts for one frame
// (20, 40 and 60 ms at 48 kHz).
var FrameSizes = []int{960, 1920, 2880}

// EncodeConfig is the full set of knobs for one encode. Environment values
// provide the defaults; command line flags override them.
type EncodeConfig struct {
	Application Application `env:"DCA_APPLICATION, default=audio"`
	// Bitrate is in kb/s.
	Bitrate     int    `env:"DCA_BITRATE, default=64"`
	Channels    int    `env:"DCA_CHANNELS, default=2"`
	SampleRate  int    `env:"DCA_SAMPLE_RATE, default=48000"`
	FrameSize   int    `env:"DCA_FRAME_SIZE, default=960"`
	Volume      int    `env:"DCA_VOLUME, default=256"`
	CoverFormat string `env:"DCA_COVER_FORMAT, default=jpeg"`
	QueueDepth  int    `env:"DCA_QUEUE_DEPTH, default=64"`

	Input string `env:"DCA_INPUT, default=pipe:0"`
	Raw   bool   `env:"DCA_RAW, default=false"`

	Extra map[string]string
}

func NewEncodeConfigFromEnv() (*EncodeConfig, error) {
	var cfg EncodeConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsPipe reports whether the input is standard input rather than a file.
func (c *EncodeConfig) IsPipe() bool {
	return c.Input == "" || c.Input == PipeInput
}

// ValidationError describes one rejected configuration value.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

var _ error = (*ValidationError)(nil)

// Validate checks every field and returns all failures joined together.
func (c *EncodeConfig) Validate() error {
	var errs []error

	if !c.Application.IsValid() {
		errs = append(errs, &ValidationError{"application", c.Application, "must be one of voip, audio, lowdelay"})
	}
	if c.Bitrate < MinBitrate || c.Bitrate > MaxBitrate {
		errs = append(errs, &ValidationError{"bitrate", c.Bitrate, fmt.Sprintf("must be between %d and %d kb/s", MinBitrate, MaxBitrate)})
	}
	if c.Channels != 1 && c.Channels != 2 {
		errs = append(errs, &ValidationError{"channels", c.Channels, "must be 1 (mono) or 2 (stereo)"})
	}
	if c.SampleRate <= 0 {
		errs = append(errs, &ValidationError{"sample rate", c.SampleRate, "must be positive"})
	}
	if !slices.Contains(FrameSizes, c.FrameSize) {
		errs = append(errs, &ValidationError{"frame size", c.FrameSize, "must be 960, 1920 or 2880"})
	}
	if c.Volume < 0 {
		errs = append(errs, &ValidationError{"volume", c.Volume, "must not be negative"})
	}
	if c.QueueDepth < 0 {
		errs = append(errs, &ValidationError{"queue depth", c.QueueDepth, "must not be negative"})
	}

	return errors.Join(errs...)
}
