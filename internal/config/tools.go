package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// ToolsConfig locates the external programs used for probing and decoding.
type ToolsConfig struct {
	FFmpeg  string `env:"DCA_FFMPEG, default=ffmpeg"`
	FFprobe string `env:"DCA_FFPROBE, default=ffprobe"`
}

func NewToolsConfigFromEnv() (*ToolsConfig, error) {
	var cfg ToolsConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.FFmpeg == "" || cfg.FFprobe == "" {
		return nil, fmt.Errorf("DCA_FFMPEG and DCA_FFPROBE must not be empty")
	}
	return &cfg, nil
}
