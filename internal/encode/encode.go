// Package encode runs one complete encode: it validates the configuration,
// builds the header metadata, opens the PCM source, drives the pipeline into
// an output sink and optionally records the result in the catalog.
package encode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/glizzus/dca/internal/catalog"
	"github.com/glizzus/dca/internal/config"
	"github.com/glizzus/dca/internal/dca"
	"github.com/glizzus/dca/internal/generator"
	"github.com/glizzus/dca/internal/metadata"
	"github.com/glizzus/dca/internal/opus"
	"github.com/glizzus/dca/internal/output"
	"github.com/glizzus/dca/internal/pipeline"
	"github.com/glizzus/dca/internal/toolchain"
)

// CodecFactory creates the codec instance for one encode.
type CodecFactory func(settings opus.EncoderSettings) (opus.Codec, error)

type Job struct {
	Config *config.EncodeConfig
	// Tools is only used for file input.
	Tools toolchain.Toolchain
	// Stdin is read when the input is a pipe.
	Stdin io.Reader
	Sink  output.Sink

	// ID identifies the encode in the catalog. A random one is generated
	// when empty.
	ID string
	// ObjectKey is recorded in the catalog when the container was uploaded.
	ObjectKey string

	// Catalog, when set, records the encode after the sink is committed.
	Catalog catalog.EncodePersister
	// NewCodec defaults to the libopus codec.
	NewCodec CodecFactory
}

// Result describes a committed encode.
type Result struct {
	ID        string
	Stats     pipeline.Stats
	Metadata  *metadata.Metadata
	ObjectKey string
	Duration  time.Duration
}

// Run performs the encode. On any failure the sink is aborted and nothing is
// recorded in the catalog.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	res, err := j.run(ctx)
	if err != nil {
		if abortErr := j.Sink.Abort(err); abortErr != nil {
			slog.Warn("Failed to abort output", "error", abortErr)
		}
		return nil, err
	}
	if err := j.Sink.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit output: %w", err)
	}
	res.Duration = time.Since(start)

	slog.Info(
		"Encoded container",
		"id", res.ID,
		"frames", res.Stats.Frames,
		"packets", res.Stats.Packets,
		"bytes", res.Stats.Bytes,
		"duration", res.Duration,
		"key", res.ObjectKey,
	)

	if j.Catalog != nil {
		if err := j.Catalog.Save(ctx, j.catalogEntry(res)); err != nil {
			return nil, fmt.Errorf("failed to record encode: %w", err)
		}
		slog.Debug("Recorded encode in catalog", "id", res.ID)
	}
	return res, nil
}

func (j *Job) run(ctx context.Context) (*Result, error) {
	cfg := j.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if !cfg.IsPipe() {
		if err := checkInput(cfg.Input); err != nil {
			return nil, err
		}
	}

	id := j.ID
	if id == "" {
		var err error
		if id, err = (&generator.UUIDV4Generator{}).Next(); err != nil {
			return nil, fmt.Errorf("failed to generate encode id: %w", err)
		}
	}

	settings := opus.SettingsFromConfig(cfg)
	newCodec := j.NewCodec
	if newCodec == nil {
		newCodec = opus.NewCodec
	}
	codec, err := newCodec(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	encoder := opus.NewEncoderWithCodec(codec, settings)

	var meta *metadata.Metadata
	var header []byte
	if !cfg.Raw {
		if meta, err = j.buildMetadata(ctx, settings); err != nil {
			return nil, err
		}
		if header, err = meta.Marshal(); err != nil {
			return nil, fmt.Errorf("failed to serialize metadata: %w", err)
		}
	}

	src, err := j.openSource(ctx)
	if err != nil {
		return nil, err
	}

	writer := dca.NewWriter(j.Sink, dca.OutputSettings{
		Raw:      cfg.Raw,
		Metadata: header,
	})

	slog.Debug("Starting pipeline", "input", cfg.Input, "raw", cfg.Raw, "queue_depth", cfg.QueueDepth)
	stats, err := pipeline.Run(ctx, src, encoder, writer, pipeline.Options{
		FrameSamples: settings.FrameSamples(),
		QueueDepth:   cfg.QueueDepth,
	})
	if closeErr := src.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("decoder: %w", closeErr)
	}
	if err != nil {
		return nil, err
	}

	return &Result{
		ID:        id,
		Stats:     *stats,
		Metadata:  meta,
		ObjectKey: j.ObjectKey,
	}, nil
}

func checkInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("invalid input: %s is a directory", path)
	}
	return nil
}

func (j *Job) buildMetadata(ctx context.Context, settings opus.EncoderSettings) (*metadata.Metadata, error) {
	cfg := j.Config
	builder := &metadata.Builder{
		Opus: metadata.Opus{
			Bitrate:     settings.Bitrate * 1000,
			SampleRate:  settings.SampleRate,
			Application: string(settings.Application),
			FrameSize:   settings.FrameSize,
			Channels:    settings.Channels,
		},
		Extra:       cfg.Extra,
		CoverFormat: cfg.CoverFormat,
	}
	if cfg.IsPipe() {
		return builder.ForPipe(), nil
	}
	if j.Tools == nil {
		return nil, fmt.Errorf("no toolchain configured for file input")
	}
	return builder.ForFile(ctx, j.Tools, cfg.Input)
}

func (j *Job) openSource(ctx context.Context) (io.ReadCloser, error) {
	cfg := j.Config
	if cfg.IsPipe() {
		if j.Stdin == nil {
			return nil, fmt.Errorf("no pipe input configured")
		}
		return io.NopCloser(j.Stdin), nil
	}
	if j.Tools == nil {
		return nil, fmt.Errorf("no toolchain configured for file input")
	}
	src, err := j.Tools.Decode(ctx, cfg.Input, toolchain.DecodeOptions{
		Volume:     cfg.Volume,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start decoder: %w", err)
	}
	return src, nil
}

func (j *Job) catalogEntry(res *Result) catalog.Encode {
	cfg := j.Config
	entry := catalog.Encode{
		ID:          res.ID,
		ObjectKey:   res.ObjectKey,
		Source:      metadata.SourceFile,
		Application: string(cfg.Application),
		Bitrate:     cfg.Bitrate * 1000,
		SampleRate:  cfg.SampleRate,
		Channels:    cfg.Channels,
		FrameSize:   cfg.FrameSize,
		Frames:      int64(res.Stats.Frames),
		Packets:     int64(res.Stats.Packets),
		Bytes:       res.Stats.Bytes,
	}
	if cfg.IsPipe() {
		entry.Source = metadata.SourcePipe
	}
	if res.Metadata != nil {
		entry.Title = res.Metadata.SongInfo.Title
		entry.Artist = res.Metadata.SongInfo.Artist
		entry.Album = res.Metadata.SongInfo.Album
	}
	return entry
}
