package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/glizzus/dca/internal/catalog"
	"github.com/glizzus/dca/internal/config"
	"github.com/glizzus/dca/internal/datalayer"
	"github.com/glizzus/dca/internal/encode"
	"github.com/glizzus/dca/internal/generator"
	"github.com/glizzus/dca/internal/output"
	"github.com/glizzus/dca/internal/toolchain"
	"github.com/glizzus/dca/internal/util"
	"github.com/urfave/cli/v2"
)

func encodeFlags(d *config.EncodeConfig) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "aa",
			Aliases: []string{"a"},
			Usage:   "audio application profile: voip, audio or lowdelay",
			Value:   string(d.Application),
		},
		&cli.IntFlag{
			Name:    "ab",
			Aliases: []string{"b"},
			Usage:   "audio encoding bitrate in kb/s (1-512)",
			Value:   d.Bitrate,
		},
		&cli.IntFlag{
			Name:    "ac",
			Aliases: []string{"c"},
			Usage:   "audio channels: 1 or 2",
			Value:   d.Channels,
		},
		&cli.IntFlag{
			Name:    "ar",
			Aliases: []string{"r"},
			Usage:   "audio sample rate",
			Value:   d.SampleRate,
		},
		&cli.IntFlag{
			Name:    "as",
			Aliases: []string{"s"},
			Usage:   "audio frame size in samples per channel: 960, 1920 or 2880",
			Value:   d.FrameSize,
		},
		&cli.StringFlag{
			Name:    "cf",
			Aliases: []string{"f"},
			Usage:   "format the cover art is encoded in",
			Value:   d.CoverFormat,
		},
		&cli.StringFlag{
			Name:  "i",
			Usage: "input file, or pipe:0 for s16le PCM on standard input",
			Value: d.Input,
		},
		&cli.IntFlag{
			Name:    "vol",
			Aliases: []string{"v"},
			Usage:   "change audio volume (256=normal)",
			Value:   d.Volume,
		},
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "write packets only, without the metadata header",
			Value: d.Raw,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "write the container to this file instead of standard output",
		},
		&cli.BoolFlag{
			Name:  "upload",
			Usage: "upload the container to object storage",
		},
		&cli.StringFlag{
			Name:  "key",
			Usage: "object key for --upload (default dca/<id>.dca)",
		},
		&cli.BoolFlag{
			Name:  "catalog",
			Usage: "record the encode in the Postgres catalog",
		},
		&cli.StringSliceFlag{
			Name:  "extra",
			Usage: "add key=value to the metadata extra section (repeatable)",
		},
		&cli.IntFlag{
			Name:  "queue-depth",
			Usage: "capacity of each queue between pipeline stages",
			Value: d.QueueDepth,
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "log debug output to standard error",
		},
	}
}

// encodeConfig applies the command line on top of the environment defaults.
func encodeConfig(c *cli.Context, defaults *config.EncodeConfig) (*config.EncodeConfig, error) {
	cfg := *defaults
	cfg.Application = config.Application(c.String("aa"))
	cfg.Bitrate = c.Int("ab")
	cfg.Channels = c.Int("ac")
	cfg.SampleRate = c.Int("ar")
	cfg.FrameSize = c.Int("as")
	cfg.CoverFormat = c.String("cf")
	cfg.Input = c.String("i")
	cfg.Volume = c.Int("vol")
	cfg.Raw = c.Bool("raw")
	cfg.QueueDepth = c.Int("queue-depth")

	switch c.NArg() {
	case 0:
	case 1:
		if c.IsSet("i") {
			return nil, fmt.Errorf("input given both as -i and as argument %q", c.Args().First())
		}
		cfg.Input = c.Args().First()
	default:
		return nil, fmt.Errorf("expected at most one input file, got %d arguments", c.NArg())
	}

	extra, err := util.ParsePairs(c.StringSlice("extra"))
	if err != nil {
		return nil, fmt.Errorf("invalid --extra: %w", err)
	}
	cfg.Extra = extra

	return &cfg, nil
}

func encodeAction(defaults *config.EncodeConfig) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.Bool("version") {
			cli.ShowVersion(c)
			return nil
		}
		if c.NArg() == 0 && c.NumFlags() == 0 {
			return cli.ShowAppHelp(c)
		}

		cfg, err := encodeConfig(c, defaults)
		if err != nil {
			return err
		}
		// Fail before touching any sink.
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		toolsConfig, err := config.NewToolsConfigFromEnv()
		if err != nil {
			return fmt.Errorf("failed to load tools config: %w", err)
		}

		id, err := generator.NewEncodeIDGenerator().Next()
		if err != nil {
			return fmt.Errorf("failed to generate encode id: %w", err)
		}

		job := &encode.Job{
			Config: cfg,
			Tools:  toolchain.NewFFmpeg(toolsConfig),
			Stdin:  os.Stdin,
			ID:     id.ID,
		}

		var sinks []output.Sink
		switch path := c.String("output"); {
		case path != "" && path != "-":
			file, err := output.CreateFile(path)
			if err != nil {
				return err
			}
			sinks = append(sinks, file)
		case path == "-" || !c.Bool("upload"):
			sinks = append(sinks, output.NewStdout(os.Stdout))
		}

		if c.Bool("upload") {
			storage, err := datalayer.NewMinioStorageFromEnv()
			if err != nil {
				abortAll(sinks, err)
				return fmt.Errorf("failed to create minio storage: %w", err)
			}
			if err := storage.EnsureBucket(c.Context); err != nil {
				abortAll(sinks, err)
				return fmt.Errorf("failed to ensure minio bucket: %w", err)
			}
			key := c.String("key")
			if key == "" {
				key = id.ObjectKey
			}
			job.ObjectKey = key
			slog.Debug("Uploading container", "bucket", storage.Bucket(), "key", key)
			sinks = append(sinks, output.NewUpload(c.Context, storage, key))
		}
		job.Sink = output.Multi(sinks...)

		if c.Bool("catalog") {
			pool, err := datalayer.NewPostgresPoolFromEnv(c.Context)
			if err != nil {
				job.Sink.Abort(err)
				return fmt.Errorf("failed to create postgres pool: %w", err)
			}
			defer pool.Close()
			if err := datalayer.MigratePostgres(pool); err != nil {
				job.Sink.Abort(err)
				return fmt.Errorf("failed to migrate postgres: %w", err)
			}
			job.Catalog = catalog.NewPostgresEncodeRepository(pool)
		}

		res, err := job.Run(c.Context)
		if err != nil {
			return err
		}
		if res.ObjectKey != "" {
			slog.Info("Container uploaded", "key", res.ObjectKey)
		}
		return nil
	}
}

func abortAll(sinks []output.Sink, cause error) {
	for _, s := range sinks {
		s.Abort(cause)
	}
}
