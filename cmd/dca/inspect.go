package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/glizzus/dca/internal/datalayer"
	"github.com/glizzus/dca/internal/dca"
	"github.com/glizzus/dca/internal/metadata"
	"github.com/urfave/cli/v2"
)

// containerSummary is what inspect reports about an existing container.
type containerSummary struct {
	FormatVersion int                `json:"format_version,omitempty"`
	Raw           bool               `json:"raw"`
	Metadata      *metadata.Metadata `json:"metadata,omitempty"`
	Packets       int                `json:"packets"`
	PacketBytes   int64              `json:"packet_bytes"`
	MinPacket     int                `json:"min_packet"`
	MaxPacket     int                `json:"max_packet"`
	// Duration is only known when the header carries the frame size.
	Duration string `json:"duration,omitempty"`
}

func summarize(r io.Reader) (*containerSummary, error) {
	reader := dca.NewReader(r)
	summary := &containerSummary{}

	header, err := reader.ReadHeader()
	switch {
	case errors.Is(err, dca.ErrInvalidMagic):
		summary.Raw = true
	case err != nil:
		return nil, fmt.Errorf("failed to read header: %w", err)
	default:
		summary.FormatVersion = header.FormatVersion
		if summary.Metadata, err = metadata.Unmarshal(header.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	for {
		packet, err := reader.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read packet %d: %w", summary.Packets, err)
		}
		size := len(packet)
		if summary.Packets == 0 || size < summary.MinPacket {
			summary.MinPacket = size
		}
		if size > summary.MaxPacket {
			summary.MaxPacket = size
		}
		summary.Packets++
		summary.PacketBytes += int64(size)
	}

	if m := summary.Metadata; m != nil && m.Opus.SampleRate > 0 {
		seconds := float64(summary.Packets*m.Opus.FrameSize) / float64(m.Opus.SampleRate)
		summary.Duration = time.Duration(seconds * float64(time.Second)).Round(time.Millisecond).String()
	}
	return summary, nil
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "print the header and packet statistics of a DCA container",
		ArgsUsage: "<file|->",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "key",
				Usage: "inspect an uploaded container from object storage instead of a file",
			},
		},
		Action: func(c *cli.Context) error {
			src, err := openContainer(c)
			if err != nil {
				return err
			}
			defer src.Close()

			summary, err := summarize(src)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
}

func openContainer(c *cli.Context) (io.ReadCloser, error) {
	if key := c.String("key"); key != "" {
		if c.NArg() != 0 {
			return nil, cli.Exit("inspect takes either --key or a file, not both", 1)
		}
		storage, err := datalayer.NewMinioStorageFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to create minio storage: %w", err)
		}
		return fetchContainer(c.Context, storage, key)
	}

	if c.NArg() != 1 {
		return nil, cli.Exit("inspect takes exactly one file, or - for standard input", 1)
	}
	path := c.Args().First()
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open container: %w", err)
	}
	return f, nil
}

func fetchContainer(ctx context.Context, storage datalayer.BlobStorage, key string) (io.ReadCloser, error) {
	rc, err := storage.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	return rc, nil
}
