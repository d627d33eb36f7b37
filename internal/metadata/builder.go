package metadata

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"maps"

	"github.com/glizzus/dca/internal/toolchain"
)

// Builder assembles the header metadata for one encode.
type Builder struct {
	Opus  Opus
	Extra map[string]string

	// CoverFormat selects the image format for embedded cover art. Empty
	// disables cover extraction.
	CoverFormat string
}

func (b *Builder) base() *Metadata {
	extra := make(map[string]string, len(b.Extra))
	maps.Copy(extra, b.Extra)

	return &Metadata{
		DCA: DCA{
			Version: JSONVersion,
			Tool: Tool{
				Name:    ToolName,
				Version: ToolVersion,
				URL:     ToolURL,
				Author:  ToolAuthor,
			},
		},
		Opus:  b.Opus,
		Extra: extra,
	}
}

// ForPipe describes a live PCM stream on standard input.
func (b *Builder) ForPipe() *Metadata {
	m := b.base()
	m.Origin = Origin{
		Source:   SourcePipe,
		Channels: b.Opus.Channels,
		Encoding: PipeEncoding,
	}
	return m
}

// FromProbe describes a file from its probe result.
func (b *Builder) FromProbe(res *toolchain.ProbeResult) *Metadata {
	m := b.base()
	f := res.Format
	m.SongInfo = SongInfo{
		Title:    f.Tag("title"),
		Artist:   f.Tag("artist"),
		Album:    f.Tag("album"),
		Genre:    f.Tag("genre"),
		Comments: f.Tag("comment"),
	}
	m.Origin = Origin{
		Source:   SourceFile,
		Bitrate:  f.Bitrate(),
		Channels: b.Opus.Channels,
		Encoding: f.FormatLongName,
	}
	return m
}

// ForFile probes path and builds its metadata. A probe failure is returned;
// a missing or unreadable cover is not, the cover is simply left empty.
func (b *Builder) ForFile(ctx context.Context, tools toolchain.Toolchain, path string) (*Metadata, error) {
	res, err := tools.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", path, err)
	}
	m := b.FromProbe(res)

	if b.CoverFormat == "" {
		return m, nil
	}
	cover, err := tools.Cover(ctx, path, b.CoverFormat)
	if err != nil {
		slog.Debug("no cover art", "path", path, "error", err)
		return m, nil
	}
	m.SongInfo.Cover = base64.StdEncoding.EncodeToString(cover)
	return m, nil
}
