package encode_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/glizzus/dca/internal/catalog"
	"github.com/glizzus/dca/internal/config"
	"github.com/glizzus/dca/internal/dca"
	"github.com/glizzus/dca/internal/encode"
	"github.com/glizzus/dca/internal/metadata"
	"github.com/glizzus/dca/internal/opus"
	"github.com/glizzus/dca/internal/toolchain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// firstSampleCodec emits the first sample of each frame as a two byte packet.
type firstSampleCodec struct {
	failAt int
	calls  int
}

func (c *firstSampleCodec) Encode(frame []int16, data []byte) (int, error) {
	c.calls++
	if c.failAt > 0 && c.calls == c.failAt {
		return 0, errors.New("codec exploded")
	}
	binary.LittleEndian.PutUint16(data, uint16(frame[0]))
	return 2, nil
}

func codecFactory(codec opus.Codec) encode.CodecFactory {
	return func(opus.EncoderSettings) (opus.Codec, error) { return codec, nil }
}

type recordingSink struct {
	bytes.Buffer
	committed bool
	aborted   error
}

func (s *recordingSink) Commit() error { s.committed = true; return nil }

func (s *recordingSink) Abort(cause error) error { s.aborted = cause; return nil }

type fakeTools struct {
	probe    *toolchain.ProbeResult
	probeErr error
	pcm      []byte
	closeErr error

	decodedPath string
	decodeOpts  toolchain.DecodeOptions
}

func (f *fakeTools) Probe(context.Context, string) (*toolchain.ProbeResult, error) {
	return f.probe, f.probeErr
}

type stream struct {
	io.Reader
	err error
}

func (s *stream) Close() error { return s.err }

func (f *fakeTools) Decode(_ context.Context, path string, opts toolchain.DecodeOptions) (io.ReadCloser, error) {
	f.decodedPath = path
	f.decodeOpts = opts
	return &stream{Reader: bytes.NewReader(f.pcm), err: f.closeErr}, nil
}

func (f *fakeTools) Cover(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("no cover")
}

var _ toolchain.Toolchain = (*fakeTools)(nil)

type memoryCatalog struct {
	saved []catalog.Encode
}

func (m *memoryCatalog) Save(_ context.Context, e catalog.Encode) error {
	m.saved = append(m.saved, e)
	return nil
}

func defaultConfig(t *testing.T) *config.EncodeConfig {
	t.Helper()
	cfg, err := config.NewEncodeConfigFromEnv()
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}
	cfg.Channels = 1
	return cfg
}

// framesPCM returns n mono 960 sample frames whose first sample is the frame
// index.
func framesPCM(n int) []byte {
	buf := make([]byte, n*960*2)
	for i := range n {
		binary.LittleEndian.PutUint16(buf[i*960*2:], uint16(i))
	}
	return buf
}

func readContainer(t *testing.T, data []byte, raw bool) (*metadata.Metadata, []int16) {
	t.Helper()
	r := dca.NewReader(bytes.NewReader(data))
	var meta *metadata.Metadata
	if !raw {
		h, err := r.ReadHeader()
		if err != nil {
			t.Fatalf("failed to read header: %v", err)
		}
		if meta, err = metadata.Unmarshal(h.Metadata); err != nil {
			t.Fatalf("failed to decode metadata: %v", err)
		}
	}
	var firsts []int16
	for {
		p, err := r.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("failed to read packet: %v", err)
		}
		firsts = append(firsts, int16(binary.LittleEndian.Uint16(p)))
	}
	return meta, firsts
}

func TestRunPipe(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Extra = map[string]string{"uploader": "test"}
	sink := &recordingSink{}

	job := &encode.Job{
		Config:   cfg,
		Stdin:    bytes.NewReader(framesPCM(5)),
		Sink:     sink,
		ID:       "c2d3d7a2-4dc1-4d0c-a8f5-1b0e0a6c1f10",
		NewCodec: codecFactory(&firstSampleCodec{}),
	}
	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sink.committed || sink.aborted != nil {
		t.Errorf("expected sink to be committed only, committed=%v aborted=%v", sink.committed, sink.aborted)
	}

	meta, firsts := readContainer(t, sink.Bytes(), false)
	if diff := cmp.Diff([]int16{0, 1, 2, 3, 4}, firsts); diff != "" {
		t.Errorf("unexpected packets (-want +got):\n%s", diff)
	}
	wantOrigin := metadata.Origin{Source: "pipe", Channels: 1, Encoding: "pcm16/s16le"}
	if diff := cmp.Diff(wantOrigin, meta.Origin); diff != "" {
		t.Errorf("unexpected origin (-want +got):\n%s", diff)
	}
	wantOpus := metadata.Opus{Bitrate: 64000, SampleRate: 48000, Application: "audio", FrameSize: 960, Channels: 1}
	if diff := cmp.Diff(wantOpus, meta.Opus); diff != "" {
		t.Errorf("unexpected opus params (-want +got):\n%s", diff)
	}
	if meta.Extra["uploader"] != "test" {
		t.Errorf("expected extra to carry uploader, got %v", meta.Extra)
	}

	if res.ID != job.ID {
		t.Errorf("expected id %s, got %s", job.ID, res.ID)
	}
	if res.Stats.Frames != 5 || res.Stats.Packets != 5 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
	if res.Stats.Bytes != int64(sink.Len()) {
		t.Errorf("expected %d bytes, stats report %d", sink.Len(), res.Stats.Bytes)
	}
}

func TestRunRaw(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Raw = true
	sink := &recordingSink{}

	job := &encode.Job{
		Config:   cfg,
		Stdin:    bytes.NewReader(framesPCM(3)),
		Sink:     sink,
		NewCodec: codecFactory(&firstSampleCodec{}),
	}
	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Metadata != nil {
		t.Errorf("expected no metadata in raw mode")
	}
	if res.ID == "" {
		t.Errorf("expected a generated id")
	}
	_, firsts := readContainer(t, sink.Bytes(), true)
	if diff := cmp.Diff([]int16{0, 1, 2}, firsts); diff != "" {
		t.Errorf("unexpected packets (-want +got):\n%s", diff)
	}
}

func inputFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "song.flac")
	if err := os.WriteFile(path, []byte("not really flac"), 0o644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	return path
}

func TestRunFile(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Input = inputFile(t)
	cfg.Volume = 128
	tools := &fakeTools{
		probe: &toolchain.ProbeResult{Format: toolchain.Format{
			FormatLongName: "FLAC (Free Lossless Audio Codec)",
			BitRate:        "900000",
			Tags:           map[string]string{"TITLE": "Song", "ARTIST": "Band"},
		}},
		pcm: framesPCM(2),
	}
	sink := &recordingSink{}
	persisted := &memoryCatalog{}

	job := &encode.Job{
		Config:    cfg,
		Tools:     tools,
		Sink:      sink,
		ID:        "0e9e8f4c-7f3a-4a55-9d55-3cc1a8d2e0b4",
		ObjectKey: "dca/0e9e8f4c-7f3a-4a55-9d55-3cc1a8d2e0b4.dca",
		Catalog:   persisted,
		NewCodec:  codecFactory(&firstSampleCodec{}),
	}
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tools.decodedPath != cfg.Input {
		t.Errorf("expected decode of %s, got %s", cfg.Input, tools.decodedPath)
	}
	wantOpts := toolchain.DecodeOptions{Volume: 128, SampleRate: 48000, Channels: 1}
	if diff := cmp.Diff(wantOpts, tools.decodeOpts); diff != "" {
		t.Errorf("unexpected decode options (-want +got):\n%s", diff)
	}

	meta, firsts := readContainer(t, sink.Bytes(), false)
	if meta.SongInfo.Title != "Song" || meta.SongInfo.Artist != "Band" {
		t.Errorf("unexpected song info %+v", meta.SongInfo)
	}
	if meta.Origin.Bitrate != 900000 {
		t.Errorf("expected origin bitrate 900000, got %d", meta.Origin.Bitrate)
	}
	if len(firsts) != 2 {
		t.Errorf("expected 2 packets, got %d", len(firsts))
	}

	want := []catalog.Encode{{
		ID:          job.ID,
		ObjectKey:   job.ObjectKey,
		Source:      "file",
		Title:       "Song",
		Artist:      "Band",
		Application: "audio",
		Bitrate:     64000,
		SampleRate:  48000,
		Channels:    1,
		FrameSize:   960,
		Frames:      2,
		Packets:     2,
		Bytes:       int64(sink.Len()),
	}}
	if diff := cmp.Diff(want, persisted.saved, cmpopts.IgnoreFields(catalog.Encode{}, "CreatedAt")); diff != "" {
		t.Errorf("unexpected catalog rows (-want +got):\n%s", diff)
	}
}

func TestRunFailures(t *testing.T) {
	tc := []struct {
		name   string
		mutate func(cfg *config.EncodeConfig, tools *fakeTools, codec *firstSampleCodec)
	}{
		{
			name: "invalid bitrate",
			mutate: func(cfg *config.EncodeConfig, _ *fakeTools, _ *firstSampleCodec) {
				cfg.Bitrate = 513
			},
		},
		{
			name: "missing input",
			mutate: func(cfg *config.EncodeConfig, _ *fakeTools, _ *firstSampleCodec) {
				cfg.Input = filepath.Join(os.TempDir(), "definitely", "missing.flac")
			},
		},
		{
			name: "input is a directory",
			mutate: func(cfg *config.EncodeConfig, _ *fakeTools, _ *firstSampleCodec) {
				cfg.Input = filepath.Dir(cfg.Input)
			},
		},
		{
			name: "probe failure",
			mutate: func(_ *config.EncodeConfig, tools *fakeTools, _ *firstSampleCodec) {
				tools.probeErr = errors.New("ffprobe: not found")
			},
		},
		{
			name: "decoder failure",
			mutate: func(_ *config.EncodeConfig, tools *fakeTools, _ *firstSampleCodec) {
				tools.closeErr = errors.New("ffmpeg: invalid data found")
			},
		},
		{
			name: "codec failure",
			mutate: func(_ *config.EncodeConfig, _ *fakeTools, codec *firstSampleCodec) {
				codec.failAt = 2
			},
		},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			cfg.Input = inputFile(t)
			tools := &fakeTools{
				probe: &toolchain.ProbeResult{},
				pcm:   framesPCM(4),
			}
			codec := &firstSampleCodec{}
			test.mutate(cfg, tools, codec)

			sink := &recordingSink{}
			persisted := &memoryCatalog{}
			job := &encode.Job{
				Config:   cfg,
				Tools:    tools,
				Sink:     sink,
				Catalog:  persisted,
				NewCodec: codecFactory(codec),
			}

			res, err := job.Run(context.Background())
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if res != nil {
				t.Errorf("expected no result, got %+v", res)
			}
			if sink.committed {
				t.Errorf("expected sink not to be committed")
			}
			if sink.aborted == nil {
				t.Errorf("expected sink to be aborted")
			}
			if len(persisted.saved) != 0 {
				t.Errorf("expected nothing in the catalog, got %d rows", len(persisted.saved))
			}
		})
	}
}

func TestRunValidationErrorIsTyped(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.FrameSize = 1000
	job := &encode.Job{
		Config:   cfg,
		Stdin:    bytes.NewReader(nil),
		Sink:     &recordingSink{},
		NewCodec: codecFactory(&firstSampleCodec{}),
	}
	_, err := job.Run(context.Background())

	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if verr.Field != "frame size" {
		t.Errorf("expected frame size to be rejected, got %s", verr.Field)
	}
}
