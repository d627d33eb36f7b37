package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/glizzus/dca/internal/config"
)

// ExitError reports an external program that exited unsuccessfully.
type ExitError struct {
	Program string
	Stderr  string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s failed: %v", e.Program, e.Err)
	}
	return fmt.Sprintf("%s failed: %v: %s", e.Program, e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

var _ error = (*ExitError)(nil)

// FFmpeg runs the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
}

func NewFFmpeg(cfg *config.ToolsConfig) *FFmpeg {
	return &FFmpeg{
		FFmpegPath:  cfg.FFmpeg,
		FFprobePath: cfg.FFprobe,
	}
}

var _ Toolchain = (*FFmpeg)(nil)

func (f *FFmpeg) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ffprobe := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	var stderr bytes.Buffer
	ffprobe.Stderr = &stderr

	out, err := ffprobe.Output()
	if err != nil {
		return nil, &ExitError{Program: "ffprobe", Stderr: lastLine(stderr.String()), Err: err}
	}

	return ParseProbe(out)
}

func (f *FFmpeg) Decode(ctx context.Context, path string, opts DecodeOptions) (io.ReadCloser, error) {
	ffmpeg := exec.CommandContext(ctx, f.FFmpegPath,
		"-i", path,
		"-vol", strconv.Itoa(opts.Volume),
		"-f", "s16le",
		"-ar", strconv.Itoa(opts.SampleRate),
		"-ac", strconv.Itoa(opts.Channels),
		"pipe:1",
	)

	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("unable to pipe output of ffmpeg to stdout: %w", err)
	}

	stderr := &tailBuffer{max: 4096}
	ffmpeg.Stderr = stderr

	if err := ffmpeg.Start(); err != nil {
		return nil, fmt.Errorf("unable to start ffmpeg process: %w", err)
	}
	slog.Debug("ffmpeg decode started", "path", path, "pid", ffmpeg.Process.Pid)

	return &decodeCloser{ReadCloser: stdout, cmd: ffmpeg, stderr: stderr}, nil
}

func (f *FFmpeg) Cover(ctx context.Context, path, format string) ([]byte, error) {
	ffmpeg := exec.CommandContext(ctx, f.FFmpegPath,
		"-loglevel", "error",
		"-i", path,
		"-an",
		"-frames:v", "1",
		"-c:v", coverCodec(format),
		"-f", "image2pipe",
		"pipe:1",
	)

	var stderr bytes.Buffer
	ffmpeg.Stderr = &stderr

	out, err := ffmpeg.Output()
	if err != nil {
		return nil, &ExitError{Program: "ffmpeg", Stderr: lastLine(stderr.String()), Err: err}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no cover art in %s", path)
	}
	return out, nil
}

// coverCodec maps an image format name to the ffmpeg encoder producing it.
func coverCodec(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return "mjpeg"
	default:
		return strings.ToLower(format)
	}
}

// decodeCloser wraps ffmpeg's stdout and reaps the process on Close.
type decodeCloser struct {
	io.ReadCloser
	cmd    *exec.Cmd
	stderr *tailBuffer
	// drained is set once stdout returned io.EOF.
	drained bool
}

func (d *decodeCloser) Read(p []byte) (int, error) {
	n, err := d.ReadCloser.Read(p)
	if errors.Is(err, io.EOF) {
		d.drained = true
	}
	return n, err
}

// Close reaps ffmpeg. A process whose output was not fully read is killed
// first and its exit status ignored; once output was drained, a failure
// status is returned as an ExitError.
func (d *decodeCloser) Close() error {
	if !d.drained && d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	err := d.cmd.Wait()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil
	}
	if d.drained || exitErr.ExitCode() != -1 {
		return &ExitError{Program: "ffmpeg", Stderr: lastLine(d.stderr.String()), Err: err}
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
