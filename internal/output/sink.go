// Package output provides the byte sinks a container is written to.
//
// A Sink is written to by the container writer and then either committed,
// once the whole container has been flushed, or aborted when any stage of
// the encode failed.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/glizzus/dca/internal/datalayer"
)

// ContentType is recorded on uploaded containers.
const ContentType = "audio/dca"

type Sink interface {
	io.Writer
	// Commit finalizes the output. No writes may follow.
	Commit() error
	// Abort discards the output where the sink allows it. cause is
	// reported to readers on the other side, if any.
	Abort(cause error) error
}

type stdoutSink struct {
	w io.Writer
}

// NewStdout wraps w, typically os.Stdout. Bytes already written cannot be
// taken back, so Abort does nothing.
func NewStdout(w io.Writer) Sink {
	return &stdoutSink{w: w}
}

func (s *stdoutSink) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s *stdoutSink) Commit() error               { return nil }
func (s *stdoutSink) Abort(error) error           { return nil }

type fileSink struct {
	f *os.File
}

// CreateFile truncates or creates path. An aborted file is removed.
func CreateFile(path string) (Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &fileSink{f: f}, nil
}

func (s *fileSink) Write(p []byte) (int, error) { return s.f.Write(p) }

func (s *fileSink) Commit() error {
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return fmt.Errorf("failed to sync %s: %w", s.f.Name(), err)
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", s.f.Name(), err)
	}
	return nil
}

func (s *fileSink) Abort(error) error {
	s.f.Close()
	if err := os.Remove(s.f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove partial output %s: %w", s.f.Name(), err)
	}
	return nil
}

// Upload streams everything written to it into blob storage under Key.
// The object only becomes visible once Commit returns without error.
type Upload struct {
	Key string

	pw     *io.PipeWriter
	cancel context.CancelFunc
	// done is closed once Put has returned err.
	done chan struct{}
	err  error
}

// NewUpload starts the upload immediately; the storage client consumes
// the stream as it is written.
func NewUpload(ctx context.Context, storage datalayer.BlobStorage, key string) *Upload {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	u := &Upload{
		Key:    key,
		pw:     pw,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		err := storage.Put(ctx, key, pr, datalayer.PutOptions{
			Size:        datalayer.UnknownSize,
			ContentType: ContentType,
		})
		// Unblock the writer if Put gave up before reading everything.
		pr.CloseWithError(err)
		u.err = err
		close(u.done)
	}()

	return u
}

func (u *Upload) Write(p []byte) (int, error) {
	n, err := u.pw.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to upload %s: %w", u.Key, err)
	}
	return n, nil
}

func (u *Upload) Commit() error {
	defer u.cancel()
	u.pw.Close()
	<-u.done
	if u.err != nil {
		return fmt.Errorf("failed to upload %s: %w", u.Key, u.err)
	}
	slog.Debug("Uploaded container", "key", u.Key)
	return nil
}

// Abort cancels an upload in progress. After a successful Commit the object
// already exists and Abort does nothing.
func (u *Upload) Abort(cause error) error {
	if cause == nil {
		cause = errors.New("upload aborted")
	}
	u.pw.CloseWithError(cause)
	u.cancel()
	<-u.done
	return nil
}

var _ Sink = (*Upload)(nil)

type multiSink struct {
	sinks []Sink
	w     io.Writer
}

// Multi duplicates writes to every sink. If any Commit fails, every sink is
// aborted, including those already committed, so a file output does not
// outlive a failed upload.
func Multi(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	writers := make([]io.Writer, len(sinks))
	for i, s := range sinks {
		writers[i] = s
	}
	return &multiSink{sinks: sinks, w: io.MultiWriter(writers...)}
}

func (m *multiSink) Write(p []byte) (int, error) { return m.w.Write(p) }

func (m *multiSink) Commit() error {
	for _, s := range m.sinks {
		if err := s.Commit(); err != nil {
			m.Abort(err)
			return err
		}
	}
	return nil
}

func (m *multiSink) Abort(cause error) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.Abort(cause))
	}
	return errors.Join(errs...)
}
