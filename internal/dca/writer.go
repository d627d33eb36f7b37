package dca

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
)

// Magic prefixes every container that carries a header.
const Magic = "DCA"

// FormatVersion is the file format version appended to Magic.
const FormatVersion = 1

// MaxPacketSize is the largest packet a signed 16-bit length can describe.
const MaxPacketSize = math.MaxInt16

var ErrPacketTooLarge = errors.New("packet exceeds maximum dca packet size")

// OutputSettings is the immutable configuration of a Writer.
type OutputSettings struct {
	// Raw omits the magic, version and metadata header.
	Raw           bool
	FormatVersion int
	Metadata      []byte
}

// Writer serializes a container onto a buffered sink.
type Writer struct {
	w        *bufio.Writer
	settings OutputSettings

	wroteHeader bool
	packets     int
	bytes       int64
}

func NewWriter(w io.Writer, settings OutputSettings) *Writer {
	if settings.FormatVersion == 0 {
		settings.FormatVersion = FormatVersion
	}
	return &Writer{
		w:        bufio.NewWriter(w),
		settings: settings,
	}
}

// WriteHeader writes the magic, version and metadata. It is a no-op in raw
// mode and after the first call.
func (w *Writer) WriteHeader() error {
	if w.wroteHeader {
		return nil
	}
	w.wroteHeader = true
	if w.settings.Raw {
		return nil
	}

	version := w.settings.FormatVersion
	if version < 0 || version > 9 {
		return fmt.Errorf("format version %d is not a single digit", version)
	}
	if len(w.settings.Metadata) > math.MaxInt32 {
		return fmt.Errorf("metadata of %d bytes does not fit the header", len(w.settings.Metadata))
	}

	if _, err := w.w.WriteString(Magic + strconv.Itoa(version)); err != nil {
		return fmt.Errorf("failed to write magic bytes: %w", err)
	}
	if err := binary.Write(w.w, binary.LittleEndian, int32(len(w.settings.Metadata))); err != nil {
		return fmt.Errorf("failed to write metadata length: %w", err)
	}
	if _, err := w.w.Write(w.settings.Metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	w.bytes += int64(len(Magic) + 1 + 4 + len(w.settings.Metadata))
	return nil
}

// WritePacket writes one length-prefixed packet, writing the header first if
// that has not happened yet.
func (w *Writer) WritePacket(packet []byte) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if len(packet) > MaxPacketSize {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(packet))
	}

	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(int16(len(packet))))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("failed to write packet length: %w", err)
	}
	if _, err := w.w.Write(packet); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	w.packets++
	w.bytes += int64(len(lenBuf) + len(packet))
	return nil
}

func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// Packets returns the number of packets written so far.
func (w *Writer) Packets() int {
	return w.packets
}

// Bytes returns the number of container bytes written so far, header
// included.
func (w *Writer) Bytes() int64 {
	return w.bytes
}

// Run writes the header, then every packet received from in until it is
// closed, then flushes. It returns early if ctx is cancelled.
func (w *Writer) Run(ctx context.Context, in <-chan []byte) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	slog.Debug("container writer started", "raw", w.settings.Raw)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case packet, ok := <-in:
			if !ok {
				slog.Debug("container writer drained", "packets", w.packets, "bytes", w.bytes)
				return w.Flush()
			}
			if err := w.WritePacket(packet); err != nil {
				return err
			}
		}
	}
}
