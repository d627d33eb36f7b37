package dca

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var ErrInvalidMagic = errors.New("stream does not start with a dca header")

// Header is the decoded container header.
type Header struct {
	FormatVersion int
	Metadata      []byte
}

// Reader reads a container written by Writer. It never decodes audio.
type Reader struct {
	r *bufio.Reader
}

// NewReader returns a new Reader that reads from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadHeader reads the magic, version and metadata. It must be called before
// the first ReadPacket on a non-raw container. It returns ErrInvalidMagic
// without consuming input if the stream has no header.
func (r *Reader) ReadHeader() (*Header, error) {
	magic, err := r.r.Peek(len(Magic) + 1)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrInvalidMagic
		}
		return nil, err
	}
	if !bytes.HasPrefix(magic, []byte(Magic)) {
		return nil, ErrInvalidMagic
	}
	version := magic[len(Magic)]
	if version < '0' || version > '9' {
		return nil, ErrInvalidMagic
	}
	if _, err := r.r.Discard(len(magic)); err != nil {
		return nil, err
	}

	var size int32
	if err := binary.Read(r.r, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("failed to read metadata length: %w", err)
	}
	if size < 0 {
		return nil, fmt.Errorf("negative metadata length %d", size)
	}

	meta := make([]byte, size)
	if _, err := io.ReadFull(r.r, meta); err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	return &Header{FormatVersion: int(version - '0'), Metadata: meta}, nil
}

// ReadPacket reads and returns the next packet.
// Returns io.EOF when there are no more packets and io.ErrUnexpectedEOF if
// the stream ends inside one.
func (r *Reader) ReadPacket() ([]byte, error) {
	var size int16
	if err := binary.Read(r.r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("negative packet length %d", size)
	}

	packet := make([]byte, size)
	if _, err := io.ReadFull(r.r, packet); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return packet, nil
}
