package dca_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/glizzus/dca/internal/dca"
	"github.com/google/go-cmp/cmp"
)

func writeContainer(t *testing.T, settings dca.OutputSettings, packets [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := dca.NewWriter(&buf, settings)
	if err := w.WriteHeader(); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for _, p := range packets {
		if err := w.WritePacket(p); err != nil {
			t.Fatalf("failed to write packet: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("failed to flush: %v", err)
	}
	return buf.Bytes()
}

func readPackets(t *testing.T, r *dca.Reader) [][]byte {
	t.Helper()
	var packets [][]byte
	for {
		p, err := r.ReadPacket()
		if errors.Is(err, io.EOF) {
			return packets
		}
		if err != nil {
			t.Fatalf("failed to read packet: %v", err)
		}
		packets = append(packets, p)
	}
}

func TestReaderRoundTrip(t *testing.T) {
	packets := [][]byte{{1, 2, 3}, {}, bytes.Repeat([]byte{9}, 1000)}
	meta := []byte(`{"opus":{"bitrate":64000}}`)
	data := writeContainer(t, dca.OutputSettings{Metadata: meta}, packets)

	r := dca.NewReader(bytes.NewReader(data))
	header, err := r.ReadHeader()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantHeader := &dca.Header{FormatVersion: 1, Metadata: meta}
	if diff := cmp.Diff(wantHeader, header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(packets, readPackets(t, r)); diff != "" {
		t.Errorf("packets mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderRawStream(t *testing.T) {
	packets := [][]byte{{4, 5}, {6}}
	data := writeContainer(t, dca.OutputSettings{Raw: true}, packets)

	r := dca.NewReader(bytes.NewReader(data))
	if _, err := r.ReadHeader(); !errors.Is(err, dca.ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
	if diff := cmp.Diff(packets, readPackets(t, r)); diff != "" {
		t.Errorf("packets mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderEmptyStream(t *testing.T) {
	r := dca.NewReader(bytes.NewReader(nil))
	if _, err := r.ReadHeader(); !errors.Is(err, dca.ErrInvalidMagic) {
		t.Errorf("expected ErrInvalidMagic, got %v", err)
	}
	if _, err := r.ReadPacket(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReaderTruncatedPacket(t *testing.T) {
	data := writeContainer(t, dca.OutputSettings{Raw: true}, [][]byte{{1, 2, 3, 4}})
	r := dca.NewReader(bytes.NewReader(data[:len(data)-1]))

	if _, err := r.ReadPacket(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestReaderTruncatedMetadata(t *testing.T) {
	data := writeContainer(t, dca.OutputSettings{Metadata: []byte(`{"a":"b"}`)}, nil)
	r := dca.NewReader(bytes.NewReader(data[:len(data)-2]))

	if _, err := r.ReadHeader(); err == nil {
		t.Errorf("expected error but got none")
	}
}
