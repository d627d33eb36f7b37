package opus_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/glizzus/dca/internal/config"
	"github.com/glizzus/dca/internal/opus"
	"github.com/google/go-cmp/cmp"
)

var stereo20ms = opus.EncoderSettings{
	SampleRate:  48000,
	Channels:    2,
	Application: config.ApplicationAudio,
	Bitrate:     64,
	FrameSize:   960,
}

// tagCodec emits the first sample of each frame as a one byte packet so tests
// can follow frames through the stage.
type tagCodec struct {
	failAt int
	calls  int
}

func (c *tagCodec) Encode(pcm []int16, data []byte) (int, error) {
	c.calls++
	if c.failAt > 0 && c.calls == c.failAt {
		return 0, errors.New("codec exploded")
	}
	data[0] = byte(pcm[0])
	return 1, nil
}

func frame(settings opus.EncoderSettings, tag int16) []int16 {
	f := make([]int16, settings.FrameSamples())
	f[0] = tag
	return f
}

func TestEncoderSettings(t *testing.T) {
	tc := []struct {
		name      string
		frameSize int
		channels  int
		maxBytes  int
	}{
		{name: "mono 20ms", frameSize: 960, channels: 1, maxBytes: 1920},
		{name: "stereo 20ms", frameSize: 960, channels: 2, maxBytes: 3840},
		{name: "stereo 60ms", frameSize: 2880, channels: 2, maxBytes: 11520},
	}
	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			s := opus.EncoderSettings{FrameSize: test.frameSize, Channels: test.channels}
			if got := s.MaxPacketBytes(); got != test.maxBytes {
				t.Errorf("expected %d max bytes, got %d", test.maxBytes, got)
			}
			if s.MaxPacketBytes() > math.MaxInt16 {
				t.Errorf("max packet size %d does not fit a dca length prefix", s.MaxPacketBytes())
			}
		})
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := &config.EncodeConfig{
		Application: config.ApplicationVoIP,
		Bitrate:     32,
		Channels:    1,
		SampleRate:  24000,
		FrameSize:   1920,
	}
	want := opus.EncoderSettings{
		SampleRate:  24000,
		Channels:    1,
		Application: config.ApplicationVoIP,
		Bitrate:     32,
		FrameSize:   1920,
	}
	if diff := cmp.Diff(want, opus.SettingsFromConfig(cfg)); diff != "" {
		t.Errorf("SettingsFromConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestEncoderEncodeTruncates(t *testing.T) {
	enc := opus.NewEncoderWithCodec(&tagCodec{}, stereo20ms)
	packet, err := enc.Encode(frame(stereo20ms, 42))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]byte{42}, packet); diff != "" {
		t.Errorf("packet mismatch (-want +got):\n%s", diff)
	}
}

func TestEncoderRejectsWrongFrameLength(t *testing.T) {
	enc := opus.NewEncoderWithCodec(&tagCodec{}, stereo20ms)
	if _, err := enc.Encode(make([]int16, 10)); err == nil {
		t.Errorf("expected error but got none")
	}
}

func TestEncoderRunPreservesOrder(t *testing.T) {
	enc := opus.NewEncoderWithCodec(&tagCodec{}, stereo20ms)

	in := make(chan []int16, 50)
	out := make(chan []byte, 50)
	for i := range 50 {
		in <- frame(stereo20ms, int16(i))
	}
	close(in)

	if err := enc.Run(context.Background(), in, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	i := 0
	for packet := range out {
		if packet[0] != byte(i) {
			t.Fatalf("packet %d carries frame %d", i, packet[0])
		}
		i++
	}
	if i != 50 {
		t.Errorf("expected 50 packets, got %d", i)
	}
}

func TestEncoderRunStopsOnCodecFailure(t *testing.T) {
	codec := &tagCodec{failAt: 3}
	enc := opus.NewEncoderWithCodec(codec, stereo20ms)

	in := make(chan []int16, 5)
	out := make(chan []byte, 5)
	for i := range 5 {
		in <- frame(stereo20ms, int16(i))
	}
	close(in)

	if err := enc.Run(context.Background(), in, out); err == nil {
		t.Fatal("expected error but got none")
	}

	var packets int
	for range out {
		packets++
	}
	if packets != 2 {
		t.Errorf("expected only the 2 packets before the failure, got %d", packets)
	}
	if codec.calls != 3 {
		t.Errorf("expected the stage to stop after the failing frame, codec saw %d frames", codec.calls)
	}
}

func TestEncoderRunCancelled(t *testing.T) {
	enc := opus.NewEncoderWithCodec(&tagCodec{}, stereo20ms)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan []byte)
	if err := enc.Run(ctx, make(chan []int16), out); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, ok := <-out; ok {
		t.Errorf("expected output channel to be closed")
	}
}

func TestNewCodecRejectsBadSettings(t *testing.T) {
	tc := []struct {
		name   string
		mutate func(*opus.EncoderSettings)
	}{
		{name: "unknown application", mutate: func(s *opus.EncoderSettings) { s.Application = "music" }},
		{name: "three channels", mutate: func(s *opus.EncoderSettings) { s.Channels = 3 }},
		{name: "unsupported sample rate", mutate: func(s *opus.EncoderSettings) { s.SampleRate = 44100 }},
	}
	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			s := stereo20ms
			test.mutate(&s)
			if _, err := opus.NewCodec(s); err == nil {
				t.Errorf("expected error but got none")
			}
		})
	}
}

func TestLibopusEncodesSilence(t *testing.T) {
	for _, app := range config.Applications {
		t.Run(string(app), func(t *testing.T) {
			s := stereo20ms
			s.Application = app
			enc, err := opus.NewEncoder(s)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for i := range 5 {
				packet, err := enc.Encode(make([]int16, s.FrameSamples()))
				if err != nil {
					t.Fatalf("frame %d: unexpected error: %v", i, err)
				}
				if len(packet) == 0 || len(packet) > s.MaxPacketBytes() {
					t.Errorf("frame %d: packet length %d out of range", i, len(packet))
				}
			}
		})
	}
}
