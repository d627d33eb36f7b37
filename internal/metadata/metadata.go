// Package metadata models the JSON document embedded in a DCA container
// header and builds it from probed or stream-default source information.
package metadata

import (
	"encoding/json"
	"fmt"
)

// JSONVersion is the version of the metadata schema.
const JSONVersion = 1

// Tool identity written into every header.
const (
	ToolName    = "dca"
	ToolVersion = "0.1.0"
	ToolURL     = "https://github.com/glizzus/dca"
	ToolAuthor  = "glizzus"
)

// Origin sources.
const (
	SourceFile = "file"
	SourcePipe = "pipe"
)

// PipeEncoding describes raw PCM read from standard input.
const PipeEncoding = "pcm16/s16le"

type Metadata struct {
	DCA      DCA               `json:"dca"`
	SongInfo SongInfo          `json:"song_info"`
	Origin   Origin            `json:"origin"`
	Opus     Opus              `json:"opus"`
	Extra    map[string]string `json:"extra"`
}

type DCA struct {
	Version int  `json:"version"`
	Tool    Tool `json:"tool"`
}

type Tool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url"`
	Author  string `json:"author"`
}

type SongInfo struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Genre    string `json:"genre"`
	Comments string `json:"comments"`
	// Cover is base64 encoded image data.
	Cover string `json:"cover"`
}

type Origin struct {
	Source   string `json:"source"`
	Bitrate  uint32 `json:"bitrate"`
	Channels int    `json:"channels"`
	Encoding string `json:"encoding"`
	URL      string `json:"url"`
}

// Opus records the codec parameters. Bitrate is in bits per second.
type Opus struct {
	Bitrate     int    `json:"bitrate"`
	SampleRate  int    `json:"sample_rate"`
	Application string `json:"application"`
	FrameSize   int    `json:"frame_size"`
	Channels    int    `json:"channels"`
}

// Marshal serializes m as compact UTF-8 JSON.
func (m *Metadata) Marshal() ([]byte, error) {
	if m.Extra == nil {
		m.Extra = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}

// Unmarshal parses a metadata document read back from a container header.
func Unmarshal(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if m.Extra == nil {
		m.Extra = map[string]string{}
	}
	return &m, nil
}
