package toolchain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProbeResult is the subset of `ffprobe -show_format` output the encoder uses.
type ProbeResult struct {
	Format Format `json:"format"`
}

type Format struct {
	Filename       string            `json:"filename"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       string            `json:"duration"`
	BitRate        string            `json:"bit_rate"`
	Tags           map[string]string `json:"tags"`
}

// Tag returns the value of the named tag, matching the key without regard to
// case. Containers disagree on tag casing (ARTIST vs artist).
func (f Format) Tag(name string) string {
	if v, ok := f.Tags[name]; ok {
		return v
	}
	for k, v := range f.Tags {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Bitrate parses bit_rate, returning 0 when it is absent or malformed.
func (f Format) Bitrate() uint32 {
	v, err := strconv.ParseUint(strings.TrimSpace(f.BitRate), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(data []byte) (*ProbeResult, error) {
	var res ProbeResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("unable to parse ffprobe output: %w", err)
	}
	return &res, nil
}
