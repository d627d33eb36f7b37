package util

import (
	"fmt"
	"strings"
)

// ParsePairs turns key=value strings into a map. The value may itself
// contain '='. When a key repeats, the last value wins.
func ParsePairs(pairs []string) (map[string]string, error) {
	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid pair %q: expected key=value", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid pair %q: empty key", pair)
		}
		result[key] = value
	}
	return result, nil
}
