// Package util provides small helpers shared across the engine.
package util

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SanitizeFilename strips any path components from a client-supplied name.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// UniqueName prefixes a filename with a short random tag, used when a
// stored name would collide.
func UniqueName(name string) string {
	return uuid.New().String()[:8] + "_" + name
}

// ParseDurationDefault parses s as a time.Duration, returning def when s
// is empty or unparseable.
func ParseDurationDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
