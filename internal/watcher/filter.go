package watcher

import (
	"path/filepath"
	"strings"
)

// Partial downloads and editor swap files never reach ingest.
var tempSuffixes = []string{"~", ".tmp", ".temp", ".part", ".partial", ".crdownload", ".download", ".swp", ".swx"}

// Accepts reports whether a file name should be ingested: not hidden, not a
// temporary file, not ignored, and with an accepted extension.
func (o Options) Accepts(name string) bool {
	base := filepath.Base(name)
	if base == "" || base == "." || strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}

	lower := strings.ToLower(base)
	for _, suffix := range tempSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}

	for _, pattern := range o.IgnorePatterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return false
		}
	}

	if len(o.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, want := range o.Extensions {
		want = strings.ToLower(strings.TrimSpace(want))
		if !strings.HasPrefix(want, ".") {
			want = "." + want
		}
		if ext == want {
			return true
		}
	}
	return false
}
