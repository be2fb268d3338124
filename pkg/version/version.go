// Package version provides build and version information for docrag.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via ldflags at build time:
//
//	-X github.com/Aman-CERP/docrag/pkg/version.Version=v0.3.0
//	-X github.com/Aman-CERP/docrag/pkg/version.Commit=abc1234
//	-X github.com/Aman-CERP/docrag/pkg/version.Date=2026-01-02T15:04:05Z
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetInfo returns structured version information. Commit and date fall back
// to the VCS stamp the Go toolchain embeds when ldflags did not set them.
func GetInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyVCS(&info, bi.Settings)
	}
	return info
}

func applyVCS(info *BuildInfo, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = s.Value
				if len(info.Commit) > 7 {
					info.Commit = info.Commit[:7]
				}
			}
		case "vcs.time":
			if info.Date == "unknown" && s.Value != "" {
				info.Date = s.Value
			}
		}
	}
}

// String returns a one-line version string with build info.
func String() string {
	info := GetInfo()
	return fmt.Sprintf("docrag %s (commit: %s, built: %s, go: %s, %s/%s)",
		info.Version, info.Commit, info.Date, info.GoVersion, info.OS, info.Arch)
}

// Short returns just the version.
func Short() string {
	return Version
}
