// Package version reports which build of the ecoflux tools is running.
//
// Release builds stamp Version, Commit and Date through ldflags. Source
// builds fall back to the module metadata the Go toolchain embeds in the
// binary, so unstamped binaries still report a usable identity.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Stamped by the release pipeline:
//
//	go build -ldflags "-X github.com/gremau/ecoflux-tools/internal/version.Version=v0.3.0"
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// BuildInfo is the resolved build identity.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Date      string `json:"date,omitempty"`
	GoVersion string `json:"go_version"`
	Module    string `json:"module,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

// Info resolves the build identity. Stamped ldflags values win; anything
// left blank is filled from the binary's embedded build metadata.
func Info() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.Module = bi.Main.Path
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = setting.Value
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = setting.Value
			}
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}
	return info
}

// Short returns a compact identity like "v0.3.0 (ab12cd3)".
func (b BuildInfo) Short() string {
	s := b.Version
	if c := shortCommit(b.Commit); c != "" {
		s += " (" + c + ")"
	}
	if b.Modified {
		s += " (modified)"
	}
	return s
}

// String returns the multi-line listing printed by --version.
func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ecoflux-tools %s\n", b.Short())
	if b.Date != "" {
		fmt.Fprintf(&sb, "  built:  %s\n", b.Date)
	}
	if b.Commit != "" {
		fmt.Fprintf(&sb, "  commit: %s\n", b.Commit)
	}
	fmt.Fprintf(&sb, "  go:     %s\n", b.GoVersion)
	if b.Module != "" {
		fmt.Fprintf(&sb, "  module: %s\n", b.Module)
	}
	return sb.String()
}

// IsRelease reports whether this build carries a stamped release version.
func IsRelease() bool {
	return Version != "dev" && !strings.Contains(Version, "-")
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
