// Package buildinfo holds build-time metadata injected through ldflags.
package buildinfo

import (
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/ando01/BirdView/internal/buildinfo.version=..."
var (
	version   = ""
	buildDate = ""
)

// Context contains build-time metadata that is not user-configurable
type Context struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Current returns the metadata of the running binary. Without ldflags the
// module version recorded by the Go toolchain is used.
func Current() Context {
	v := version
	if v == "" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	return Context{Version: v, BuildDate: buildDate, GoVersion: runtime.Version()}
}

// GetVersion returns the version or "unknown".
func (c Context) GetVersion() string {
	if c.Version == "" {
		return "unknown"
	}
	return c.Version
}

// GetBuildDate returns the build date or "unknown".
func (c Context) GetBuildDate() string {
	if c.BuildDate == "" {
		return "unknown"
	}
	return c.BuildDate
}
