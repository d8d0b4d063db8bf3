// Package version exposes build information set through ldflags or the Go build info.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

var (
	// Version is overridden at build time with -ldflags "-X .../version.Version=v1.2.3".
	Version = "dev"
	// CommitHash is the VCS revision; read from build info when empty.
	CommitHash = ""
	// BuildTime is the VCS commit time; read from build info when empty.
	BuildTime = ""

	loadOnce sync.Once
)

func load() {
	loadOnce.Do(func() {
		if CommitHash != "" {
			return
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				CommitHash = setting.Value
			case "vcs.time":
				BuildTime = setting.Value
			}
		}
	})
}

// GetInfo returns "version (shorthash)" or just the version when no revision is known.
func GetInfo() string {
	load()
	if CommitHash == "" {
		return Version
	}
	short := CommitHash
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s)", Version, short)
}
