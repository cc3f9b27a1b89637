// Package version reports the build version of the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X github.com/alumnet/alumnet/internal/version.Version=...".
var (
	Version    = "dev"
	CommitHash = ""
	BuildTime  = ""
)

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"buildTime,omitempty"`
	GoVersion string `json:"goVersion"`
}

var vcsOnce sync.Once

// Get returns build info, falling back to VCS stamps embedded by the Go toolchain.
func Get() Info {
	vcsOnce.Do(func() {
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
	return Info{
		Version:   Version,
		Commit:    CommitHash,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String renders "version (shortcommit)".
func (i Info) String() string {
	if i.Commit == "" {
		return i.Version
	}
	short := i.Commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s)", i.Version, short)
}
