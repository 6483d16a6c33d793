// Package version reports which fitcoach build is running. Version, Commit,
// and BuildDate are set with -ldflags "-X"; go run builds fall back to the
// module build info embedded by the toolchain.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the short git SHA.
	Commit = "unknown"
	// BuildDate is the RFC3339 build time.
	BuildDate = "unknown"
)

// Info is the build identity reported by `fitcoach version` and
// /api/health.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Get returns the linked-in build identity. When Commit was not set at link
// time, the VCS revision recorded by the toolchain is used instead.
func Get() Info {
	return resolve(Version, Commit, BuildDate, debug.ReadBuildInfo)
}

func resolve(v, commit, date string, read func() (*debug.BuildInfo, bool)) Info {
	info := Info{Version: v, Commit: commit, BuildDate: date, GoVersion: runtime.Version()}
	if commit != "unknown" {
		return info
	}
	bi, ok := read()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 7 {
				info.Commit = s.Value[:7]
			} else if s.Value != "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if date == "unknown" && s.Value != "" {
				info.BuildDate = s.Value
			}
		}
	}
	return info
}

// String renders the one-line form printed by `fitcoach version`.
func (i Info) String() string {
	return fmt.Sprintf("fitcoach %s (commit: %s, built: %s, %s)", i.Version, i.Commit, i.BuildDate, i.GoVersion)
}
