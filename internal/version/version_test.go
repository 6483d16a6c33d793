package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func buildInfo(settings ...debug.BuildSetting) func() (*debug.BuildInfo, bool) {
	return func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: settings}, true
	}
}

func TestResolve_LinkedValuesWin(t *testing.T) {
	t.Parallel()
	info := resolve("v1.4.0", "abc1234", "2026-05-01T10:00:00Z",
		buildInfo(debug.BuildSetting{Key: "vcs.revision", Value: "ffffffffffff"}))
	if info.Commit != "abc1234" || info.Version != "v1.4.0" || info.BuildDate != "2026-05-01T10:00:00Z" {
		t.Errorf("info = %+v", info)
	}
}

func TestResolve_FallsBackToVCS(t *testing.T) {
	t.Parallel()
	info := resolve("dev", "unknown", "unknown", buildInfo(
		debug.BuildSetting{Key: "vcs.revision", Value: "0123456789abcdef"},
		debug.BuildSetting{Key: "vcs.time", Value: "2026-04-02T08:30:00Z"},
	))
	if info.Commit != "0123456" {
		t.Errorf("Commit = %q, want short revision", info.Commit)
	}
	if info.BuildDate != "2026-04-02T08:30:00Z" {
		t.Errorf("BuildDate = %q", info.BuildDate)
	}
}

func TestResolve_NoBuildInfo(t *testing.T) {
	t.Parallel()
	info := resolve("dev", "unknown", "unknown", func() (*debug.BuildInfo, bool) { return nil, false })
	if info.Commit != "unknown" || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}

func TestInfo_String(t *testing.T) {
	t.Parallel()
	s := Info{Version: "v1.4.0", Commit: "abc1234", BuildDate: "2026-05-01", GoVersion: "go1.26.0"}.String()
	want := "fitcoach v1.4.0 (commit: abc1234, built: 2026-05-01, go1.26.0)"
	if s != want {
		t.Errorf("String() = %q, want %q", s, want)
	}
	if !strings.HasPrefix(Get().String(), "fitcoach dev") {
		t.Errorf("Get().String() = %q", Get().String())
	}
}
