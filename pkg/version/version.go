// pkg/version/version.go
// Package version provides version metadata for the application.
package version

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// These variables are typically injected at build time using -ldflags
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = "unknown"
	// StartDate is when the process started.
	StartDate = time.Now()
)

// Info is the structured build information printed by `songledger version`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
}

// Get returns version information for the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a one-line summary.
func (i Info) String() string {
	s := fmt.Sprintf("songledger %s", i.Version)
	if i.Commit != "" {
		s += fmt.Sprintf(" (commit: %s, date: %s)", i.Commit, i.BuildDate)
	}
	return s
}

// Semver parses Version. Development builds report 0.0.0-dev.
func Semver() (*semver.Version, error) {
	if Version == "" || Version == "dev" {
		return semver.NewVersion("0.0.0-dev")
	}
	v, err := semver.NewVersion(strings.TrimPrefix(Version, "v"))
	if err != nil {
		return nil, fmt.Errorf("parse version %q: %w", Version, err)
	}
	return v, nil
}

// IsRelease reports whether the binary carries a release version without
// prerelease suffix.
func IsRelease() bool {
	v, err := Semver()
	return err == nil && v.Prerelease() == ""
}
