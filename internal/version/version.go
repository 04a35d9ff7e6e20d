package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the released version, overridden at build time:
//
//	go build -ldflags "-X github.com/hrygo/concierge/internal/version.Version=0.3.0"
var Version = "0.1.0"

// DevVersion is reported in dev mode.
var DevVersion = Version + "-dev"

// GitCommit is set via ldflags: -X github.com/hrygo/concierge/internal/version.GitCommit=$(git rev-parse HEAD)
var GitCommit = "unknown"

// BuildTime is set via ldflags in RFC3339 format.
var BuildTime = "unknown"

func GetCurrentVersion(mode string) string {
	if mode == "dev" {
		return DevVersion
	}
	return Version
}

// IsValid reports whether version is a semantic version without the "v" prefix.
func IsValid(version string) bool {
	return semver.IsValid("v" + version)
}

// Validate rejects a Version injected at build time that is not a semantic
// version, such as an unexpanded "$(git describe)".
func Validate() error {
	if !IsValid(Version) {
		return fmt.Errorf("build version %q is not a semantic version", Version)
	}
	return nil
}

// String returns the version with a short commit suffix when known.
func String() string {
	if GitCommit == "" || GitCommit == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s-%s", Version, shortCommit())
}

// StringFull returns the version with build metadata.
func StringFull() string {
	parts := []string{"Version=" + Version}
	if GitCommit != "" && GitCommit != "unknown" {
		parts = append(parts, "Commit="+shortCommit())
	}
	if BuildTime != "" && BuildTime != "unknown" {
		parts = append(parts, "BuildTime="+BuildTime)
	}
	return strings.Join(parts, " ")
}

func shortCommit() string {
	if len(GitCommit) > 8 {
		return GitCommit[:8]
	}
	return GitCommit
}
