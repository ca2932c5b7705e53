package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Build identity, overridden via -ldflags at release time
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the current version string
func GetVersion() string {
	return Version
}

// GetBuild returns the build timestamp
func GetBuild() string {
	return Build
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	return GitCommit
}

// GetFullVersion returns version with build info
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// LoadVersionFromFile lets a .version file beside the binary override the
// compiled-in version. A leading "v" is tolerated, missing or empty files
// leave the version untouched.
func LoadVersionFromFile() string {
	exePath, err := os.Executable()
	if err != nil {
		return Version
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(exePath), ".version"))
	if err != nil {
		return Version
	}

	version := strings.TrimPrefix(strings.TrimSpace(string(data)), "v")
	if version != "" {
		Version = version
	}

	return Version
}
