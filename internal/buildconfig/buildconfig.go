package buildconfig

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/Harshitk-cp/condensate/internal/buildconfig.version=..."
var (
	version = "dev"
	commit  = "unknown"
	date    = ""
)

func Version() string { return version }

func Commit() string { return commit }

// VersionInfo is the build metadata reported by /stats.
func VersionInfo() map[string]string {
	info := map[string]string{
		"version": version,
		"commit":  commit,
		"go":      runtime.Version(),
	}
	if date != "" {
		info["date"] = date
	}
	return info
}

// String renders a single line for `condensectl version` and startup logs.
func String() string {
	s := fmt.Sprintf("condensate %s (%s, %s)", version, shortCommit(), runtime.Version())
	if date != "" {
		s += " built " + date
	}
	return s
}

func shortCommit() string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
