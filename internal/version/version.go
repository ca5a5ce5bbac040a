// Package version carries build metadata for the subagents binary.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/subagents/internal/version.Version=0.3.0
//	  -X github.com/soyeahso/subagents/internal/version.Commit=abc123
//	  -X github.com/soyeahso/subagents/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Name is the binary name reported by Info.
const Name = "subagents"

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, %s, %s/%s)",
		Name, Version, short(Commit), Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
