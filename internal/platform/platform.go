// Package platform reports facts about the host that decide which local
// engines and installers apply.
package platform

import (
	"os"
	"runtime"
)

// Package-level values for testability.
var (
	goos   = runtime.GOOS
	goarch = runtime.GOARCH
)

// OS returns the operating system name (e.g., "darwin", "linux").
func OS() string {
	return goos
}

// Shell returns the user's shell from $SHELL, defaulting to /bin/sh.
func Shell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/sh"
}

// OnDeviceModels reports whether the host can run Apple's on-device
// foundation models, which need macOS on Apple silicon.
func OnDeviceModels() bool {
	return goos == "darwin" && goarch == "arm64"
}
