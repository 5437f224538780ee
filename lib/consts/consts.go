// Package consts houses the build constants of the devtools command.
package consts

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version contains the current semantic version of devtools.
const Version = "0.3.0"

// FullVersion returns the version with the VCS revision and Go runtime
// details appended, when the binary was built with them.
func FullVersion() string {
	goVersionArch := fmt.Sprintf("%s, %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Sprintf("%s (%s)", Version, goVersionArch)
	}

	var commit string
	var dirty bool
	for _, s := range buildInfo.Settings {
		switch s.Key {
		case "vcs.revision":
			commitLen := 10
			if len(s.Value) < commitLen {
				commitLen = len(s.Value)
			}
			commit = s.Value[:commitLen]
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if commit == "" {
		return fmt.Sprintf("%s (%s)", Version, goVersionArch)
	}
	if dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit/%s, %s)", Version, commit, goVersionArch)
}

// VersionDetails returns the build details as a map, for JSON output.
func VersionDetails() map[string]string {
	return map[string]string{
		"version":    Version,
		"go_version": runtime.Version(),
		"go_os":      runtime.GOOS,
		"go_arch":    runtime.GOARCH,
	}
}
