// Package version holds build information injected with -ldflags.
package version

import "runtime"

// Set at build time:
//
//	-X github.com/bissquit/guildhall/internal/version.Version=1.2.0
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String formats the build information for a single log or CLI line.
func (i Info) String() string {
	return i.Version + " (" + i.Commit + ", built " + i.BuildDate + ", " + i.GoVersion + ")"
}
