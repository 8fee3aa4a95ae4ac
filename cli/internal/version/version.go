package version

import (
	"fmt"
	"runtime"

	goversion "github.com/hashicorp/go-version"
)

var (
	// Version is the version of the CLI
	Version = "0.1.0"
	// BuildDate is the build date
	BuildDate = "unknown"
	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// Info holds version information
type Info struct {
	Version   string
	BuildDate string
	GitCommit string
	GoVersion string
	Platform  string
}

// Get returns version information
func Get() Info {
	return Info{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// Semver parses Version. Builds stamped with a non-semver value such as
// "dev" return an error.
func (i Info) Semver() (*goversion.Version, error) {
	return goversion.NewVersion(i.Version)
}

// Prerelease reports whether the build is a prerelease or unversioned.
func (i Info) Prerelease() bool {
	v, err := i.Semver()
	return err != nil || v.Prerelease() != ""
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("schemaver version %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString returns a detailed version string
func (i Info) FullString() string {
	s := fmt.Sprintf(`schemaver version %s
Build Date: %s
Git Commit: %s
Platform: %s
Go Version: %s`, i.Version, i.BuildDate, i.GitCommit, i.Platform, i.GoVersion)
	if i.Prerelease() {
		s += "\nPrerelease: yes"
	}
	return s
}
