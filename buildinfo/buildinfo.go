package buildinfo

import "github.com/contract-ace/smartace/pkg/telemetry"

var (
	// GitCommit is set by govvv at build time.
	GitCommit = "n/a"
	// GitBranch  is set by govvv at build time.
	GitBranch = "n/a"
	// GitState  is set by govvv at build time.
	GitState = "n/a"
	// GitSummary is set by govvv at build time.
	GitSummary = "n/a"
	// BuildDate  is set by govvv at build time.
	BuildDate = "n/a"
	// Version  is set by govvv at build time.
	Version = "n/a"
)

// summary implements telemetry.GitSummary over the package-level build vars.
type summary struct{}

func (summary) GetGitCommit() string     { return GitCommit }
func (summary) GetGitBranch() string     { return GitBranch }
func (summary) GetGitState() string      { return GitState }
func (summary) GetGitSummary() string    { return GitSummary }
func (summary) GetBuildDate() string     { return BuildDate }
func (summary) GetBinaryVersion() string { return Version }

// GetSummary returns a summary of git information, ready to pass to telemetry.Collect.
func GetSummary() telemetry.GitSummary {
	return summary{}
}
