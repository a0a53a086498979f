package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrz1836/compass/internal/output"
	versionpkg "github.com/mrz1836/compass/internal/version"
)

const (
	// devVersionString is the version reported by untagged builds.
	devVersionString = "dev"
	// releaseOwner and releaseRepo locate published releases.
	releaseOwner = "mrz1836"
	releaseRepo  = "compass"
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// SetBuildInfo records the build metadata shown by `compass version`.
func SetBuildInfo(info BuildInfo) {
	buildInfo = info
	rootCmd.Version = formatVersion(info)
}

func formatVersion(info BuildInfo) string {
	v, commit, date := info.Version, info.Commit, info.Date
	if v == "" {
		v = devVersionString
	}
	if commit == "" {
		commit = "unknown"
	}
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", v, commit, date)
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var versionCheck bool

// versionCmd prints build metadata and optionally checks for a newer release.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show the compass version, commit and build date.

With --check, also ask GitHub for the latest published release.`,
	Example: `  compass version
  compass version --check -o json`,
	RunE: runVersion,
}

// versionOutput is the version command result.
type versionOutput struct {
	Version         string `json:"version"`
	Commit          string `json:"commit,omitempty"`
	Date            string `json:"date,omitempty"`
	Latest          string `json:"latest,omitempty"`
	UpdateAvailable bool   `json:"update_available,omitempty"`
}

// releaseFetcher is replaced in tests.
//
//nolint:gochecknoglobals // test seam
var releaseFetcher = func(cmd *cobra.Command) (*versionpkg.GitHubRelease, error) {
	ctx, cancel := contextWithTimeout(cmd, versionpkg.DefaultTimeout)
	defer cancel()
	return versionpkg.NewClient().GetLatestRelease(ctx, releaseOwner, releaseRepo)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	res := versionOutput{Version: buildInfo.Version, Commit: buildInfo.Commit, Date: buildInfo.Date}
	if res.Version == "" {
		res.Version = devVersionString
	}

	if versionCheck {
		release, err := releaseFetcher(cmd)
		if err != nil {
			return err
		}
		res.Latest = versionpkg.NormalizeVersion(release.TagName)
		res.UpdateAvailable = res.Version != devVersionString && versionpkg.IsNewerVersion(res.Version, release.TagName)
	}

	if formatter.IsJSON() {
		return formatter.Print(res)
	}

	w := cmd.OutOrStdout()
	outln(w, "compass "+formatVersion(buildInfo))
	if versionCheck {
		switch {
		case res.UpdateAvailable:
			output.Info(w, "A newer release is available: %s", res.Latest)
		case res.Version == devVersionString:
			output.Info(w, "Latest release: %s (development build)", res.Latest)
		default:
			output.Success(w, "Up to date (latest: %s)", res.Latest)
		}
	}
	return nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	versionCmd.GroupID = "config"
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
}
