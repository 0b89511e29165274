package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/fieldguard/pkg/cli"
)

// Set with -ldflags "-X main.Version=... -X main.GitCommit=... -X main.BuildDate=...".
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// buildInfo identifies the running binary.
type buildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func currentBuild() buildInfo {
	return buildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (b buildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fieldguard %s\n", b.Version)
	fmt.Fprintf(&sb, "Git Commit: %s\n", b.GitCommit)
	fmt.Fprintf(&sb, "Build Date: %s\n", b.BuildDate)
	fmt.Fprintf(&sb, "Go Version: %s\n", b.GoVersion)
	fmt.Fprintf(&sb, "OS/Arch: %s", b.Platform)
	return sb.String()
}

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fieldguard build",
	Long: `Print the fieldguard release with the commit and date it was built from,
the Go toolchain and the platform. Bug reports should include this output.`,
	Example: `  fieldguard version
  fieldguard version --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(versionFormat, cli.FormatText, cli.FormatJSON)
		if err != nil {
			return err
		}
		return cli.NewFormatter(format).FormatTo(commandOutput(cmd), currentBuild())
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "text", "output format: text, json")
	rootCmd.AddCommand(versionCmd)
}
