package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// VersionInfo is the version command output.
type VersionInfo struct {
	Version string
	Commit  string
	Built   string
	Go      string
}

func currentVersion() VersionInfo {
	return VersionInfo{Version: version, Commit: commit, Built: date, Go: runtime.Version()}
}

// String is also what --version prints.
func (v VersionInfo) String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)", v.Version, v.Commit, v.Built, v.Go)
}

func init() {
	rootCmd.Version = currentVersion().String()
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion()
		},
	})
}

func runVersion() error {
	v := currentVersion()
	if jsonOut {
		return printJSON(v)
	}
	printInfo("memctl %s\n", v)
	return nil
}
