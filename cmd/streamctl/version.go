package main

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/joshuapare/clusterkit/internal/format"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type versionInfo struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	Built         string `json:"built"`
	Go            string `json:"go"`
	FormatVersion uint8  `json:"format_version"`
	ClusterMax    int    `json:"max_cluster_size"`
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and storage format information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{
				Version:       version,
				Commit:        commit,
				Built:         date,
				Go:            runtime.Version(),
				FormatVersion: format.Version,
				ClusterMax:    format.MaxClusterSize,
			}
			if jsonOut {
				return printJSON(info)
			}
			printInfo("streamctl %s (%s, built %s, %s)\n", info.Version, info.Commit, info.Built, info.Go)
			printInfo("  storage format: v%d, clusters up to %d bytes\n", info.FormatVersion, info.ClusterMax)
			return nil
		},
	}
}
