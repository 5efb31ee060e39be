package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gantry",
	Short: "Gantry - CI/CD pipeline orchestrator",
	Long: `Gantry sequences container build, scan, publish, and ephemeral
cluster deployment steps into fail-fast pipelines.

The ci workflow builds a scan-variant image, gates it on vulnerability
severity, then builds and pushes its publish-variant sibling. The cd
workflow provisions a throwaway cluster, deploys the published image,
and verifies it answers before tearing the cluster down.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Gantry version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(ciCmd)
	rootCmd.AddCommand(cdCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Gantry version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}
