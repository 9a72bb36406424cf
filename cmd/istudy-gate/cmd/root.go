package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "istudy-gate",
	Short: "Local session gateway for the iStudy admin dashboard",
	Long: `istudy-gate owns the operator's session against the remote iStudy API:
it persists credentials across restarts, enforces absolute and inactivity
session expiry, guards dashboard routes by role, and proxies API traffic
with the bearer token attached.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
