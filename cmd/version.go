package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("Anima %s\n", AppVersion)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Println()

		// Presence only, never the key material.
		for _, envVar := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY"} {
			if os.Getenv(envVar) != "" {
				fmt.Printf("  %s: configured\n", envVar)
			} else {
				fmt.Printf("  %s: not set\n", envVar)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
