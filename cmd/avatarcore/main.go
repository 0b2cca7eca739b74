// Command avatarcore runs the avatar animation core headless: it follows a
// conversational backend's turn feed, integrates frames at a fixed rate
// and streams poses to remote renderers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time)
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "avatarcore",
		Short:         "Headless 3D avatar animation core",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "config file (default ~/.avatarcore/config.yaml)")

	rootCmd.AddCommand(newRunCmd(), newSnapshotCmd(), newConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
