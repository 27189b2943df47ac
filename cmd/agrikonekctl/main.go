// Command agrikonekctl operator tasks for agrikonek-data: schema migrations,
// bundled dataset checks, bearer tokens for testing, user profiles and offline
// budget exports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "agrikonekctl",
	Short:         "Operator tool for the agrikonek-data service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	seedCmd.AddCommand(seedCheckCmd)
	rootCmd.AddCommand(migrateCmd, seedCmd, tokenCmd, profileCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
