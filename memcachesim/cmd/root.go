// Package cmd provides the command-line interface of the memory cache
// simulator.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memcachesim",
	Short: "memcachesim simulates a directory-based memory cache with L1 agents.",
	Long: `memcachesim simulates a memory-side cache that keeps the L1 caches ` +
		`of several agents coherent. The run command drives random traffic and ` +
		`checks coherence at the end; the scenario command replays a named ` +
		`scenario and prints its message sequence. Flag defaults can be set ` +
		`with MEMCACHESIM_* variables, also read from a .env file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
}
