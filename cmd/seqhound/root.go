package main

import (
	"github.com/spf13/cobra"

	"github.com/huntseq/seqhound/internal/logutil"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "seqhound",
	Short: "seqhound matches ordered event sequences against declarative rules",
	Long: `seqhound compiles declarative sequence rules ("login then file access
within 60 seconds, grouped by agent ID") and matches them against a stream of
events.

Subcommands:
  validate   compile a rules file or directory without running the engine
  test       replay a JSONL event batch against one rule and print matches
  run        watch a rules path and match events read from stdin`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logutil.SetVerbosity(logutil.VerboseLevel)
			logutil.SetTimestamps(true)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to seqhound config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}
