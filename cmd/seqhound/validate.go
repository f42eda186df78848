package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huntseq/seqhound/internal/logutil"
	"github.com/huntseq/seqhound/internal/rule"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate <rules-path>",
	Short: "Compile every rule at the given file or directory without loading the engine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		docs, err := rule.Load(path)
		if err != nil {
			logutil.Error("failed to load %s: %v", path, err)
			return err
		}

		compiled, err := rule.CompileAll(docs)
		if err != nil {
			logutil.Error("%v", err)
			return err
		}

		logutil.Success("compiled %d rule(s) from %s", len(compiled), path)
		for _, c := range compiled {
			fmt.Printf("  %s: %s (%d step(s), window %s)\n", c.ID, c.Name, len(c.Steps), c.Window)
		}
		return nil
	},
}
