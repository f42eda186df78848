package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/huntseq/seqhound/internal/format"
	"github.com/huntseq/seqhound/internal/harness"
	"github.com/huntseq/seqhound/internal/logutil"
	"github.com/huntseq/seqhound/internal/rule"
)

func init() {
	rootCmd.AddCommand(testCmd)
}

var testCmd = &cobra.Command{
	Use:   "test <rule-file> <events.jsonl>",
	Short: "Replay a JSONL event batch against a single rule and print any matches",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ruleData, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read rule file: %w", err)
		}

		var doc rule.RuleDoc
		if err := yaml.Unmarshal(ruleData, &doc); err != nil {
			return fmt.Errorf("failed to parse rule file: %w", err)
		}

		eventData, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read events file: %w", err)
		}

		result, err := harness.RunJSONL(&doc, string(eventData))
		if err != nil {
			logutil.Error("%v", err)
			return err
		}

		logutil.Info("processed %d event(s), %d match(es)", result.EventsProcessed, len(result.Matches))
		for _, m := range result.Matches {
			fmt.Println(format.Render(result.Rule.Output.Format, m))
		}
		return nil
	},
}
