package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/huntseq/seqhound/internal/config"
	"github.com/huntseq/seqhound/internal/correlation"
	"github.com/huntseq/seqhound/internal/event"
	"github.com/huntseq/seqhound/internal/format"
	"github.com/huntseq/seqhound/internal/logutil"
	"github.com/huntseq/seqhound/internal/reload"
	"github.com/huntseq/seqhound/internal/snapshot"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the configured rules path and match NDJSON events read from stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			return fmt.Errorf("--config is required for run")
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		watcher, err := reload.New(cfg.Rules.Path, cfg.Engine.ShardCount, cfg.Engine.GCIntervalEvents, 250*time.Millisecond)
		if err != nil {
			return fmt.Errorf("initial rules load failed: %w", err)
		}

		if cfg.Rules.ReloadOn == "fsnotify" {
			if err := watcher.Start(); err != nil {
				return fmt.Errorf("failed to start rules watcher: %w", err)
			}
			defer watcher.Stop()
		}

		if cfg.Snapshot.Enabled {
			store, err := snapshot.Open(cfg.Snapshot.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			runner := snapshot.NewRunner(store, func() []correlation.StateInfo {
				return watcher.Engine().StateSummary()
			}, cfg.Snapshot.Interval)
			runner.Start()
			defer runner.Stop()
		}

		logutil.Success("seqhound running, rules loaded from %s", cfg.Rules.Path)

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}

			var fields map[string]any
			if err := json.Unmarshal([]byte(line), &fields); err != nil {
				logutil.Warn("skipping malformed event: %v", err)
				continue
			}

			ev := event.New(fields, nil, nil)
			for _, m := range watcher.Engine().ProcessEvent(ev) {
				logutil.Match(m.RuleID, m.Rule.Severity, m.RuleName, format.Render(m.Rule.Output.Format, m))
			}
		}

		return scanner.Err()
	},
}
