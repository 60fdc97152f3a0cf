package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/pipeline"
	"github.com/halcyon-research/tracklist-cli/internal/rubric"
)

var runSkipScore bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full enrichment pipeline over all eligible records",
	Long: `Run every stage in order: match, features, lyrics, text, fill.

Only pending and transiently-failed records are processed; records already
resolved by an earlier run are skipped, so re-running after an interruption
picks up where it left off. Unless --skip-score is set, all records are
rubric-scored afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Pipeline.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		if !runSkipScore {
			rubricCfg, err := rubric.LoadConfig(cfg.Rubric.Path)
			if err != nil {
				return eris.Wrap(err, "load rubric")
			}
			scored, err := pipeline.ScoreAll(ctx, env.Store, rubric.NewScorer(rubricCfg))
			if err != nil {
				return eris.Wrap(err, "score records")
			}
			zap.L().Info("scoring complete", zap.Int("scored", scored))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runSkipScore, "skip-score", false, "skip rubric scoring after the stages")
	rootCmd.AddCommand(runCmd)
}
