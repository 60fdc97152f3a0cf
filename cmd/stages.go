package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/halcyon-research/tracklist-cli/internal/model"
)

// stageCmd builds a command that runs exactly one pipeline stage. Each
// stage is independently re-runnable: it only touches pending and
// transiently-failed records.
func stageCmd(use string, stage model.Stage, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env, err := initPipeline(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			summary, err := env.Pipeline.RunStage(ctx, stage)
			if err != nil {
				return eris.Wrapf(err, "stage %s", stage)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
}

func init() {
	rootCmd.AddCommand(
		stageCmd("match", model.StageMatch, "Link pending records to catalog tracks"),
		stageCmd("features", model.StageFeatures, "Fetch audio features for matched records"),
		stageCmd("lyrics", model.StageLyrics, "Fetch lyrics for matched records"),
		stageCmd("enrich-text", model.StageText, "Derive valence and arousal from lyrics"),
		stageCmd("fill", model.StageFill, "Fill remaining attribute gaps via Claude"),
	)
}
