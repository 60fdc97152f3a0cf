package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/model"
	"github.com/halcyon-research/tracklist-cli/internal/pipeline"
	"github.com/halcyon-research/tracklist-cli/internal/rubric"
	"github.com/halcyon-research/tracklist-cli/internal/store"
)

var scoreRubricPath string

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score all records against the therapeutic rubric",
	Long: `Evaluate every record against the rubric and persist the results.

Scoring is deterministic: unchanged attributes always produce the same
score. Criteria whose attributes are unresolved are skipped and their
weight redistributed over the remaining criteria. A custom rubric may be
supplied with --rubric; otherwise the built-in therapeutic rubric is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		path := scoreRubricPath
		if path == "" {
			path = cfg.Rubric.Path
		}
		rubricCfg, err := rubric.LoadConfig(path)
		if err != nil {
			return eris.Wrap(err, "load rubric")
		}

		scored, err := pipeline.ScoreAll(ctx, st, rubric.NewScorer(rubricCfg))
		if err != nil {
			return eris.Wrap(err, "score records")
		}
		zap.L().Info("scoring complete", zap.Int("scored", scored))

		scores, err := st.ListScores(ctx)
		if err != nil {
			return eris.Wrap(err, "list scores")
		}
		return formatScores(ctx, os.Stdout, st, scores)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreRubricPath, "rubric", "", "path to a rubric YAML file (default: built-in)")
	rootCmd.AddCommand(scoreCmd)
}

// formatScores writes the persisted scores, highest first, with a
// readiness flag and the skipped criteria per record.
func formatScores(ctx context.Context, out io.Writer, st store.Store, scores []model.Score) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SONG\tARTIST\tSCORE\tGRADE\tFLAG\tSKIPPED")
	_, _ = fmt.Fprintln(w, "----\t------\t-----\t-----\t----\t-------")

	for _, sc := range scores {
		song, err := st.GetSong(ctx, sc.SongID)
		if err != nil {
			return eris.Wrapf(err, "load record %s", sc.SongID)
		}

		flag := "HOLD"
		if pipeline.Ready(song, sc) {
			flag = "READY"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			song.Title,
			song.Artist,
			sc.Total*100,
			sc.Grade,
			flag,
			strings.Join(sc.Skipped, ","),
		)
	}
	return w.Flush()
}
