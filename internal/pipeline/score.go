package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/model"
	"github.com/halcyon-research/tracklist-cli/internal/rubric"
	"github.com/halcyon-research/tracklist-cli/internal/store"
)

// ScoreAll evaluates every record against the rubric and persists the
// results. Re-scoring replaces a record's previous score.
func ScoreAll(ctx context.Context, st store.Store, scorer *rubric.Scorer) (int, error) {
	songs, err := st.ListSongs(ctx, store.SongFilter{})
	if err != nil {
		return 0, err
	}

	scored := 0
	for i := range songs {
		sc := scorer.Score(&songs[i])
		if err := st.SaveScore(ctx, sc); err != nil {
			return scored, err
		}
		scored++
	}

	zap.L().Info("score: catalog scored", zap.Int("records", scored))
	return scored, nil
}

// Ready reports whether a scored record is cleared for program use: every
// rubric criterion was evaluable and nothing flagged a contraindication.
func Ready(song *model.Song, sc model.Score) bool {
	if len(sc.Skipped) > 0 {
		return false
	}
	if v, ok := song.AttrOK(model.AttrContra); ok && v != "" && v != "none" {
		return false
	}
	return true
}
