package pipeline

import (
	"context"
	"strconv"

	"github.com/halcyon-research/tracklist-cli/internal/model"
	"github.com/halcyon-research/tracklist-cli/internal/sentiment"
)

// enrichText derives valence and arousal from stored lyric text. The
// analysis is a pure function of the text, so re-running it can never
// change an already-enriched record. A record whose lyrics stage has not
// settled yet is skipped and revisited; once that stage is terminal with
// no text, the record is text_unavailable here too.
func (p *Pipeline) enrichText(ctx context.Context, song *model.Song) (outcome, error) {
	lyrics, ok := song.AttrOK(model.AttrLyrics)
	if !ok || lyrics == "" {
		switch song.Status(model.StageLyrics) {
		case model.StatusPending, model.StatusFailed:
			return outcome{skipped: true}, nil
		}
		return outcome{
			status: model.StatusNotFound,
			reason: model.ReasonTextUnavailable,
			detail: "no lyric text on record",
		}, nil
	}

	res, ok := sentiment.Analyze(lyrics)
	if !ok {
		return outcome{
			status: model.StatusNotFound,
			reason: model.ReasonTextUnavailable,
			detail: "no scorable words in lyrics",
		}, nil
	}

	patch := model.NewPatch(song.ID, model.StageText).
		Set(model.AttrLyricValence, strconv.FormatFloat(res.Valence, 'f', 4, 64)).
		Set(model.AttrLyricArousal, strconv.FormatFloat(res.Arousal, 'f', 4, 64))

	applied, err := p.merger.Apply(ctx, *patch)
	if err != nil {
		return outcome{}, err
	}
	return outcome{status: model.StatusDone, applied: applied}, nil
}
