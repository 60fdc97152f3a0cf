package pipeline

import (
	"context"
	"strconv"

	"github.com/halcyon-research/tracklist-cli/internal/model"
	"github.com/halcyon-research/tracklist-cli/internal/resilience"
	"github.com/halcyon-research/tracklist-cli/pkg/deezer"
)

// fetchFeatures pulls audio features for a matched record. Records that
// never matched have nothing to fetch and are skipped untouched.
func (p *Pipeline) fetchFeatures(ctx context.Context, song *model.Song) (outcome, error) {
	if song.Status(model.StageMatch) != model.StatusMatched {
		return outcome{skipped: true}, nil
	}
	extID, ok := song.AttrOK(model.AttrExternalID)
	if !ok {
		return outcome{skipped: true}, nil
	}
	id, err := strconv.ParseInt(extID, 10, 64)
	if err != nil {
		return outcome{
			status: model.StatusNotFound,
			reason: model.ReasonFetchError,
			detail: "malformed external id " + extID,
		}, nil
	}

	track, err := callProvider(ctx, p, "deezer", func(ctx context.Context) (*deezer.Track, error) {
		return p.deezer.GetTrack(ctx, id)
	})
	if err != nil {
		// The provider no longer knows the id; the link is stale, not flaky.
		if resilience.IsPermanent(err) {
			return outcome{status: model.StatusNotFound, reason: model.ReasonNoMatch, detail: err.Error()}, nil
		}
		return outcome{}, err
	}

	patch := model.NewPatch(song.ID, model.StageFeatures)
	if track.BPM > 0 {
		patch.Set(model.AttrBPM, strconv.FormatFloat(track.BPM, 'f', -1, 64))
	}
	if track.Gain != 0 {
		patch.Set(model.AttrGain, strconv.FormatFloat(track.Gain, 'f', -1, 64))
	}
	if track.Duration > 0 {
		patch.Set(model.AttrDuration, strconv.Itoa(track.Duration))
	}

	applied, err := p.merger.Apply(ctx, *patch)
	if err != nil {
		return outcome{}, err
	}

	// A track with no usable features resolves the stage without data;
	// the gap filler will take it from here.
	return outcome{status: model.StatusDone, applied: applied}, nil
}
