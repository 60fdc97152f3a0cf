package pipeline

import (
	"context"

	"github.com/halcyon-research/tracklist-cli/internal/model"
	"github.com/halcyon-research/tracklist-cli/internal/resilience"
	"github.com/halcyon-research/tracklist-cli/internal/similarity"
	"github.com/halcyon-research/tracklist-cli/pkg/genius"
)

// fetchLyrics retrieves lyric text for a record. The provider-confirmed
// title and artist are preferred over the seed values when present.
func (p *Pipeline) fetchLyrics(ctx context.Context, song *model.Song) (outcome, error) {
	title, artist := song.Title, song.Artist
	if found, ok := song.AttrOK(model.AttrFoundTitle); ok {
		title = found
	}
	if found, ok := song.AttrOK(model.AttrFoundArtist); ok {
		artist = found
	}

	hits, err := callProvider(ctx, p, "genius", func(ctx context.Context) ([]genius.Song, error) {
		return p.genius.SearchSong(ctx, title, artist)
	})
	if err != nil {
		if resilience.IsPermanent(err) {
			return outcome{status: model.StatusNotFound, reason: model.ReasonTextUnavailable, detail: err.Error()}, nil
		}
		return outcome{}, err
	}

	hit, ok := bestLyricsHit(title, artist, hits, p.cfg.Pipeline.SimilarityThreshold)
	if !ok {
		return outcome{
			status: model.StatusNotFound,
			reason: model.ReasonTextUnavailable,
			detail: "no lyrics page matched",
		}, nil
	}

	lyrics, err := callProvider(ctx, p, "genius", func(ctx context.Context) (string, error) {
		return p.genius.Lyrics(ctx, hit.URL)
	})
	if err != nil {
		if resilience.IsPermanent(err) {
			return outcome{status: model.StatusNotFound, reason: model.ReasonTextUnavailable, detail: err.Error()}, nil
		}
		return outcome{}, err
	}
	if lyrics == "" {
		return outcome{
			status: model.StatusNotFound,
			reason: model.ReasonTextUnavailable,
			detail: "lyrics page had no text",
		}, nil
	}

	patch := model.NewPatch(song.ID, model.StageLyrics).
		Set(model.AttrLyrics, lyrics)
	applied, err := p.merger.Apply(ctx, *patch)
	if err != nil {
		return outcome{}, err
	}
	return outcome{status: model.StatusDone, applied: applied}, nil
}

// bestLyricsHit picks the most similar search hit above the threshold.
func bestLyricsHit(title, artist string, hits []genius.Song, threshold float64) (genius.Song, bool) {
	var best genius.Song
	bestScore := -1.0
	for _, h := range hits {
		if similarity.Exact(title, artist, h.Title, h.PrimaryArtist.Name) {
			return h, true
		}
		score := similarity.Score(title, artist, h.Title, h.PrimaryArtist.Name)
		if score > bestScore {
			best, bestScore = h, score
		}
	}
	if bestScore < threshold {
		return genius.Song{}, false
	}
	return best, true
}
