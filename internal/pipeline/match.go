package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/model"
	"github.com/halcyon-research/tracklist-cli/internal/resilience"
	"github.com/halcyon-research/tracklist-cli/internal/similarity"
	"github.com/halcyon-research/tracklist-cli/pkg/deezer"
)

// candidate pairs a provider track with its similarity to the seed record.
type candidate struct {
	track deezer.Track
	score float64
}

// matchSong links one seed record to a provider track. A single candidate
// must clear the similarity threshold by the configured tie margin before
// it is accepted; a near-tie is recorded as ambiguous rather than guessed.
func (p *Pipeline) matchSong(ctx context.Context, song *model.Song) (outcome, error) {
	tracks, err := p.searchCached(ctx, song)
	if err != nil {
		if resilience.IsPermanent(err) {
			return outcome{status: model.StatusNotFound, reason: model.ReasonNoMatch, detail: err.Error()}, nil
		}
		return outcome{}, err
	}

	if len(tracks) > p.cfg.Pipeline.MaxCandidates {
		tracks = tracks[:p.cfg.Pipeline.MaxCandidates]
	}

	cands := make([]candidate, 0, len(tracks))
	for _, t := range tracks {
		// An exact normalized match is accepted outright.
		if similarity.Exact(song.Title, song.Artist, t.Title, t.Artist.Name) {
			return p.acceptMatch(ctx, song, t)
		}
		cands = append(cands, candidate{
			track: t,
			score: similarity.Score(song.Title, song.Artist, t.Title, t.Artist.Name),
		})
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	threshold := p.cfg.Pipeline.SimilarityThreshold
	if len(cands) == 0 || cands[0].score < threshold {
		detail := "no candidates returned"
		if len(cands) > 0 {
			detail = fmt.Sprintf("best score %.3f below threshold %.2f", cands[0].score, threshold)
		}
		return outcome{status: model.StatusNotFound, reason: model.ReasonNoMatch, detail: detail}, nil
	}

	if len(cands) > 1 {
		margin := cands[0].score - cands[1].score
		if margin < p.cfg.Pipeline.TieMargin {
			return outcome{
				status: model.StatusAmbiguous,
				reason: model.ReasonAmbiguousMatch,
				detail: fmt.Sprintf("margin %.3f between %q and %q below tie margin %.2f",
					margin, cands[0].track.Title, cands[1].track.Title, p.cfg.Pipeline.TieMargin),
			}, nil
		}
	}

	return p.acceptMatch(ctx, song, cands[0].track)
}

func (p *Pipeline) acceptMatch(ctx context.Context, song *model.Song, t deezer.Track) (outcome, error) {
	patch := model.NewPatch(song.ID, model.StageMatch).
		Set(model.AttrExternalID, strconv.FormatInt(t.ID, 10)).
		Set(model.AttrSourceLink, t.Link).
		Set(model.AttrFoundTitle, t.Title).
		Set(model.AttrFoundArtist, t.Artist.Name)
	if t.Duration > 0 {
		patch.Set(model.AttrDuration, strconv.Itoa(t.Duration))
	}

	applied, err := p.merger.Apply(ctx, *patch)
	if err != nil {
		return outcome{}, err
	}

	zap.L().Debug("match: accepted",
		zap.String("song_id", song.ID),
		zap.Int64("track_id", t.ID),
		zap.String("found_title", t.Title),
	)
	return outcome{status: model.StatusMatched, applied: applied}, nil
}

// searchCached consults the lookup cache before hitting the provider, so a
// re-run of a large catalog does not repeat identical searches.
func (p *Pipeline) searchCached(ctx context.Context, song *model.Song) ([]deezer.Track, error) {
	key := similarity.Key(song.Title, song.Artist)

	if payload, ok, err := p.store.CacheGet(ctx, key); err == nil && ok {
		var tracks []deezer.Track
		if err := json.Unmarshal(payload, &tracks); err == nil {
			return tracks, nil
		}
	}

	tracks, err := callProvider(ctx, p, "deezer", func(ctx context.Context) ([]deezer.Track, error) {
		return p.deezer.Search(ctx, song.Title, song.Artist)
	})
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(tracks); err == nil {
		if cerr := p.store.CachePut(ctx, key, payload); cerr != nil {
			zap.L().Warn("match: cache write failed", zap.Error(cerr))
		}
	}
	return tracks, nil
}
