package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/model"
	"github.com/halcyon-research/tracklist-cli/pkg/anthropic"
)

const fillSystemPrompt = `You estimate missing musical metadata for songs used in
therapeutic listening programs. Answer with a single JSON object and nothing else.
Only include fields you can estimate with reasonable confidence; omit the rest.
Fields and their formats:
  bpm: number, beats per minute
  mode: one of major, minor, dorian, mixolydian, or another mode name
  valence: number between 0 and 1, musical positivity
  lyric_valence: number between -1 and 1, emotional polarity of the lyrics
  lyric_arousal: number between 0 and 1, emotional intensity of the lyrics
  listening_context: short phrase, when this song suits therapeutic listening
  contraindications: short phrase, listener situations to avoid, or "none"`

// fillGaps asks the model to estimate attributes no provider resolved.
// Everything it produces is written as inferred, so a later sourced value
// always replaces it and an existing sourced value is never touched.
func (p *Pipeline) fillGaps(ctx context.Context, song *model.Song) (outcome, error) {
	missing := song.Unresolved(p.cfg.Pipeline.FillAttributes)
	if len(missing) == 0 {
		return outcome{status: model.StatusDone}, nil
	}

	resp, err := callProvider(ctx, p, "anthropic", func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     p.cfg.Anthropic.Model,
			MaxTokens: int64(p.cfg.Anthropic.MaxTokens),
			System:    fillSystemPrompt,
			Messages: []anthropic.Message{
				{Role: "user", Content: fillPrompt(song, missing)},
			},
		})
	})
	if err != nil {
		return outcome{}, err
	}
	resp.Usage.LogCost(p.cfg.Anthropic.Model, "fill")

	values, err := parseFillResponse(resp.Text)
	if err != nil {
		return outcome{
			status: model.StatusFailed,
			reason: model.ReasonFetchError,
			detail: err.Error(),
		}, nil
	}

	patch := model.NewPatch(song.ID, model.StageFill)
	for _, name := range missing {
		if v, ok := values[name]; ok && v != "" {
			patch.SetInferred(name, v)
		}
	}
	// Context and contraindications ride along whenever the model offers them.
	for _, name := range []string{model.AttrContext, model.AttrContra} {
		if _, resolved := song.AttrOK(name); resolved {
			continue
		}
		if v, ok := values[name]; ok && v != "" {
			patch.SetInferred(name, v)
		}
	}

	applied, err := p.merger.Apply(ctx, *patch)
	if err != nil {
		return outcome{}, err
	}

	zap.L().Debug("fill: estimated attributes",
		zap.String("song_id", song.ID),
		zap.Strings("missing", missing),
		zap.Int("applied", applied),
	)
	return outcome{status: model.StatusDone, applied: applied}, nil
}

// fillPrompt describes the record and what is known about it so far.
func fillPrompt(song *model.Song, missing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Song: %q by %q\n", song.Title, song.Artist)

	var known []string
	for _, name := range []string{
		model.AttrBPM, model.AttrMode, model.AttrValence, model.AttrDuration,
		model.AttrLyricValence, model.AttrLyricArousal,
	} {
		if v, ok := song.AttrOK(name); ok {
			known = append(known, fmt.Sprintf("%s=%s", name, v))
		}
	}
	if len(known) > 0 {
		fmt.Fprintf(&b, "Known attributes: %s\n", strings.Join(known, ", "))
	}
	fmt.Fprintf(&b, "Estimate: %s", strings.Join(missing, ", "))
	return b.String()
}

// parseFillResponse decodes the model's JSON, tolerating code fences and
// numeric values, and stringifies everything for attribute storage.
func parseFillResponse(text string) (map[string]string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, eris.Wrap(err, "fill: response is not a JSON object")
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			values[k] = strings.TrimSpace(val)
		case float64:
			values[k] = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", val), "0"), ".")
		case nil:
			// omitted
		default:
			return nil, eris.Errorf("fill: unexpected type for field %s", k)
		}
	}
	return values, nil
}
