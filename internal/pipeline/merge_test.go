package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/model"
	"github.com/halcyon-research/tracklist-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testStageRanking = []string{"features", "match", "lyrics", "text"}

func newMergeStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	_, err = s.CreateSongs(context.Background(), []model.Song{
		{ID: "s1", Title: "Weightless", Artist: "Marconi Union"},
	})
	require.NoError(t, err)
	return s
}

func attrOf(t *testing.T, st store.Store, songID, name string) model.Attribute {
	t.Helper()
	attrs, err := st.GetAttributes(context.Background(), songID)
	require.NoError(t, err)
	attr, ok := attrs[name]
	require.True(t, ok, "attribute %s not present", name)
	return attr
}

func TestMergeSourcedBeatsInferred(t *testing.T) {
	st := newMergeStore(t)
	m := NewMerger(st, testStageRanking)
	ctx := context.Background()

	inferred := model.NewPatch("s1", model.StageFill).SetInferred(model.AttrBPM, "70")
	applied, err := m.Apply(ctx, *inferred)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	sourced := model.NewPatch("s1", model.StageFeatures).Set(model.AttrBPM, "65")
	applied, err = m.Apply(ctx, *sourced)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	attr := attrOf(t, st, "s1", model.AttrBPM)
	assert.Equal(t, "65", attr.Value)
	assert.Equal(t, model.Sourced(model.StageFeatures), attr.Provenance)
}

func TestMergeInferredNeverClobbersSourced(t *testing.T) {
	st := newMergeStore(t)
	m := NewMerger(st, testStageRanking)
	ctx := context.Background()

	sourced := model.NewPatch("s1", model.StageFeatures).Set(model.AttrBPM, "65")
	_, err := m.Apply(ctx, *sourced)
	require.NoError(t, err)

	inferred := model.NewPatch("s1", model.StageFill).SetInferred(model.AttrBPM, "120")
	applied, err := m.Apply(ctx, *inferred)
	require.NoError(t, err)
	assert.Zero(t, applied)

	assert.Equal(t, "65", attrOf(t, st, "s1", model.AttrBPM).Value)
}

func TestMergeInferredDoesNotReplaceInferred(t *testing.T) {
	st := newMergeStore(t)
	m := NewMerger(st, testStageRanking)
	ctx := context.Background()

	_, err := m.Apply(ctx, *model.NewPatch("s1", model.StageFill).SetInferred(model.AttrMode, "minor"))
	require.NoError(t, err)

	applied, err := m.Apply(ctx, *model.NewPatch("s1", model.StageFill).SetInferred(model.AttrMode, "major"))
	require.NoError(t, err)
	assert.Zero(t, applied)

	assert.Equal(t, "minor", attrOf(t, st, "s1", model.AttrMode).Value)
}

func TestMergeStageRankingBreaksSourcedTies(t *testing.T) {
	st := newMergeStore(t)
	m := NewMerger(st, testStageRanking)
	ctx := context.Background()

	// match writes a duration first; features outranks match and replaces it.
	_, err := m.Apply(ctx, *model.NewPatch("s1", model.StageMatch).Set(model.AttrDuration, "480"))
	require.NoError(t, err)

	applied, err := m.Apply(ctx, *model.NewPatch("s1", model.StageFeatures).Set(model.AttrDuration, "483"))
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, "483", attrOf(t, st, "s1", model.AttrDuration).Value)

	// A lower-ranked stage cannot take it back.
	applied, err = m.Apply(ctx, *model.NewPatch("s1", model.StageLyrics).Set(model.AttrDuration, "999"))
	require.NoError(t, err)
	assert.Zero(t, applied)
	assert.Equal(t, "483", attrOf(t, st, "s1", model.AttrDuration).Value)
}

func TestMergeSameStageKeepsFirstValue(t *testing.T) {
	st := newMergeStore(t)
	m := NewMerger(st, testStageRanking)
	ctx := context.Background()

	_, err := m.Apply(ctx, *model.NewPatch("s1", model.StageFeatures).Set(model.AttrBPM, "65"))
	require.NoError(t, err)

	applied, err := m.Apply(ctx, *model.NewPatch("s1", model.StageFeatures).Set(model.AttrBPM, "66"))
	require.NoError(t, err)
	assert.Zero(t, applied)
	assert.Equal(t, "65", attrOf(t, st, "s1", model.AttrBPM).Value)
}

func TestMergeIdempotent(t *testing.T) {
	st := newMergeStore(t)
	m := NewMerger(st, testStageRanking)
	ctx := context.Background()

	patch := model.NewPatch("s1", model.StageFeatures).
		Set(model.AttrBPM, "65").
		Set(model.AttrGain, "-9.3")

	applied, err := m.Apply(ctx, *patch)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = m.Apply(ctx, *patch)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestMergeUnknownRecordIsDiscarded(t *testing.T) {
	st := newMergeStore(t)
	m := NewMerger(st, testStageRanking)

	patch := model.NewPatch("ghost", model.StageFeatures).Set(model.AttrBPM, "65")
	applied, err := m.Apply(context.Background(), *patch)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestMergeRejectsInvalidProvenance(t *testing.T) {
	st := newMergeStore(t)
	m := NewMerger(st, testStageRanking)

	patch := model.Patch{
		SongID: "s1",
		Stage:  model.StageFeatures,
		Attrs: []model.PatchAttr{
			{Name: model.AttrBPM, Value: "65", Provenance: "sourced:"},
		},
	}
	_, err := m.Apply(context.Background(), patch)
	assert.Error(t, err)
}

func TestMergeEmptyPatchIsNoop(t *testing.T) {
	st := newMergeStore(t)
	m := NewMerger(st, testStageRanking)

	applied, err := m.Apply(context.Background(), *model.NewPatch("s1", model.StageMatch))
	require.NoError(t, err)
	assert.Zero(t, applied)
}
