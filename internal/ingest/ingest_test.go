package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
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

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

const seedCSV = `id,title,artist,curator,date_added
s1,Weightless,Marconi Union,rivera,2024-03-01
s2,Clair de Lune,Claude Debussy,,
,Horizon,Tycho,chen,2024-03-02
,,Nobody,,
`

func writeSeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportCSV(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	res, err := Import(ctx, st, writeSeed(t, "seed.csv", seedCSV))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Read)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 1, res.Skipped) // row with no title

	song, err := st.GetSong(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Weightless", song.Title)
	assert.Equal(t, "rivera", song.Attrs[model.AttrCurator].Value)
	assert.Equal(t, model.Sourced(model.StageSeed), song.Attrs[model.AttrCurator].Provenance)
	assert.Equal(t, "2024-03-01", song.Attrs[model.AttrDateAdded].Value)
	assert.Equal(t, model.Sourced(model.StageSeed), song.Attrs[model.AttrDateAdded].Provenance)

	// Missing id falls back to the normalized title|artist key.
	exists, err := st.SongExists(ctx, "horizon|tycho")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestImportIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	path := writeSeed(t, "seed.csv", seedCSV)

	res, err := Import(ctx, st, path)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)

	res, err = Import(ctx, st, path)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
}

func TestImportRepairsMojibake(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	csv := "id,title,artist\ns1,Donâ€™t Worry,BeyoncÃ©\n"
	_, err := Import(ctx, st, writeSeed(t, "seed.csv", csv))
	require.NoError(t, err)

	song, err := st.GetSong(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Don’t Worry", song.Title)
	assert.Equal(t, "Beyoncé", song.Artist)
}

func TestImportFromHTTP(t *testing.T) {
	st := newTestStore(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(seedCSV))
	}))
	defer srv.Close()

	res, err := Import(context.Background(), st, srv.URL+"/seed.csv")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)
}

func TestImportHTTPError(t *testing.T) {
	st := newTestStore(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Import(context.Background(), st, srv.URL+"/seed.csv")
	assert.Error(t, err)
}

func TestFixMojibake(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean ascii", "Weightless", "Weightless"},
		{"clean unicode", "Beyoncé", "Beyoncé"},
		{"smart quote", "Donâ€™t Stop", "Don’t Stop"},
		{"accented e", "BeyoncÃ©", "Beyoncé"},
		{"bom stripped", "\uFEFFWeightless", "Weightless"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FixMojibake(tt.in))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "csv", Format("seed.csv"))
	assert.Equal(t, "xlsx", Format("seed.XLSX"))
	assert.Equal(t, "xlsx", Format("https://example.com/lists/seed.xlsx?v=2"))
	assert.Equal(t, "csv", Format("ftp://host/pub/seed.csv"))
}

func TestOpenUnsupportedScheme(t *testing.T) {
	_, err := Open(context.Background(), "gopher://example.com/seed.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported source scheme")
}

func TestOpenPlainPath(t *testing.T) {
	path := writeSeed(t, "seed.csv", seedCSV)
	rc, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()

	buf := make([]byte, 16)
	n, err := rc.Read(buf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(seedCSV, string(buf[:n])))
}
