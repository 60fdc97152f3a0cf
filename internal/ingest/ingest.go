package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/model"
	"github.com/halcyon-research/tracklist-cli/internal/store"
)

// seedRow is one row of a seed tracklist file.
type seedRow struct {
	ID        string `csv:"id"`
	Title     string `csv:"title"`
	Artist    string `csv:"artist"`
	Curator   string `csv:"curator,omitempty"`
	DateAdded string `csv:"date_added,omitempty"`
}

// Result summarizes one import.
type Result struct {
	Read    int `json:"read"`
	Created int `json:"created"`
	Skipped int `json:"skipped"` // rows missing required fields
}

// Import reads a seed source and inserts new records into the store.
// Existing identifiers are left untouched; records are never deleted.
func Import(ctx context.Context, st store.Store, ref string) (Result, error) {
	rc, err := Open(ctx, ref)
	if err != nil {
		return Result{}, err
	}
	defer rc.Close()

	var rows []seedRow
	switch Format(ref) {
	case "xlsx":
		rows, err = parseXLSX(rc)
	default:
		rows, err = parseCSV(rc)
	}
	if err != nil {
		return Result{}, err
	}

	res := Result{Read: len(rows)}
	var songs []model.Song
	for _, row := range rows {
		song, ok := rowToSong(row)
		if !ok {
			res.Skipped++
			zap.L().Warn("ingest: skipping row with missing fields",
				zap.String("id", row.ID),
				zap.String("title", row.Title),
			)
			continue
		}
		songs = append(songs, song)
	}

	created, err := st.CreateSongs(ctx, songs)
	if err != nil {
		return Result{}, err
	}
	res.Created = created

	zap.L().Info("ingest: import complete",
		zap.String("source", ref),
		zap.Int("read", res.Read),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// rowToSong validates and normalizes one seed row. Title and artist are
// required; the identifier defaults to a normalized title|artist key so
// re-importing the same file is idempotent.
func rowToSong(row seedRow) (model.Song, bool) {
	title := strings.TrimSpace(FixMojibake(row.Title))
	artist := strings.TrimSpace(FixMojibake(row.Artist))
	if title == "" || artist == "" {
		return model.Song{}, false
	}

	id := strings.TrimSpace(row.ID)
	if id == "" {
		id = strings.ToLower(title) + "|" + strings.ToLower(artist)
	}

	song := model.Song{ID: id, Title: title, Artist: artist}
	if curator := strings.TrimSpace(row.Curator); curator != "" {
		song.Attrs = map[string]model.Attribute{
			model.AttrCurator: {Value: curator, Provenance: model.Sourced(model.StageSeed)},
		}
	}
	if added := strings.TrimSpace(row.DateAdded); added != "" {
		if song.Attrs == nil {
			song.Attrs = map[string]model.Attribute{}
		}
		song.Attrs[model.AttrDateAdded] = model.Attribute{
			Value:      added,
			Provenance: model.Sourced(model.StageSeed),
		}
	}
	return song, true
}

func parseCSV(r io.Reader) ([]seedRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}

	var rows []seedRow
	for {
		var row seedRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "ingest: decode csv row")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseXLSX reads the first sheet, mapping columns by the header row using
// the same names the CSV path accepts.
func parseXLSX(r io.Reader) ([]seedRow, error) {
	tmp, err := os.CreateTemp("", "tracklist-*.xlsx")
	if err != nil {
		return nil, eris.Wrap(err, "ingest: temp file")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, r); err != nil {
		return nil, eris.Wrap(err, "ingest: buffer xlsx")
	}

	f, err := xlsx.OpenFile(tmp.Name())
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: xlsx has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	col := map[string]int{}
	for i, cell := range sheet.Rows[0].Cells {
		col[strings.ToLower(strings.TrimSpace(cell.String()))] = i
	}
	cell := func(row *xlsx.Row, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row.Cells) {
			return ""
		}
		return row.Cells[i].String()
	}

	var rows []seedRow
	for _, row := range sheet.Rows[1:] {
		rows = append(rows, seedRow{
			ID:        cell(row, "id"),
			Title:     cell(row, "title"),
			Artist:    cell(row, "artist"),
			Curator:   cell(row, "curator"),
			DateAdded: cell(row, "date_added"),
		})
	}
	return rows, nil
}
