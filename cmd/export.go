package main

import (
	"context"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/model"
	"github.com/halcyon-research/tracklist-cli/internal/pipeline"
	"github.com/halcyon-research/tracklist-cli/internal/store"
)

var (
	exportFormat string
	exportOutput string
)

// exportRow is one catalog record flattened for the snapshot file. Scores
// follow the persisted ordering, highest total first.
type exportRow struct {
	ID                string  `csv:"id" parquet:"id"`
	Title             string  `csv:"title" parquet:"title"`
	Artist            string  `csv:"artist" parquet:"artist"`
	ExternalID        string  `csv:"external_id" parquet:"external_id"`
	SourceLink        string  `csv:"source_link" parquet:"source_link"`
	BPM               string  `csv:"bpm" parquet:"bpm"`
	Mode              string  `csv:"mode" parquet:"mode"`
	Valence           string  `csv:"valence" parquet:"valence"`
	LyricValence      string  `csv:"lyric_valence" parquet:"lyric_valence"`
	LyricArousal      string  `csv:"lyric_arousal" parquet:"lyric_arousal"`
	DurationSecs      string  `csv:"duration_secs" parquet:"duration_secs"`
	ListeningContext  string  `csv:"listening_context" parquet:"listening_context"`
	Contraindications string  `csv:"contraindications" parquet:"contraindications"`
	Score             float64 `csv:"score" parquet:"score"`
	Grade             string  `csv:"grade" parquet:"grade"`
	Flag              string  `csv:"flag" parquet:"flag"`
	Missing           string  `csv:"missing" parquet:"missing"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a snapshot of records, scores, and readiness flags",
	Long: `Write the scored catalog to a CSV or Parquet file.

Each row carries the record's resolved attributes, its rubric score and
grade, a READY/HOLD flag, and the attributes still missing. Rows are
ordered by score, highest first. Run 'score' beforehand so every record
has a persisted score.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if exportFormat != "csv" && exportFormat != "parquet" {
			return eris.Errorf("export: --format must be csv or parquet (got %q)", exportFormat)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rows, err := buildExportRows(ctx, st)
		if err != nil {
			return err
		}

		out := exportOutput
		if out == "" {
			out = "tracklist." + exportFormat
		}

		switch exportFormat {
		case "csv":
			err = writeCSV(out, rows)
		case "parquet":
			err = writeParquet(out, rows)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("format", exportFormat),
			zap.String("output", out),
			zap.Int("rows", len(rows)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or parquet")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output file path (default: tracklist.<format>)")
	rootCmd.AddCommand(exportCmd)
}

// exportAttrs are the attributes a record must resolve to be flagged READY.
var exportAttrs = []string{
	model.AttrBPM,
	model.AttrMode,
	model.AttrLyricValence,
	model.AttrLyricArousal,
}

func buildExportRows(ctx context.Context, st store.Store) ([]exportRow, error) {
	scores, err := st.ListScores(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "export: list scores")
	}

	scoreFor := make(map[string]model.Score, len(scores))
	for _, sc := range scores {
		scoreFor[sc.SongID] = sc
	}

	// Scored records first, in score order, then any unscored remainder.
	songs, err := st.ListSongs(ctx, store.SongFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "export: list records")
	}
	byID := make(map[string]model.Song, len(songs))
	for _, s := range songs {
		byID[s.ID] = s
	}

	ordered := make([]model.Song, 0, len(songs))
	for _, sc := range scores {
		if s, ok := byID[sc.SongID]; ok {
			ordered = append(ordered, s)
			delete(byID, sc.SongID)
		}
	}
	for _, s := range songs {
		if _, ok := byID[s.ID]; ok {
			ordered = append(ordered, s)
		}
	}

	rows := make([]exportRow, 0, len(ordered))
	for i := range ordered {
		song := &ordered[i]
		sc := scoreFor[song.ID]

		flag := "HOLD"
		if _, scored := scoreFor[song.ID]; scored && pipeline.Ready(song, sc) {
			flag = "READY"
		}

		rows = append(rows, exportRow{
			ID:                song.ID,
			Title:             song.Title,
			Artist:            song.Artist,
			ExternalID:        song.Attr(model.AttrExternalID),
			SourceLink:        song.Attr(model.AttrSourceLink),
			BPM:               song.Attr(model.AttrBPM),
			Mode:              song.Attr(model.AttrMode),
			Valence:           song.Attr(model.AttrValence),
			LyricValence:      song.Attr(model.AttrLyricValence),
			LyricArousal:      song.Attr(model.AttrLyricArousal),
			DurationSecs:      song.Attr(model.AttrDuration),
			ListeningContext:  song.Attr(model.AttrContext),
			Contraindications: song.Attr(model.AttrContra),
			Score:             sc.Total,
			Grade:             sc.Grade,
			Flag:              flag,
			Missing:           strings.Join(song.Unresolved(exportAttrs), ";"),
		})
	}
	return rows, nil
}

func writeCSV(path string, rows []exportRow) error {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "export: marshal csv")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write csv")
	}
	return nil
}

func writeParquet(path string, rows []exportRow) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create parquet")
	}

	w := parquet.NewGenericWriter[exportRow](f)
	if _, err := w.Write(rows); err != nil {
		f.Close()
		return eris.Wrap(err, "export: write parquet")
	}
	if err := w.Close(); err != nil {
		f.Close()
		return eris.Wrap(err, "export: close parquet writer")
	}
	return eris.Wrap(f.Close(), "export: close parquet file")
}
