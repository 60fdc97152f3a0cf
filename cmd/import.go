package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import <source>",
	Short: "Import seed records from a CSV or XLSX source",
	Long: `Import seed song records into the catalog.

The source may be a local file path, an http(s) URL, or an ftp URL. CSV and
XLSX formats are detected from the path suffix. Records whose identifiers
already exist in the catalog are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := ingest.Import(ctx, st, args[0])
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.String("source", args[0]),
			zap.Int("read", res.Read),
			zap.Int("created", res.Created),
			zap.Int("skipped", res.Skipped),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
