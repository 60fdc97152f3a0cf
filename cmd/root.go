package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/config"
	"github.com/halcyon-research/tracklist-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tracklist-cli",
	Short: "Song catalog linkage and enrichment pipeline",
	Long:  "Links seed song records to external catalogs, fetches audio features and lyrics, derives text metrics, fills gaps via Claude, and scores records against a therapeutic rubric.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; config falls back to environment and defaults.
		_ = godotenv.Load()

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// openStore opens the configured backend and runs migrations. Callers own
// the returned store and must Close it.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
