package main

import (
	"context"
	"net/http"
	"time"

	"github.com/halcyon-research/tracklist-cli/internal/pipeline"
	"github.com/halcyon-research/tracklist-cli/internal/store"
	anthropicpkg "github.com/halcyon-research/tracklist-cli/pkg/anthropic"
	"github.com/halcyon-research/tracklist-cli/pkg/deezer"
	"github.com/halcyon-research/tracklist-cli/pkg/genius"
)

// pipelineEnv bundles the pipeline with the store it runs against so
// commands can tear both down together.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	_ = e.Store.Close()
}

// initPipeline opens the store and wires the provider clients from config.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	deezerClient := deezer.NewClient(
		deezer.WithBaseURL(cfg.Deezer.BaseURL),
		deezer.WithRateLimit(cfg.Deezer.RequestsPerSec),
		deezer.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Deezer.TimeoutSecs) * time.Second}),
	)
	geniusClient := genius.NewClient(cfg.Genius.Token,
		genius.WithBaseURL(cfg.Genius.BaseURL),
		genius.WithRateLimit(cfg.Genius.RequestsPerSec),
		genius.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Genius.TimeoutSecs) * time.Second}),
	)
	llmClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, deezerClient, geniusClient, llmClient),
	}, nil
}
