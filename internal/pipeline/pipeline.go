// Package pipeline runs the enrichment stages that resolve seed song
// records against providers, derive text metrics, and fill remaining gaps.
// Every stage reads eligible records from the store, emits patches through
// the merger, and records per-record status and failures, so an interrupted
// run can simply be started again.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/halcyon-research/tracklist-cli/internal/config"
	"github.com/halcyon-research/tracklist-cli/internal/model"
	"github.com/halcyon-research/tracklist-cli/internal/resilience"
	"github.com/halcyon-research/tracklist-cli/internal/store"
	"github.com/halcyon-research/tracklist-cli/pkg/anthropic"
	"github.com/halcyon-research/tracklist-cli/pkg/deezer"
	"github.com/halcyon-research/tracklist-cli/pkg/genius"
)

// Pipeline orchestrates the enrichment stages.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	merger   *Merger
	deezer   deezer.Client
	genius   genius.Client
	llm      anthropic.Client
	retry    resilience.Policy
	breakers *resilience.ProviderBreakers
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	dz deezer.Client,
	gn genius.Client,
	llm anthropic.Client,
) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		store:  st,
		merger: NewMerger(st, cfg.Merge.StageRanking),
		deezer: dz,
		genius: gn,
		llm:    llm,
		retry: resilience.PolicyFromConfig(
			cfg.Pipeline.RetryMaxAttempts,
			cfg.Pipeline.RetryInitialBackoffMs,
			cfg.Pipeline.RetryMaxBackoffMs,
		),
		breakers: resilience.NewProviderBreakers(resilience.BreakerConfig{
			FailureThreshold: cfg.Pipeline.BreakerFailureThreshold,
			ResetTimeout:     time.Duration(cfg.Pipeline.BreakerResetTimeoutSecs) * time.Second,
			ShouldTrip:       resilience.IsTransient,
		}),
	}
}

// outcome is the result of processing one record in one stage.
type outcome struct {
	status  model.Status
	reason  model.FailureReason // non-empty records a failure log entry
	detail  string
	applied int // attribute assignments that won the merge
	skipped bool
}

// processor handles one record for one stage.
type processor func(ctx context.Context, song *model.Song) (outcome, error)

// Run executes all stages in order and records a run summary. Stage
// failures on individual records never abort the run.
func (p *Pipeline) Run(ctx context.Context) (*model.RunSummary, error) {
	runID, err := p.store.CreateRun(ctx)
	if err != nil {
		return nil, err
	}

	summary := &model.RunSummary{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Stages:    map[model.Stage]model.StageSummary{},
	}

	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline: run starting")

	for _, stage := range model.Stages {
		stageSummary, err := p.RunStage(ctx, stage)
		summary.Stages[stage] = stageSummary
		if err != nil {
			return summary, eris.Wrapf(err, "pipeline: stage %s", stage)
		}
	}

	summary.FinishedAt = time.Now().UTC()
	if counts, err := p.store.StatusCounts(ctx); err == nil {
		summary.Statuses = counts
	}

	if err := p.store.FinishRun(ctx, runID, *summary); err != nil {
		return summary, err
	}
	log.Info("pipeline: run finished",
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

// RunStage executes a single stage over all eligible records: those still
// pending plus those whose last attempt failed transiently.
func (p *Pipeline) RunStage(ctx context.Context, stage model.Stage) (model.StageSummary, error) {
	proc, err := p.processorFor(stage)
	if err != nil {
		return model.StageSummary{}, err
	}

	songs, err := p.eligible(ctx, stage)
	if err != nil {
		return model.StageSummary{}, err
	}

	log := zap.L().With(zap.String("stage", string(stage)))
	log.Info("pipeline: stage starting", zap.Int("eligible", len(songs)))

	var mu sync.Mutex
	summary := model.StageSummary{}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.Workers)

	for i := range songs {
		song := &songs[i]
		g.Go(func() error {
			out := p.processSong(gCtx, stage, song, proc)

			mu.Lock()
			defer mu.Unlock()
			summary.Processed++
			if out.skipped {
				summary.Skipped++
				return nil
			}
			switch out.status {
			case model.StatusMatched, model.StatusDone:
				summary.Resolved++
			case model.StatusNotFound:
				summary.NotFound++
			case model.StatusAmbiguous:
				summary.Ambiguous++
			case model.StatusFailed:
				summary.Failed++
			}
			if stage == model.StageFill {
				summary.Inferred += out.applied
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	log.Info("pipeline: stage finished",
		zap.Int("processed", summary.Processed),
		zap.Int("resolved", summary.Resolved),
		zap.Int("failed", summary.Failed),
		zap.Int("not_found", summary.NotFound),
		zap.Int("ambiguous", summary.Ambiguous),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

func (p *Pipeline) processorFor(stage model.Stage) (processor, error) {
	switch stage {
	case model.StageMatch:
		return p.matchSong, nil
	case model.StageFeatures:
		return p.fetchFeatures, nil
	case model.StageLyrics:
		return p.fetchLyrics, nil
	case model.StageText:
		return p.enrichText, nil
	case model.StageFill:
		return p.fillGaps, nil
	default:
		return nil, eris.Errorf("pipeline: unknown stage %q", stage)
	}
}

// eligible returns records that the stage should attempt: pending ones and
// ones whose previous attempt failed transiently. Records marked not_found,
// ambiguous, or already resolved stay untouched, which makes a re-run of a
// completed catalog a no-op.
func (p *Pipeline) eligible(ctx context.Context, stage model.Stage) ([]model.Song, error) {
	pending, err := p.store.ListSongs(ctx, store.SongFilter{Stage: stage, Status: model.StatusPending})
	if err != nil {
		return nil, err
	}
	failed, err := p.store.ListSongs(ctx, store.SongFilter{Stage: stage, Status: model.StatusFailed})
	if err != nil {
		return nil, err
	}
	return append(pending, failed...), nil
}

// processSong runs one record through a stage processor and persists the
// resulting status and failure log entry. Failure entries are only cleared
// when the record resolves.
func (p *Pipeline) processSong(ctx context.Context, stage model.Stage, song *model.Song, proc processor) outcome {
	log := zap.L().With(
		zap.String("stage", string(stage)),
		zap.String("song_id", song.ID),
	)

	out, err := proc(ctx, song)
	if err != nil {
		out.status = model.StatusFailed
		out.reason = model.ReasonFetchError
		if resilience.IsRateLimited(err) {
			out.reason = model.ReasonRateLimited
		}
		out.detail = err.Error()
		log.Warn("pipeline: record failed", zap.Error(err))
	}

	if out.skipped {
		return out
	}

	if out.reason != "" {
		if ferr := p.store.AppendFailure(ctx, model.Failure{
			SongID: song.ID,
			Stage:  stage,
			Reason: out.reason,
			Detail: out.detail,
		}); ferr != nil {
			log.Error("pipeline: append failure", zap.Error(ferr))
		}
	}

	switch out.status {
	case model.StatusMatched, model.StatusDone:
		if cerr := p.store.ClearFailures(ctx, song.ID, stage); cerr != nil {
			log.Error("pipeline: clear failures", zap.Error(cerr))
		}
	}

	if serr := p.store.SetStatus(ctx, song.ID, stage, out.status); serr != nil {
		log.Error("pipeline: set status", zap.Error(serr))
	}
	return out
}

// callProvider wraps a provider call with the retry policy and the
// provider's circuit breaker.
func callProvider[T any](ctx context.Context, p *Pipeline, provider string, fn func(ctx context.Context) (T, error)) (T, error) {
	breaker := p.breakers.Get(provider)
	policy := p.retry
	policy.OnRetry = resilience.RetryLogger(provider, "call")
	return resilience.DoVal(ctx, policy, func(ctx context.Context) (T, error) {
		return resilience.Exec(ctx, breaker, fn)
	})
}
