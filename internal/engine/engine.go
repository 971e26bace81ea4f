// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine orchestrates the search pipeline: cache lookup, concurrent
// source aggregation, validation, merge, and cache store. The CLI and the
// HTTP server both drive searches through an Engine.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/grant-engine/internal/aggregate"
	"github.com/pdiddy/grant-engine/internal/cache"
	"github.com/pdiddy/grant-engine/internal/history"
	"github.com/pdiddy/grant-engine/internal/metrics"
	"github.com/pdiddy/grant-engine/pkg/types"
)

// Recorder persists search run summaries. *history.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, run history.Run) (string, error)
}

// Engine wires the pipeline together. Construct one with New; a nil cache
// disables caching and a nil recorder disables history.
type Engine struct {
	cfg     types.EngineConfig
	agg     *aggregate.Aggregator
	cache   cache.Cache
	history Recorder
	logger  *zap.Logger
	flight  singleflight.Group
}

// New builds an Engine around an aggregator and optional cache and history.
func New(cfg types.EngineConfig, agg *aggregate.Aggregator, c cache.Cache, rec Recorder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		agg:     agg,
		cache:   c,
		history: rec,
		logger:  logger,
	}
}

// Search runs the full pipeline for a query. Identical queries issued
// concurrently share one upstream aggregation. The returned envelope is the
// caller's to mutate. The error is non-nil only when no source produced a
// result: *aggregate.AllSourcesFailedError or aggregate.ErrNoSources.
func (e *Engine) Search(ctx context.Context, query types.Query) (*types.Envelope, error) {
	if e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	key := cache.Key(query)

	if env, ok := e.cacheGet(ctx, key); ok {
		metrics.SearchesTotal.WithLabelValues("cache_hit").Inc()
		e.record(ctx, query, env, time.Since(start))
		return env, nil
	}

	v, err, shared := e.flight.Do(key, func() (any, error) {
		// A concurrent flight may have stored the envelope since the
		// fast-path miss.
		if env, ok := e.cacheGet(ctx, key); ok {
			return env, nil
		}
		return e.runPipeline(ctx, query, key)
	})
	if err != nil {
		return nil, err
	}

	env := v.(*types.Envelope)
	if shared {
		c := env.Clone()
		env = &c
	}
	e.record(ctx, query, env, time.Since(start))
	return env, nil
}

// Sources returns the names of the registered sources.
func (e *Engine) Sources() []string {
	return e.agg.Sources()
}

// cacheGet reads the cache, degrading any backend error to a miss.
func (e *Engine) cacheGet(ctx context.Context, key string) (*types.Envelope, bool) {
	if e.cache == nil {
		return nil, false
	}
	env, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
		e.logger.Warn("cache read failed, treating as miss", zap.Error(err))
		return nil, false
	}
	if !ok {
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
	env.CacheHit = true
	return env, true
}

// runPipeline executes aggregate, validate, merge, and the cache store.
func (e *Engine) runPipeline(ctx context.Context, query types.Query, key string) (*types.Envelope, error) {
	results, failures, err := e.agg.Aggregate(ctx, query)
	if err != nil {
		return nil, err
	}
	results = aggregate.ValidateResults(results, e.logger)

	var records []types.GrantRecord
	outcomes := make([]types.SourceOutcome, 0, len(results))
	for _, res := range results {
		records = append(records, res.Records...)
		outcomes = append(outcomes, res.Outcome)
	}

	env := &types.Envelope{
		Grants:           aggregate.Merge(records, e.cfg.Search.Authoritative),
		SourcesSucceeded: outcomes,
		SourcesFailed:    failures,
		Partial:          len(failures) > 0,
		Timestamp:        time.Now().UTC(),
	}

	outcome := "ok"
	if env.Partial {
		outcome = "partial"
	}
	metrics.SearchesTotal.WithLabelValues(outcome).Inc()

	if e.cache != nil {
		if err := e.cache.Put(ctx, key, env); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
	}

	e.logger.Info("search completed",
		zap.Int("grants", len(env.Grants)),
		zap.Int("sources_ok", len(outcomes)),
		zap.Int("sources_failed", len(failures)),
		zap.Bool("partial", env.Partial))
	return env, nil
}

// record writes the run to history, best effort.
func (e *Engine) record(ctx context.Context, query types.Query, env *types.Envelope, elapsed time.Duration) {
	if e.history == nil {
		return
	}
	run := history.Run{
		Query:    query,
		Grants:   len(env.Grants),
		Failed:   env.FailedSources(),
		Partial:  env.Partial,
		CacheHit: env.CacheHit,
		Duration: elapsed,
		Envelope: env,
	}
	for _, o := range env.SourcesSucceeded {
		run.Succeeded = append(run.Succeeded, o.Source)
	}
	if _, err := e.history.Record(ctx, run); err != nil {
		e.logger.Warn("history write failed", zap.Error(err))
	}
}
