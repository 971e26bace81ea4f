// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate fans a query out to every registered source, applies
// schema validation to what comes back, and merges duplicate records across
// sources. A search succeeds as long as at least one source succeeds;
// per-source failures are reported alongside the results, never silently
// dropped and never papered over with fabricated records.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/grant-engine/internal/httputil"
	"github.com/pdiddy/grant-engine/internal/metrics"
	"github.com/pdiddy/grant-engine/internal/source"
	"github.com/pdiddy/grant-engine/pkg/types"
)

// defaultSourceTimeout bounds a single source's total fetch time, retries
// included, when the config doesn't say otherwise.
const defaultSourceTimeout = 15 * time.Second

// ErrNoSources is returned when the registry produced no enabled sources.
var ErrNoSources = errors.New("no sources enabled")

// AllSourcesFailedError is returned when every registered source failed.
// Partial failure is not an error; this is total failure.
type AllSourcesFailedError struct {
	Failures []types.SourceFailure
}

func (e *AllSourcesFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Source+": "+f.Message)
	}
	return fmt.Sprintf("all %d sources failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// SourceResult pairs one source's fetched records with the outcome summary
// that ends up in the envelope.
type SourceResult struct {
	Outcome types.SourceOutcome
	Records []types.GrantRecord
}

// Aggregator runs a query against a fixed set of sources concurrently.
// Construct one per search pipeline with New; it holds no global state.
type Aggregator struct {
	sources  []source.Source
	executor *httputil.Executor
	cfg      types.SearchConfig
	logger   *zap.Logger
}

// New builds an Aggregator over the given sources. The executor wraps every
// source fetch with retry; a nil logger is replaced with a no-op one.
func New(cfg types.SearchConfig, sources []source.Source, executor *httputil.Executor, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if executor == nil {
		executor = httputil.NewExecutor(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, logger)
	}
	return &Aggregator{
		sources:  sources,
		executor: executor,
		cfg:      cfg,
		logger:   logger,
	}
}

// Sources returns the registered source names in registration order.
func (a *Aggregator) Sources() []string {
	names := make([]string, 0, len(a.sources))
	for _, src := range a.sources {
		names = append(names, src.Name())
	}
	return names
}

// fetchResult carries one source's outcome back from its goroutine. Exactly
// one of result and failure is set.
type fetchResult struct {
	result  *SourceResult
	failure *types.SourceFailure
}

// Aggregate queries all sources concurrently and waits for every one to
// finish. Results and failures come back in registration order regardless
// of completion order. The error is non-nil only when no source succeeded:
// *AllSourcesFailedError when they all failed, ErrNoSources when none were
// registered.
func (a *Aggregator) Aggregate(ctx context.Context, query types.Query) ([]SourceResult, []types.SourceFailure, error) {
	if len(a.sources) == 0 {
		return nil, nil, ErrNoSources
	}

	collected := make([]fetchResult, len(a.sources))
	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src source.Source) {
			defer wg.Done()
			collected[i] = a.fetchOne(ctx, src, query)
		}(i, src)
	}
	wg.Wait()

	var results []SourceResult
	var failures []types.SourceFailure
	for _, fr := range collected {
		if fr.result != nil {
			results = append(results, *fr.result)
		} else {
			failures = append(failures, *fr.failure)
		}
	}

	if len(results) == 0 {
		metrics.SearchesTotal.WithLabelValues("all_failed").Inc()
		return nil, failures, &AllSourcesFailedError{Failures: failures}
	}
	return results, failures, nil
}

// fetchOne runs a single source under its own timeout, with retries.
func (a *Aggregator) fetchOne(ctx context.Context, src source.Source, query types.Query) fetchResult {
	timeout := a.cfg.SourceTimeout
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var records []types.GrantRecord
	attempts, err := a.executor.Do(ctx, src.Name(), func(ctx context.Context) error {
		var fetchErr error
		records, fetchErr = src.Fetch(ctx, query, a.cfg)
		return fetchErr
	})
	elapsed := time.Since(start)

	metrics.SourceRequestDuration.WithLabelValues(src.Name()).Observe(elapsed.Seconds())
	if attempts > 1 {
		metrics.RetryAttemptsTotal.WithLabelValues(src.Name()).Add(float64(attempts - 1))
	}

	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(src.Name(), "error").Inc()
		a.logger.Warn("source failed",
			zap.String("source", src.Name()),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return fetchResult{failure: &types.SourceFailure{
			Source:   src.Name(),
			Message:  err.Error(),
			Attempts: attempts,
			Duration: elapsed,
		}}
	}

	metrics.SourceRequestsTotal.WithLabelValues(src.Name(), "ok").Inc()
	a.logger.Debug("source succeeded",
		zap.String("source", src.Name()),
		zap.Int("records", len(records)),
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", elapsed))
	return fetchResult{result: &SourceResult{
		Outcome: types.SourceOutcome{
			Source:   src.Name(),
			Records:  len(records),
			Attempts: attempts,
			Duration: elapsed,
		},
		Records: records,
	}}
}
