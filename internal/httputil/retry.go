// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across the pipeline.
package httputil

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// Executor runs fallible upstream operations with bounded retry and
// exponential backoff. Attempt n waits BaseDelay * 2^(n-1) before retrying.
// Only transient failures (see IsTransient) are retried; a well-formed 4xx
// surfaces immediately.
type Executor struct {
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

// NewExecutor builds an Executor. Non-positive maxAttempts or baseDelay fall
// back to the defaults (3 attempts, 500 ms base). A nil logger disables
// attempt logging.
func NewExecutor(maxAttempts int, baseDelay time.Duration, logger *zap.Logger) *Executor {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{maxAttempts: maxAttempts, baseDelay: baseDelay, logger: logger}
}

// Do invokes op until it succeeds, fails permanently, or attempts are
// exhausted. It returns the number of attempts made and the last observed
// error. Each attempt is individually timed and logged under label. A
// context that dies mid-backoff aborts the wait; the last upstream error is
// returned rather than ctx.Err() so callers report what actually failed.
func (e *Executor) Do(ctx context.Context, label string, op func(context.Context) error) (int, error) {
	attempts := 0
	for {
		attempts++
		start := time.Now()
		err := op(ctx)
		elapsed := time.Since(start)
		if err == nil {
			if attempts > 1 {
				e.logger.Info("upstream call recovered",
					zap.String("operation", label),
					zap.Int("attempt", attempts),
					zap.Duration("elapsed", elapsed))
			}
			return attempts, nil
		}

		if attempts >= e.maxAttempts {
			e.logger.Warn("upstream call exhausted retries",
				zap.String("operation", label),
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", e.maxAttempts),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
			return attempts, err
		}
		if !IsTransient(err) {
			e.logger.Warn("upstream call failed permanently",
				zap.String("operation", label),
				zap.Int("attempt", attempts),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
			return attempts, err
		}
		// The per-source deadline may already be gone; don't burn attempts
		// against a dead context.
		if ctx.Err() != nil {
			return attempts, err
		}

		backoff := time.Duration(math.Pow(2, float64(attempts-1))) * e.baseDelay
		e.logger.Warn("upstream call failed, retrying",
			zap.String("operation", label),
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", e.maxAttempts),
			zap.Duration("elapsed", elapsed),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return attempts, err
		case <-time.After(backoff):
		}
	}
}
