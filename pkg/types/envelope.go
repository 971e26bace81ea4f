// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SourceOutcome describes one adapter's successful contribution to an
// aggregation. A source that returned zero records still appears here.
type SourceOutcome struct {
	// Source is the adapter name.
	Source string `json:"source" yaml:"source"`

	// Records is the number of records the adapter returned.
	Records int `json:"records" yaml:"records"`

	// RecordsInvalid counts records the validator rejected.
	RecordsInvalid int `json:"records_invalid,omitempty" yaml:"records_invalid,omitempty"`

	// Attempts is how many request attempts the retry executor made.
	Attempts int `json:"attempts" yaml:"attempts"`

	// Duration is the wall time of the source call including retries.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// SourceFailure describes one adapter's failed contribution.
type SourceFailure struct {
	// Source is the adapter name.
	Source string `json:"source" yaml:"source"`

	// Message is the final error summary after retries were exhausted.
	Message string `json:"message" yaml:"message"`

	// Attempts is how many request attempts the retry executor made.
	Attempts int `json:"attempts" yaml:"attempts"`

	// Duration is the wall time of the source call including retries.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Envelope is the aggregation result returned to callers. It is only ever
// produced when at least one source succeeded; total failure surfaces as an
// error instead, so "no grants matched" and "all sources down" stay distinct.
type Envelope struct {
	// Grants holds the merged records in source-presentation order. The
	// order is stable and never re-sorted by relevance.
	Grants []GrantRecord `json:"grants" yaml:"grants"`

	// SourcesSucceeded and SourcesFailed record every adapter's outcome.
	SourcesSucceeded []SourceOutcome `json:"sources_succeeded" yaml:"sources_succeeded"`
	SourcesFailed    []SourceFailure `json:"sources_failed,omitempty" yaml:"sources_failed,omitempty"`

	// Partial is true iff at least one source failed and at least one
	// succeeded. Callers should render a transparency notice when set.
	Partial bool `json:"partial" yaml:"partial"`

	// Timestamp is the aggregation completion time.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// CacheHit is true when this envelope was served from the cache rather
	// than a fresh aggregation.
	CacheHit bool `json:"cache_hit,omitempty" yaml:"cache_hit,omitempty"`
}

// FailedSources returns the names of the failed sources, in outcome order.
func (e Envelope) FailedSources() []string {
	if len(e.SourcesFailed) == 0 {
		return nil
	}
	names := make([]string, len(e.SourcesFailed))
	for i, f := range e.SourcesFailed {
		names[i] = f.Source
	}
	return names
}

// Clone returns a deep copy sharing no mutable state with e. The cache uses
// this for its copy-out discipline.
func (e Envelope) Clone() Envelope {
	c := e
	if e.Grants != nil {
		c.Grants = make([]GrantRecord, len(e.Grants))
		for i, g := range e.Grants {
			c.Grants[i] = g.Clone()
		}
	}
	if e.SourcesSucceeded != nil {
		c.SourcesSucceeded = append([]SourceOutcome(nil), e.SourcesSucceeded...)
	}
	if e.SourcesFailed != nil {
		c.SourcesFailed = append([]SourceFailure(nil), e.SourcesFailed...)
	}
	return c
}
