// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/grant-engine/internal/metrics"
	"github.com/pdiddy/grant-engine/pkg/types"
)

// Plausibility window for record dates. Upstream data occasionally carries
// placeholder years far outside any real posting cycle.
const (
	minPlausibleYear = 1990
	maxPlausibleYear = 2100
)

// InvalidRecordError describes why a record was excluded from results.
type InvalidRecordError struct {
	Field  string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record: %s: %s", e.Field, e.Reason)
}

// Validate checks one normalized record against the canonical schema rules.
// It returns a *InvalidRecordError naming the first failing field, or nil.
func Validate(r types.GrantRecord) error {
	if r.Title == "" {
		return &InvalidRecordError{Field: "title", Reason: "missing"}
	}
	if r.Agency == "" {
		return &InvalidRecordError{Field: "agency", Reason: "missing"}
	}
	if !r.HasIdentifier() {
		return &InvalidRecordError{Field: "identifier", Reason: "no source id or opportunity number"}
	}
	if !r.OpportunityType.Valid() {
		return &InvalidRecordError{Field: "opportunity_type", Reason: fmt.Sprintf("unknown value %q", r.OpportunityType)}
	}
	if r.PostedDate != nil && !plausibleYear(r.PostedDate.Year()) {
		return &InvalidRecordError{Field: "posted_date", Reason: fmt.Sprintf("implausible year %d", r.PostedDate.Year())}
	}
	if r.Deadline != nil && !plausibleYear(r.Deadline.Year()) {
		return &InvalidRecordError{Field: "deadline", Reason: fmt.Sprintf("implausible year %d", r.Deadline.Year())}
	}
	if r.AwardFloor != nil && *r.AwardFloor < 0 {
		return &InvalidRecordError{Field: "award_floor", Reason: "negative"}
	}
	if r.AwardCeiling != nil && *r.AwardCeiling < 0 {
		return &InvalidRecordError{Field: "award_ceiling", Reason: "negative"}
	}
	if r.AwardFloor != nil && r.AwardCeiling != nil && *r.AwardFloor > *r.AwardCeiling {
		return &InvalidRecordError{Field: "award_floor", Reason: "exceeds ceiling"}
	}
	return nil
}

func plausibleYear(y int) bool {
	return y >= minPlausibleYear && y <= maxPlausibleYear
}

// ValidateResults filters every source result's records through Validate.
// Invalid records are dropped and counted on the outcome; a source with
// nothing but invalid records still counts as succeeded.
func ValidateResults(results []SourceResult, logger *zap.Logger) []SourceResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i := range results {
		kept := results[i].Records[:0]
		for _, r := range results[i].Records {
			if err := Validate(r); err != nil {
				results[i].Outcome.RecordsInvalid++
				logger.Debug("record excluded",
					zap.String("source", results[i].Outcome.Source),
					zap.String("id", r.SourceID),
					zap.Error(err))
				continue
			}
			kept = append(kept, r)
		}
		results[i].Records = kept
		if n := results[i].Outcome.RecordsInvalid; n > 0 {
			metrics.RecordsInvalidTotal.WithLabelValues(results[i].Outcome.Source).Add(float64(n))
			logger.Info("invalid records excluded",
				zap.String("source", results[i].Outcome.Source),
				zap.Int("excluded", n),
				zap.Int("kept", len(results[i].Records)))
		}
	}
	return results
}
