// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source implements the upstream provider adapters. Each adapter
// translates the logical query into one provider's request shape and
// normalizes the response into canonical grant records. Adapters never
// retry; the aggregator wraps every Fetch in the retry executor.
package source

import (
	"context"
	"net/http"
	"strings"

	"github.com/pdiddy/grant-engine/pkg/types"
)

// Source is one upstream provider adapter.
type Source interface {
	// Name returns the adapter identifier used in outcomes, logs and provenance.
	Name() string

	// Fetch runs the query against the provider and returns normalized
	// records. A non-2xx response or transport failure comes back as
	// *httputil.UpstreamError. Zero records with a nil error is a valid
	// empty result.
	Fetch(ctx context.Context, query types.Query, cfg types.SearchConfig) ([]types.GrantRecord, error)
}

// Registry returns the enabled adapters in registration order. The order is
// fixed (grantsgov, samgov, nihguide, grantsrss) because merge precedence
// falls back to first-seen by registration order.
func Registry(cfg types.SearchConfig, client *http.Client) []Source {
	var sources []Source
	if cfg.EnableGrantsGov {
		sources = append(sources, &GrantsGovSource{Client: client})
	}
	if cfg.EnableSAMGov {
		sources = append(sources, &SAMGovSource{Client: client, APIKey: cfg.SAMAPIKey})
	}
	if cfg.EnableNIHGuide {
		sources = append(sources, &NIHGuideSource{Client: client})
	}
	if cfg.EnableGrantsRSS {
		sources = append(sources, &GrantsRSSSource{Client: client})
	}
	return sources
}

// applyFilters enforces the query filters a provider API cannot express:
// agency, opportunity type, deadline bounds and award bounds. A record that
// cannot satisfy an explicitly requested bound (e.g. no deadline when a
// deadline window was asked for) is excluded rather than guessed about.
// Free-text relevance stays the provider's job and is not re-checked here.
func applyFilters(records []types.GrantRecord, q types.Query) []types.GrantRecord {
	if q.Agency == "" && q.OpportunityType == "" &&
		q.DeadlineBefore == nil && q.DeadlineAfter == nil &&
		q.MinAward == nil && q.MaxAward == nil {
		return records
	}

	var kept []types.GrantRecord
	for _, r := range records {
		if q.Agency != "" && !matchesAgency(r, q.Agency) {
			continue
		}
		if q.OpportunityType != "" && r.OpportunityType != q.OpportunityType {
			continue
		}
		if q.DeadlineBefore != nil && (r.Deadline == nil || r.Deadline.After(*q.DeadlineBefore)) {
			continue
		}
		if q.DeadlineAfter != nil && (r.Deadline == nil || r.Deadline.Before(*q.DeadlineAfter)) {
			continue
		}
		if q.MinAward != nil && !awardsAtLeast(r, *q.MinAward) {
			continue
		}
		if q.MaxAward != nil && !awardsAtMost(r, *q.MaxAward) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// awardsAtLeast reports whether the record can award min or more. Either
// published bound can prove it; no published amounts cannot.
func awardsAtLeast(r types.GrantRecord, min float64) bool {
	if r.AwardCeiling != nil && *r.AwardCeiling >= min {
		return true
	}
	return r.AwardFloor != nil && *r.AwardFloor >= min
}

// awardsAtMost reports whether the record can award max or less.
func awardsAtMost(r types.GrantRecord, max float64) bool {
	if r.AwardFloor != nil && *r.AwardFloor <= max {
		return true
	}
	return r.AwardCeiling != nil && *r.AwardCeiling <= max
}

// matchesAgency checks the agency filter against both the display name and
// the short code, case-insensitively.
func matchesAgency(r types.GrantRecord, agency string) bool {
	want := strings.ToLower(agency)
	return strings.Contains(strings.ToLower(r.Agency), want) ||
		strings.Contains(strings.ToLower(r.AgencyCode), want)
}
