// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"time"

	"github.com/pdiddy/grant-engine/pkg/types"
)

// Merge deduplicates records across sources. Records sharing a fingerprint
// collapse into one merged record; everything else passes through untouched.
// Input order is preserved: each merged record sits where its group's first
// member appeared, so output order depends only on registration order and
// each source's own presentation order. Merging an already-merged list is a
// no-op.
//
// Field precedence inside a group: a value from the field's authoritative
// source wins outright; otherwise the first non-empty value wins, except
// long-form text (description, eligibility) where the longest non-empty
// value wins. Provenance accumulates: the merged record's DataSources is
// the union of every contributor, and FallbackOccurred is set if any
// contributor was built from a fallback representation.
func Merge(records []types.GrantRecord, authoritative map[string]string) []types.GrantRecord {
	groups := make(map[string][]types.GrantRecord)
	var order []string
	for _, r := range records {
		fp := r.Fingerprint()
		if _, seen := groups[fp]; !seen {
			order = append(order, fp)
		}
		groups[fp] = append(groups[fp], r)
	}

	merged := make([]types.GrantRecord, 0, len(order))
	for _, fp := range order {
		merged = append(merged, mergeGroup(groups[fp], authoritative))
	}
	return merged
}

// mergeGroup collapses one fingerprint group. The first record anchors
// identity (SourceID, SourceName, RawPayload); the remaining fields are
// picked per the precedence rules.
func mergeGroup(group []types.GrantRecord, auth map[string]string) types.GrantRecord {
	out := group[0].Clone()
	if len(group) == 1 {
		return out
	}

	out.Title = pickString(group, auth, "title", func(r types.GrantRecord) string { return r.Title }, false)
	out.Agency = pickString(group, auth, "agency", func(r types.GrantRecord) string { return r.Agency }, false)
	out.AgencyCode = pickString(group, auth, "agency_code", func(r types.GrantRecord) string { return r.AgencyCode }, false)
	out.OpportunityNumber = pickString(group, auth, "opportunity_number", func(r types.GrantRecord) string { return r.OpportunityNumber }, false)
	out.Description = pickString(group, auth, "description", func(r types.GrantRecord) string { return r.Description }, true)
	out.Eligibility = pickString(group, auth, "eligibility", func(r types.GrantRecord) string { return r.Eligibility }, true)
	out.PostedDate = pickTime(group, auth, "posted_date", func(r types.GrantRecord) *time.Time { return r.PostedDate })
	out.Deadline = pickTime(group, auth, "deadline", func(r types.GrantRecord) *time.Time { return r.Deadline })
	out.AwardFloor = pickFloat(group, auth, "award_floor", func(r types.GrantRecord) *float64 { return r.AwardFloor })
	out.AwardCeiling = pickFloat(group, auth, "award_ceiling", func(r types.GrantRecord) *float64 { return r.AwardCeiling })
	out.OpportunityType = pickType(group, auth)

	out.DataSources = unionSources(group)
	out.FallbackOccurred = false
	for _, r := range group {
		if r.FallbackOccurred {
			out.FallbackOccurred = true
			break
		}
	}
	return out
}

// fromAuthoritative returns the first group member owned by the field's
// authoritative source, if one is configured and present.
func fromAuthoritative(group []types.GrantRecord, auth map[string]string, field string) (types.GrantRecord, bool) {
	src := auth[field]
	if src == "" {
		return types.GrantRecord{}, false
	}
	for _, r := range group {
		if r.SourceName == src {
			return r, true
		}
	}
	return types.GrantRecord{}, false
}

func pickString(group []types.GrantRecord, auth map[string]string, field string, get func(types.GrantRecord) string, longest bool) string {
	if r, ok := fromAuthoritative(group, auth, field); ok && get(r) != "" {
		return get(r)
	}
	best := ""
	for _, r := range group {
		v := get(r)
		if v == "" {
			continue
		}
		if !longest {
			return v
		}
		if len(v) > len(best) {
			best = v
		}
	}
	return best
}

func pickTime(group []types.GrantRecord, auth map[string]string, field string, get func(types.GrantRecord) *time.Time) *time.Time {
	if r, ok := fromAuthoritative(group, auth, field); ok && get(r) != nil {
		t := *get(r)
		return &t
	}
	for _, r := range group {
		if v := get(r); v != nil {
			t := *v
			return &t
		}
	}
	return nil
}

func pickFloat(group []types.GrantRecord, auth map[string]string, field string, get func(types.GrantRecord) *float64) *float64 {
	if r, ok := fromAuthoritative(group, auth, field); ok && get(r) != nil {
		f := *get(r)
		return &f
	}
	for _, r := range group {
		if v := get(r); v != nil {
			f := *v
			return &f
		}
	}
	return nil
}

// pickType prefers a specific opportunity type over the catch-all "other".
func pickType(group []types.GrantRecord, auth map[string]string) types.OpportunityType {
	if r, ok := fromAuthoritative(group, auth, "opportunity_type"); ok && r.OpportunityType.Valid() {
		return r.OpportunityType
	}
	var fallback types.OpportunityType
	for _, r := range group {
		if !r.OpportunityType.Valid() {
			continue
		}
		if r.OpportunityType != types.OpportunityOther {
			return r.OpportunityType
		}
		if fallback == "" {
			fallback = r.OpportunityType
		}
	}
	if fallback == "" {
		return group[0].OpportunityType
	}
	return fallback
}

// unionSources merges the groups' provenance lists, first occurrence wins.
func unionSources(group []types.GrantRecord) []string {
	seen := make(map[string]bool)
	var union []string
	for _, r := range group {
		for _, s := range r.DataSources {
			if !seen[s] {
				seen[s] = true
				union = append(union, s)
			}
		}
	}
	return union
}
