// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the grant-engine pipeline.
package types

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"
)

// OpportunityType classifies the funding instrument of an opportunity.
type OpportunityType string

const (
	OpportunityGrant                OpportunityType = "grant"
	OpportunityCooperativeAgreement OpportunityType = "cooperative_agreement"
	OpportunityContract             OpportunityType = "contract"
	OpportunityOther                OpportunityType = "other"
)

// Valid reports whether t is a member of the canonical enum.
func (t OpportunityType) Valid() bool {
	switch t {
	case OpportunityGrant, OpportunityCooperativeAgreement, OpportunityContract, OpportunityOther:
		return true
	}
	return false
}

// GrantRecord is the canonical representation of one funding opportunity as
// normalized by a source adapter. Identity is the (SourceID, SourceName)
// pair; cross-source matching uses Fingerprint instead.
type GrantRecord struct {
	// SourceID is the provider-native identifier (opportunity id, notice id).
	SourceID string `json:"source_id" yaml:"source_id"`

	// SourceName identifies the adapter that produced the record
	// (e.g. "grantsgov", "samgov").
	SourceName string `json:"source_name" yaml:"source_name"`

	// Title is the opportunity title as published by the source.
	Title string `json:"title" yaml:"title"`

	// Agency is the funding agency's display name.
	Agency string `json:"agency" yaml:"agency"`

	// AgencyCode is the short agency code when the source provides one (e.g. "ED").
	AgencyCode string `json:"agency_code,omitempty" yaml:"agency_code,omitempty"`

	// OpportunityNumber is the human-facing funding opportunity number
	// (e.g. "ED-GRANTS-061225-001", "PAR-25-123").
	OpportunityNumber string `json:"opportunity_number,omitempty" yaml:"opportunity_number,omitempty"`

	// Description is the opportunity synopsis or abstract.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// PostedDate is when the opportunity was published; nil when unknown.
	PostedDate *time.Time `json:"posted_date,omitempty" yaml:"posted_date,omitempty"`

	// Deadline is the application close date; nil when the source did not
	// publish one (forecasts often have none).
	Deadline *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`

	// AwardFloor and AwardCeiling bound the expected award amount in USD.
	// Either may be nil when the source does not publish amounts.
	AwardFloor   *float64 `json:"award_floor,omitempty" yaml:"award_floor,omitempty"`
	AwardCeiling *float64 `json:"award_ceiling,omitempty" yaml:"award_ceiling,omitempty"`

	// OpportunityType classifies the funding instrument.
	OpportunityType OpportunityType `json:"opportunity_type" yaml:"opportunity_type"`

	// Eligibility is the applicant eligibility text, verbatim from the source.
	Eligibility string `json:"eligibility,omitempty" yaml:"eligibility,omitempty"`

	// RawPayload is the upstream response fragment this record was built
	// from, retained for audit. Excluded from YAML exports.
	RawPayload json.RawMessage `json:"raw_payload,omitempty" yaml:"-"`

	// DataSources lists every adapter that contributed to this record after
	// merging, in first-seen order. Always has at least one entry.
	DataSources []string `json:"data_sources" yaml:"data_sources"`

	// FallbackOccurred is true when the record came from a source's fallback
	// representation (e.g. the RSS feed) rather than its query API.
	FallbackOccurred bool `json:"fallback_occurred,omitempty" yaml:"fallback_occurred,omitempty"`
}

// Fingerprint returns the cross-source matching key: case-folded,
// whitespace-collapsed title, agency, and opportunity number. Records from
// different providers that describe the same real-world opportunity share a
// fingerprint; SourceID does not participate.
func (g GrantRecord) Fingerprint() string {
	return foldText(g.Title) + "|" + foldText(g.Agency) + "|" + foldText(g.OpportunityNumber)
}

// HasIdentifier reports whether the record carries at least one identifier.
func (g GrantRecord) HasIdentifier() bool {
	return g.SourceID != "" || g.OpportunityNumber != ""
}

// Clone returns a deep copy sharing no mutable state with g.
func (g GrantRecord) Clone() GrantRecord {
	c := g
	if g.PostedDate != nil {
		t := *g.PostedDate
		c.PostedDate = &t
	}
	if g.Deadline != nil {
		t := *g.Deadline
		c.Deadline = &t
	}
	if g.AwardFloor != nil {
		v := *g.AwardFloor
		c.AwardFloor = &v
	}
	if g.AwardCeiling != nil {
		v := *g.AwardCeiling
		c.AwardCeiling = &v
	}
	if g.RawPayload != nil {
		c.RawPayload = append(json.RawMessage(nil), g.RawPayload...)
	}
	if g.DataSources != nil {
		c.DataSources = append([]string(nil), g.DataSources...)
	}
	return c
}

// foldText lowercases s, strips everything but letters, digits and spaces,
// and collapses runs of whitespace to a single space.
func foldText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
