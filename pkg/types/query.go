// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Query holds the logical search parameters fanned out to every source.
type Query struct {
	// Text is the free-text keyword query.
	Text string `json:"text" yaml:"text"`

	// Agency restricts results to a funding agency (name or code substring).
	Agency string `json:"agency,omitempty" yaml:"agency,omitempty"`

	// OpportunityType restricts results to one funding instrument.
	OpportunityType OpportunityType `json:"opportunity_type,omitempty" yaml:"opportunity_type,omitempty"`

	// DeadlineBefore and DeadlineAfter bound the application close date.
	DeadlineBefore *time.Time `json:"deadline_before,omitempty" yaml:"deadline_before,omitempty"`
	DeadlineAfter  *time.Time `json:"deadline_after,omitempty" yaml:"deadline_after,omitempty"`

	// MinAward and MaxAward bound the award amount in USD.
	MinAward *float64 `json:"min_award,omitempty" yaml:"min_award,omitempty"`
	MaxAward *float64 `json:"max_award,omitempty" yaml:"max_award,omitempty"`
}

// IsEmpty reports whether the query contains no searchable terms.
func (q Query) IsEmpty() bool {
	return q.Text == "" && q.Agency == "" && q.OpportunityType == "" &&
		q.DeadlineBefore == nil && q.DeadlineAfter == nil &&
		q.MinAward == nil && q.MaxAward == nil
}
