// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/grant-engine/pkg/types"
)

const dateFmt = "2006-01-02"

// QueryFile is the on-disk representation of a search: the parameters it ran
// with, the grants it found, and a summary of how the run went. Files are
// YAML so they stay pleasant to edit and diff.
type QueryFile struct {
	Query   QueryParams         `yaml:"query"`
	Config  QueryFileConfig     `yaml:"config"`
	Grants  []types.GrantRecord `yaml:"grants"`
	Summary QuerySummary        `yaml:"summary"`
}

// QueryParams mirrors types.Query with string dates.
type QueryParams struct {
	Text            string   `yaml:"text,omitempty"`
	Agency          string   `yaml:"agency,omitempty"`
	OpportunityType string   `yaml:"opportunity_type,omitempty"`
	DeadlineBefore  string   `yaml:"deadline_before,omitempty"`
	DeadlineAfter   string   `yaml:"deadline_after,omitempty"`
	MinAward        *float64 `yaml:"min_award,omitempty"`
	MaxAward        *float64 `yaml:"max_award,omitempty"`
}

// QueryFileConfig records the settings the search ran under.
type QueryFileConfig struct {
	MaxResults int      `yaml:"max_results"`
	Sources    []string `yaml:"sources"`
}

// QuerySummary records how the aggregation went.
type QuerySummary struct {
	Grants           int       `yaml:"grants"`
	SourcesSucceeded []string  `yaml:"sources_succeeded"`
	SourcesFailed    []string  `yaml:"sources_failed,omitempty"`
	Partial          bool      `yaml:"partial,omitempty"`
	CacheHit         bool      `yaml:"cache_hit,omitempty"`
	Timestamp        time.Time `yaml:"timestamp"`
}

// NewQueryFile assembles a QueryFile from a finished search.
func NewQueryFile(query types.Query, cfg types.SearchConfig, sources []string, env *types.Envelope) *QueryFile {
	qf := &QueryFile{
		Query: paramsFromQuery(query),
		Config: QueryFileConfig{
			MaxResults: cfg.MaxResults,
			Sources:    sources,
		},
		Grants: env.Grants,
		Summary: QuerySummary{
			Grants:        len(env.Grants),
			SourcesFailed: env.FailedSources(),
			Partial:       env.Partial,
			CacheHit:      env.CacheHit,
			Timestamp:     env.Timestamp,
		},
	}
	for _, o := range env.SourcesSucceeded {
		qf.Summary.SourcesSucceeded = append(qf.Summary.SourcesSucceeded, o.Source)
	}
	return qf
}

// WriteQueryFile writes qf to path as YAML.
func WriteQueryFile(path string, qf *QueryFile) error {
	data, err := yaml.Marshal(qf)
	if err != nil {
		return fmt.Errorf("marshal query file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write query file %s: %w", path, err)
	}
	return nil
}

// ReadQueryFile reads and parses a query file.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query file %s: %w", path, err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parse query file %s: %w", path, err)
	}
	return &qf, nil
}

// ToQuery converts the string-typed parameters back into a types.Query.
func (p QueryParams) ToQuery() (types.Query, error) {
	q := types.Query{Text: p.Text, Agency: p.Agency}
	if p.OpportunityType != "" {
		ot := types.OpportunityType(p.OpportunityType)
		if !ot.Valid() {
			return types.Query{}, fmt.Errorf("unknown opportunity type %q", p.OpportunityType)
		}
		q.OpportunityType = ot
	}
	if p.DeadlineBefore != "" {
		t, err := time.Parse(dateFmt, p.DeadlineBefore)
		if err != nil {
			return types.Query{}, fmt.Errorf("invalid deadline_before %q: %w", p.DeadlineBefore, err)
		}
		q.DeadlineBefore = &t
	}
	if p.DeadlineAfter != "" {
		t, err := time.Parse(dateFmt, p.DeadlineAfter)
		if err != nil {
			return types.Query{}, fmt.Errorf("invalid deadline_after %q: %w", p.DeadlineAfter, err)
		}
		q.DeadlineAfter = &t
	}
	if p.MinAward != nil {
		v := *p.MinAward
		q.MinAward = &v
	}
	if p.MaxAward != nil {
		v := *p.MaxAward
		q.MaxAward = &v
	}
	return q, nil
}

func paramsFromQuery(q types.Query) QueryParams {
	p := QueryParams{
		Text:            q.Text,
		Agency:          q.Agency,
		OpportunityType: string(q.OpportunityType),
	}
	if q.DeadlineBefore != nil {
		p.DeadlineBefore = q.DeadlineBefore.Format(dateFmt)
	}
	if q.DeadlineAfter != nil {
		p.DeadlineAfter = q.DeadlineAfter.Format(dateFmt)
	}
	if q.MinAward != nil {
		v := *q.MinAward
		p.MinAward = &v
	}
	if q.MaxAward != nil {
		v := *q.MaxAward
		p.MaxAward = &v
	}
	return p
}
