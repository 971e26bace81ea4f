// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/grant-engine/internal/httputil"
	"github.com/pdiddy/grant-engine/pkg/types"
)

// grantsGovAPIBase is the Grants.gov Search2 endpoint. Declared as a var so
// tests can substitute an httptest server.
var grantsGovAPIBase = "https://api.grants.gov/v1/api/search2"

// grantsGovDateLayout is the MM/DD/YYYY format Search2 uses for open and
// close dates.
const grantsGovDateLayout = "01/02/2006"

// GrantsGovSource queries the Grants.gov Search2 API.
type GrantsGovSource struct {
	Client *http.Client
}

// Name returns the adapter identifier.
func (s *GrantsGovSource) Name() string { return "grantsgov" }

// Fetch posts the query to Search2 and normalizes the opportunity hits.
func (s *GrantsGovSource) Fetch(ctx context.Context, query types.Query, cfg types.SearchConfig) ([]types.GrantRecord, error) {
	rows := cfg.MaxResults
	if rows <= 0 {
		rows = 25
	}
	if rows > 999 {
		rows = 999
	}

	body := grantsGovRequest{
		Keyword:     query.Text,
		OppStatuses: "forecasted|posted",
		Rows:        rows,
	}
	// Search2 filters by agency code; a display name has to wait for the
	// shared client-side filter instead.
	if code := asAgencyCode(query.Agency); code != "" {
		body.Agencies = code
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding Grants.gov request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, grantsGovAPIBase, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &httputil.UpstreamError{Source: s.Name(), Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httputil.UpstreamError{Source: s.Name(), Status: resp.StatusCode, Message: "search2 request rejected"}
	}

	var gr grantsGovResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, &httputil.UpstreamError{Source: s.Name(), Message: "parsing search2 response: " + err.Error(), Err: err}
	}
	if gr.ErrorCode != 0 {
		return nil, &httputil.UpstreamError{Source: s.Name(), Status: resp.StatusCode, Message: fmt.Sprintf("search2 error %d: %s", gr.ErrorCode, gr.Msg)}
	}

	var records []types.GrantRecord
	for _, raw := range gr.Data.OppHits {
		var hit grantsGovHit
		if err := json.Unmarshal(raw, &hit); err != nil {
			// One malformed hit shouldn't sink the rest of the page.
			continue
		}

		r := types.GrantRecord{
			SourceID:          hit.ID,
			SourceName:        s.Name(),
			Title:             hit.Title,
			Agency:            hit.AgencyName,
			AgencyCode:        hit.AgencyCode,
			OpportunityNumber: hit.Number,
			OpportunityType:   types.OpportunityGrant,
			RawPayload:        append(json.RawMessage(nil), raw...),
			DataSources:       []string{s.Name()},
		}
		if r.Agency == "" {
			r.Agency = hit.AgencyCode
		}
		if t, parseErr := time.Parse(grantsGovDateLayout, hit.OpenDate); parseErr == nil {
			r.PostedDate = &t
		}
		if t, parseErr := time.Parse(grantsGovDateLayout, hit.CloseDate); parseErr == nil {
			r.Deadline = &t
		}

		records = append(records, r)
	}
	return applyFilters(records, query), nil
}

// asAgencyCode returns s when it looks like a short agency code
// (e.g. "ED", "HHS-NIH"), otherwise "".
func asAgencyCode(s string) string {
	if s == "" || len(s) > 12 {
		return ""
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return ""
		}
	}
	return s
}

// Grants.gov Search2 API JSON structures.
type grantsGovRequest struct {
	Keyword     string `json:"keyword,omitempty"`
	OppStatuses string `json:"oppStatuses,omitempty"`
	Agencies    string `json:"agencies,omitempty"`
	Rows        int    `json:"rows"`
	StartRecord int    `json:"startRecordNum"`
}

type grantsGovResponse struct {
	ErrorCode int           `json:"errorcode"`
	Msg       string        `json:"msg"`
	Data      grantsGovHits `json:"data"`
}

type grantsGovHits struct {
	HitCount int               `json:"hitCount"`
	OppHits  []json.RawMessage `json:"oppHits"`
}

type grantsGovHit struct {
	ID         string   `json:"id"`
	Number     string   `json:"number"`
	Title      string   `json:"title"`
	AgencyCode string   `json:"agencyCode"`
	AgencyName string   `json:"agency"`
	OpenDate   string   `json:"openDate"`
	CloseDate  string   `json:"closeDate"`
	OppStatus  string   `json:"oppStatus"`
	DocType    string   `json:"docType"`
	ALNs       []string `json:"alnist"`
}
