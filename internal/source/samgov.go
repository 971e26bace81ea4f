// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/grant-engine/internal/httputil"
	"github.com/pdiddy/grant-engine/pkg/types"
)

// samGovAPIBase is the SAM.gov opportunities search endpoint. Declared as a
// var so tests can substitute an httptest server.
var samGovAPIBase = "https://api.sam.gov/opportunities/v2/search"

const (
	// samGovParamLayout is the MM/dd/yyyy format the posted-date window
	// parameters require.
	samGovParamLayout = "01/02/2006"

	// samGovPostedWindow is how far back the required posted-date window
	// reaches when the query doesn't imply one.
	samGovPostedWindow = 90 * 24 * time.Hour
)

// SAMGovSource queries the SAM.gov opportunities API. An API key is
// mandatory; SAM.gov rejects anonymous requests.
type SAMGovSource struct {
	Client *http.Client
	APIKey string
}

// Name returns the adapter identifier.
func (s *SAMGovSource) Name() string { return "samgov" }

// Fetch queries SAM.gov and normalizes the opportunity notices.
func (s *SAMGovSource) Fetch(ctx context.Context, query types.Query, cfg types.SearchConfig) ([]types.GrantRecord, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("samgov: api key not configured (set sam_api_key or .secrets/sam-api-key)")
	}

	limit := cfg.MaxResults
	if limit <= 0 {
		limit = 25
	}
	if limit > 1000 {
		limit = 1000
	}

	now := time.Now()
	params := url.Values{
		"api_key":    {s.APIKey},
		"limit":      {strconv.Itoa(limit)},
		"postedFrom": {now.Add(-samGovPostedWindow).Format(samGovParamLayout)},
		"postedTo":   {now.Format(samGovParamLayout)},
	}
	if query.Text != "" {
		params.Set("title", query.Text)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, samGovAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &httputil.UpstreamError{Source: s.Name(), Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := "opportunities request rejected"
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			msg = "api key rejected"
		}
		return nil, &httputil.UpstreamError{Source: s.Name(), Status: resp.StatusCode, Message: msg}
	}

	var sr samGovResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, &httputil.UpstreamError{Source: s.Name(), Message: "parsing opportunities response: " + err.Error(), Err: err}
	}

	var records []types.GrantRecord
	for _, raw := range sr.OpportunitiesData {
		var notice samGovNotice
		if err := json.Unmarshal(raw, &notice); err != nil {
			continue
		}

		r := types.GrantRecord{
			SourceID:          notice.NoticeID,
			SourceName:        s.Name(),
			Title:             notice.Title,
			Agency:            topLevelOrg(notice.FullParentPathName),
			OpportunityNumber: notice.SolicitationNumber,
			Description:       notice.Description,
			OpportunityType:   mapSAMType(notice.Type),
			Eligibility:       notice.TypeOfSetAsideDescription,
			RawPayload:        append(json.RawMessage(nil), raw...),
			DataSources:       []string{s.Name()},
		}
		if t, parseErr := time.Parse("2006-01-02", notice.PostedDate); parseErr == nil {
			r.PostedDate = &t
		}
		if t, parseErr := time.Parse(time.RFC3339, notice.ResponseDeadLine); parseErr == nil {
			r.Deadline = &t
		}
		if amount, parseErr := strconv.ParseFloat(notice.Award.Amount, 64); parseErr == nil && amount >= 0 {
			r.AwardCeiling = &amount
		}

		records = append(records, r)
	}
	return applyFilters(records, query), nil
}

// topLevelOrg extracts the department from a dotted organization path like
// "GENERAL SERVICES ADMINISTRATION.FEDERAL ACQUISITION SERVICE".
func topLevelOrg(path string) string {
	if i := strings.IndexByte(path, '.'); i > 0 {
		return path[:i]
	}
	return path
}

// mapSAMType maps a SAM.gov notice type to the canonical enum.
func mapSAMType(noticeType string) types.OpportunityType {
	t := strings.ToLower(noticeType)
	switch {
	case strings.Contains(t, "grant"):
		return types.OpportunityGrant
	case strings.Contains(t, "cooperative"):
		return types.OpportunityCooperativeAgreement
	case strings.Contains(t, "solicitation"),
		strings.Contains(t, "sources sought"),
		strings.Contains(t, "presolicitation"):
		return types.OpportunityContract
	default:
		return types.OpportunityOther
	}
}

// SAM.gov opportunities API JSON structures.
type samGovResponse struct {
	TotalRecords      int               `json:"totalRecords"`
	Limit             int               `json:"limit"`
	Offset            int               `json:"offset"`
	OpportunitiesData []json.RawMessage `json:"opportunitiesData"`
}

type samGovNotice struct {
	NoticeID                  string      `json:"noticeId"`
	Title                     string      `json:"title"`
	SolicitationNumber        string      `json:"solicitationNumber"`
	FullParentPathName        string      `json:"fullParentPathName"`
	PostedDate                string      `json:"postedDate"`
	Type                      string      `json:"type"`
	ResponseDeadLine          string      `json:"responseDeadLine"`
	Description               string      `json:"description"`
	TypeOfSetAsideDescription string      `json:"typeOfSetAsideDescription"`
	Active                    string      `json:"active"`
	Award                     samGovAward `json:"award"`
}

type samGovAward struct {
	Amount string `json:"amount"`
}
