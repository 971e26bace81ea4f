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

// nihGuideAPIBase is the NIH Guide for Grants and Contracts search endpoint.
// Declared as a var so tests can substitute an httptest server.
var nihGuideAPIBase = "https://search.grants.nih.gov/guide/api/data"

// nihGuideDateLayout is the MM/DD/YYYY format Guide notices use.
const nihGuideDateLayout = "01/02/2006"

// NIHGuideSource queries the NIH Guide for Grants and Contracts.
type NIHGuideSource struct {
	Client *http.Client
}

// Name returns the adapter identifier.
func (s *NIHGuideSource) Name() string { return "nihguide" }

// Fetch queries the Guide and normalizes the funding notices.
func (s *NIHGuideSource) Fetch(ctx context.Context, query types.Query, cfg types.SearchConfig) ([]types.GrantRecord, error) {
	perPage := cfg.MaxResults
	if perPage <= 0 {
		perPage = 25
	}
	if perPage > 500 {
		perPage = 500
	}

	params := url.Values{
		"searchstr": {query.Text},
		"perpage":   {strconv.Itoa(perPage)},
		"type":      {"active"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, nihGuideAPIBase+"?"+params.Encode(), nil)
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
		return nil, &httputil.UpstreamError{Source: s.Name(), Status: resp.StatusCode, Message: "guide search rejected"}
	}

	var nr nihGuideResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return nil, &httputil.UpstreamError{Source: s.Name(), Message: "parsing guide response: " + err.Error(), Err: err}
	}

	var records []types.GrantRecord
	for _, raw := range nr.Data.Hits {
		var notice nihGuideNotice
		if err := json.Unmarshal(raw, &notice); err != nil {
			continue
		}

		r := types.GrantRecord{
			SourceID:          notice.NoticeNumber,
			SourceName:        s.Name(),
			Title:             notice.Title,
			Agency:            notice.Organization,
			AgencyCode:        "NIH",
			OpportunityNumber: notice.NoticeNumber,
			Description:       notice.Purpose,
			OpportunityType:   mapNIHType(notice.DocType, notice.ActivityCodes),
			Eligibility:       notice.Eligibility,
			RawPayload:        append(json.RawMessage(nil), raw...),
			DataSources:       []string{s.Name()},
		}
		if r.Agency == "" {
			r.Agency = "National Institutes of Health"
		}
		if t, parseErr := time.Parse(nihGuideDateLayout, notice.RelDate); parseErr == nil {
			r.PostedDate = &t
		}
		if t, parseErr := time.Parse(nihGuideDateLayout, notice.ExpDate); parseErr == nil {
			r.Deadline = &t
		}
		if amount, ok := parseDollars(notice.EstimatedFunding); ok {
			r.AwardCeiling = &amount
		}

		records = append(records, r)
	}
	return applyFilters(records, query), nil
}

// mapNIHType maps a Guide doctype and activity code list to the canonical
// enum. U-series activity codes (U01, U19, ...) are cooperative agreements.
func mapNIHType(docType, activityCodes string) types.OpportunityType {
	for _, code := range strings.Split(activityCodes, ",") {
		code = strings.TrimSpace(code)
		if len(code) >= 2 && code[0] == 'U' && code[1] >= '0' && code[1] <= '9' {
			return types.OpportunityCooperativeAgreement
		}
	}
	switch strings.ToUpper(strings.TrimSpace(docType)) {
	case "PA", "PAR", "PAS", "RFA":
		return types.OpportunityGrant
	default:
		return types.OpportunityOther
	}
}

// parseDollars parses amounts like "$2,500,000" into a float.
func parseDollars(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// NIH Guide API JSON structures.
type nihGuideResponse struct {
	Data nihGuideData `json:"data"`
}

type nihGuideData struct {
	Total int               `json:"total"`
	Hits  []json.RawMessage `json:"hits"`
}

type nihGuideNotice struct {
	NoticeNumber     string `json:"noticenumber"`
	Title            string `json:"title"`
	Organization     string `json:"organization"`
	RelDate          string `json:"reldate"`
	ExpDate          string `json:"expdate"`
	ActivityCodes    string `json:"activitycodes"`
	DocType          string `json:"doctype"`
	Purpose          string `json:"purpose"`
	Eligibility      string `json:"eligibility"`
	EstimatedFunding string `json:"estimatedfunding"`
	ParentFOA        string `json:"parentfoa"`
}
