// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/pdiddy/grant-engine/internal/httputil"
	"github.com/pdiddy/grant-engine/pkg/types"
)

const samGovFixture = `{
	"totalRecords": 1,
	"limit": 25,
	"offset": 0,
	"opportunitiesData": [
		{
			"noticeId": "ab12cd34ef56",
			"title": "Community Health Center Expansion",
			"solicitationNumber": "HHS-2026-ACF-0042",
			"fullParentPathName": "HEALTH AND HUMAN SERVICES, DEPARTMENT OF.ADMINISTRATION FOR CHILDREN AND FAMILIES",
			"postedDate": "2026-05-12",
			"type": "Grant Opportunity",
			"responseDeadLine": "2026-08-30T17:00:00-05:00",
			"description": "Expands community health center capacity.",
			"typeOfSetAsideDescription": "Total Small Business Set-Aside",
			"active": "Yes",
			"award": {"amount": "1500000"}
		}
	]
}`

// --- Request construction ---

func TestSAMGovFetchRequest(t *testing.T) {
	var gotQuery url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(samGovFixture))
	}))
	defer ts.Close()

	old := samGovAPIBase
	samGovAPIBase = ts.URL
	defer func() { samGovAPIBase = old }()

	src := &SAMGovSource{Client: ts.Client(), APIKey: "test-key"}
	if _, err := src.Fetch(context.Background(), types.Query{Text: "health center"}, testCfg()); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if gotQuery.Get("api_key") != "test-key" {
		t.Errorf("api_key = %q", gotQuery.Get("api_key"))
	}
	if gotQuery.Get("title") != "health center" {
		t.Errorf("title = %q", gotQuery.Get("title"))
	}
	if gotQuery.Get("limit") != "20" {
		t.Errorf("limit = %q, want 20", gotQuery.Get("limit"))
	}
	// SAM.gov requires a posted-date window on every request.
	if gotQuery.Get("postedFrom") == "" || gotQuery.Get("postedTo") == "" {
		t.Errorf("postedFrom/postedTo missing: %v", gotQuery)
	}
}

func TestSAMGovMissingAPIKey(t *testing.T) {
	src := &SAMGovSource{Client: http.DefaultClient}
	_, err := src.Fetch(context.Background(), types.Query{}, testCfg())
	if err == nil {
		t.Fatal("expected error when api key is unset")
	}
	if !strings.Contains(err.Error(), "api key not configured") {
		t.Errorf("error = %q", err)
	}
	var ue *httputil.UpstreamError
	if errors.As(err, &ue) {
		t.Error("missing key is a configuration error, not an upstream failure")
	}
}

// --- Normalization ---

func TestSAMGovFetchNormalizes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samGovFixture))
	}))
	defer ts.Close()

	old := samGovAPIBase
	samGovAPIBase = ts.URL
	defer func() { samGovAPIBase = old }()

	src := &SAMGovSource{Client: ts.Client(), APIKey: "k"}
	records, err := src.Fetch(context.Background(), types.Query{}, testCfg())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}

	r := records[0]
	if r.SourceID != "ab12cd34ef56" || r.SourceName != "samgov" {
		t.Errorf("identity = %q/%q", r.SourceID, r.SourceName)
	}
	if r.Agency != "HEALTH AND HUMAN SERVICES, DEPARTMENT OF" {
		t.Errorf("Agency = %q, want the top path segment", r.Agency)
	}
	if r.OpportunityNumber != "HHS-2026-ACF-0042" {
		t.Errorf("OpportunityNumber = %q", r.OpportunityNumber)
	}
	if r.OpportunityType != types.OpportunityGrant {
		t.Errorf("OpportunityType = %q", r.OpportunityType)
	}
	if r.PostedDate == nil || r.PostedDate.Format("2006-01-02") != "2026-05-12" {
		t.Errorf("PostedDate = %v", r.PostedDate)
	}
	if r.Deadline == nil {
		t.Fatal("Deadline = nil, want parsed RFC3339 deadline")
	}
	if r.Deadline.UTC().Format("2006-01-02T15:04") != "2026-08-30T22:00" {
		t.Errorf("Deadline = %v, want 2026-08-30 22:00 UTC", r.Deadline.UTC())
	}
	if r.AwardCeiling == nil || *r.AwardCeiling != 1_500_000 {
		t.Errorf("AwardCeiling = %v, want 1500000", r.AwardCeiling)
	}
	if r.Eligibility != "Total Small Business Set-Aside" {
		t.Errorf("Eligibility = %q", r.Eligibility)
	}
	if len(r.RawPayload) == 0 {
		t.Error("RawPayload is empty")
	}
	if r.FallbackOccurred {
		t.Error("FallbackOccurred = true for primary API source")
	}
}

func TestSAMGovTypeMapping(t *testing.T) {
	tests := []struct {
		noticeType string
		want       types.OpportunityType
	}{
		{"Grant Opportunity", types.OpportunityGrant},
		{"Cooperative Agreement", types.OpportunityCooperativeAgreement},
		{"Solicitation", types.OpportunityContract},
		{"Combined Synopsis/Solicitation", types.OpportunityContract},
		{"Sources Sought", types.OpportunityContract},
		{"Presolicitation", types.OpportunityContract},
		{"Special Notice", types.OpportunityOther},
		{"", types.OpportunityOther},
	}
	for _, tt := range tests {
		if got := mapSAMType(tt.noticeType); got != tt.want {
			t.Errorf("mapSAMType(%q) = %q, want %q", tt.noticeType, got, tt.want)
		}
	}
}

func TestTopLevelOrg(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"GENERAL SERVICES ADMINISTRATION.FEDERAL ACQUISITION SERVICE", "GENERAL SERVICES ADMINISTRATION"},
		{"DEPARTMENT OF DEFENSE.DEPT OF THE NAVY.NAVSEA", "DEPARTMENT OF DEFENSE"},
		{"NATIONAL SCIENCE FOUNDATION", "NATIONAL SCIENCE FOUNDATION"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := topLevelOrg(tt.path); got != tt.want {
			t.Errorf("topLevelOrg(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSAMGovUnparseableFieldsLeftNil(t *testing.T) {
	body := `{
		"opportunitiesData": [
			{
				"noticeId": "x1",
				"title": "Odd Notice",
				"postedDate": "May 12, 2026",
				"responseDeadLine": "",
				"award": {"amount": "TBD"}
			}
		]
	}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer ts.Close()

	old := samGovAPIBase
	samGovAPIBase = ts.URL
	defer func() { samGovAPIBase = old }()

	src := &SAMGovSource{Client: ts.Client(), APIKey: "k"}
	records, err := src.Fetch(context.Background(), types.Query{}, testCfg())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	r := records[0]
	if r.PostedDate != nil || r.Deadline != nil || r.AwardCeiling != nil {
		t.Errorf("unparseable fields should stay nil: posted=%v deadline=%v ceiling=%v",
			r.PostedDate, r.Deadline, r.AwardCeiling)
	}
}

// --- Errors ---

func TestSAMGovAPIKeyRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"API_KEY_INVALID"}}`, http.StatusForbidden)
	}))
	defer ts.Close()

	old := samGovAPIBase
	samGovAPIBase = ts.URL
	defer func() { samGovAPIBase = old }()

	src := &SAMGovSource{Client: ts.Client(), APIKey: "bad"}
	_, err := src.Fetch(context.Background(), types.Query{}, testCfg())
	var ue *httputil.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error type = %T, want *httputil.UpstreamError", err)
	}
	if ue.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", ue.Status)
	}
	if !strings.Contains(ue.Message, "api key rejected") {
		t.Errorf("Message = %q", ue.Message)
	}
	if ue.Transient() {
		t.Error("403 must not classify as transient")
	}
}

func TestSAMGovRateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over rate limit", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	old := samGovAPIBase
	samGovAPIBase = ts.URL
	defer func() { samGovAPIBase = old }()

	src := &SAMGovSource{Client: ts.Client(), APIKey: "k"}
	_, err := src.Fetch(context.Background(), types.Query{}, testCfg())
	var ue *httputil.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error type = %T", err)
	}
	if ue.Status != http.StatusTooManyRequests || !ue.Transient() {
		t.Errorf("429 should be transient, got %+v", ue)
	}
}

func TestSAMGovZeroResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"totalRecords":0,"opportunitiesData":[]}`))
	}))
	defer ts.Close()

	old := samGovAPIBase
	samGovAPIBase = ts.URL
	defer func() { samGovAPIBase = old }()

	src := &SAMGovSource{Client: ts.Client(), APIKey: "k"}
	records, err := src.Fetch(context.Background(), types.Query{Text: "nothing"}, testCfg())
	if err != nil {
		t.Fatalf("zero results should not be an error, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}

func TestSAMGovName(t *testing.T) {
	if (&SAMGovSource{}).Name() != "samgov" {
		t.Error("unexpected source name")
	}
}
