// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/pdiddy/grant-engine/internal/httputil"
	"github.com/pdiddy/grant-engine/pkg/types"
)

const nihGuideFixture = `{
	"data": {
		"total": 2,
		"hits": [
			{
				"noticenumber": "PAR-26-118",
				"title": "Innovative Approaches to Alzheimer's Research",
				"organization": "National Institute on Aging",
				"reldate": "03/15/2026",
				"expdate": "03/16/2029",
				"activitycodes": "R01, R21",
				"doctype": "PAR",
				"purpose": "Supports mechanistic studies of neurodegeneration.",
				"eligibility": "Higher Education Institutions",
				"estimatedfunding": "$2,500,000"
			},
			{
				"noticenumber": "RFA-AI-26-030",
				"title": "Centers for Pandemic Preparedness",
				"organization": "National Institute of Allergy and Infectious Diseases",
				"reldate": "04/02/2026",
				"expdate": "07/10/2026",
				"activitycodes": "U19",
				"doctype": "RFA",
				"purpose": "Establishes coordinated research centers.",
				"eligibility": "",
				"estimatedfunding": ""
			}
		]
	}
}`

// --- Request construction ---

func TestNIHGuideFetchRequest(t *testing.T) {
	var gotQuery url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(nihGuideFixture))
	}))
	defer ts.Close()

	old := nihGuideAPIBase
	nihGuideAPIBase = ts.URL
	defer func() { nihGuideAPIBase = old }()

	src := &NIHGuideSource{Client: ts.Client()}
	if _, err := src.Fetch(context.Background(), types.Query{Text: "alzheimer"}, testCfg()); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if gotQuery.Get("searchstr") != "alzheimer" {
		t.Errorf("searchstr = %q", gotQuery.Get("searchstr"))
	}
	if gotQuery.Get("perpage") != "20" {
		t.Errorf("perpage = %q, want 20", gotQuery.Get("perpage"))
	}
	if gotQuery.Get("type") != "active" {
		t.Errorf("type = %q, want active", gotQuery.Get("type"))
	}
}

// --- Normalization ---

func TestNIHGuideFetchNormalizes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(nihGuideFixture))
	}))
	defer ts.Close()

	old := nihGuideAPIBase
	nihGuideAPIBase = ts.URL
	defer func() { nihGuideAPIBase = old }()

	src := &NIHGuideSource{Client: ts.Client()}
	records, err := src.Fetch(context.Background(), types.Query{}, testCfg())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	par := records[0]
	if par.SourceID != "PAR-26-118" || par.OpportunityNumber != "PAR-26-118" {
		t.Errorf("identifier = %q/%q", par.SourceID, par.OpportunityNumber)
	}
	if par.Agency != "National Institute on Aging" || par.AgencyCode != "NIH" {
		t.Errorf("agency = %q/%q", par.Agency, par.AgencyCode)
	}
	if par.OpportunityType != types.OpportunityGrant {
		t.Errorf("PAR OpportunityType = %q, want grant", par.OpportunityType)
	}
	if par.Deadline == nil || par.Deadline.Format("2006-01-02") != "2029-03-16" {
		t.Errorf("Deadline = %v", par.Deadline)
	}
	if par.AwardCeiling == nil || *par.AwardCeiling != 2_500_000 {
		t.Errorf("AwardCeiling = %v, want 2500000", par.AwardCeiling)
	}
	if par.Eligibility != "Higher Education Institutions" {
		t.Errorf("Eligibility = %q", par.Eligibility)
	}

	rfa := records[1]
	if rfa.OpportunityType != types.OpportunityCooperativeAgreement {
		t.Errorf("U19 OpportunityType = %q, want cooperative_agreement", rfa.OpportunityType)
	}
	if rfa.AwardCeiling != nil {
		t.Errorf("empty funding should stay nil, got %v", *rfa.AwardCeiling)
	}
}

func TestNIHGuideMissingOrganization(t *testing.T) {
	body := `{"data":{"total":1,"hits":[{"noticenumber":"NOT-OD-26-555","title":"Notice","doctype":"NOT"}]}}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer ts.Close()

	old := nihGuideAPIBase
	nihGuideAPIBase = ts.URL
	defer func() { nihGuideAPIBase = old }()

	src := &NIHGuideSource{Client: ts.Client()}
	records, err := src.Fetch(context.Background(), types.Query{}, testCfg())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if records[0].Agency != "National Institutes of Health" {
		t.Errorf("Agency = %q, want the NIH default", records[0].Agency)
	}
}

func TestMapNIHType(t *testing.T) {
	tests := []struct {
		docType       string
		activityCodes string
		want          types.OpportunityType
	}{
		{"PA", "R01", types.OpportunityGrant},
		{"PAR", "R01, R21", types.OpportunityGrant},
		{"RFA", "U01", types.OpportunityCooperativeAgreement},
		{"PA", "UG3, UH3", types.OpportunityGrant}, // UG3 is not U+digit
		{"RFA", "R61, U19", types.OpportunityCooperativeAgreement},
		{"NOT", "", types.OpportunityOther},
		{"", "", types.OpportunityOther},
	}
	for _, tt := range tests {
		if got := mapNIHType(tt.docType, tt.activityCodes); got != tt.want {
			t.Errorf("mapNIHType(%q, %q) = %q, want %q", tt.docType, tt.activityCodes, got, tt.want)
		}
	}
}

func TestParseDollars(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$2,500,000", 2_500_000, true},
		{"1500000", 1_500_000, true},
		{"$0", 0, true},
		{"", 0, false},
		{"TBD", 0, false},
		{"$-5", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseDollars(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseDollars(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

// --- Errors ---

func TestNIHGuideHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	defer ts.Close()

	old := nihGuideAPIBase
	nihGuideAPIBase = ts.URL
	defer func() { nihGuideAPIBase = old }()

	src := &NIHGuideSource{Client: ts.Client()}
	_, err := src.Fetch(context.Background(), types.Query{}, testCfg())
	var ue *httputil.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error type = %T, want *httputil.UpstreamError", err)
	}
	if ue.Source != "nihguide" || ue.Status != http.StatusGatewayTimeout {
		t.Errorf("UpstreamError = %+v", ue)
	}
}

func TestNIHGuideConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // refuse every connection

	old := nihGuideAPIBase
	nihGuideAPIBase = ts.URL
	defer func() { nihGuideAPIBase = old }()

	src := &NIHGuideSource{Client: http.DefaultClient}
	_, err := src.Fetch(context.Background(), types.Query{}, testCfg())
	var ue *httputil.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error type = %T, want *httputil.UpstreamError", err)
	}
	if ue.Status != 0 {
		t.Errorf("Status = %d, want 0 for transport failure", ue.Status)
	}
	if !ue.Transient() {
		t.Error("transport failure should classify as transient")
	}
}

func TestNIHGuideName(t *testing.T) {
	if (&NIHGuideSource{}).Name() != "nihguide" {
		t.Error("unexpected source name")
	}
}
