// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/grant-engine/internal/httputil"
	"github.com/pdiddy/grant-engine/pkg/types"
)

// grantsRSSFeedURL is the Grants.gov new-opportunities feed. Declared as a
// var so tests can substitute an httptest server.
var grantsRSSFeedURL = "https://www.grants.gov/rss/GG_NewOppByAgency.xml"

// GrantsRSSSource reads the Grants.gov new-opportunities RSS feed. The feed
// is not a query endpoint, so all filtering happens client-side, and every
// record it produces is flagged as coming from a fallback representation.
type GrantsRSSSource struct {
	Client *http.Client
}

// Name returns the adapter identifier.
func (s *GrantsRSSSource) Name() string { return "grantsrss" }

// Fetch downloads the feed, filters items against the query, and normalizes
// the survivors.
func (s *GrantsRSSSource) Fetch(ctx context.Context, query types.Query, cfg types.SearchConfig) ([]types.GrantRecord, error) {
	parser := gofeed.NewParser()
	parser.Client = s.Client
	parser.UserAgent = cfg.UserAgent

	feed, err := parser.ParseURLWithContext(grantsRSSFeedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &httputil.UpstreamError{Source: s.Name(), Status: httpErr.StatusCode, Message: "feed request rejected"}
		}
		return nil, &httputil.UpstreamError{Source: s.Name(), Message: err.Error(), Err: err}
	}

	max := cfg.MaxResults
	if max <= 0 {
		max = 25
	}

	var records []types.GrantRecord
	for _, item := range feed.Items {
		if len(records) >= max {
			break
		}

		fields := descriptionFields(item.Description)

		r := types.GrantRecord{
			SourceID:          feedItemID(item),
			SourceName:        s.Name(),
			Title:             strings.TrimSpace(item.Title),
			Agency:            fields["agency"],
			OpportunityNumber: fields["opportunity number"],
			Description:       strings.TrimSpace(stripMarkup(item.Description)),
			OpportunityType:   types.OpportunityGrant,
			Eligibility:       fields["eligible applicants"],
			DataSources:       []string{s.Name()},
			FallbackOccurred:  true,
		}
		if raw, marshalErr := json.Marshal(item); marshalErr == nil {
			r.RawPayload = raw
		}
		if t, ok := parseFeedDate(fields["close date"]); ok {
			r.Deadline = &t
		}
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			r.PostedDate = &t
		}
		if amount, ok := parseDollars(fields["award ceiling"]); ok {
			r.AwardCeiling = &amount
		}
		if amount, ok := parseDollars(fields["award floor"]); ok {
			r.AwardFloor = &amount
		}

		if query.Text != "" && !matchesText(r, query.Text) {
			continue
		}
		records = append(records, r)
	}
	return applyFilters(records, query), nil
}

// feedItemID extracts the opportunity id from the item link
// (...?oppId=12345), falling back to a hash of the link.
func feedItemID(item *gofeed.Item) string {
	if u, err := url.Parse(item.Link); err == nil {
		if id := u.Query().Get("oppId"); id != "" {
			return id
		}
	}
	ref := item.Link
	if ref == "" {
		ref = item.GUID
	}
	h := sha256.Sum256([]byte(ref))
	return fmt.Sprintf("%x", h[:8])
}

// descriptionFields parses the feed's "Label: value" description lines into
// a lowercase-label map.
func descriptionFields(desc string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(stripMarkup(desc), "\n") {
		label, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		label = strings.ToLower(strings.TrimSpace(label))
		value = strings.TrimSpace(value)
		if label != "" && value != "" {
			fields[label] = value
		}
	}
	return fields
}

// stripMarkup converts <br> tags to newlines and drops all other tags.
func stripMarkup(s string) string {
	for _, br := range []string{"<br>", "<br/>", "<br />", "<BR>"} {
		s = strings.ReplaceAll(s, br, "\n")
	}
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseFeedDate tries the date formats seen in feed descriptions.
func parseFeedDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"Jan 2, 2006", "Jan 02, 2006", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// matchesText reports whether every whitespace-separated query term appears
// in the record's title or description, case-insensitively.
func matchesText(r types.GrantRecord, text string) bool {
	haystack := strings.ToLower(r.Title + " " + r.Description)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}
