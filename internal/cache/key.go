// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/grant-engine/pkg/types"
)

// Key derives the cache key for a query. The encoding is canonical: fields
// appear in a fixed order, text is lowercased with whitespace collapsed,
// times are UTC RFC 3339. Logically identical queries always map to the
// same key, regardless of input casing or spacing.
func Key(q types.Query) string {
	var b strings.Builder
	b.WriteString("text=")
	b.WriteString(foldQueryText(q.Text))
	b.WriteString("|agency=")
	b.WriteString(foldQueryText(q.Agency))
	b.WriteString("|type=")
	b.WriteString(strings.ToLower(string(q.OpportunityType)))
	b.WriteString("|deadline_before=")
	writeTime(&b, q.DeadlineBefore)
	b.WriteString("|deadline_after=")
	writeTime(&b, q.DeadlineAfter)
	b.WriteString("|min_award=")
	writeFloat(&b, q.MinAward)
	b.WriteString("|max_award=")
	writeFloat(&b, q.MaxAward)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func foldQueryText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func writeTime(b *strings.Builder, t *time.Time) {
	if t != nil {
		b.WriteString(t.UTC().Format(time.RFC3339))
	}
}

func writeFloat(b *strings.Builder, f *float64) {
	if f != nil {
		b.WriteString(strconv.FormatFloat(*f, 'g', -1, 64))
	}
}
