// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/grant-engine/pkg/types"
)

// FormatTable writes the envelope as a human-readable table. Grants print in
// envelope order; failed sources are listed after the table so partial
// results are never mistaken for complete ones.
func FormatTable(env *types.Envelope, w io.Writer) {
	if len(env.Grants) == 0 {
		fmt.Fprintln(w, "No grants matched.")
	} else {
		fmt.Fprintf(w, "%-4s  %-56s  %-24s  %-10s  %-12s  %s\n",
			"#", "Title", "Agency", "Deadline", "Ceiling", "Sources")
		fmt.Fprintln(w, strings.Repeat("-", 120))
		for i, g := range env.Grants {
			fmt.Fprintf(w, "%-4d  %-56s  %-24s  %-10s  %-12s  %s\n",
				i+1,
				truncate(g.Title, 56),
				truncate(g.Agency, 24),
				formatDate(g.Deadline),
				formatAmount(g.AwardCeiling),
				strings.Join(g.DataSources, ","))
		}
		fmt.Fprintf(w, "\n%d grants from %d sources", len(env.Grants), len(env.SourcesSucceeded))
		if env.CacheHit {
			fmt.Fprint(w, " (cached)")
		}
		fmt.Fprintln(w)
	}

	if env.Partial {
		fmt.Fprintf(w, "warning: partial results, %d of %d sources failed:\n",
			len(env.SourcesFailed), len(env.SourcesFailed)+len(env.SourcesSucceeded))
		for _, f := range env.SourcesFailed {
			fmt.Fprintf(w, "  %s: %s (%d attempts)\n", f.Source, f.Message, f.Attempts)
		}
	}
}

// FormatJSON writes the envelope as indented JSON.
func FormatJSON(env *types.Envelope, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// FormatYAML writes the envelope as YAML. Raw payloads are omitted.
func FormatYAML(env *types.Envelope, w io.Writer) error {
	data, err := yaml.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatAmount(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.0f", *v)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
