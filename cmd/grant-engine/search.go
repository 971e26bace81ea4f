// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/grant-engine/internal/aggregate"
	"github.com/pdiddy/grant-engine/internal/cache"
	"github.com/pdiddy/grant-engine/internal/engine"
	"github.com/pdiddy/grant-engine/internal/history"
	"github.com/pdiddy/grant-engine/internal/logger"
	"github.com/pdiddy/grant-engine/internal/source"
	"github.com/pdiddy/grant-engine/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query terms...]",
	Short: "Search federal grant sources for funding opportunities",
	Long: `Search fans the query out to every enabled source concurrently, merges
duplicate opportunities across providers, and prints the combined results.
A source that fails does not sink the search; failed sources are reported
alongside the results.

Results repeat identically within the cache window unless --no-cache is set.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("query", "", "free-text search terms (or pass them as arguments)")
	searchCmd.Flags().String("agency", "", "filter by funding agency name or code")
	searchCmd.Flags().String("type", "", "filter by opportunity type: grant, cooperative_agreement, contract, other")
	searchCmd.Flags().String("deadline-before", "", "only opportunities closing on or before this date (YYYY-MM-DD)")
	searchCmd.Flags().String("deadline-after", "", "only opportunities closing on or after this date (YYYY-MM-DD)")
	searchCmd.Flags().Float64("min-award", 0, "minimum award amount in USD")
	searchCmd.Flags().Float64("max-award", 0, "maximum award amount in USD")
	searchCmd.Flags().Int("max-results", 0, "maximum results per source (0 = config default)")
	searchCmd.Flags().StringSlice("sources", nil, "restrict to these sources (e.g. grantsgov,nihguide)")
	searchCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	searchCmd.Flags().String("save", "", "write the query and results to a YAML query file")
	searchCmd.Flags().String("from-file", "", "re-run the query from a saved query file")
	searchCmd.Flags().Bool("no-cache", false, "bypass the result cache")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query, err := queryFromFlags(cmd, args)
	if err != nil {
		return err
	}
	if query.IsEmpty() {
		return fmt.Errorf("provide search terms or at least one filter")
	}

	cfg := engineConfig()
	if v, _ := cmd.Flags().GetInt("max-results"); v > 0 {
		cfg.Search.MaxResults = v
	}
	if cmd.Flags().Changed("sources") {
		list, _ := cmd.Flags().GetStringSlice("sources")
		restrictSources(&cfg.Search, list)
	}

	log, err := cliLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	client := &http.Client{Timeout: cfg.Search.Timeout}
	sources := source.Registry(cfg.Search, client)
	agg := aggregate.New(cfg.Search, sources, nil, log)

	var c cache.Cache
	if noCache, _ := cmd.Flags().GetBool("no-cache"); !noCache {
		c = buildCache(cfg.Cache, log)
	}

	var rec engine.Recorder
	if store, err := history.NewStore(cfg.History); err != nil {
		log.Warn("history unavailable, runs will not be recorded", zap.Error(err))
	} else {
		defer store.Close()
		rec = store
	}

	eng := engine.New(cfg, agg, c, rec, log)
	env, err := eng.Search(cmd.Context(), query)
	if err != nil {
		var asf *aggregate.AllSourcesFailedError
		if errors.As(err, &asf) {
			for _, f := range asf.Failures {
				fmt.Fprintf(os.Stderr, "  %s: %s (%d attempts)\n", f.Source, f.Message, f.Attempts)
			}
			return fmt.Errorf("grant data temporarily unavailable: all %d sources failed", len(asf.Failures))
		}
		return err
	}

	if save, _ := cmd.Flags().GetString("save"); save != "" {
		qf := engine.NewQueryFile(query, cfg.Search, agg.Sources(), env)
		if err := engine.WriteQueryFile(save, qf); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Saved query file:", save)
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "table", "":
		engine.FormatTable(env, os.Stdout)
	case "json":
		return engine.FormatJSON(env, os.Stdout)
	case "yaml":
		return engine.FormatYAML(env, os.Stdout)
	default:
		return fmt.Errorf("unsupported format %q: use table, json, or yaml", format)
	}
	return nil
}

// queryFromFlags builds the logical query from the command line or from a
// saved query file.
func queryFromFlags(cmd *cobra.Command, args []string) (types.Query, error) {
	if file, _ := cmd.Flags().GetString("from-file"); file != "" {
		qf, err := engine.ReadQueryFile(file)
		if err != nil {
			return types.Query{}, err
		}
		return qf.Query.ToQuery()
	}

	text, _ := cmd.Flags().GetString("query")
	if text == "" && len(args) > 0 {
		text = strings.Join(args, " ")
	}
	agency, _ := cmd.Flags().GetString("agency")
	oppType, _ := cmd.Flags().GetString("type")
	before, _ := cmd.Flags().GetString("deadline-before")
	after, _ := cmd.Flags().GetString("deadline-after")

	p := engine.QueryParams{
		Text:            text,
		Agency:          agency,
		OpportunityType: oppType,
		DeadlineBefore:  before,
		DeadlineAfter:   after,
	}
	if cmd.Flags().Changed("min-award") {
		v, _ := cmd.Flags().GetFloat64("min-award")
		p.MinAward = &v
	}
	if cmd.Flags().Changed("max-award") {
		v, _ := cmd.Flags().GetFloat64("max-award")
		p.MaxAward = &v
	}
	return p.ToQuery()
}

// restrictSources enables exactly the named sources.
func restrictSources(cfg *types.SearchConfig, names []string) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = true
	}
	cfg.EnableGrantsGov = want["grantsgov"]
	cfg.EnableSAMGov = want["samgov"]
	cfg.EnableNIHGuide = want["nihguide"]
	cfg.EnableGrantsRSS = want["grantsrss"]
}

// buildCache constructs the configured cache backend. An unreachable redis
// degrades to the in-memory cache rather than failing the search.
func buildCache(cfg types.CacheConfig, log *zap.Logger) cache.Cache {
	switch cfg.Backend {
	case types.CacheRedis:
		r, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisKeyPrefix, cfg.TTL)
		if err != nil {
			log.Warn("redis cache unavailable, using in-memory cache", zap.Error(err))
			return cache.NewMemory(cfg.TTL, cfg.MaxEntries)
		}
		return r
	default:
		return cache.NewMemory(cfg.TTL, cfg.MaxEntries)
	}
}

// cliLogger builds a console logger that stays quiet unless --verbose is set.
func cliLogger(cmd *cobra.Command) (*zap.Logger, error) {
	level := "warn"
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	return logger.New("dev", level)
}
