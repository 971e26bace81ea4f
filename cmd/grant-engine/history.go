package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/grant-engine/internal/history"
	"github.com/pdiddy/grant-engine/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past search runs (list, show, prune)",
	Long: `History manages the local log of search runs. Every search records
which sources answered, how many grants came back, and whether the result
was partial or served from cache.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent search runs, newest first",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := history.NewStore(engineConfig().History)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-10s  %-17s  %-36s  %-7s  %-8s  %-8s  %s\n",
		"ID", "When", "Query", "Grants", "Sources", "Partial", "Cache")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 104))
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(os.Stdout, "%-10s  %-17s  %-36s  %-7d  %-8s  %-8s  %s\n",
			id,
			r.CreatedAt.Format("2006-01-02 15:04"),
			describeQuery(r.Query, 36),
			r.Grants,
			fmt.Sprintf("%d/%d", len(r.Succeeded), len(r.Succeeded)+len(r.Failed)),
			yesDash(r.Partial),
			yesDash(r.CacheHit))
	}
	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one run in full (accepts a unique ID prefix)",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := history.NewStore(engineConfig().History)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Show(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	data, err := yaml.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	os.Stdout.Write(data)
	return nil
}

// --- prune subcommand ---

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs, keeping the most recent ones",
	RunE:  runHistoryPrune,
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	cfg := engineConfig().History
	keep, _ := cmd.Flags().GetInt("keep")
	if !cmd.Flags().Changed("keep") {
		keep = cfg.Keep
	}

	store, err := history.NewStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Prune(cmd.Context(), keep)
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d run(s), keeping the most recent %d.\n", n, keep)
	return nil
}

// --- shared helpers ---

// describeQuery renders a query as a compact one-line summary for the table.
func describeQuery(q types.Query, max int) string {
	var parts []string
	if q.Text != "" {
		parts = append(parts, q.Text)
	}
	if q.Agency != "" {
		parts = append(parts, "agency="+q.Agency)
	}
	if q.OpportunityType != "" {
		parts = append(parts, "type="+string(q.OpportunityType))
	}
	if q.DeadlineBefore != nil {
		parts = append(parts, "before="+q.DeadlineBefore.Format("2006-01-02"))
	}
	if q.DeadlineAfter != nil {
		parts = append(parts, "after="+q.DeadlineAfter.Format("2006-01-02"))
	}
	if q.MinAward != nil {
		parts = append(parts, fmt.Sprintf("min=%.0f", *q.MinAward))
	}
	if q.MaxAward != nil {
		parts = append(parts, fmt.Sprintf("max=%.0f", *q.MaxAward))
	}
	s := strings.Join(parts, " ")
	if len(s) > max {
		s = s[:max-3] + "..."
	}
	return s
}

func yesDash(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum runs to list")
	historyListCmd.Flags().Bool("json", false, "output as JSON")

	historyShowCmd.Flags().Bool("json", false, "output as JSON")

	historyPruneCmd.Flags().Int("keep", 0, "runs to keep (default from config)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)

	rootCmd.AddCommand(historyCmd)
}
