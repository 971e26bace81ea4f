package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured grant sources and their state",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg := engineConfig().Search

	samAuth := "api key missing"
	if cfg.SAMAPIKey != "" {
		samAuth = "api key set"
	}

	rows := []struct {
		name    string
		enabled bool
		auth    string
		desc    string
	}{
		{"grantsgov", cfg.EnableGrantsGov, "-", "Grants.gov Search2 API"},
		{"samgov", cfg.EnableSAMGov, samAuth, "SAM.gov opportunities API"},
		{"nihguide", cfg.EnableNIHGuide, "-", "NIH Guide for Grants and Contracts"},
		{"grantsrss", cfg.EnableGrantsRSS, "-", "Grants.gov new-opportunity feed"},
	}

	fmt.Fprintf(os.Stdout, "%-11s  %-8s  %-16s  %s\n", "Name", "Enabled", "Auth", "Description")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 72))
	for _, r := range rows {
		fmt.Fprintf(os.Stdout, "%-11s  %-8s  %-16s  %s\n", r.name, yesDash(r.enabled), r.auth, r.desc)
	}
	return nil
}
