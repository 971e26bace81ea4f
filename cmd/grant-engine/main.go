// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the grant-engine CLI: federated search
// over federal funding opportunity sources, with subcommands for run history
// and an HTTP server exposing the same pipeline.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/grant-engine/internal/secrets"
	"github.com/pdiddy/grant-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the grant-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "grant-engine",
	Short: "Federated search over federal grant opportunity sources",
	Long: `grant-engine queries federal funding opportunity sources (Grants.gov,
SAM.gov, the NIH Guide) concurrently, merges duplicate opportunities across
providers, and reports exactly which sources answered and which did not.

Search from the command line with "search", inspect past runs with
"history", or run the HTTP API with "serve".`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./grant-engine.yaml or ~/.config/grant-engine/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("grant-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "grant-engine"))
		}
	}

	viper.SetDefault("query_timeout", "60s")
	viper.SetDefault("search.timeout", "10s")
	viper.SetDefault("search.user_agent", "grant-engine/0.1")
	viper.SetDefault("search.max_results", 25)
	viper.SetDefault("search.source_timeout", "30s")
	viper.SetDefault("search.retry.max_attempts", 3)
	viper.SetDefault("search.retry.base_delay", "500ms")
	viper.SetDefault("search.enable_grantsgov", true)
	viper.SetDefault("search.enable_samgov", true)
	viper.SetDefault("search.enable_nihguide", true)
	viper.SetDefault("search.enable_grantsrss", false)
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.ttl", "15m")
	viper.SetDefault("cache.max_entries", 256)
	viper.SetDefault("cache.redis_key_prefix", "grantengine:")
	viper.SetDefault("history.dir", "history")
	viper.SetDefault("history.keep", 500)
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.env", "dev")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "10s")

	viper.SetEnvPrefix("GRANT_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// engineConfig assembles the engine configuration from viper, with the
// SAM.gov key resolved from config, environment, or the key file.
func engineConfig() types.EngineConfig {
	cfg := types.EngineConfig{
		QueryTimeout: viper.GetDuration("query_timeout"),
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("search.timeout"),
				UserAgent: viper.GetString("search.user_agent"),
			},
			MaxResults:      viper.GetInt("search.max_results"),
			EnableGrantsGov: viper.GetBool("search.enable_grantsgov"),
			EnableSAMGov:    viper.GetBool("search.enable_samgov"),
			EnableNIHGuide:  viper.GetBool("search.enable_nihguide"),
			EnableGrantsRSS: viper.GetBool("search.enable_grantsrss"),
			SourceTimeout:   viper.GetDuration("search.source_timeout"),
			Retry: types.RetryConfig{
				MaxAttempts: viper.GetInt("search.retry.max_attempts"),
				BaseDelay:   viper.GetDuration("search.retry.base_delay"),
			},
			Authoritative: viper.GetStringMapString("search.authoritative"),
		},
		Cache: types.CacheConfig{
			Backend:        types.CacheBackend(viper.GetString("cache.backend")),
			TTL:            viper.GetDuration("cache.ttl"),
			MaxEntries:     viper.GetInt("cache.max_entries"),
			RedisAddr:      viper.GetString("cache.redis_addr"),
			RedisKeyPrefix: viper.GetString("cache.redis_key_prefix"),
		},
		History: types.HistoryConfig{
			Dir:  viper.GetString("history.dir"),
			Keep: viper.GetInt("history.keep"),
		},
	}
	cfg.Search.SAMAPIKey = secrets.Resolve(
		viper.GetString("search.sam_api_key"), loadedSecrets, secrets.KeySAMAPI)
	return cfg
}

func serverConfig() types.ServerConfig {
	return types.ServerConfig{
		Addr:            viper.GetString("server.addr"),
		Env:             viper.GetString("server.env"),
		ReadTimeout:     viper.GetDuration("server.read_timeout"),
		WriteTimeout:    viper.GetDuration("server.write_timeout"),
		IdleTimeout:     viper.GetDuration("server.idle_timeout"),
		ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
