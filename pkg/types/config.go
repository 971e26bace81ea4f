package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout for a single attempt.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "grant-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryConfig holds the retry executor policy.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelay is the backoff base: attempt n waits BaseDelay * 2^(n-1).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`
}

// SearchConfig holds settings for the source fan-out.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the maximum number of records requested per source (default 25).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// EnableGrantsGov controls whether the Grants.gov Search2 adapter is used.
	EnableGrantsGov bool `json:"enable_grantsgov" yaml:"enable_grantsgov"`

	// EnableSAMGov controls whether the SAM.gov opportunities adapter is used.
	EnableSAMGov bool `json:"enable_samgov" yaml:"enable_samgov"`

	// EnableNIHGuide controls whether the NIH Guide adapter is used.
	EnableNIHGuide bool `json:"enable_nihguide" yaml:"enable_nihguide"`

	// EnableGrantsRSS controls whether the Grants.gov new-opportunity feed
	// adapter is used. Off by default; the feed is a fallback surface, not a
	// query API.
	EnableGrantsRSS bool `json:"enable_grantsrss" yaml:"enable_grantsrss"`

	// SAMAPIKey authenticates against SAM.gov. Supplied via config, the
	// GRANT_ENGINE_SEARCH_SAM_API_KEY variable, or .secrets/sam-api-key.
	SAMAPIKey string `json:"sam_api_key,omitempty" yaml:"sam_api_key,omitempty"`

	// SourceTimeout bounds one source's whole call including retries and
	// backoff waits (default 30s). Independent per source, so one straggler
	// cannot starve the others.
	SourceTimeout time.Duration `json:"source_timeout" yaml:"source_timeout"`

	// Retry is the per-source retry policy.
	Retry RetryConfig `json:"retry" yaml:"retry"`

	// Authoritative maps a canonical field name (e.g. "deadline",
	// "award_ceiling") to the source whose value wins during merging.
	Authoritative map[string]string `json:"authoritative,omitempty" yaml:"authoritative,omitempty"`
}

// CacheBackend identifies the cache storage backend.
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
)

// CacheConfig holds settings for the envelope cache.
type CacheConfig struct {
	// Backend selects the storage backend: memory or redis.
	Backend CacheBackend `json:"backend" yaml:"backend"`

	// TTL is how long a cached envelope stays servable (default 15m).
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// MaxEntries bounds the memory backend; when an insert would exceed it,
	// the oldest-inserted entry is evicted (default 256).
	MaxEntries int `json:"max_entries" yaml:"max_entries"`

	// RedisAddr is the redis host:port for the redis backend.
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`

	// RedisKeyPrefix namespaces cache keys in a shared redis (default "grantengine:").
	RedisKeyPrefix string `json:"redis_key_prefix,omitempty" yaml:"redis_key_prefix,omitempty"`
}

// HistoryConfig holds settings for the aggregation run log.
type HistoryConfig struct {
	// Dir is the directory holding the history database (default "history").
	Dir string `json:"dir" yaml:"dir"`

	// Keep is how many runs Prune retains (default 500).
	Keep int `json:"keep" yaml:"keep"`
}

// ServerConfig holds settings for the HTTP boundary.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`

	// Env selects the logger profile: "prod" or "dev".
	Env string `json:"env" yaml:"env"`

	// ReadTimeout, WriteTimeout and IdleTimeout configure the http.Server.
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// EngineConfig groups everything the query orchestrator needs.
type EngineConfig struct {
	Search  SearchConfig  `json:"search" yaml:"search"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	History HistoryConfig `json:"history" yaml:"history"`

	// QueryTimeout bounds one whole orchestrated query, cache check through
	// envelope (default 60s). Zero means no engine-imposed deadline.
	QueryTimeout time.Duration `json:"query_timeout" yaml:"query_timeout"`
}
