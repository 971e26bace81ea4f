// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/pdiddy/grant-engine/pkg/types"
)

// Redis caches envelopes in Redis as JSON with a server-side TTL, letting
// replicas share results. Capacity is Redis's problem (maxmemory policy),
// not ours.
type Redis struct {
	client rueidis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis connects to a Redis instance. prefix namespaces the keys so the
// cache can share a database with other users.
func NewRedis(addr, prefix string, ttl time.Duration) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix}, nil
}

// Get fetches and decodes a cached envelope. A missing key is a plain miss;
// anything else, a corrupt entry included, surfaces as *Error.
func (r *Redis) Get(ctx context.Context, key string) (*types.Envelope, bool, error) {
	cmd := r.client.B().Get().Key(r.prefix + key).Build()
	data, err := r.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, false, nil
		}
		return nil, false, &Error{Op: "get", Err: err}
	}

	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false, &Error{Op: "get", Err: fmt.Errorf("decoding cached envelope: %w", err)}
	}
	return &env, true, nil
}

// Put encodes and stores the envelope with the configured TTL.
func (r *Redis) Put(ctx context.Context, key string, env *types.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return &Error{Op: "put", Err: fmt.Errorf("encoding envelope: %w", err)}
	}
	cmd := r.client.B().Set().Key(r.prefix + key).Value(string(payload)).Ex(r.ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return &Error{Op: "put", Err: err}
	}
	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	cmd := r.client.B().Ping().Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (r *Redis) Close() error {
	r.client.Close()
	return nil
}
