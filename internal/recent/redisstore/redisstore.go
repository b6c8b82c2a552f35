// Package redisstore provides a Redis implementation of recent.Store.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linnemanlabs/pulse/internal/signal"
)

const keyPrefix = "pulse:recent:"

// Store keeps per-lead signal lists in Redis, newest at the head.
type Store struct {
	client  *redis.Client
	ttl     time.Duration
	perLead int64
}

// New connects to Redis and returns a ready Store. ttl bounds how long an
// idle lead's window survives; perLead caps the window length.
func New(ctx context.Context, addr string, ttl time.Duration, perLead int) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if perLead <= 0 {
		perLead = 200
	}
	return &Store{client: client, ttl: ttl, perLead: int64(perLead)}, nil
}

// Close shuts down the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Append pushes the signal onto the lead's list and re-arms the TTL.
func (s *Store) Append(ctx context.Context, sig signal.Signal) error {
	raw, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	key := keyPrefix + sig.LeadID
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, s.perLead-1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append signal: %w", err)
	}
	return nil
}

// Recent returns the lead's cached signals, oldest first.
func (s *Store) Recent(ctx context.Context, leadID string) ([]signal.Signal, error) {
	raws, err := s.client.LRange(ctx, keyPrefix+leadID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange: %w", err)
	}

	out := make([]signal.Signal, 0, len(raws))
	// Stored newest first; walk backwards to return oldest first.
	for i := len(raws) - 1; i >= 0; i-- {
		var sig signal.Signal
		if err := json.Unmarshal([]byte(raws[i]), &sig); err != nil {
			return nil, fmt.Errorf("unmarshal signal: %w", err)
		}
		out = append(out, sig)
	}
	return out, nil
}
