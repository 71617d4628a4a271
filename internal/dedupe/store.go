// Package dedupe implements the TTL-keyed existence store that suppresses
// repeat alerts for the same (event, market, soft bookmaker) tuple, backed
// by Redis with pipelined batch lookups and fronted by a local LRU cache.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna-bet/retador/internal/localcache"
	"github.com/fortuna-bet/retador/pkg/contracts"
	"github.com/fortuna-bet/retador/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cursorRedisKey = "retador:cursor"

// Store is the Redis-backed dedupe store described in component design
// §4.5: local cache first, pipelined batch remote existence checks on miss.
type Store struct {
	redis *redis.Client
	cache *localcache.Cache
	log   zerolog.Logger
}

var _ contracts.DedupeStore = (*Store)(nil)

// New creates a dedupe Store over the given Redis client and local cache.
func New(redisClient *redis.Client, cache *localcache.Cache, log zerolog.Logger) *Store {
	return &Store{
		redis: redisClient,
		cache: cache,
		log:   log.With().Str("component", "dedupe_store").Logger(),
	}
}

// Exists consults the local cache first; on miss, issues a remote EXISTS
// check and populates the local cache on a hit. On a store error it
// conservatively returns false — the system would rather risk a rare
// duplicate than silently drop a valid pick.
func (s *Store) Exists(ctx context.Context, key string) bool {
	if s.cache.Exists(key) {
		return true
	}

	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("dedupe exists check failed")
		return false
	}

	if n > 0 {
		s.cache.Set(key, true, 0)
		return true
	}
	return false
}

// ExistsAny probes the local cache, then issues a single pipelined batch of
// remote EXISTS checks, short-circuiting conceptually on the first hit (the
// pipeline itself still executes in one round trip, but we stop scanning
// results as soon as one matches).
func (s *Store) ExistsAny(ctx context.Context, keys []string) bool {
	if len(keys) == 0 {
		return false
	}

	var remaining []string
	for _, k := range keys {
		if s.cache.Exists(k) {
			return true
		}
		remaining = append(remaining, k)
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.IntCmd, len(remaining))
	for i, k := range remaining {
		cmds[i] = pipe.Exists(ctx, k)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		s.log.Warn().Err(err).Msg("dedupe exists_any pipeline failed")
		return false
	}

	for i, cmd := range cmds {
		if n, err := cmd.Result(); err == nil && n > 0 {
			s.cache.Set(remaining[i], true, 0)
			return true
		}
	}
	return false
}

// Mark writes the dedup key and every opposite-market key with identical
// TTL in a single pipelined transaction, and seeds the local cache. TTL is
// max(60s, event_time-now); if that clamps to <= 0 the write is skipped
// and Mark reports false, matching the "do not write past-dated keys" rule.
func (s *Store) Mark(ctx context.Context, pick models.Pick, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}

	key, opposites := KeysForPick(pick)
	allKeys := append([]string{key}, opposites...)

	pipe := s.redis.Pipeline()
	for _, k := range allKeys {
		pipe.SetEx(ctx, k, "1", ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("dedupe mark failed")
		return false
	}

	for _, k := range allKeys {
		s.cache.Set(k, true, ttl)
	}
	return true
}

// MarkTTL computes the TTL for Mark per §4.5: max(60s, event_time - now).
func MarkTTL(eventTimeMs int64) time.Duration {
	eventTime := time.UnixMilli(eventTimeMs)
	ttl := time.Until(eventTime)
	if ttl < 60*time.Second {
		ttl = 60 * time.Second
	}
	return ttl
}

// GetCursor reads the persisted feed cursor. A missing key is not an error;
// it returns the zero CursorState so the feed client starts from scratch.
func (s *Store) GetCursor(ctx context.Context) (models.CursorState, error) {
	val, err := s.redis.Get(ctx, cursorRedisKey).Result()
	if err == redis.Nil {
		return models.CursorState{}, nil
	}
	if err != nil {
		return models.CursorState{}, fmt.Errorf("get cursor: %w", err)
	}

	for i := 0; i < len(val); i++ {
		if val[i] == ':' {
			return models.CursorState{SortBy: val[:i], LastID: val[i+1:]}, nil
		}
	}
	return models.CursorState{}, nil
}

// SetCursor persists the feed cursor with no TTL.
func (s *Store) SetCursor(ctx context.Context, cursor models.CursorState) error {
	if err := s.redis.Set(ctx, cursorRedisKey, cursor.String(), 0).Err(); err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}
