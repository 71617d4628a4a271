// Package contracts defines the interfaces that let each pipeline stage be
// replaced independently of the others, mirroring the vendor-adapter
// seam this codebase has always used for external integrations.
package contracts

import (
	"context"
	"sort"
	"time"

	"github.com/fortuna-bet/retador/pkg/models"
)

// FeedClient pulls the next batch of surebet records from the upstream API.
type FeedClient interface {
	Fetch(ctx context.Context) ([]models.Record, error)
	Close() error
}

// RateLimiter adapts the feed poll interval to observed 429 responses.
type RateLimiter interface {
	CurrentInterval() time.Duration
	Acquire(ctx context.Context) error
	OnSuccess()
	OnRateLimit()
	Reset()
}

// LocalCache is a small in-process LRU+TTL cache shared by the dedupe store
// and the message formatter.
type LocalCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	Exists(key string) bool
	Delete(key string)
	Len() int
}

// DedupeStore tracks which (event, market, soft bookmaker) tuples have
// already been alerted on.
type DedupeStore interface {
	Exists(ctx context.Context, key string) bool
	ExistsAny(ctx context.Context, keys []string) bool
	Mark(ctx context.Context, pick models.Pick, ttl time.Duration) bool
	GetCursor(ctx context.Context) (models.CursorState, error)
	SetCursor(ctx context.Context, cursor models.CursorState) error
}

// Calculator produces the stake tier and minimum soft odds for a sharp's
// reference line. Implementations are selected per sharp bookmaker id by a
// Factory.
type Calculator interface {
	Stake(profit float64) (models.StakeTier, bool)
	MinOdds(sharpOdds float64) float64
}

// Validator is one link in the validation chain. It must not perform I/O
// unless it is explicitly documented to (only the duplicate validator is).
type Validator interface {
	Name() string
	Validate(ctx context.Context, rec models.Record, cfg BookmakerConfig) (ok bool, reason string)
}

// TelegramSender abstracts the bot HTTP API so the gateway can be tested
// without a live bot token.
type TelegramSender interface {
	Send(chatID int64, html string) error
}

// BookmakerConfig is the immutable, process-lifetime declarative table of
// sharps, soft targets, channel routing and pairing restrictions.
type BookmakerConfig struct {
	SharpHierarchy []string          // priority-ordered sharp ids
	Targets        map[string]bool   // soft ids eligible for alerting
	Channels       map[string]int64  // soft id -> telegram channel id
	AllowedSharps  map[string][]string // soft id -> allowed sharp ids; empty/missing = any
	Sports         []string
}

// IsSharp reports whether id is a configured sharp bookmaker.
func (c BookmakerConfig) IsSharp(id string) bool {
	for _, s := range c.SharpHierarchy {
		if s == id {
			return true
		}
	}
	return false
}

// HierarchyIndex returns the priority index of a sharp id, or -1 if unknown.
func (c BookmakerConfig) HierarchyIndex(id string) int {
	for i, s := range c.SharpHierarchy {
		if s == id {
			return i
		}
	}
	return -1
}

// IsTarget reports whether id is a configured soft alert target.
func (c BookmakerConfig) IsTarget(id string) bool {
	return c.Targets[id]
}

// SharpAllowed reports whether sharp is permitted to pair with soft, honoring
// an empty allow-list as "any sharp".
func (c BookmakerConfig) SharpAllowed(soft, sharp string) bool {
	allowed, ok := c.AllowedSharps[soft]
	if !ok || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == sharp {
			return true
		}
	}
	return false
}

// SourceParam returns the pipe-joined bookmaker ids used in the feed
// request's `source` query parameter: every sharp plus every target soft.
func (c BookmakerConfig) SourceParam() string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range c.SharpHierarchy {
		if !seen[s] {
			seen[s] = true
			ids = append(ids, s)
		}
	}
	targets := make([]string, 0, len(c.Targets))
	for t := range c.Targets {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	for _, t := range targets {
		if !seen[t] {
			seen[t] = true
			ids = append(ids, t)
		}
	}
	return joinPipe(ids)
}

// SportParam returns the pipe-joined sport ids used in the feed request's
// `sport` query parameter.
func (c BookmakerConfig) SportParam() string {
	return joinPipe(c.Sports)
}

func joinPipe(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += "|"
		}
		out += id
	}
	return out
}
