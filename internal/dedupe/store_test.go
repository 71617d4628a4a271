//go:build integration

package dedupe

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fortuna-bet/retador/internal/localcache"
	"github.com/fortuna-bet/retador/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	client := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_URL", "localhost:6379"),
		DB:   1,
	})
	client.FlushDB(context.Background())
	return New(client, localcache.New(1000, 0), zerolog.Nop())
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestStore_MarkAndExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := models.Pick{
		SoftLeg: models.Leg{
			Bookmaker:   "retabet_apuestas",
			Market:      "under",
			Variety:     "2.5",
			EventTimeMs: time.Now().Add(time.Hour).UnixMilli(),
			Teams:       [2]string{"Fnatic", "G2"},
		},
	}

	key, opposites := KeysForPick(p)
	assert.False(t, s.Exists(ctx, key))

	ok := s.Mark(ctx, p, time.Hour)
	require.True(t, ok)

	assert.True(t, s.Exists(ctx, key))
	for _, opp := range opposites {
		assert.True(t, s.Exists(ctx, opp))
	}
}

func TestStore_ExistsAny_ShortCircuitsOnOppositeKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := models.Pick{
		SoftLeg: models.Leg{
			Bookmaker:   "retabet_apuestas",
			Market:      "over",
			Variety:     "2.5",
			EventTimeMs: time.Now().Add(time.Hour).UnixMilli(),
			Teams:       [2]string{"Fnatic", "G2"},
		},
	}
	require.True(t, s.Mark(ctx, p, time.Hour))

	swapped := models.Pick{
		SoftLeg: models.Leg{
			Bookmaker:   "retabet_apuestas",
			Market:      "under",
			Variety:     "2.5",
			EventTimeMs: p.SoftLeg.EventTimeMs,
			Teams:       [2]string{"Fnatic", "G2"},
		},
	}
	key, opposites := KeysForPick(swapped)
	assert.True(t, s.ExistsAny(ctx, append([]string{key}, opposites...)))
}

func TestMarkTTL_ClampsPastEventToFloor(t *testing.T) {
	p := models.Pick{SoftLeg: models.Leg{Bookmaker: "bet365", Market: "over", EventTimeMs: 1}}
	ttl := MarkTTL(p.SoftLeg.EventTimeMs)
	assert.Equal(t, 60*time.Second, ttl, "clamped to 60s floor even for past events")
}

func TestStore_CursorRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cur, err := s.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.CursorState{}, cur)

	want := models.CursorState{SortBy: "created_at_desc", LastID: "abc123"}
	require.NoError(t, s.SetCursor(ctx, want))

	got, err := s.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
