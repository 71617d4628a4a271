package surebets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fortuna-bet/retador/internal/ratelimit"
	"github.com/fortuna-bet/retador/pkg/contracts"
	"github.com/fortuna-bet/retador/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCursorStore struct {
	cur models.CursorState
}

func (f *fakeCursorStore) GetCursor(ctx context.Context) (models.CursorState, error) {
	return f.cur, nil
}

func (f *fakeCursorStore) SetCursor(ctx context.Context, c models.CursorState) error {
	f.cur = c
	return nil
}

func testConfig() contracts.BookmakerConfig {
	return contracts.BookmakerConfig{
		SharpHierarchy: []string{"pinnaclesports"},
		Targets:        map[string]bool{"retabet_apuestas": true},
		Sports:         []string{"esports_lol"},
	}
}

func TestFetch_ParsesRecordsAndAdvancesCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records":[
			{"id":"1","profit":2.5,"created":"2026-01-01T00:00:00Z","prongs":[
				{"bk":"pinnaclesports","value":2.10,"time":1000,"teams":["Fnatic","G2"],"type":{"type":"over","variety":"2.5"},"tournament":"LEC","sport_id":"esports_lol","navigation":{"link":"https://bet365.com/x"}},
				{"bk":"retabet_apuestas","value":2.05,"time":1000,"teams":["Fnatic","G2"],"type":{"type":"under","variety":"2.5"},"tournament":"LEC","sport_id":"esports_lol","navigation":{"link":"https://bet365.com/x"}}
			]}
		]}`))
	}))
	defer srv.Close()

	limiter := ratelimit.New(time.Millisecond, 10*time.Millisecond)
	cursors := &fakeCursorStore{}
	c := NewClient(Config{BaseURL: srv.URL, APIToken: "tok"}, testConfig(), limiter, cursors, zerolog.Nop())

	records, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].ID)
	assert.Equal(t, 2.5, records[0].Profit)
	assert.Equal(t, "pinnaclesports", records[0].Legs[0].Bookmaker)
	assert.Equal(t, "1", cursors.cur.LastID)
}

func TestFetch_RateLimited_DoesNotAdvanceCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	limiter := ratelimit.New(time.Millisecond, 10*time.Millisecond)
	cursors := &fakeCursorStore{}
	c := NewClient(Config{BaseURL: srv.URL, APIToken: "tok"}, testConfig(), limiter, cursors, zerolog.Nop())

	records, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, "", cursors.cur.LastID)
	assert.Equal(t, 1*time.Millisecond*2, limiter.CurrentInterval())
}

func TestFetch_EmptyBatch_DoesNotAdvanceCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"records":[]}`))
	}))
	defer srv.Close()

	limiter := ratelimit.New(time.Millisecond, 10*time.Millisecond)
	cursors := &fakeCursorStore{}
	c := NewClient(Config{BaseURL: srv.URL, APIToken: "tok"}, testConfig(), limiter, cursors, zerolog.Nop())

	records, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}
