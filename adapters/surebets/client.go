// Package surebets implements the cursor-paginated HTTP client for the
// apostasseguras.com-style surebets feed.
package surebets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/fortuna-bet/retador/internal/ratelimit"
	"github.com/fortuna-bet/retador/pkg/contracts"
	"github.com/fortuna-bet/retador/pkg/models"
	"github.com/rs/zerolog"
)

const (
	userAgent  = "Retador/1.0 (value-betting alert pipeline)"
	maxRetries = 3
	retryBase  = 2 * time.Second

	sessionMaxAge      = 30 * time.Minute
	maxErrorsPerSession = 20
)

// Config configures the feed client.
type Config struct {
	BaseURL    string
	APIToken   string
	Timeout    time.Duration
	ConnectTimeout time.Duration
}

// CursorStore persists the feed cursor across restarts; satisfied by the
// dedupe store's GetCursor/SetCursor pair.
type CursorStore interface {
	GetCursor(ctx context.Context) (models.CursorState, error)
	SetCursor(ctx context.Context, cursor models.CursorState) error
}

// Client polls the surebets feed with cursor-based incremental pagination.
type Client struct {
	cfg     Config
	cfgBk   contracts.BookmakerConfig
	limiter *ratelimit.Limiter
	cursors CursorStore
	log     zerolog.Logger

	mu           sync.Mutex
	httpClient   *http.Client
	sessionBorn  time.Time
	sessionErrs  int
	cursor       models.CursorState
}

var _ contracts.FeedClient = (*Client)(nil)

// NewClient builds a surebets feed client. limiter and cursors are required;
// cfgBk supplies the source/sport query parameters.
func NewClient(cfg Config, cfgBk contracts.BookmakerConfig, limiter *ratelimit.Limiter, cursors CursorStore, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		cfg:     cfg,
		cfgBk:   cfgBk,
		limiter: limiter,
		cursors: cursors,
		log:     log.With().Str("component", "surebets_client").Logger(),
	}
	c.newSession()
	return c
}

func (c *Client) newSession() {
	c.httpClient = &http.Client{Timeout: c.cfg.Timeout}
	c.sessionBorn = time.Now()
	c.sessionErrs = 0
}

// LoadCursor recovers the persisted cursor on startup.
func (c *Client) LoadCursor(ctx context.Context) error {
	cur, err := c.cursors.GetCursor(ctx)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	c.mu.Lock()
	c.cursor = cur
	c.mu.Unlock()
	return nil
}

// Fetch pulls the next batch of records and advances the cursor on a
// non-empty response. It honors the adaptive rate limiter and retries
// transport errors with exponential backoff.
func (c *Client) Fetch(ctx context.Context) ([]models.Record, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	c.maybeRecycleSession()

	fullURL := c.buildURL()

	body, retryAfter, err := c.doRequestWithRetry(ctx, fullURL)
	if err != nil {
		c.log.Warn().Err(err).Msg("feed fetch failed")
		return nil, nil
	}
	if retryAfter >= 0 {
		c.limiter.OnRateLimit()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(retryAfter) * time.Second):
		}
		return nil, nil
	}

	c.limiter.OnSuccess()

	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse feed response: %w", err)
	}

	records := make([]models.Record, 0, len(resp.Records))
	for _, r := range resp.Records {
		records = append(records, r.toModel())
	}

	if len(records) == 0 {
		return records, nil
	}

	if err := c.advanceCursor(ctx, resp.Records[len(resp.Records)-1]); err != nil {
		c.log.Warn().Err(err).Msg("failed to persist cursor")
	}

	return records, nil
}

func (c *Client) advanceCursor(ctx context.Context, last wireRecord) error {
	next := models.CursorState{SortBy: "created_at_desc", LastID: last.ID}
	c.mu.Lock()
	c.cursor = next
	c.mu.Unlock()
	return c.cursors.SetCursor(ctx, next)
}

func (c *Client) buildURL() string {
	c.mu.Lock()
	cursor := c.cursor
	c.mu.Unlock()

	params := url.Values{}
	params.Set("product", "surebets")
	params.Set("order", "created_at_desc")
	params.Set("limit", "5000")
	params.Set("min-profit", "-1")
	params.Set("outcomes", "2")
	params.Set("hide-different-rules", "true")
	params.Set("start-age", "PT10M")
	params.Set("odds-format", "eu")
	params.Set("source", c.cfgBk.SourceParam())
	params.Set("sport", c.cfgBk.SportParam())
	if cursor.LastID != "" {
		params.Set("cursor", cursor.String())
	}

	return fmt.Sprintf("%s?%s", c.cfg.BaseURL, params.Encode())
}

// doRequestWithRetry returns (body, retryAfterSeconds, err). retryAfter >= 0
// signals a 429 that the caller should treat as an empty batch; a 200
// reports -1.
func (c *Client) doRequestWithRetry(ctx context.Context, fullURL string) ([]byte, int, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryBase * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, retryAfter, err := c.doRequest(ctx, fullURL)
		if err == nil {
			return body, retryAfter, nil
		}

		lastErr = err
		c.mu.Lock()
		c.sessionErrs++
		c.mu.Unlock()

		if httpErr, ok := err.(*httpError); ok {
			if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != 429 {
				return nil, 0, err
			}
		}
	}

	return nil, 0, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)

	c.mu.Lock()
	httpClient := c.httpClient
	c.mu.Unlock()

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 1
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if v, err := strconv.Atoi(ra); err == nil {
				retryAfter = v
			}
		}
		return nil, retryAfter, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, 0, &httpError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return body, -1, nil
}

// maybeRecycleSession replaces the HTTP client after SESSION_MAX_AGE or
// MAX_ERRORS_PER_SESSION transport errors, whichever comes first.
func (c *Client) maybeRecycleSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.sessionBorn) >= sessionMaxAge || c.sessionErrs >= maxErrorsPerSession {
		c.httpClient = &http.Client{Timeout: c.cfg.Timeout}
		c.sessionBorn = time.Now()
		c.sessionErrs = 0
		c.log.Info().Msg("recycled feed HTTP session")
	}
}

// Close is a no-op; the standard http.Client owns no resources that need
// explicit release.
func (c *Client) Close() error {
	return nil
}

type httpError struct {
	StatusCode int
	Message    string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// wire formats matching the feed API's JSON response (see §6 EXTERNAL
// INTERFACES): extra fields are tolerated by omission.

type feedResponse struct {
	Records []wireRecord `json:"records"`
}

type wireRecord struct {
	ID      string    `json:"id"`
	Profit  float64   `json:"profit"`
	Created string    `json:"created"`
	Prongs  []wireLeg `json:"prongs"`
}

type wireLeg struct {
	Bookmaker  string      `json:"bk"`
	Value      float64     `json:"value"`
	Time       int64       `json:"time"`
	Teams      [2]string   `json:"teams"`
	Type       wireLegType `json:"type"`
	Tournament string      `json:"tournament"`
	SportID    string      `json:"sport_id"`
	Nav        wireNav     `json:"navigation"`
	Generative int         `json:"generative"`
}

type wireLegType struct {
	Type      string `json:"type"`
	Variety   string `json:"variety"`
	Condition string `json:"condition,omitempty"`
}

type wireNav struct {
	Link string `json:"link"`
}

func (r wireRecord) toModel() models.Record {
	createdAt, err := time.Parse(time.RFC3339, r.Created)
	if err != nil {
		createdAt = time.Now()
	}

	var legs [2]models.Leg
	for i := 0; i < 2 && i < len(r.Prongs); i++ {
		p := r.Prongs[i]
		legs[i] = models.Leg{
			Bookmaker:      p.Bookmaker,
			Odds:           p.Value,
			Market:         p.Type.Type,
			Variety:        p.Type.Variety,
			EventTimeMs:    p.Time,
			Teams:          p.Teams,
			Tournament:     p.Tournament,
			Sport:          p.SportID,
			DeepLink:       p.Nav.Link,
			Generative:     p.Generative,
			DifferentRules: p.Type.Condition,
		}
	}

	return models.Record{
		ID:        r.ID,
		Profit:    r.Profit,
		CreatedAt: createdAt,
		Legs:      legs,
	}
}
