// Package closingline is a supplemental, optional side-channel that
// persists the sharp-leg odds of every delivered pick for later
// closing-line analysis. It is a ticker-driven background loop that batches
// rows into Postgres inside a transaction, using pq.Array for an UNNEST
// batch insert.
package closingline

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/fortuna-bet/retador/pkg/models"
)

const (
	defaultBufferSize    = 500
	defaultFlushInterval = 5 * time.Second
)

// Recorder batches delivered picks and flushes them to Postgres. A nil db
// makes it a no-op sink, used when CLOSING_LINE_DSN is unset.
type Recorder struct {
	db    *sql.DB
	input chan models.Pick

	buffer []models.Pick
	mu     sync.Mutex

	flushInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup

	dropped int64
	log     zerolog.Logger
}

// New builds a Recorder. Pass a nil db to get a disabled no-op sink.
func New(db *sql.DB, log zerolog.Logger) *Recorder {
	return &Recorder{
		db:            db,
		input:         make(chan models.Pick, defaultBufferSize),
		flushInterval: defaultFlushInterval,
		stopChan:      make(chan struct{}),
		log:           log,
	}
}

// Enabled reports whether the recorder has a live database connection.
func (r *Recorder) Enabled() bool { return r.db != nil }

// Record enqueues a delivered pick without blocking; it drops and counts on
// overflow so the orchestrator never stalls on this optional side-channel.
func (r *Recorder) Record(p models.Pick) {
	if !r.Enabled() {
		return
	}
	select {
	case r.input <- p:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.log.Warn().Str("record_id", p.RecordID).Msg("closing-line buffer full, dropping pick")
	}
}

// Start launches the background consumer+flush loop. No-op if disabled.
func (r *Recorder) Start(ctx context.Context) {
	if !r.Enabled() {
		return
	}
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop drains remaining buffered rows and stops the loop. No-op if disabled.
func (r *Recorder) Stop(ctx context.Context) {
	if !r.Enabled() {
		return
	}
	close(r.stopChan)
	r.wg.Wait()
	_ = r.flush(ctx)
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case p := <-r.input:
			r.mu.Lock()
			r.buffer = append(r.buffer, p)
			r.mu.Unlock()
		case <-ticker.C:
			if err := r.flush(ctx); err != nil {
				r.log.Error().Err(err).Msg("closing-line flush failed")
			}
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Recorder) flush(ctx context.Context) error {
	r.mu.Lock()
	if len(r.buffer) == 0 {
		r.mu.Unlock()
		return nil
	}
	picks := r.buffer
	r.buffer = nil
	r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO closing_lines (
			record_id, sharp_bookmaker, sharp_odds, soft_bookmaker, soft_odds,
			market, variety, event_time, profit, recorded_at
		)
		SELECT * FROM UNNEST(
			$1::text[], $2::text[], $3::float8[], $4::text[], $5::float8[],
			$6::text[], $7::text[], $8::timestamptz[], $9::float8[], $10::timestamptz[]
		)
		ON CONFLICT DO NOTHING
	`

	recordIDs := make([]string, len(picks))
	sharpBookmakers := make([]string, len(picks))
	sharpOdds := make([]float64, len(picks))
	softBookmakers := make([]string, len(picks))
	softOdds := make([]float64, len(picks))
	markets := make([]string, len(picks))
	varieties := make([]string, len(picks))
	eventTimes := make([]time.Time, len(picks))
	profits := make([]float64, len(picks))
	recordedAts := make([]time.Time, len(picks))

	now := time.Now()
	for i, p := range picks {
		recordIDs[i] = p.RecordID
		sharpBookmakers[i] = p.SharpLeg.Bookmaker
		sharpOdds[i] = p.SharpLeg.Odds
		softBookmakers[i] = p.SoftLeg.Bookmaker
		softOdds[i] = p.SoftLeg.Odds
		markets[i] = p.SoftLeg.Market
		varieties[i] = p.SoftLeg.Variety
		eventTimes[i] = time.UnixMilli(p.SoftLeg.EventTimeMs)
		profits[i] = p.Profit
		recordedAts[i] = now
	}

	_, err = tx.ExecContext(ctx, query,
		pq.Array(recordIDs), pq.Array(sharpBookmakers), pq.Array(sharpOdds),
		pq.Array(softBookmakers), pq.Array(softOdds), pq.Array(markets),
		pq.Array(varieties), pq.Array(eventTimes), pq.Array(profits), pq.Array(recordedAts),
	)
	if err != nil {
		return fmt.Errorf("insert closing lines: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Dropped returns the count of picks dropped due to buffer overflow.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
