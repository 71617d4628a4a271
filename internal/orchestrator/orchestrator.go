// Package orchestrator wires the poll loop, DTO construction, validation,
// calculation, formatting and gateway delivery stages together: one poll
// loop paced by the rate limiter, a stopChan, a WaitGroup, and bounded
// fan-out per cycle.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortuna-bet/retador/internal/calculation"
	"github.com/fortuna-bet/retador/internal/formatter"
	"github.com/fortuna-bet/retador/internal/pick"
	"github.com/fortuna-bet/retador/internal/telegram"
	"github.com/fortuna-bet/retador/internal/validation"
	"github.com/fortuna-bet/retador/pkg/contracts"
	"github.com/fortuna-bet/retador/pkg/models"
)

// Orchestrator owns the poll loop and per-record fan-out.
type Orchestrator struct {
	feed      contracts.FeedClient
	limiter   contracts.RateLimiter
	dedupe    contracts.DedupeStore
	chain     *validation.Chain
	calcs     *calculation.Factory
	formatter *formatter.Formatter
	gateway   *telegram.Gateway
	cfg       contracts.BookmakerConfig

	concurrency int
	dedupeTTL   func(eventTimeMs int64) time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup

	statsMu sync.Mutex
	stats   models.Stats

	log zerolog.Logger
}

// Config bundles the orchestrator's constructor dependencies.
type Config struct {
	Feed        contracts.FeedClient
	Limiter     contracts.RateLimiter
	Dedupe      contracts.DedupeStore
	Chain       *validation.Chain
	Calculators *calculation.Factory
	Formatter   *formatter.Formatter
	Gateway     *telegram.Gateway
	Bookmakers  contracts.BookmakerConfig
	Concurrency int
	DedupeTTL   func(eventTimeMs int64) time.Duration
	Log         zerolog.Logger
}

// New builds an Orchestrator from its wired dependencies.
func New(cfg Config) *Orchestrator {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 250
	}
	return &Orchestrator{
		feed:        cfg.Feed,
		limiter:     cfg.Limiter,
		dedupe:      cfg.Dedupe,
		chain:       cfg.Chain,
		calcs:       cfg.Calculators,
		formatter:   cfg.Formatter,
		gateway:     cfg.Gateway,
		cfg:         cfg.Bookmakers,
		concurrency: concurrency,
		dedupeTTL:   cfg.DedupeTTL,
		stopChan:    make(chan struct{}),
		log:         cfg.Log,
	}
}

// Run drives the poll loop until ctx is cancelled or Stop is called.
func (o *Orchestrator) Run(ctx context.Context) {
	o.wg.Add(1)
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopChan:
			return
		default:
		}

		if err := o.limiter.Acquire(ctx); err != nil {
			return
		}

		records, err := o.feed.Fetch(ctx)
		if err != nil {
			o.log.Error().Err(err).Msg("feed fetch failed")
			continue
		}
		if len(records) == 0 {
			continue
		}

		o.processBatch(ctx, records)
	}
}

// Stop requests the poll loop to exit and waits for in-flight work.
func (o *Orchestrator) Stop() {
	close(o.stopChan)
	o.wg.Wait()
}

// SetGateway wires the Telegram Gateway after construction, breaking the
// otherwise circular dependency between the orchestrator's onSent callback
// and the gateway it is bound to.
func (o *Orchestrator) SetGateway(g *telegram.Gateway) {
	o.gateway = g
}

// Stats returns a snapshot of the batch counters.
func (o *Orchestrator) Stats() models.Stats {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	return o.stats
}

func (o *Orchestrator) processBatch(ctx context.Context, records []models.Record) {
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup

	batch := models.Stats{Total: len(records)}
	var mu sync.Mutex

	for _, rec := range records {
		sem <- struct{}{}
		wg.Add(1)
		go func(rec models.Record) {
			defer wg.Done()
			defer func() { <-sem }()

			validated, sent := o.processOne(ctx, rec)

			mu.Lock()
			if validated {
				batch.Validated++
			}
			if sent {
				batch.Sent++
			} else {
				batch.Failed++
			}
			mu.Unlock()
		}(rec)
	}

	wg.Wait()

	o.statsMu.Lock()
	o.stats.Total += batch.Total
	o.stats.Validated += batch.Validated
	o.stats.Sent += batch.Sent
	o.stats.Failed += batch.Failed
	o.statsMu.Unlock()

	o.log.Info().
		Int("total", batch.Total).
		Int("validated", batch.Validated).
		Int("sent", batch.Sent).
		Int("failed", batch.Failed).
		Msg("poll batch complete")
}

// processOne returns (validated, sent): validated is true once the record
// clears the validation chain, regardless of what happens downstream; sent
// is true only once the rendered pick is accepted onto the gateway queue.
func (o *Orchestrator) processOne(ctx context.Context, rec models.Record) (validated, sent bool) {
	p, err := pick.Build(rec, o.cfg)
	if err != nil {
		return false, false
	}

	res := o.chain.Run(ctx, rec, o.cfg)
	if !res.OK {
		return false, false
	}
	validated = true

	calc := o.calcs.For(p.SharpID)
	tier, accepted := calc.Stake(p.Profit)
	if !accepted {
		return validated, false
	}
	p.Tier = tier
	p.MinOdds = calc.MinOdds(p.SharpLeg.Odds)

	rendered := o.formatter.Render(p)

	if !o.gateway.Enqueue(p, p.ChannelID, rendered) {
		return validated, false
	}

	return validated, true
}

// markOnSent is wired as the gateway's onSent callback: it persists the
// dedup mark only after a confirmed Telegram send, per the happens-after
// invariant between delivery and dedup persistence.
func (o *Orchestrator) markOnSent(ctx context.Context, p models.Pick) {
	ttl := time.Hour
	if o.dedupeTTL != nil {
		ttl = o.dedupeTTL(p.SoftLeg.EventTimeMs)
	}
	if !o.dedupe.Mark(ctx, p, ttl) {
		o.log.Warn().Str("record_id", p.RecordID).Msg("failed to persist dedup mark after send")
	}
}

// OnSent returns the bound callback to pass to telegram.New.
func (o *Orchestrator) OnSent(ctx context.Context) func(models.Pick) {
	return func(p models.Pick) {
		o.markOnSent(ctx, p)
	}
}
