// Package telegram owns the priority-queued, multi-bot Telegram delivery
// path: a bounded heap of pending alerts, round-robin bot rotation, and a
// single background consumer, in the style of this codebase's other
// background-ticker component (internal/closingline).
package telegram

import (
	"container/heap"
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/fortuna-bet/retador/pkg/contracts"
	"github.com/fortuna-bet/retador/pkg/models"
)

const (
	defaultMaxQueueSize = 1000
	defaultMaxWait       = 30 * time.Second
	defaultMaxRetries    = 3
	globalRateLimit      = 30 // sends per second, across the whole gateway
)

// Stats accumulates gateway-level counters for observability.
type Stats struct {
	mu                         sync.Mutex
	Enqueued                   int64
	Rejected                   int64
	Sent                       int64
	Dropped                    int64
	DroppedRetryAfterExceeded  int64
}

func (s *Stats) incr(field *int64) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}

// Gateway owns the priority heap, bot rotation, and the sliding-window
// global rate limit described in §4.8.
type Gateway struct {
	mu   sync.Mutex
	heap envelopeHeap
	seq  uint64

	bots      []contracts.TelegramSender
	nextBot   int
	maxQueue  int
	maxWait   time.Duration
	maxRetries int

	sends     []time.Time // sliding window, guarded by mu
	stopChan  chan struct{}
	wg        sync.WaitGroup
	onSent    func(models.Pick)

	log   zerolog.Logger
	Stats Stats
}

// New constructs a Gateway with the given bot pool. onSent is invoked after
// a successful send so the orchestrator can persist the dedup mark; it must
// not block.
func New(bots []contracts.TelegramSender, onSent func(models.Pick), log zerolog.Logger) *Gateway {
	return &Gateway{
		bots:       bots,
		maxQueue:   defaultMaxQueueSize,
		maxWait:    defaultMaxWait,
		maxRetries: defaultMaxRetries,
		onSent:     onSent,
		stopChan:   make(chan struct{}),
		log:        log,
	}
}

// Start launches the background consumer loop.
func (g *Gateway) Start(ctx context.Context) {
	g.wg.Add(1)
	go g.consumeLoop(ctx)
}

// Stop signals the consumer to exit and waits for it to return. A delivery
// already in progress finishes first; envelopes still queued in the heap are
// not sent.
func (g *Gateway) Stop() {
	close(g.stopChan)
	g.wg.Wait()
}

// Enqueue adds a rendered pick to the priority heap. Priority is -profit
// (lower value sorts first); at capacity, a candidate that does not beat the
// current worst queued envelope is rejected outright.
func (g *Gateway) Enqueue(p models.Pick, channelID int64, rendered string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	env := &envelope{
		priority:  -p.Profit,
		seq:       g.seq,
		pick:      p,
		channelID: channelID,
		rendered:  rendered,
		triedBots: make(map[int]struct{}),
	}
	g.seq++

	if len(g.heap) >= g.maxQueue {
		worst := g.heap[0]
		for _, e := range g.heap {
			if e.priority > worst.priority {
				worst = e
			}
		}
		if env.priority >= worst.priority {
			g.Stats.incr(&g.Stats.Rejected)
			return false
		}
		g.removeEnvelope(worst)
	}

	heap.Push(&g.heap, env)
	g.Stats.incr(&g.Stats.Enqueued)
	return true
}

func (g *Gateway) removeEnvelope(target *envelope) {
	for i, e := range g.heap {
		if e == target {
			heap.Remove(&g.heap, i)
			return
		}
	}
}

func (g *Gateway) consumeLoop(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stopChan:
			return
		case <-ticker.C:
			env := g.popNext()
			if env == nil {
				continue
			}
			g.deliver(ctx, env)
		}
	}
}

func (g *Gateway) popNext() *envelope {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.heap) == 0 {
		return nil
	}
	return heap.Pop(&g.heap).(*envelope)
}

func (g *Gateway) deliver(ctx context.Context, env *envelope) {
	deadline := time.Now().Add(g.maxWait)

	for attempt := 0; attempt < g.maxRetries*len(g.bots)+len(g.bots); attempt++ {
		if time.Now().After(deadline) {
			g.log.Warn().Str("record_id", env.pick.RecordID).Msg("dropping pick: max_wait exceeded")
			g.Stats.incr(&g.Stats.DroppedRetryAfterExceeded)
			return
		}
		if len(env.triedBots) >= len(g.bots) {
			env.triedBots = make(map[int]struct{})
		}

		botIdx := g.nextBotIndex(env)
		bot := g.bots[botIdx]
		env.triedBots[botIdx] = struct{}{}

		g.waitForRateBudget(ctx)

		err := bot.Send(env.channelID, env.rendered)
		if err == nil {
			g.Stats.incr(&g.Stats.Sent)
			if g.onSent != nil {
				g.onSent(env.pick)
			}
			return
		}

		switch e := classify(err); e.kind {
		case kindRetryAfter:
			wait := e.retryAfter
			if wait > g.maxWait {
				g.log.Warn().Str("record_id", env.pick.RecordID).Dur("retry_after", wait).Msg("retry-after exceeds max_wait")
				g.Stats.incr(&g.Stats.DroppedRetryAfterExceeded)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		case kindForbidden:
			// bot dead for this channel; rotation already marks it tried
		case kindBadRequest:
			g.log.Error().Str("record_id", env.pick.RecordID).Err(err).Msg("dropping malformed message")
			g.Stats.incr(&g.Stats.Dropped)
			return
		default:
			backoff := time.Duration(1<<uint(attempt)) * 500 * time.Millisecond
			if backoff > g.maxWait {
				backoff = g.maxWait
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}

	g.Stats.incr(&g.Stats.Dropped)
}

func (g *Gateway) nextBotIndex(env *envelope) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := 0; i < len(g.bots); i++ {
		idx := g.nextBot
		g.nextBot = (g.nextBot + 1) % len(g.bots)
		if _, tried := env.triedBots[idx]; !tried {
			return idx
		}
	}
	return g.nextBot
}

// waitForRateBudget blocks until the sliding 1-second window has room for
// one more send, enforcing the ≤30-sends/sec global bound.
func (g *Gateway) waitForRateBudget(ctx context.Context) {
	for {
		g.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-time.Second)
		kept := g.sends[:0]
		for _, t := range g.sends {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		g.sends = kept

		if len(g.sends) < globalRateLimit {
			g.sends = append(g.sends, now)
			g.mu.Unlock()
			return
		}
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// envelope is the heap element backing models.PriorityEnvelope.
type envelope struct {
	priority  float64
	seq       uint64
	pick      models.Pick
	channelID int64
	rendered  string
	triedBots map[int]struct{}
}

type envelopeHeap []*envelope

func (h envelopeHeap) Len() int { return len(h) }

func (h envelopeHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h envelopeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *envelopeHeap) Push(x interface{}) {
	*h = append(*h, x.(*envelope))
}

func (h *envelopeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// BotSender adapts a real tgbotapi.BotAPI to contracts.TelegramSender.
type BotSender struct {
	Bot *tgbotapi.BotAPI
}

func (b BotSender) Send(chatID int64, html string) error {
	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.DisableNotification = true
	_, err := b.Bot.Send(msg)
	return err
}
