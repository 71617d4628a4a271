// Command retador runs the value-betting alert pipeline: a cursor-driven
// surebets poller, validation and calculation stages, and a priority-queued
// multi-bot Telegram sender.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/fortuna-bet/retador/adapters/surebets"
	"github.com/fortuna-bet/retador/internal/calculation"
	"github.com/fortuna-bet/retador/internal/closingline"
	"github.com/fortuna-bet/retador/internal/config"
	"github.com/fortuna-bet/retador/internal/dedupe"
	"github.com/fortuna-bet/retador/internal/formatter"
	"github.com/fortuna-bet/retador/internal/localcache"
	"github.com/fortuna-bet/retador/internal/orchestrator"
	"github.com/fortuna-bet/retador/internal/ratelimit"
	"github.com/fortuna-bet/retador/internal/telegram"
	"github.com/fortuna-bet/retador/internal/validation"
	"github.com/fortuna-bet/retador/pkg/contracts"
	"github.com/fortuna-bet/retador/pkg/models"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     settings.RedisAddr(),
		Password: settings.RedisPassword,
		Username: settings.RedisUsername,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to Redis: %v\n", err)
		os.Exit(2)
	}
	log.Info().Msg("connected to Redis")

	bookmakers := config.DefaultBookmakerConfig()

	cache := localcache.New(settings.CacheMaxSize, settings.CacheTTL)
	cache.StartSweeper(time.Minute, ctx.Done())

	dedupeStore := dedupe.New(redisClient, cache, log)

	limiter := ratelimit.New(settings.PollingBaseInterval, settings.PollingMaxInterval)

	feedClient := surebets.NewClient(surebets.Config{
		BaseURL:  settings.APIURL,
		APIToken: settings.APIToken,
		Timeout:  settings.APITimeout,
	}, bookmakers, limiter, dedupeStore, log)

	if err := feedClient.LoadCursor(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to recover persisted cursor, starting fresh")
	}

	// minEventTime mirrors the feed's own start-age=PT10M filter as a
	// defense-in-depth check inside the validation chain.
	const minEventTime = 10 * time.Minute
	chain := validation.NewDefaultChain(
		settings.MinOdds, settings.MaxOdds,
		settings.MinProfit, settings.MaxProfit,
		minEventTime, 2, dedupeStore,
	)

	calcFactory := calculation.NewFactory()
	fmtr := formatter.New(cache, settings.CacheTTL)

	closer := newClosingLineRecorder(settings.ClosingLineDSN, log)
	closer.Start(ctx)
	defer closer.Stop(context.Background())

	orc := orchestrator.New(orchestrator.Config{
		Feed:        feedClient,
		Limiter:     limiter,
		Dedupe:      dedupeStore,
		Chain:       chain,
		Calculators: calcFactory,
		Formatter:   fmtr,
		Bookmakers:  bookmakers,
		Concurrency: settings.ConcurrentPicks,
		DedupeTTL: func(eventTimeMs int64) time.Duration {
			ttl := time.Until(time.UnixMilli(eventTimeMs))
			if ttl < time.Minute {
				return time.Minute
			}
			return ttl
		},
		Log: log,
	})

	bots, err := buildBots(settings.TelegramBotTokens)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize telegram bots: %v\n", err)
		os.Exit(2)
	}

	onSent := orc.OnSent(ctx)
	gateway := telegram.New(bots, func(p models.Pick) {
		onSent(p)
		closer.Record(p)
	}, log)
	orc.SetGateway(gateway)

	gateway.Start(ctx)
	orc.Run(ctx)

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.PollingMaxInterval+5*time.Second)
	defer cancel()

	orc.Stop()
	gateway.Stop()
	_ = feedClient.Close()

	select {
	case <-shutdownCtx.Done():
		fmt.Fprintln(os.Stderr, "shutdown timeout exceeded")
		os.Exit(1)
	default:
		log.Info().Msg("stopped cleanly")
	}
}

func buildBots(tokens []string) ([]contracts.TelegramSender, error) {
	bots := make([]contracts.TelegramSender, 0, len(tokens))
	for _, tok := range tokens {
		bot, err := tgbotapi.NewBotAPI(tok)
		if err != nil {
			return nil, fmt.Errorf("init telegram bot: %w", err)
		}
		bots = append(bots, telegram.BotSender{Bot: bot})
	}
	return bots, nil
}

func newClosingLineRecorder(dsn string, log zerolog.Logger) *closingline.Recorder {
	if dsn == "" {
		return closingline.New(nil, log)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Warn().Err(err).Msg("failed to open closing-line DSN, disabling recorder")
		return closingline.New(nil, log)
	}
	return closingline.New(db, log)
}
