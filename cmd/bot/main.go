package main

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/open-builders/image-delivery-bot/internal/bot"
	apperrors "github.com/open-builders/image-delivery-bot/internal/common/errors"
	"github.com/open-builders/image-delivery-bot/internal/common/logger"
	"github.com/open-builders/image-delivery-bot/internal/config"
	"github.com/open-builders/image-delivery-bot/internal/domain/record"
	apphttp "github.com/open-builders/image-delivery-bot/internal/http"
	mongoplatform "github.com/open-builders/image-delivery-bot/internal/platform/mongo"
	redisplatform "github.com/open-builders/image-delivery-bot/internal/platform/redis"
	mongorepo "github.com/open-builders/image-delivery-bot/internal/repository/mongo"
	redisrepo "github.com/open-builders/image-delivery-bot/internal/repository/redis"
	"github.com/open-builders/image-delivery-bot/internal/service/delivery"
	sessionsvc "github.com/open-builders/image-delivery-bot/internal/service/session"
	"github.com/open-builders/image-delivery-bot/internal/service/telegram"
	"github.com/open-builders/image-delivery-bot/internal/workers"
)

type recordStore interface {
	record.Gateway
	record.Pinger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init("image-delivery-bot", cfg.Debug)

	var (
		store recordStore
		rdb   *redisplatform.Client
	)
	switch cfg.RecordStore {
	case config.StoreRedis:
		rdb, err = redisplatform.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		store = redisrepo.NewRecordRepository(rdb, cfg.Redis.KeyPrefix)
	default:
		client, err := mongoplatform.Open(ctx, cfg.Mongo.URI)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}()
		store = mongorepo.NewRecordRepository(client, cfg.Mongo.Database, cfg.Mongo.Collection)
	}
	logger.Info().Str("backend", cfg.RecordStore).Msg("Record store connected")

	tg := telegram.NewClient(cfg.Telegram.APIBaseURL, cfg.Telegram.BotToken,
		cfg.Telegram.PollTimeout+10*time.Second, logger.Component("telegram"))
	me, err := tg.GetMe(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to authenticate with Telegram")
	}
	logger.Info().Str("username", me.Username).Msg("Bot authenticated")

	sessions := sessionsvc.NewStore()
	validator := delivery.NewValidator(store, logger.Component("validator"))
	engine := delivery.NewEngine(store, tg, delivery.NewHTTPFetcher(cfg.Delivery.FetchTimeout),
		delivery.WithLogger(logger.Component("delivery")),
		delivery.WithConcurrency(cfg.Delivery.FetchConcurrency),
		delivery.WithFetchTimeout(cfg.Delivery.FetchTimeout),
	)
	machine := bot.NewMachine(sessions, validator, engine, tg, logger.Component("bot"))

	dispatchLog := logger.Component("dispatcher")
	dispatcher := workers.NewDispatcher(func(ctx context.Context, ev bot.Event) {
		err := machine.Handle(ctx, ev)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrTransport):
			dispatchLog.Warn().Err(err).
				Int64("chat_id", ev.ChatID).
				Str("event", ev.Kind.String()).
				Msg("Could not reply")
		default:
			dispatchLog.Error().Err(err).
				Int64("chat_id", ev.ChatID).
				Str("event", ev.Kind.String()).
				Msg("Error handling event")
		}
	})

	var wg sync.WaitGroup
	run := func(start func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start(ctx)
		}()
	}

	run(workers.NewPoller(tg, dispatcher, cfg.Telegram.PollTimeout, logger.Component("poller")).Start)
	if cfg.KeepAlive.Enabled {
		run(workers.NewKeepAlive(cfg.HealthURL(), cfg.KeepAlive.Interval, logger.Component("keepalive")).Start)
	}
	if rdb != nil {
		run(workers.NewRecordEventsWorker(rdb, sessions, dispatcher, logger.Component("record_events")).Start)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           cfg.HTTPAddr(),
		Debug:          cfg.Debug,
		AllowedOrigins: splitOrigins(cfg.Server.CORSAllowedOrigins),
		Store:          store,
		Log:            logger.Component("http"),
	})
	if err := apphttp.Run(ctx, srv, 30*time.Second, logger.Component("http")); err != nil {
		logger.Error().Err(err).Msg("HTTP server stopped with error")
		stop()
	}

	wg.Wait()
	dispatcher.Wait()
	logger.Info().Msg("Bot stopped")
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
