package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"luxeplan/internal/api"
	"luxeplan/internal/availability"
	"luxeplan/internal/booking"
	"luxeplan/internal/cache"
	"luxeplan/internal/config"
	"luxeplan/internal/metrics"
	"luxeplan/internal/notify"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	client   *api.Client
	store    cache.Store
	rdb      *redis.Client
	query    *availability.Query
	notifier notify.Notifier
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	out      io.Writer
}

func newApp(configPath string, verbose bool) (*app, error) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Token)
	client.UseHTTPClient(&http.Client{Timeout: cfg.APITimeout()})
	client.UseRateLimit(cfg.API.RatePerSecond, cfg.API.Burst)
	client.UseLogger(&logger)

	var (
		store cache.Store = cache.NewMemoryStore(cfg.CacheTTL())
		rdb   *redis.Client
	)
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		store = cache.NewRedisStore(rdb, cfg.CacheTTL())
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	notifiers := notify.Multi{notify.NewLogNotifier(&logger)}
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifications disabled")
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		store:    store,
		rdb:      rdb,
		query:    availability.NewQuery(client, store, &logger, m),
		notifier: notifiers,
		registry: registry,
		metrics:  m,
		out:      os.Stdout,
	}, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// cliNavigator points the user to their bookings after a create.
type cliNavigator struct {
	out io.Writer
}

func (n cliNavigator) ToBookings() {
	fmt.Fprintln(n.out, "→ See all your bookings in My Bookings.")
}

func (a *app) deps() booking.Deps {
	return booking.Deps{
		Bookings:     a.client,
		Availability: a.query,
		Notifier:     a.notifier,
		Navigator:    cliNavigator{out: a.out},
		Logger:       &a.logger,
		Metrics:      a.metrics,
	}
}
