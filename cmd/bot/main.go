// Command bot wires the forwarder core together: configuration, SQLite
// store, membership cache (Redis, with in-memory fallback), the two engines,
// the dispatcher, the ops HTTP listener, and a line-oriented console
// transport for running without a chat client attached.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/passfwd/passfwd/internal/bot"
	"github.com/passfwd/passfwd/internal/cache"
	"github.com/passfwd/passfwd/internal/config"
	httpapi "github.com/passfwd/passfwd/internal/http"
	"github.com/passfwd/passfwd/internal/notify"
	"github.com/passfwd/passfwd/internal/observability"
	"github.com/passfwd/passfwd/internal/repo"
	"github.com/passfwd/passfwd/internal/services"
	"github.com/passfwd/passfwd/internal/sysutil"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() { _ = shutdownOTel(context.Background()) }()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database failed")
	}

	var (
		members cache.Membership
		guard   cache.FloodGuard
	)
	rdb := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if rdb != nil {
		r := cache.NewRedis(rdb)
		members, guard = r, r
	} else {
		log.Warn().Str("addr", cfg.Redis.Addr).Msg("redis unreachable, using in-memory cache")
		m := cache.NewMemory()
		members, guard = m, m
	}

	auth := services.NewAuthService(db, members, guard, cfg.Secret, cfg.Owners, cfg.FloodTTL)
	if err := auth.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("membership cache rebuild failed")
	}

	transport := newConsoleTransport(os.Stdout)

	codes := &services.PasscodeService{
		DB:           db,
		Transport:    transport,
		ChannelID:    cfg.ChannelID,
		SendInterval: cfg.SendInterval,
	}
	if cfg.AMQP.URL != "" {
		pub := notify.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		codes.OnSubmitted = pub.Submitted
		codes.OnRedemptionChanged = pub.RedemptionChanged
	}

	dispatcher := &bot.Dispatcher{
		Auth:      auth,
		Codes:     codes,
		Transport: transport,
		Log:       log.Logger,
	}

	ops := &http.Server{
		Addr:    cfg.OpsAddr,
		Handler: httpapi.NewRouter(cfg.OTEL.ServiceName, db, rdb),
	}
	go func() {
		log.Info().Str("addr", cfg.OpsAddr).Msg("ops listener started")
		if err := ops.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("ops listener failed")
		}
	}()
	defer func() { _ = ops.Shutdown(context.Background()) }()

	log.Info().Int64("channel", cfg.ChannelID).Msg("forwarder started (console transport)")
	runConsole(ctx, dispatcher, os.Stdin)
}
