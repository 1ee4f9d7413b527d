package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"awards-draft-backend/internal/config"
	"awards-draft-backend/internal/draft/autodraft"
	draftclock "awards-draft-backend/internal/draft/clock"
	"awards-draft-backend/internal/draft/engine"
	"awards-draft-backend/internal/draft/gateway"
	"awards-draft-backend/internal/draft/publish"
	"awards-draft-backend/internal/draft/store"
	"awards-draft-backend/internal/httpapi"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store: Postgres when configured, in-memory otherwise.
	var st store.Store
	if cfg.Database.Enabled {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create database pool")
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		st = store.NewPostgres(pool)
		log.Info().Str("database", cfg.Database.Database).Msg("using Postgres store")
	} else {
		st = store.NewMemory()
		log.Info().Msg("using in-memory store")
	}

	// Publishers: in-process bus always, JetStream when configured.
	bus := publish.NewBus()
	var pub engine.Publisher = bus
	if cfg.NATS.Enabled {
		jsCfg := publish.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		jsCfg.StreamName = cfg.NATS.StreamName
		jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		jsPub, err := publish.NewJetStreamPublisher(jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect JetStream publisher")
		}
		defer jsPub.Close()
		pub = publish.Multi{bus, jsPub}
		log.Info().Str("stream", jsCfg.StreamName).Msg("publishing events to JetStream")
	}

	eng := engine.New(st, pub, autodraft.New(st, nil), clockwork.NewRealClock())

	// Pick clock monitor.
	monitor := draftclock.New(eng, clockwork.NewRealClock(),
		draftclock.WithWorkers(cfg.Clock.Workers),
		draftclock.WithIdlePoll(cfg.Clock.IdlePoll),
	)
	go func() {
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("pick clock monitor stopped")
		}
	}()

	// WebSocket gateway fed by the in-process bus.
	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	busConsumer := gateway.NewBusConsumer(bus, cm)
	go cm.Start(ctx)
	go busConsumer.Start(ctx)
	wsHandler := gateway.NewWebSocketHandler(cm, eng)

	router := httpapi.NewRouter(httpapi.NewHandler(eng), wsHandler, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr()).Msg("draft server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	log.Info().Msg("server stopped")
}
