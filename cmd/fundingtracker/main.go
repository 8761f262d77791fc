// Command fundingtracker runs the perpetual-futures funding-rate
// ingestion service: one orchestrator per assigned exchange, driven by
// the C6 triggers, exposing a small debug/health surface over gorilla/mux.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptorun/internal/cache"
	"github.com/sawpanic/cryptorun/internal/cron"
	"github.com/sawpanic/cryptorun/internal/exchange"
	"github.com/sawpanic/cryptorun/internal/fundingconfig"
	"github.com/sawpanic/cryptorun/internal/mvrefresher"
	"github.com/sawpanic/cryptorun/internal/orchestrator"
	"github.com/sawpanic/cryptorun/internal/persistence/postgres"
	"github.com/sawpanic/cryptorun/internal/sharding"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := fundingconfig.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DBConnection)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}

	uow := postgres.NewUnitOfWork(db)
	defer uow.Close(context.WithoutCancel(ctx))

	paradexCache, err := cache.NewParadexCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}
	defer paradexCache.Close()

	refresher := mvrefresher.New(db)
	registry := exchange.NewRegistry(paradexCache)

	assigned, err := sharding.AssignedSections(exchange.AllIDs, cfg.InstanceID, cfg.TotalInstances)
	if err != nil {
		log.Fatal().Err(err).Msg("sharding configuration invalid")
	}
	log.Info().Strs("sections", assigned).Int("instance_id", cfg.InstanceID).Int("total_instances", cfg.TotalInstances).Msg("assigned sections")

	exchangeSettings, err := fundingconfig.LoadExchangeSettings("config/exchanges.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("exchange settings not loaded, sections will register with empty settings")
	}

	orchestrators := make(map[string]*orchestrator.Orchestrator, len(assigned))
	for _, id := range assigned {
		ex, err := exchange.Lookup(registry, id)
		if err != nil {
			log.Fatal().Err(err).Str("section", id).Msg("unknown exchange in assignment")
		}
		o := orchestrator.New(ex, uow.Repository(), refresher)
		o.Concurrency = cfg.DefaultConcurrency
		if exchangeSettings != nil {
			if settings, err := exchangeSettings.SettingsJSON(id); err == nil {
				o.Settings = settings
			}
		}
		orchestrators[id] = o

		go cron.RunUpdateJob(ctx, func(ctx context.Context) { o.Update(ctx) })
	}

	cron.RunLiveJobs(ctx, assigned, func(section string) cron.LiveFunc {
		o := orchestrators[section]
		return func(ctx context.Context) { o.UpdateLive(ctx) }
	})

	go cron.RunMVRefreshCheck(ctx, refresher)

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		check := uow.Health().Health(r.Context())
		if !check.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Write([]byte("ok"))
	})
	router.HandleFunc("/debug/sections", func(w http.ResponseWriter, r *http.Request) {
		for _, id := range assigned {
			w.Write([]byte(id + "\n"))
		}
	})
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.HealthAddr, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("debug server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}
