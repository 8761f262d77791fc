// Command fundingtracker-admin provides one-shot operator subcommands:
// registering a single exchange's contracts, or running a full backfill
// for one exchange without waiting for the hourly scheduler tick.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/cryptorun/internal/cache"
	"github.com/sawpanic/cryptorun/internal/coordinator"
	"github.com/sawpanic/cryptorun/internal/exchange"
	"github.com/sawpanic/cryptorun/internal/fundingconfig"
	"github.com/sawpanic/cryptorun/internal/mvrefresher"
	"github.com/sawpanic/cryptorun/internal/orchestrator"
	"github.com/sawpanic/cryptorun/internal/persistence/postgres"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	root := &cobra.Command{
		Use:   "fundingtracker-admin",
		Short: "Operator commands for the funding tracker",
	}

	registerCmd := &cobra.Command{
		Use:   "register <section>",
		Short: "Run register_contracts once for a single exchange",
		Args:  cobra.ExactArgs(1),
		RunE:  runRegister,
	}
	backfillCmd := &cobra.Command{
		Use:   "backfill <section>",
		Short: "Run a full update() cycle once for a single exchange, synchronously",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackfill,
	}

	root.AddCommand(registerCmd, backfillCmd)
	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func setup(ctx context.Context, section string) (*orchestrator.Orchestrator, func(), error) {
	cfg, err := fundingconfig.Load(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	db, err := postgres.Open(ctx, cfg.DBConnection)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	uow := postgres.NewUnitOfWork(db)

	paradexCache, err := cache.NewParadexCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		uow.Close(ctx)
		return nil, nil, fmt.Errorf("redis: %w", err)
	}

	registry := exchange.NewRegistry(paradexCache)
	ex, err := exchange.Lookup(registry, section)
	if err != nil {
		paradexCache.Close()
		uow.Close(ctx)
		return nil, nil, err
	}

	refresher := mvrefresher.New(db)
	o := orchestrator.New(ex, uow.Repository(), refresher)
	if settings, err := fundingconfig.LoadExchangeSettings("config/exchanges.yaml"); err == nil {
		if blob, err := settings.SettingsJSON(section); err == nil {
			o.Settings = blob
		}
	}

	cleanup := func() {
		paradexCache.Close()
		uow.Close(context.WithoutCancel(ctx))
	}
	return o, cleanup, nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	o, cleanup, err := setup(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	return coordinator.RegisterContracts(ctx, o.Exchange, o.Repo, o.Refresher, o.Settings)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	o, cleanup, err := setup(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	return o.Update(ctx)
}
