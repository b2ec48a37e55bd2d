package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"pairwatch/config"
	"pairwatch/internal/engine"
	"pairwatch/internal/feed"
	"pairwatch/internal/httpapi"
	"pairwatch/logger"
	"pairwatch/pkg/binance"
	"pairwatch/pkg/storage/postgres"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("pairwatch failed", zap.Error(err))
	}
	log.Info("pairwatch stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	broadcaster := httpapi.NewBroadcaster(log)
	opts := []engine.Option{engine.WithObserver(broadcaster.Broadcast)}

	// optional alert audit table
	var store *postgres.PostgresClient
	if cfg.Postgres.Enabled {
		client, err := postgres.InitializeAndMigrateAlertRecord(cfg.Postgres, cfg.App.Environment)
		if err != nil {
			return err
		}
		defer client.Close()
		store = client
		opts = append(opts, engine.WithNotifier(postgres.NewAlertWriter(client, 64, log)))
		log.Info("alert persistence enabled", zap.String("db", cfg.Postgres.DBName))
	}

	session, err := engine.NewSession(cfg, log, opts...)
	if err != nil {
		return err
	}
	defer session.Close()

	source, err := newFeed(ctx, cfg, log)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return source.Run(ctx, session)
	})
	g.Go(func() error {
		return session.Run(ctx, cfg.Analytics.RefreshInterval)
	})
	if store != nil && cfg.Postgres.Retention > 0 {
		g.Go(func() error {
			return postgres.RunRetention(ctx, store, cfg.Postgres.Retention, cfg.Postgres.RetentionEvery, log)
		})
	}

	if cfg.HTTP.Addr != "" {
		srv := httpapi.NewServer(cfg.HTTP.Addr, session, broadcaster, log)
		if store != nil {
			srv.AddHealthCheck("postgres", store.IsHealthy)
			srv.ServeAlerts(store)
		}
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newFeed builds the configured tick source. For Binance it validates the
// symbols first.
func newFeed(ctx context.Context, cfg *config.Config, log *zap.Logger) (feed.Feed, error) {
	if cfg.Feed.Provider == "synthetic" {
		return feed.NewSynthetic(cfg.Symbols, cfg.Feed.SyntheticRate, uint64(time.Now().UnixNano()), log), nil
	}

	rest := binance.NewRESTClient(cfg.Feed.RESTURL, cfg.Feed.RESTTimeout)
	if cfg.Feed.ValidateSymbols {
		vctx, cancel := context.WithTimeout(ctx, cfg.Feed.RESTTimeout)
		err := rest.ValidateSymbols(vctx, cfg.Symbols)
		cancel()
		if err != nil {
			return nil, err
		}
		log.Info("symbols validated", zap.Strings("symbols", cfg.Symbols))
	}

	return feed.NewBinance(cfg.Feed, cfg.Symbols, log), nil
}
