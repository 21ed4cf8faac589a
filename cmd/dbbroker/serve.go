package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/koustreak/dbbroker/internal/broker"
	"github.com/koustreak/dbbroker/internal/config"
	"github.com/koustreak/dbbroker/internal/connector"
	"github.com/koustreak/dbbroker/internal/filestore/minio"
	"github.com/koustreak/dbbroker/internal/logger"
	"github.com/koustreak/dbbroker/internal/metrics"
	"github.com/koustreak/dbbroker/internal/pool"
	"github.com/koustreak/dbbroker/internal/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the broker with its admin API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file (optional)")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(&cfg.Log)
	logger.SetGlobal(log)

	if cfg.Remote.Enabled {
		cfg, err = loadRemote(ctx, cfg, log)
		if err != nil {
			return err
		}
		log = logger.New(&cfg.Log)
		logger.SetGlobal(log)
	}

	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	reg := pool.NewRegistry(
		connector.New(connector.WithLogger(log)),
		pool.WithLogger(log),
		pool.WithMetrics(m),
		pool.WithConfig(poolCfg),
	)
	b := broker.New(reg, broker.WithLogger(log), broker.WithMetrics(m))
	srv := server.New(cfg.Server, reg, b, promReg, log)

	log.With().
		Bool("pooling", poolCfg.Enabled).
		Int("per_user_max", poolCfg.PerUserMax).
		Dur("cleanup_interval", poolCfg.CleanupInterval).
		Logger().
		Info("broker started")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err = <-errCh:
		if err != nil {
			log.ErrorWith("admin server failed", err, nil)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace())
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.WarnWith("admin server shutdown", serr, nil)
	}
	if serr := reg.Shutdown(); serr != nil {
		log.WarnWith("closing connection sources", serr, nil)
	}
	return err
}

func loadRemote(ctx context.Context, cfg *config.Config, log *logger.Logger) (*config.Config, error) {
	store, err := minio.New(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, err
	}
	defer store.Close()

	merged, info, err := cfg.LoadRemote(ctx, store, cfg.Remote.Bucket, cfg.Remote.Key)
	if err != nil {
		return nil, err
	}
	log.With().
		Str("store", cfg.StoreConfig().String()).
		Str("key", cfg.Remote.Bucket+"/"+cfg.Remote.Key).
		Str("etag", info.ETag).
		Logger().
		Info("remote config loaded")
	return merged, nil
}
