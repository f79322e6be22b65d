package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/synnergy-labs/token-indexer/internal/config"
	"github.com/synnergy-labs/token-indexer/internal/metrics"
	"github.com/synnergy-labs/token-indexer/internal/query"
	"github.com/synnergy-labs/token-indexer/internal/rpcapi"
	"github.com/synnergy-labs/token-indexer/internal/storage"
	"go.uber.org/zap"
)

func main() {
	root := &cobra.Command{
		Use:   "apiserver",
		Short: "serve the token-indexer JSON-RPC query API",
		RunE:  run,
	}
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.LoadAPI()
	if err != nil {
		log.Fatalw("config load failed", "error", err)
	}

	if addr := cfg.MetricsAddr(); addr != "" {
		if err := metrics.Init(addr, "token_indexer.api"); err != nil {
			log.Warnw("metrics init failed, continuing without metrics", "error", err)
		}
		defer metrics.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dao, err := storage.Open(ctx, cfg.DatabaseURL, int32(cfg.MaxConnections), log)
	if err != nil {
		log.Fatalw("storage open failed", "error", err)
	}
	defer dao.Close()

	api := query.New(dao)
	server := rpcapi.NewServer(api, []string{"*"})

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.ServerPort),
		Handler:      server,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("api server listening", "port", cfg.ServerPort)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			log.Errorw("server exited unexpectedly", "error", err)
			return err
		}
	case sig := <-sigCh:
		log.Infow("shutdown signal received", "signal", sig.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Errorw("graceful shutdown failed", "error", err)
			return err
		}
	}
	return nil
}
