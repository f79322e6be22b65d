package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/synnergy-labs/token-indexer/internal/chainclient"
	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
	"github.com/synnergy-labs/token-indexer/internal/config"
	"github.com/synnergy-labs/token-indexer/internal/metrics"
	"github.com/synnergy-labs/token-indexer/internal/parser"
	"github.com/synnergy-labs/token-indexer/internal/storage"
	"github.com/synnergy-labs/token-indexer/internal/streamer"
	"github.com/synnergy-labs/token-indexer/internal/writer"
)

func main() {
	root := &cobra.Command{
		Use:   "indexer",
		Short: "stream blocks and index SPL token transfers",
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

	cfg, err := config.LoadIndexer()
	if err != nil {
		log.Fatalw("config load failed", "error", err)
	}

	if addr := cfg.MetricsAddr(); addr != "" {
		if err := metrics.Init(addr, "token_indexer.indexer"); err != nil {
			log.Warnw("metrics init failed, continuing without metrics", "error", err)
		}
		defer metrics.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infow("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	dao, err := storage.Open(ctx, cfg.DatabaseURL, int32(cfg.MaxConnections), log)
	if err != nil {
		log.Fatalw("storage open failed", "error", err)
	}
	defer dao.Close()

	p := parser.New(log)
	pollClient := chainclient.NewHTTPPollClient(cfg.RPCURL, log)

	var stream streamer.Streamer
	if cfg.GRPCURL != "" {
		pushClient := chainclient.NewWebsocketPushClient(cfg.GRPCURL, log)
		pushStreamer := streamer.NewPushStreamer(pushClient, p, log)
		stream = streamer.NewComposedStreamer(pushStreamer, pollClient, p, cfg.MaxConcurrentBlockFetches, cfg.IndexRecent, log)
	} else {
		stream = streamer.NewPollStreamer(pollClient, p, cfg.MaxConcurrentBlockFetches, log)
	}

	pipeline := writer.New(dao, p, cfg.Workers, log)
	defer pipeline.Shutdown()

	fromSlot, err := resumeSlot(ctx, dao, cfg, log)
	if err != nil {
		log.Fatalw("failed to resolve resume slot", "error", err)
	}

	log.Infow("indexer starting", "fromSlot", fromSlot, "pushEnabled", cfg.GRPCURL != "")

	blocks := stream.Stream(ctx, fromSlot)
	submitBatches(ctx, pipeline, blocks, log)

	log.Infow("indexer shut down cleanly")
	return nil
}

// resumeSlot prefers an explicit INDEXER_START_SLOT override, then falls
// back to the last slot persisted in storage, matching the DAO's
// fetch_last_indexed_slot convention.
func resumeSlot(ctx context.Context, dao *storage.DAO, cfg *config.Indexer, log *zap.SugaredLogger) (uint64, error) {
	if cfg.StartSlot > 0 {
		return uint64(cfg.StartSlot), nil
	}
	last, err := dao.FetchLastIndexedSlot(ctx)
	if err != nil {
		return 0, err
	}
	if last == nil {
		return 0, nil
	}
	return *last, nil
}

// batchSize bounds how many streamed blocks accumulate before being handed
// to the writer pipeline in one Submit call.
const batchSize = 50

// submitBatches drains the block stream into fixed-size batches and submits
// each to the pipeline, retrying the whole batch forever on a context-alive
// submission error (the stream itself is the producer; workers never retry
// individually).
func submitBatches(ctx context.Context, pipeline *writer.Pipeline, blocks <-chan chaintypes.BlockInfo, log *zap.SugaredLogger) {
	batch := make([]chaintypes.BlockInfo, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for {
			if err := pipeline.Submit(ctx, batch); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warnw("batch submission failed, retrying", "error", err)
				continue
			}
			break
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case b, ok := <-blocks:
			if !ok {
				flush()
				return
			}
			batch = append(batch, b)
			if len(batch) >= batchSize {
				flush()
			}
		}
	}
}
