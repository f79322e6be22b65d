// Package writer fans blocks out to two bounded worker pools — one for
// block-metadata chunks, one for transfer-row chunks — each committing
// conflict-safe upserts to storage. Per-chunk failures are logged and
// dropped by the worker; retrying an entire failed batch is the producer's
// responsibility (see internal/storage's infinite-retry DAO methods).
package writer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
	"github.com/synnergy-labs/token-indexer/internal/metrics"
	"github.com/synnergy-labs/token-indexer/internal/parser"
)

// Storage is the narrow persistence interface the writer depends on.
type Storage interface {
	WriteBlockChunk(ctx context.Context, chunk []chaintypes.BlockMetadata) error
	WriteTransferChunk(ctx context.Context, chunk []chaintypes.TransferRow) error
}

// Pipeline owns the two channels and worker pools that turn parsed blocks
// into persisted rows.
type Pipeline struct {
	storage Storage
	parser  *parser.Parser
	log     *zap.SugaredLogger

	blockCh    chan []chaintypes.BlockMetadata
	transferCh chan []chaintypes.TransferRow

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New builds a Pipeline with workers goroutines per channel.
func New(storage Storage, p *parser.Parser, workers int, log *zap.SugaredLogger) *Pipeline {
	pl := &Pipeline{
		storage:    storage,
		parser:     p,
		log:        log,
		blockCh:    make(chan []chaintypes.BlockMetadata),
		transferCh: make(chan []chaintypes.TransferRow),
		shutdown:   make(chan struct{}),
	}
	pl.startWorkers(workers)
	return pl
}

func (pl *Pipeline) startWorkers(n int) {
	for i := 0; i < n; i++ {
		pl.wg.Add(2)
		go pl.blockWorker()
		go pl.transferWorker()
	}
}

func (pl *Pipeline) blockWorker() {
	defer pl.wg.Done()
	for {
		select {
		case <-pl.shutdown:
			return
		case chunk, ok := <-pl.blockCh:
			if !ok {
				return
			}
			if err := pl.storage.WriteBlockChunk(context.Background(), chunk); err != nil {
				metrics.Incr("writer.block_chunk_failed")
				if pl.log != nil {
					pl.log.Errorw("block chunk write failed, dropping chunk", "size", len(chunk), "error", err)
				}
			}
		}
	}
}

func (pl *Pipeline) transferWorker() {
	defer pl.wg.Done()
	for {
		select {
		case <-pl.shutdown:
			return
		case chunk, ok := <-pl.transferCh:
			if !ok {
				return
			}
			if err := pl.storage.WriteTransferChunk(context.Background(), chunk); err != nil {
				metrics.Incr("writer.transfer_chunk_failed")
				if pl.log != nil {
					pl.log.Errorw("transfer chunk write failed, dropping chunk", "size", len(chunk), "error", err)
				}
			}
		}
	}
}

// Submit enqueues a batch of blocks: metadata chunks go to the block
// channel, and transfer rows (deduplicated via a merged StateUpdate) go to
// the transfer channel, both chunked at chaintypes.MaxSQLInserts. Submit
// blocks until every chunk has been accepted by a worker or ctx is done; a
// send failure here should cause the caller to retry the whole batch.
func (pl *Pipeline) Submit(ctx context.Context, blocks []chaintypes.BlockInfo) error {
	metadatas := make([]chaintypes.BlockMetadata, 0, len(blocks))
	update := chaintypes.NewStateUpdate()
	for _, b := range blocks {
		metadatas = append(metadatas, b.Metadata)
		for _, tx := range b.Transactions {
			update.Add(tx)
		}
	}

	for _, chunk := range chunkBlocks(metadatas, chaintypes.MaxSQLInserts) {
		select {
		case pl.blockCh <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var rows []chaintypes.TransferRow
	for _, tx := range update.Transactions() {
		rows = append(rows, tx.Rows()...)
	}
	for _, chunk := range chunkRows(rows, chaintypes.MaxSQLInserts) {
		select {
		case pl.transferCh <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Shutdown signals every worker to exit and waits for them to return.
// Pending in-flight DB writes are allowed to complete; any chunk still
// enqueued on a channel is discarded, matching the no-graceful-drain
// guarantee of the system's cancellation model.
func (pl *Pipeline) Shutdown() {
	close(pl.shutdown)
	pl.wg.Wait()
}

func chunkBlocks(items []chaintypes.BlockMetadata, size int) [][]chaintypes.BlockMetadata {
	if len(items) == 0 {
		return nil
	}
	var chunks [][]chaintypes.BlockMetadata
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

func chunkRows(items []chaintypes.TransferRow, size int) [][]chaintypes.TransferRow {
	if len(items) == 0 {
		return nil
	}
	var chunks [][]chaintypes.TransferRow
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
