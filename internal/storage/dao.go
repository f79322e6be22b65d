// Package storage is the Storage DAO: chunked upserts and indexed reads
// against the time-partitioned blocks/token_transfers tables, backed by
// jackc/pgx/v5.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
	"github.com/synnergy-labs/token-indexer/internal/errs"
	"github.com/synnergy-labs/token-indexer/internal/metrics"
)

const (
	batchRetryBackoff  = time.Second
	headSlotRetryBackoff = 5 * time.Second
)

// DAO wraps a pgx connection pool with the chunked-upsert and query
// operations the writer pipeline and query layer depend on.
type DAO struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

// Open connects a pool of maxConns connections to dsn.
func Open(ctx context.Context, dsn string, maxConns int32, log *zap.SugaredLogger) (*DAO, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "parse database url")
	}
	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err, "open database pool")
	}
	return &DAO{pool: pool, log: log}, nil
}

// Close releases the underlying pool.
func (d *DAO) Close() { d.pool.Close() }

// Readiness runs SELECT 1 against the pool.
func (d *DAO) Readiness(ctx context.Context) error {
	var one int
	if err := d.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return errs.Wrap(errs.KindDatabase, err, "readiness check")
	}
	return nil
}

// WriteBlockChunk upserts one chunk of block metadata in a single round
// trip, skipping rows whose (slot, block_time) primary key already exists.
func (d *DAO) WriteBlockChunk(ctx context.Context, chunk []chaintypes.BlockMetadata) error {
	if len(chunk) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range chunk {
		batch.Queue(
			`INSERT INTO blocks (slot, parent_slot, block_height, block_time)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (slot, block_time) DO NOTHING`,
			int64(b.Slot), int64(b.ParentSlot), int64(b.BlockHeight), b.BlockTime,
		)
	}
	return d.runBatch(ctx, batch, len(chunk))
}

// WriteTransferChunk upserts one chunk of transfer rows in a single round
// trip, skipping rows whose (signature, source_address, destination_address,
// block_time) primary key already exists.
func (d *DAO) WriteTransferChunk(ctx context.Context, chunk []chaintypes.TransferRow) error {
	if len(chunk) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range chunk {
		batch.Queue(
			`INSERT INTO token_transfers
			 (signature, source_address, destination_address, source_ata, destination_ata,
			  mint_address, token_type, slot, amount, error, block_time)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, to_timestamp($11))
			 ON CONFLICT (signature, source_address, destination_address, block_time) DO NOTHING`,
			r.Signature[:], r.SourceAddress[:], r.DestinationAddress[:],
			optionalBytes(r.SourceATA), optionalBytes(r.DestinationATA), optionalBytes(r.MintAddress),
			string(r.TokenType), int64(r.Slot), int64(r.Amount), r.Error, r.BlockTime,
		)
	}
	return d.runBatch(ctx, batch, len(chunk))
}

func (d *DAO) runBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := d.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return errs.Wrap(errs.KindDatabase, err, "execute batch statement")
		}
	}
	return nil
}

func optionalBytes(a *chaintypes.Address) []byte {
	if a == nil {
		return nil
	}
	return a[:]
}

// IndexBlock is the single-block convenience wrapper for callers that do not
// need the full chunked-batch pipeline (e.g. backfill tooling): it writes the
// block's metadata row, then all of its transfer rows as one unchunked batch.
// The two writes are separate batches, not one transaction: if the transfer
// write fails, the metadata row stays written.
func (d *DAO) IndexBlock(ctx context.Context, block chaintypes.BlockInfo) error {
	if err := d.WriteBlockChunk(ctx, []chaintypes.BlockMetadata{block.Metadata}); err != nil {
		return err
	}
	var rows []chaintypes.TransferRow
	for _, tx := range block.Transactions {
		rows = append(rows, tx.Rows()...)
	}
	return d.WriteTransferChunk(ctx, rows)
}

// IndexBlockBatches is the producer-side at-least-once retry loop: on any
// error it logs the affected slot range, sleeps, and retries the entire
// batch forever.
func (d *DAO) IndexBlockBatches(ctx context.Context, blocks []chaintypes.BlockInfo) {
	if len(blocks) == 0 {
		return
	}
	lo, hi := blocks[0].Metadata.Slot, blocks[0].Metadata.Slot
	for _, b := range blocks {
		if b.Metadata.Slot < lo {
			lo = b.Metadata.Slot
		}
		if b.Metadata.Slot > hi {
			hi = b.Metadata.Slot
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}
		var failed error
		for _, b := range blocks {
			if err := d.IndexBlock(ctx, b); err != nil {
				failed = err
				break
			}
		}
		if failed == nil {
			return
		}
		metrics.Incr("storage.index_block_batches_retry")
		if d.log != nil {
			d.log.Warnw("index_block_batches failed, retrying", "slot_lo", lo, "slot_hi", hi, "error", failed)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(batchRetryBackoff):
		}
	}
}

// FetchLastIndexedSlot returns SELECT max(slot) FROM blocks, retrying
// forever with a 5s backoff. A nil result means the table is empty.
func (d *DAO) FetchLastIndexedSlot(ctx context.Context) (*uint64, error) {
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var max *int64
		err := d.pool.QueryRow(ctx, "SELECT max(slot) FROM blocks").Scan(&max)
		if err == nil {
			if max == nil {
				return nil, nil
			}
			v := uint64(*max)
			return &v, nil
		}

		if d.log != nil {
			d.log.Warnw("fetch_last_indexed_slot failed, retrying", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(headSlotRetryBackoff):
		}
	}
}

// TransferFilter restricts a transfer query to rows matching the given
// (non-nil) address fields. At least one MUST be set — the Query API
// enforces that before calling here.
type TransferFilter struct {
	SourceAddress      *chaintypes.Address
	DestinationAddress *chaintypes.Address
	MintAddress        *chaintypes.Address
}

// SortColumn picks which timestamp-like column drives primary sort.
type SortColumn string

const (
	SortByCreated SortColumn = "block_time"
	SortBySlot    SortColumn = "slot"
)

// SortDirection is ASC or DESC.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// KeysetWindow bounds block_time by an open interval; either bound may be nil.
type KeysetWindow struct {
	Before *time.Time
	After  *time.Time
}

// PageWindow is an offset-based window.
type PageWindow struct {
	Page uint64
}

// QueryTransfers runs a filtered, paginated, sorted read against
// token_transfers. Exactly one of keyset or page should be non-nil; passing
// both or neither is a caller error enforced by the query layer, not here.
func (d *DAO) QueryTransfers(ctx context.Context, filter TransferFilter, sortCol SortColumn, dir SortDirection, limit uint64, keyset *KeysetWindow, page *PageWindow) ([]chaintypes.TransferRow, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SourceAddress != nil {
		where = append(where, "source_address = "+arg(filter.SourceAddress[:]))
	}
	if filter.DestinationAddress != nil {
		where = append(where, "destination_address = "+arg(filter.DestinationAddress[:]))
	}
	if filter.MintAddress != nil {
		where = append(where, "mint_address = "+arg(filter.MintAddress[:]))
	}
	if keyset != nil {
		if keyset.Before != nil {
			where = append(where, "block_time < "+arg(*keyset.Before))
		}
		if keyset.After != nil {
			where = append(where, "block_time > "+arg(*keyset.After))
		}
	}

	query := "SELECT signature, source_address, destination_address, source_ata, destination_ata, mint_address, token_type, slot, amount, error, block_time FROM token_transfers"
	if len(where) > 0 {
		query += " WHERE " + joinAnd(where)
	}
	query += fmt.Sprintf(" ORDER BY %s %s, slot %s, signature ASC", sortCol, dir, dir)
	query += " LIMIT " + arg(limit)
	if page != nil && page.Page > 0 {
		query += " OFFSET " + arg((page.Page-1)*limit)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err, "query transfers")
	}
	defer rows.Close()

	var out []chaintypes.TransferRow
	for rows.Next() {
		var (
			sigBytes, srcBytes, destBytes []byte
			srcATA, destATA, mint         []byte
			tokenType                     string
			slot                          int64
			amount                        int64
			errText                       *string
			blockTime                     time.Time
		)
		if err := rows.Scan(&sigBytes, &srcBytes, &destBytes, &srcATA, &destATA, &mint, &tokenType, &slot, &amount, &errText, &blockTime); err != nil {
			return nil, errs.Wrap(errs.KindDatabase, err, "scan transfer row")
		}

		row := chaintypes.TransferRow{
			TokenType: chaintypes.TokenType(tokenType),
			Slot:      uint64(slot),
			Amount:    uint64(amount),
			Error:     errText,
			BlockTime: blockTime.Unix(),
		}
		copy(row.Signature[:], sigBytes)
		copy(row.SourceAddress[:], srcBytes)
		copy(row.DestinationAddress[:], destBytes)
		row.SourceATA = addressOrNil(srcATA)
		row.DestinationATA = addressOrNil(destATA)
		row.MintAddress = addressOrNil(mint)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err, "iterate transfer rows")
	}
	return out, nil
}

func addressOrNil(b []byte) *chaintypes.Address {
	if len(b) == 0 {
		return nil
	}
	var a chaintypes.Address
	copy(a[:], b)
	return &a
}

func joinAnd(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " AND " + c
	}
	return out
}
