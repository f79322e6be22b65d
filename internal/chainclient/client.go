package chainclient

import (
	"context"
	"time"
)

// ConnectTimeout and RequestTimeout bound every outbound chain RPC call.
const (
	ConnectTimeout = 10 * time.Second
	RequestTimeout = 10 * time.Second

	// GRPCMaxMessageBytes is the decode limit applied to push-stream frames.
	GRPCMaxMessageBytes = 8 << 20 // 8 MiB

	blockFetchBackoff    = time.Second
	headSlotBackoff      = 5 * time.Second
	genesisHashBackoff   = 5 * time.Second
)

// SkippedBlockError reports that a requested slot was skipped by the chain
// (not a transient fetch failure) and should not be retried.
type SkippedBlockError struct {
	Slot uint64
	Code int
}

func (e *SkippedBlockError) Error() string {
	return "chainclient: skipped block"
}

// PollClient is the narrow interface the poll-mode streamer depends on.
type PollClient interface {
	// GetBlock fetches one confirmed block. It retries internally on
	// transient errors; only SkippedBlockError, a failure to decode the
	// block payload, and context cancellation are returned to the caller.
	GetBlock(ctx context.Context, slot uint64) (RawBlock, error)
	// CurrentSlot retries internally with a 5s backoff until it succeeds or
	// ctx is cancelled.
	CurrentSlot(ctx context.Context) (uint64, error)
	// GenesisHash retries internally with a 5s backoff.
	GenesisHash(ctx context.Context) (string, error)
}

// PushClient is the narrow interface the push-mode streamer depends on.
type PushClient interface {
	// Subscribe opens a push subscription starting at fromSlot and returns a
	// channel of blocks in receive order. The channel is closed when ctx is
	// cancelled or the connection is permanently lost.
	Subscribe(ctx context.Context, fromSlot uint64) (<-chan RawBlockEvent, error)
}

// RawBlockEvent is one message delivered over a push subscription: either a
// block, or a transient error worth logging (ping/pong is handled internally
// and never surfaces here).
type RawBlockEvent struct {
	Slot  uint64
	Block RawBlock
	Err   error
}
