// Package streamer produces an ordered, gap-tolerant sequence of parsed
// blocks from slot S onward, either by polling or by a push subscription
// with automatic poll-fallback on a detected gap.
package streamer

import (
	"context"

	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
)

// Streamer yields BlockInfo values on a channel until ctx is cancelled, at
// which point the channel is closed.
type Streamer interface {
	Stream(ctx context.Context, fromSlot uint64) <-chan chaintypes.BlockInfo
}
