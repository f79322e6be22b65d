package streamer

import (
	"context"

	"go.uber.org/zap"

	"github.com/synnergy-labs/token-indexer/internal/chainclient"
	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
	"github.com/synnergy-labs/token-indexer/internal/parser"
)

// ComposedStreamer runs the push subscription as the primary source and
// falls back to a bounded poll streamer whenever a parent-slot continuity
// gap is detected: the polled blocks of the gap are emitted first, then the
// pushed block that revealed the gap, and the stream returns to push-only.
// Polled and pushed blocks are not interleaved. State machine:
// Push-only -> Gap-detected -> Poll gap-fill (push paused) -> Push-only.
//
// The push subscription keeps running as its own goroutine throughout: while
// a gap is being filled, this streamer simply does not read from the push
// channel, so any pushed frame that arrives meanwhile sits in the (blocked)
// send until the poll drains and push-only reading resumes — concurrency
// without a second consumer racing the single push channel.
type ComposedStreamer struct {
	Push           *PushStreamer
	PollClient     chainclient.PollClient
	Parser         *parser.Parser
	MaxConcurrency int
	// IndexRecent disables the continuity check: every pushed block is
	// emitted regardless of parent_slot, useful for tail-following a live
	// head when historical gaps are acceptable.
	IndexRecent bool

	log *zap.SugaredLogger
}

// NewComposedStreamer builds a ComposedStreamer.
func NewComposedStreamer(push *PushStreamer, pollClient chainclient.PollClient, p *parser.Parser, maxConcurrency int, indexRecent bool, log *zap.SugaredLogger) *ComposedStreamer {
	return &ComposedStreamer{
		Push:           push,
		PollClient:     pollClient,
		Parser:         p,
		MaxConcurrency: maxConcurrency,
		IndexRecent:    indexRecent,
		log:            log,
	}
}

// Stream implements Streamer.
func (s *ComposedStreamer) Stream(ctx context.Context, fromSlot uint64) <-chan chaintypes.BlockInfo {
	out := make(chan chaintypes.BlockInfo)
	go s.run(ctx, fromSlot, out)
	return out
}

func (s *ComposedStreamer) run(ctx context.Context, fromSlot uint64, out chan<- chaintypes.BlockInfo) {
	defer close(out)

	last := fromSlot
	pushCh := s.Push.Stream(ctx, fromSlot)

	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-pushCh:
			if !ok {
				return
			}
			if !s.handlePushed(ctx, out, block, &last) {
				return
			}
		}
	}
}

// handlePushed applies the continuity check to one pushed block. On a gap it
// drains a bounded poll streamer covering [last+1 .. block.Slot-1] before
// emitting the triggering block itself.
func (s *ComposedStreamer) handlePushed(ctx context.Context, out chan<- chaintypes.BlockInfo, block chaintypes.BlockInfo, last *uint64) bool {
	if s.IndexRecent || *last == 0 || block.Metadata.ParentSlot == *last {
		if !emit(ctx, out, block) {
			return false
		}
		*last = block.Metadata.Slot
		return true
	}

	if s.log != nil {
		s.log.Warnw("continuity gap detected, falling back to poll", "last_indexed_slot", *last, "pushed_parent_slot", block.Metadata.ParentSlot, "pushed_slot", block.Metadata.Slot)
	}

	gapStart := *last + 1
	gapEnd := block.Metadata.Slot - 1

	if gapEnd >= gapStart {
		poller := &PollStreamer{
			Client:         s.PollClient,
			Parser:         s.Parser,
			MaxConcurrency: s.MaxConcurrency,
			EndSlot:        gapEnd,
		}
		pollCh := poller.Stream(ctx, gapStart-1)
		for b := range pollCh {
			if !emit(ctx, out, b) {
				return false
			}
			*last = b.Metadata.Slot
		}
		if ctx.Err() != nil {
			return false
		}
	}

	if !emit(ctx, out, block) {
		return false
	}
	*last = block.Metadata.Slot
	return true
}

func emit(ctx context.Context, out chan<- chaintypes.BlockInfo, b chaintypes.BlockInfo) bool {
	select {
	case out <- b:
		return true
	case <-ctx.Done():
		return false
	}
}
