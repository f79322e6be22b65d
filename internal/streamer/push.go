package streamer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/synnergy-labs/token-indexer/internal/chainclient"
	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
	"github.com/synnergy-labs/token-indexer/internal/metrics"
	"github.com/synnergy-labs/token-indexer/internal/parser"
)

const resubscribeBackoff = time.Second

// PushStreamer subscribes to the chain's block-push feed and reconnects on
// any transport error after a fixed backoff. Ping/pong keepalive is handled
// inside the chainclient push transport.
type PushStreamer struct {
	Client chainclient.PushClient
	Parser *parser.Parser

	log *zap.SugaredLogger
}

// NewPushStreamer builds a PushStreamer.
func NewPushStreamer(client chainclient.PushClient, p *parser.Parser, log *zap.SugaredLogger) *PushStreamer {
	return &PushStreamer{Client: client, Parser: p, log: log}
}

// Stream implements Streamer.
func (s *PushStreamer) Stream(ctx context.Context, fromSlot uint64) <-chan chaintypes.BlockInfo {
	out := make(chan chaintypes.BlockInfo)
	go s.run(ctx, fromSlot, out)
	return out
}

func (s *PushStreamer) run(ctx context.Context, fromSlot uint64, out chan<- chaintypes.BlockInfo) {
	defer close(out)

	for {
		if ctx.Err() != nil {
			return
		}

		events, err := s.Client.Subscribe(ctx, fromSlot)
		if err != nil {
			metrics.Incr("streamer.push.subscribe_error")
			if s.log != nil {
				s.log.Warnw("push subscribe failed, retrying", "error", err)
			}
			if !sleepOrDone(ctx, resubscribeBackoff) {
				return
			}
			continue
		}

		for ev := range events {
			if ctx.Err() != nil {
				return
			}
			if ev.Err != nil {
				// A read error is followed by the channel closing, which ends
				// this loop and triggers the resubscribe below; a frame decode
				// error leaves the subscription open and only that frame is lost.
				metrics.Incr("streamer.push.transport_error")
				if s.log != nil {
					s.log.Warnw("push subscription error", "error", ev.Err)
				}
				continue
			}
			if ev.Slot == 0 {
				continue // initialization sentinel
			}

			block, perr := s.Parser.ParseBlock(ev.Slot, ev.Block)
			if perr != nil {
				metrics.Incr("streamer.push.parse_error")
				if s.log != nil {
					s.log.Warnw("dropping unparsable pushed block", "slot", ev.Slot, "error", perr)
				}
				continue
			}

			fromSlot = ev.Slot + 1

			select {
			case out <- block:
			case <-ctx.Done():
				return
			}
		}

		if !sleepOrDone(ctx, resubscribeBackoff) {
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
