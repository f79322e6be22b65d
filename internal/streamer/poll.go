package streamer

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/synnergy-labs/token-indexer/internal/chainclient"
	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
	"github.com/synnergy-labs/token-indexer/internal/parser"
)

const catchUpPoll = 10 * time.Millisecond

// PollStreamer fetches blocks in windows of up to MaxConcurrency in-flight
// requests, sorts each window by slot before emitting, and refreshes the
// chain head when the cursor catches up.
type PollStreamer struct {
	Client        chainclient.PollClient
	Parser        *parser.Parser
	MaxConcurrency int
	// EndSlot, if non-zero, stops the stream once it has been emitted;
	// zero means poll forever.
	EndSlot uint64

	log *zap.SugaredLogger
}

// NewPollStreamer builds a PollStreamer.
func NewPollStreamer(client chainclient.PollClient, p *parser.Parser, maxConcurrency int, log *zap.SugaredLogger) *PollStreamer {
	return &PollStreamer{Client: client, Parser: p, MaxConcurrency: maxConcurrency, log: log}
}

// Stream implements Streamer. fromSlot is the last indexed slot, matching
// the DAO's fetch_last_indexed_slot convention: the first slot fetched is
// fromSlot+1, unless fromSlot==0 in which case fetching starts at slot 0.
func (s *PollStreamer) Stream(ctx context.Context, fromSlot uint64) <-chan chaintypes.BlockInfo {
	out := make(chan chaintypes.BlockInfo)
	go s.run(ctx, fromSlot, out)
	return out
}

func (s *PollStreamer) run(ctx context.Context, fromSlot uint64, out chan<- chaintypes.BlockInfo) {
	defer close(out)

	current := uint64(0)
	if fromSlot != 0 {
		current = fromSlot + 1
	}

	endSlot, err := s.Client.CurrentSlot(ctx)
	if err != nil {
		return // ctx cancelled during the retry loop
	}
	if s.EndSlot != 0 {
		endSlot = s.EndSlot
	}

	for {
		if ctx.Err() != nil {
			return
		}

		for current > endSlot {
			if s.EndSlot != 0 {
				return
			}
			refreshed, err := s.Client.CurrentSlot(ctx)
			if err != nil {
				return
			}
			endSlot = refreshed
			if endSlot <= current {
				select {
				case <-ctx.Done():
					return
				case <-time.After(catchUpPoll):
				}
			}
		}

		window := s.fetchWindow(ctx, current, endSlot)
		if ctx.Err() != nil {
			return
		}
		current += uint64(s.windowSize(current, endSlot))

		sort.Slice(window, func(i, j int) bool { return window[i].Metadata.Slot < window[j].Metadata.Slot })
		for _, b := range window {
			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *PollStreamer) windowSize(current, endSlot uint64) int {
	n := s.MaxConcurrency
	if uint64(n) > endSlot-current+1 {
		n = int(endSlot - current + 1)
	}
	if n < 1 {
		n = 1
	}
	return n
}

// fetchWindow concurrently fetches up to MaxConcurrency slots starting at
// current, skipping slots the chain reports as skipped. Each slot's fetch
// runs under an errgroup goroutine so the window completes as soon as its
// slowest member does, bounded to MaxConcurrency in-flight requests.
func (s *PollStreamer) fetchWindow(ctx context.Context, current, endSlot uint64) []chaintypes.BlockInfo {
	n := s.windowSize(current, endSlot)

	type slot struct {
		block chaintypes.BlockInfo
		ok    bool
	}
	slots := make([]slot, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		slotNum := current + uint64(i)
		g.Go(func() error {
			raw, err := s.Client.GetBlock(gctx, slotNum)
			if err != nil {
				return nil // GetBlock already retries; a nil here just drops this slot
			}
			block, perr := s.Parser.ParseBlock(slotNum, raw)
			if perr != nil {
				if s.log != nil {
					s.log.Warnw("dropping unparsable block", "slot", slotNum, "error", perr)
				}
				return nil
			}
			slots[i] = slot{block: block, ok: true}
			return nil
		})
	}
	_ = g.Wait() // handlers never return a non-nil error; ctx cancellation is observed via gctx

	out := make([]chaintypes.BlockInfo, 0, n)
	for _, s := range slots {
		if s.ok {
			out = append(out, s.block)
		}
	}
	return out
}
