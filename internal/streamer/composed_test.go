package streamer

import (
	"context"
	"testing"
	"time"

	"github.com/synnergy-labs/token-indexer/internal/chainclient"
	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
	"github.com/synnergy-labs/token-indexer/internal/parser"
)

// fakePushClient emits a fixed sequence of events over one subscription and
// then blocks until ctx is cancelled, so PushStreamer never needs to
// resubscribe during a test.
type fakePushClient struct {
	events []chainclient.RawBlockEvent
}

func (f *fakePushClient) Subscribe(ctx context.Context, fromSlot uint64) (<-chan chainclient.RawBlockEvent, error) {
	out := make(chan chainclient.RawBlockEvent)
	go func() {
		defer close(out)
		for _, ev := range f.events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return out, nil
}

// fakePollClient answers GetBlock/CurrentSlot from an in-memory slot map.
type fakePollClient struct {
	blocks map[uint64]chainclient.RawBlock
}

func (f *fakePollClient) GetBlock(ctx context.Context, slot uint64) (chainclient.RawBlock, error) {
	b, ok := f.blocks[slot]
	if !ok {
		return chainclient.RawBlock{}, &chainclient.SkippedBlockError{Slot: slot}
	}
	return b, nil
}

func (f *fakePollClient) CurrentSlot(ctx context.Context) (uint64, error) { return 0, nil }
func (f *fakePollClient) GenesisHash(ctx context.Context) (string, error) { return "", nil }

func rawBlockAt(slot, parentSlot uint64) chainclient.RawBlock {
	bt := int64(1700000000) + int64(slot)
	bh := slot
	return chainclient.RawBlock{
		ParentSlot:        parentSlot,
		BlockTime:         &bt,
		BlockHeight:       &bh,
		Blockhash:         "h",
		PreviousBlockhash: "p",
	}
}

func TestComposedStreamerContinuityPassthrough(t *testing.T) {
	push := &fakePushClient{events: []chainclient.RawBlockEvent{
		{Slot: 101, Block: rawBlockAt(101, 100)},
		{Slot: 102, Block: rawBlockAt(102, 101)},
	}}
	poll := &fakePollClient{blocks: map[uint64]chainclient.RawBlock{}}
	p := parser.New(nil)

	pushStreamer := NewPushStreamer(push, p, nil)
	composed := NewComposedStreamer(pushStreamer, poll, p, 4, false, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch := composed.Stream(ctx, 100)

	var got []uint64
	for i := 0; i < 2; i++ {
		select {
		case b := <-ch:
			got = append(got, b.Metadata.Slot)
		case <-ctx.Done():
			t.Fatal("timed out waiting for blocks")
		}
	}
	if len(got) != 2 || got[0] != 101 || got[1] != 102 {
		t.Fatalf("unexpected emitted slots: %v", got)
	}
}

func TestComposedStreamerFillsGapViaPoll(t *testing.T) {
	// Push only emits slot 105 whose parent is 104, but last indexed is 100:
	// a continuity gap of [101..104] must be filled by polling.
	push := &fakePushClient{events: []chainclient.RawBlockEvent{
		{Slot: 105, Block: rawBlockAt(105, 104)},
	}}
	poll := &fakePollClient{blocks: map[uint64]chainclient.RawBlock{
		101: rawBlockAt(101, 100),
		102: rawBlockAt(102, 101),
		103: rawBlockAt(103, 102),
		104: rawBlockAt(104, 103),
	}}
	p := parser.New(nil)

	pushStreamer := NewPushStreamer(push, p, nil)
	composed := NewComposedStreamer(pushStreamer, poll, p, 4, false, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch := composed.Stream(ctx, 100)

	var got []uint64
	for i := 0; i < 5; i++ {
		select {
		case b := <-ch:
			got = append(got, b.Metadata.Slot)
		case <-ctx.Done():
			t.Fatalf("timed out waiting for blocks, got so far: %v", got)
		}
	}
	want := []uint64{101, 102, 103, 104, 105}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("slot %d: got %d, want %d (full: %v)", i, got[i], w, got)
		}
	}
}

func TestComposedStreamerIndexRecentSkipsContinuityCheck(t *testing.T) {
	push := &fakePushClient{events: []chainclient.RawBlockEvent{
		{Slot: 500, Block: rawBlockAt(500, 499)},
	}}
	poll := &fakePollClient{blocks: map[uint64]chainclient.RawBlock{}}
	p := parser.New(nil)

	pushStreamer := NewPushStreamer(push, p, nil)
	composed := NewComposedStreamer(pushStreamer, poll, p, 4, true, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ch := composed.Stream(ctx, 100)

	select {
	case b := <-ch:
		if b.Metadata.Slot != 500 {
			t.Fatalf("expected slot 500, got %d", b.Metadata.Slot)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for block")
	}
}
