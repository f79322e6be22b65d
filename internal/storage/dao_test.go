package storage

import (
	"testing"

	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
)

func TestOptionalBytesNil(t *testing.T) {
	if got := optionalBytes(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestOptionalBytesPresent(t *testing.T) {
	var addr chaintypes.Address
	addr[0] = 7
	got := optionalBytes(&addr)
	if len(got) != 32 || got[0] != 7 {
		t.Fatalf("unexpected bytes: %v", got)
	}
}
