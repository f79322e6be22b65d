package parser

import (
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"

	"github.com/synnergy-labs/token-indexer/internal/chainclient"
	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
)

func transferData(amount uint64) string {
	buf := make([]byte, 9)
	buf[0] = splTokenTagTransfer
	binary.LittleEndian.PutUint64(buf[1:], amount)
	return base58.Encode(buf)
}

func sig(b byte) string {
	var s [64]byte
	s[0] = b
	return base58.Encode(s[:])
}

func acct(b byte) string {
	var a [32]byte
	a[0] = b
	return base58.Encode(a[:])
}

func validBlock(t *testing.T) chainclient.RawBlock {
	t.Helper()
	blockTime := int64(1700000000)
	blockHeight := uint64(42)
	return chainclient.RawBlock{
		ParentSlot:        99,
		BlockTime:         &blockTime,
		BlockHeight:       &blockHeight,
		Blockhash:         "hash",
		PreviousBlockhash: "parenthash",
		Transactions: []chainclient.RawEncodedTransaction{
			{
				Transaction: chainclient.RawVersionedTransaction{
					Signatures: []string{sig(1)},
					Message: chainclient.RawMessage{
						AccountKeys: []string{
							acct(10), // src
							acct(20), // dest
							chaintypes.SPLTokenProgramID.String(),
						},
						Instructions: []chainclient.RawInstruction{
							{ProgramIDIndex: 2, Accounts: []int{0, 1}, Data: transferData(500)},
						},
					},
				},
				Meta: &chainclient.RawMeta{
					PostTokenBalances: []chainclient.RawTokenBalance{{Mint: acct(30)}},
				},
			},
		},
	}
}

func TestParseBlockExtractsTransfer(t *testing.T) {
	p := New(nil)
	info, err := p.ParseBlock(100, validBlock(t))
	if err != nil {
		t.Fatalf("ParseBlock: %v", err)
	}
	if info.Metadata.Slot != 100 || info.Metadata.ParentSlot != 99 {
		t.Fatalf("unexpected metadata: %+v", info.Metadata)
	}
	if len(info.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(info.Transactions))
	}
	tx := info.Transactions[0]
	if len(tx.InstructionGroups) != 1 {
		t.Fatalf("expected 1 instruction group, got %d", len(tx.InstructionGroups))
	}
	g := tx.InstructionGroups[0]
	if g.Outer.Amount != 500 {
		t.Fatalf("expected amount 500, got %d", g.Outer.Amount)
	}
	if g.TokenType != chaintypes.TokenTypeSPLToken {
		t.Fatalf("expected spl_token, got %s", g.TokenType)
	}
}

func TestParseBlockMissingBlockTime(t *testing.T) {
	p := New(nil)
	blk := validBlock(t)
	blk.BlockTime = nil
	if _, err := p.ParseBlock(100, blk); err == nil {
		t.Fatal("expected error for missing block_time")
	}
}

func TestParseBlockDropsNonTransferTransactions(t *testing.T) {
	p := New(nil)
	blk := validBlock(t)
	blk.Transactions[0].Transaction.Message.Instructions[0].ProgramIDIndex = 1 // not the token program
	info, err := p.ParseBlock(100, blk)
	if err != nil {
		t.Fatalf("ParseBlock: %v", err)
	}
	if len(info.Transactions) != 0 {
		t.Fatalf("expected transaction to be dropped, got %d", len(info.Transactions))
	}
}

func TestParseBlockOuterProgramIndexOutOfBounds(t *testing.T) {
	p := New(nil)
	blk := validBlock(t)
	blk.Transactions[0].Transaction.Message.Instructions[0].ProgramIDIndex = 99
	if _, err := p.ParseBlock(100, blk); err == nil {
		t.Fatal("expected error for out-of-bounds program id index")
	}
}

func TestParseBlockNonTokenInstructionOutOfBoundsAccountIsFatal(t *testing.T) {
	p := New(nil)
	blk := validBlock(t)
	// Point at the non-token account (index 1) and give it an account index
	// that doesn't exist. Even though this instruction isn't a token
	// transfer, its account table must still be validated before ownership
	// is checked.
	blk.Transactions[0].Transaction.Message.Instructions[0].ProgramIDIndex = 1
	blk.Transactions[0].Transaction.Message.Instructions[0].Accounts = []int{0, 99}
	if _, err := p.ParseBlock(100, blk); err == nil {
		t.Fatal("expected error for out-of-bounds account index on a non-token instruction")
	}
}

func TestParseBlockSkipsMalformedInnerInstruction(t *testing.T) {
	p := New(nil)
	blk := validBlock(t)
	badIdx := 99
	blk.Transactions[0].Meta.InnerInstructions = []chainclient.RawInnerInstructionSet{
		{
			Index: 0,
			Instructions: []chainclient.RawInnerInstruction{
				{ProgramIDIndex: &badIdx, Accounts: []int{0, 1}, Data: transferData(1)},
			},
		},
	}
	info, err := p.ParseBlock(100, blk)
	if err != nil {
		t.Fatalf("ParseBlock should not fail on malformed inner instruction: %v", err)
	}
	if len(info.Transactions) != 1 {
		t.Fatalf("expected outer transfer to survive, got %d transactions", len(info.Transactions))
	}
	if len(info.Transactions[0].InstructionGroups[0].Inner) != 0 {
		t.Fatalf("expected malformed inner instruction to be skipped")
	}
}
