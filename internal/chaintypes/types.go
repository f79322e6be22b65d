// Package chaintypes holds the domain entities shared by the parser,
// streamer, writer and storage layers: blocks, instructions, transfers.
package chaintypes

import "fmt"

// MaxSQLInserts bounds the number of rows sent in a single chunk to the
// writer pipeline and, in turn, to a single DB round trip.
const MaxSQLInserts = 5000

// TokenType identifies which SPL token program produced a transfer.
type TokenType string

const (
	TokenTypeSPLToken     TokenType = "spl_token"
	TokenTypeSPLToken2022 TokenType = "spl_token_2022"
)

// Address is a 32-byte account key.
type Address [32]byte

// Signature is a 64-byte transaction signature.
type Signature [64]byte

// Instruction is a single decoded token-transfer instruction, outer or inner.
type Instruction struct {
	ProgramID         Address
	Data              []byte
	Accounts          []Address
	SourceAddress     Address
	DestinationAddress Address
	SourceATA         *Address
	DestinationATA    *Address
	Mint              *Address
	Amount            uint64
}

// InstructionGroup pairs an outer transfer instruction with the inner
// transfer instructions nested under it in the same transaction.
type InstructionGroup struct {
	Outer     Instruction
	Inner     []Instruction
	TokenType TokenType
}

// Transaction is one confirmed transaction's transfer-bearing content.
type Transaction struct {
	Signature         Signature
	Slot              uint64
	BlockTime         int64
	Error             *string
	InstructionGroups []InstructionGroup
}

// Key identifies a Transaction for set-union / dedup purposes. Per
// instruction group, the outer source/destination participate in identity,
// matching the persisted primary key.
type Key struct {
	Signature   Signature
	BlockTime   int64
	Source      Address
	Destination Address
}

// Keys returns the dedup identities contributed by this transaction — one
// per instruction group, since a single signature can carry more than one
// outer transfer.
func (t Transaction) Keys() []Key {
	keys := make([]Key, 0, len(t.InstructionGroups))
	for _, g := range t.InstructionGroups {
		keys = append(keys, Key{
			Signature:   t.Signature,
			BlockTime:   t.BlockTime,
			Source:      g.Outer.SourceAddress,
			Destination: g.Outer.DestinationAddress,
		})
	}
	return keys
}

// BlockMetadata is the header of a confirmed block.
type BlockMetadata struct {
	Slot             uint64
	ParentSlot       uint64
	BlockTime        int64
	BlockHash        string
	ParentBlockHash  string
	BlockHeight      uint64
}

// BlockInfo is a fully parsed block: metadata plus the transactions that
// carried at least one transfer instruction group.
type BlockInfo struct {
	Metadata     BlockMetadata
	Transactions []Transaction
}

// StateUpdate is the pipeline's transport unit between parser and writer: a
// set of Transactions, keyed by Key so the union of many StateUpdates is
// their deduplicated set union.
type StateUpdate struct {
	byKey map[Key]Transaction
}

// NewStateUpdate returns an empty StateUpdate.
func NewStateUpdate() StateUpdate {
	return StateUpdate{byKey: make(map[Key]Transaction)}
}

// Add inserts a transaction's groups into the set, keyed per-group.
func (s *StateUpdate) Add(tx Transaction) {
	if s.byKey == nil {
		s.byKey = make(map[Key]Transaction)
	}
	for _, k := range tx.Keys() {
		s.byKey[k] = tx
	}
}

// Transactions returns the deduplicated transactions in the update. Order is
// unspecified — callers that need determinism should sort by Signature.
func (s StateUpdate) Transactions() []Transaction {
	seen := make(map[Signature]struct{}, len(s.byKey))
	out := make([]Transaction, 0, len(s.byKey))
	for _, tx := range s.byKey {
		if _, ok := seen[tx.Signature]; ok {
			continue
		}
		seen[tx.Signature] = struct{}{}
		out = append(out, tx)
	}
	return out
}

// Len reports the number of distinct dedup keys in the update (one per
// instruction group: signature, block time, source, destination).
func (s StateUpdate) Len() int { return len(s.byKey) }

// MergeStateUpdates unions any number of StateUpdates. The result is
// associative, commutative and idempotent because it is built from plain map
// insertion keyed by Key.
func MergeStateUpdates(updates ...StateUpdate) StateUpdate {
	merged := NewStateUpdate()
	for _, u := range updates {
		for k, tx := range u.byKey {
			merged.byKey[k] = tx
		}
	}
	return merged
}

// TransferRow is the flattened, persisted shape of (Transaction x
// InstructionGroup.Outer).
type TransferRow struct {
	Signature          Signature
	SourceAddress      Address
	DestinationAddress Address
	SourceATA          *Address
	DestinationATA     *Address
	MintAddress        *Address
	TokenType          TokenType
	Slot               uint64
	Amount             uint64
	Error              *string
	BlockTime          int64
}

// Rows flattens a Transaction's instruction groups into persisted rows.
func (t Transaction) Rows() []TransferRow {
	rows := make([]TransferRow, 0, len(t.InstructionGroups))
	for _, g := range t.InstructionGroups {
		rows = append(rows, TransferRow{
			Signature:          t.Signature,
			SourceAddress:      g.Outer.SourceAddress,
			DestinationAddress: g.Outer.DestinationAddress,
			SourceATA:          g.Outer.SourceATA,
			DestinationATA:     g.Outer.DestinationATA,
			MintAddress:        g.Outer.Mint,
			TokenType:          g.TokenType,
			Slot:               t.Slot,
			Amount:             g.Outer.Amount,
			Error:              t.Error,
			BlockTime:          t.BlockTime,
		})
	}
	return rows
}

func (i Instruction) String() string {
	return fmt.Sprintf("Instruction{program_id: %x}", i.ProgramID)
}

func (g InstructionGroup) String() string {
	return fmt.Sprintf("InstructionGroup{outer: %s, inner: %d}", g.Outer, len(g.Inner))
}
