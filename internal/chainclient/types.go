// Package chainclient talks to the upstream chain node: a polling JSON-RPC
// client and a push (websocket) subscription client, both satisfying the
// same narrow interface the streamer depends on.
package chainclient

import "encoding/json"

// SkippedBlockErrors are the JSON-RPC error codes the poll path treats as
// "this slot was skipped, move on" rather than a fetch failure.
var SkippedBlockErrors = map[int]bool{
	-32007: true,
	-32009: true,
}

// RawBlock is the subset of a getBlock RPC response the parser needs,
// shaped after UiConfirmedBlock in the upstream chain's JSON-RPC schema.
type RawBlock struct {
	ParentSlot        uint64                    `json:"parentSlot"`
	BlockTime         *int64                    `json:"blockTime"`
	BlockHeight       *uint64                   `json:"blockHeight"`
	Blockhash         string                    `json:"blockhash"`
	PreviousBlockhash string                    `json:"previousBlockhash"`
	Transactions      []RawEncodedTransaction   `json:"transactions"`
}

// RawEncodedTransaction is one transaction entry inside RawBlock.
type RawEncodedTransaction struct {
	Transaction RawVersionedTransaction `json:"transaction"`
	Meta        *RawMeta                `json:"meta"`
}

// RawVersionedTransaction is the decoded (non-base64) transaction envelope.
type RawVersionedTransaction struct {
	Signatures []string   `json:"signatures"`
	Message    RawMessage `json:"message"`
}

// RawMessage holds the account table and instruction list of a transaction.
type RawMessage struct {
	AccountKeys         []string                `json:"accountKeys"`
	Instructions        []RawInstruction        `json:"instructions"`
	AddressTableLookups []RawAddressTableLookup `json:"addressTableLookups"`
}

// RawInstruction is one top-level (outer) compiled instruction.
type RawInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"` // base58
}

// RawAddressTableLookup signals that the message loads extra accounts via an
// address-lookup table; the resolved addresses arrive in RawMeta.LoadedAddresses.
type RawAddressTableLookup struct {
	AccountKey string `json:"accountKey"`
}

// RawMeta is the transaction status metadata.
type RawMeta struct {
	Err               json.RawMessage          `json:"err"`
	PostTokenBalances []RawTokenBalance        `json:"postTokenBalances"`
	InnerInstructions []RawInnerInstructionSet `json:"innerInstructions"`
	LoadedAddresses   *RawLoadedAddresses       `json:"loadedAddresses"`
}

// RawTokenBalance is one entry of meta.postTokenBalances.
type RawTokenBalance struct {
	Mint string `json:"mint"`
}

// RawLoadedAddresses are the accounts resolved from address-lookup tables.
type RawLoadedAddresses struct {
	Writable []string `json:"writable"`
	Readonly []string `json:"readonly"`
}

// RawInnerInstructionSet groups the inner instructions invoked by the outer
// instruction at Index.
type RawInnerInstructionSet struct {
	Index        int                   `json:"index"`
	Instructions []RawInnerInstruction `json:"instructions"`
}

// RawInnerInstruction is either a "compiled" instruction (ProgramIDIndex set)
// or a "parsed" one (Parsed set, ProgramIDIndex absent) — the policy for
// handling parsed/out-of-bounds inner instructions is applied by the parser.
type RawInnerInstruction struct {
	ProgramIDIndex *int            `json:"programIdIndex,omitempty"`
	Accounts       []int           `json:"accounts,omitempty"`
	Data           string          `json:"data,omitempty"`
	Parsed         json.RawMessage `json:"parsed,omitempty"`
}

// IsParsed reports whether this is a "parsed" (uncompiled) instruction
// variant, which this indexer does not decode.
func (r RawInnerInstruction) IsParsed() bool {
	return r.ProgramIDIndex == nil
}
