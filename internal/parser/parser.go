// Package parser turns a raw confirmed block into the domain BlockInfo,
// extracting SPL-Token / SPL-Token-2022 transfer instruction groups.
// Grounded on the upstream chain's original parser: outer instructions with
// an out-of-range program-id or account index fail the whole block (the
// block is simply malformed); inner instructions with an out-of-range index,
// or that arrive as an unsupported "parsed" shape, are logged and skipped so
// one bad inner instruction does not discard an otherwise good transfer.
package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/synnergy-labs/token-indexer/internal/chainclient"
	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
	"github.com/synnergy-labs/token-indexer/internal/errs"
	"github.com/synnergy-labs/token-indexer/internal/metrics"
)

func decodeBase58(s string) ([]byte, error) {
	return base58.Decode(s)
}

const (
	splTokenTagTransfer        = 3
	splTokenTagTransferChecked = 12
)

// Parser extracts transfer instruction groups from raw blocks.
type Parser struct {
	log *zap.SugaredLogger
}

// New builds a Parser that logs skipped inner instructions via log.
func New(log *zap.SugaredLogger) *Parser {
	return &Parser{log: log}
}

// ParseBlock converts a RawBlock at the given slot into a BlockInfo,
// dropping transactions that carry no transfer instruction groups.
func (p *Parser) ParseBlock(slot uint64, raw chainclient.RawBlock) (chaintypes.BlockInfo, error) {
	if raw.BlockTime == nil {
		return chaintypes.BlockInfo{}, errs.New(errs.KindParse, "missing block_time")
	}
	if raw.BlockHeight == nil {
		return chaintypes.BlockInfo{}, errs.New(errs.KindParse, "missing block_height")
	}

	var txs []chaintypes.Transaction
	for i, rawTx := range raw.Transactions {
		tx, err := p.parseTransaction(rawTx, slot, *raw.BlockTime)
		if err != nil {
			return chaintypes.BlockInfo{}, errs.Wrap(errs.KindParse, err, fmt.Sprintf("transaction %d of slot %d", i, slot))
		}
		if tx != nil {
			txs = append(txs, *tx)
		}
	}

	parentHash := raw.PreviousBlockhash

	return chaintypes.BlockInfo{
		Metadata: chaintypes.BlockMetadata{
			Slot:            slot,
			ParentSlot:      raw.ParentSlot,
			BlockTime:       *raw.BlockTime,
			BlockHash:       raw.Blockhash,
			ParentBlockHash: parentHash,
			BlockHeight:     *raw.BlockHeight,
		},
		Transactions: txs,
	}, nil
}

func (p *Parser) parseTransaction(rawTx chainclient.RawEncodedTransaction, slot uint64, blockTime int64) (*chaintypes.Transaction, error) {
	if rawTx.Meta == nil {
		return nil, errs.New(errs.KindParse, "missing transaction metadata")
	}
	if len(rawTx.Transaction.Signatures) == 0 {
		return nil, errs.New(errs.KindParse, "transaction has no signatures")
	}

	sig, err := chaintypes.DecodeSignature(rawTx.Transaction.Signatures[0])
	if err != nil {
		return nil, errs.Wrap(errs.KindParse, err, "decode signature")
	}

	var txErr *string
	if len(rawTx.Meta.Err) > 0 && string(rawTx.Meta.Err) != "null" {
		s := string(rawTx.Meta.Err)
		txErr = &s
	}

	groups, err := p.parseInstructionGroups(rawTx.Transaction.Message, *rawTx.Meta)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}

	return &chaintypes.Transaction{
		Signature:         sig,
		Slot:              slot,
		BlockTime:         blockTime,
		Error:             txErr,
		InstructionGroups: groups,
	}, nil
}

func (p *Parser) parseInstructionGroups(msg chainclient.RawMessage, meta chainclient.RawMeta) ([]chaintypes.InstructionGroup, error) {
	accounts, err := resolveAccounts(msg, meta)
	if err != nil {
		return nil, err
	}

	var groups []chaintypes.InstructionGroup

	for _, ix := range msg.Instructions {
		if ix.ProgramIDIndex >= len(accounts) {
			return nil, errs.New(errs.KindParse, "program id index out of bounds")
		}
		programID := accounts[ix.ProgramIDIndex]

		// Every outer instruction's accounts are resolved and range-checked
		// before program ownership is even considered: a malformed account
		// table makes the whole transaction malformed, regardless of which
		// program the bad instruction happens to target.
		outerAccounts, err := resolveIndices(accounts, ix.Accounts)
		if err != nil {
			return nil, errs.Wrap(errs.KindParse, err, "outer instruction accounts")
		}

		if !isTokenProgram(programID) {
			continue
		}
		if len(outerAccounts) < 2 {
			continue
		}

		data, err := decodeBase58(ix.Data)
		if err != nil {
			return nil, errs.Wrap(errs.KindParse, err, "decode instruction data")
		}

		amount, ok := decodeTransferAmount(data)
		if !ok {
			continue
		}

		mint, err := resolveMint(meta)
		if err != nil {
			return nil, err
		}

		srcATA, _ := chaintypes.FindAssociatedTokenAddress(outerAccounts[0], mint, programID)
		destATA, _ := chaintypes.FindAssociatedTokenAddress(outerAccounts[1], mint, programID)

		outer := chaintypes.Instruction{
			ProgramID:          programID,
			Data:               data,
			Accounts:           outerAccounts,
			SourceAddress:      outerAccounts[0],
			DestinationAddress: outerAccounts[1],
			SourceATA:          &srcATA,
			DestinationATA:     &destATA,
			Mint:               &mint,
			Amount:             amount,
		}

		inner := p.parseInnerInstructions(accounts, meta)

		groups = append(groups, chaintypes.InstructionGroup{
			Outer:     outer,
			Inner:     inner,
			TokenType: tokenTypeFor(programID),
		})
	}

	return groups, nil
}

// parseInnerInstructions walks meta.innerInstructions, applying the
// log-and-skip policy to malformed or unsupported entries.
func (p *Parser) parseInnerInstructions(accounts []chaintypes.Address, meta chainclient.RawMeta) []chaintypes.Instruction {
	var inner []chaintypes.Instruction

	for _, set := range meta.InnerInstructions {
		for _, ui := range set.Instructions {
			if ui.IsParsed() {
				p.skip("inner instruction is a parsed (uncompiled) shape, not supported")
				continue
			}
			idx := *ui.ProgramIDIndex
			if idx >= len(accounts) {
				p.skip("inner program id index out of bounds")
				continue
			}
			innerProgramID := accounts[idx]
			if !isTokenProgram(innerProgramID) {
				continue
			}

			innerAccounts, err := resolveIndices(accounts, ui.Accounts)
			if err != nil {
				p.skip("inner account index out of bounds")
				continue
			}
			if len(innerAccounts) < 2 {
				continue
			}

			data, err := decodeBase58(ui.Data)
			if err != nil {
				p.skip("inner instruction data is not valid base58")
				continue
			}

			amount, ok := decodeTransferAmount(data)
			if !ok {
				continue
			}

			inner = append(inner, chaintypes.Instruction{
				ProgramID:          innerProgramID,
				Data:               data,
				Accounts:           innerAccounts,
				SourceAddress:      innerAccounts[0],
				DestinationAddress: innerAccounts[1],
				Amount:             amount,
			})
		}
	}

	return inner
}

func (p *Parser) skip(reason string) {
	metrics.Incr("parser.inner_instruction_skipped")
	if p.log != nil {
		p.log.Debugw("skipping inner instruction", "reason", reason)
	}
}

func resolveAccounts(msg chainclient.RawMessage, meta chainclient.RawMeta) ([]chaintypes.Address, error) {
	accounts := make([]chaintypes.Address, 0, len(msg.AccountKeys))
	for _, s := range msg.AccountKeys {
		addr, err := chaintypes.DecodeAddress(s)
		if err != nil {
			return nil, errs.Wrap(errs.KindParse, err, "decode account key")
		}
		accounts = append(accounts, addr)
	}

	if len(msg.AddressTableLookups) > 0 && meta.LoadedAddresses != nil {
		for _, s := range meta.LoadedAddresses.Writable {
			addr, err := chaintypes.DecodeAddress(s)
			if err != nil {
				return nil, errs.Wrap(errs.KindParse, err, "decode loaded writable address")
			}
			accounts = append(accounts, addr)
		}
		for _, s := range meta.LoadedAddresses.Readonly {
			addr, err := chaintypes.DecodeAddress(s)
			if err != nil {
				return nil, errs.Wrap(errs.KindParse, err, "decode loaded readonly address")
			}
			accounts = append(accounts, addr)
		}
	}

	return accounts, nil
}

func resolveIndices(accounts []chaintypes.Address, indices []int) ([]chaintypes.Address, error) {
	out := make([]chaintypes.Address, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(accounts) {
			return nil, errs.New(errs.KindParse, "account index out of bounds")
		}
		out = append(out, accounts[idx])
	}
	return out, nil
}

func isTokenProgram(addr chaintypes.Address) bool {
	return addr == chaintypes.SPLTokenProgramID || addr == chaintypes.SPLToken2022ProgramID
}

func tokenTypeFor(addr chaintypes.Address) chaintypes.TokenType {
	if addr == chaintypes.SPLToken2022ProgramID {
		return chaintypes.TokenTypeSPLToken2022
	}
	return chaintypes.TokenTypeSPLToken
}

// decodeTransferAmount recognizes the SPL Token Transfer (tag 3) and
// TransferChecked (tag 12) instruction layouts; any other instruction
// (InitializeMint, Approve, MintTo, ...) is not a transfer and is ignored.
func decodeTransferAmount(data []byte) (uint64, bool) {
	if len(data) < 1 {
		return 0, false
	}
	switch data[0] {
	case splTokenTagTransfer:
		if len(data) < 9 {
			return 0, false
		}
		return binary.LittleEndian.Uint64(data[1:9]), true
	case splTokenTagTransferChecked:
		if len(data) < 9 {
			return 0, false
		}
		return binary.LittleEndian.Uint64(data[1:9]), true
	default:
		return 0, false
	}
}

func resolveMint(meta chainclient.RawMeta) (chaintypes.Address, error) {
	if len(meta.PostTokenBalances) == 0 {
		return chaintypes.Address{}, errs.New(errs.KindParse, "post token balances are missing")
	}
	return chaintypes.DecodeAddress(meta.PostTokenBalances[0].Mint)
}
