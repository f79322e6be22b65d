package chaintypes

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
)

// SPLAssociatedTokenProgramID is the well-known Associated Token Account
// program. Addresses below are decoded once at package init from their
// base58 form for readability at the call site.
var (
	SPLAssociatedTokenProgramID = mustBase58Address("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	SPLTokenProgramID           = mustBase58Address("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	SPLToken2022ProgramID       = mustBase58Address("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

func mustBase58Address(s string) Address {
	addr, err := DecodeAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// pdaMarker is the suffix Solana's program-derived-address algorithm
// appends to rule out valid ed25519 points.
var pdaMarker = []byte("ProgramDerivedAddress")

// ErrNoValidSeed is returned when no bump value in [0, 255] produces an
// off-curve candidate — astronomically unlikely for real inputs but kept as
// an explicit error rather than a panic.
var ErrNoValidSeed = errors.New("chaintypes: no valid program address seed found")

// FindAssociatedTokenAddress derives the associated-token-account PDA for
// (owner, mint) under the given token program, matching Solana's
// find_program_address([owner, token_program, mint], associated_token_program).
func FindAssociatedTokenAddress(owner, mint, tokenProgramID Address) (Address, error) {
	seeds := [][]byte{owner[:], tokenProgramID[:], mint[:]}
	return findProgramAddress(seeds, SPLAssociatedTokenProgramID)
}

func findProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, s := range seeds {
			h.Write(s)
		}
		h.Write([]byte{byte(bump)})
		h.Write(programID[:])
		h.Write(pdaMarker)
		sum := h.Sum(nil)
		if !isOnCurve(sum) {
			var out Address
			copy(out[:], sum)
			return out, nil
		}
	}
	return Address{}, ErrNoValidSeed
}

// isOnCurve reports whether b decodes as a valid compressed Edwards point,
// the same curve-membership test Pubkey::find_program_address performs via
// curve25519-dalek's point decompression. find_program_address wants the
// first bump whose derived bytes do NOT land on the curve, so
// edwards25519.Point.SetBytes succeeding here means the candidate must be
// rejected and the search keeps going.
func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
