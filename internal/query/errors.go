package query

import "github.com/synnergy-labs/token-indexer/internal/errs"

// The validation taxonomy callers of the Query API must distinguish, each
// carrying errs.KindValidation plus a distinct sub-code so the RPC surface
// can map every validation failure to its own JSON-RPC error code instead of
// collapsing them all into one.
const (
	CodePubkeyValidation = iota + 1
	CodeInvalidInput
	CodePaginationExceeded
	CodePaginationEmpty
	CodePagination
	CodeOffsetLimitExceeded
	CodeInvalidDate
)

// ErrPubkeyValidation means an address string did not decode to a 32-byte account.
func ErrPubkeyValidation(field string) error {
	return errs.NewWithCode(errs.KindValidation, CodePubkeyValidation, "invalid address for field "+field)
}

// ErrInvalidInput means none of source/destination/mint was supplied.
var ErrInvalidInput = errs.NewWithCode(errs.KindValidation, CodeInvalidInput, "at least one of source_address, destination_address, mint_address is required")

// ErrPaginationExceeded means limit > 1000.
var ErrPaginationExceeded = errs.NewWithCode(errs.KindValidation, CodePaginationExceeded, "limit exceeds maximum of 1000")

// ErrPaginationEmpty means page == 0 was explicitly supplied.
var ErrPaginationEmpty = errs.NewWithCode(errs.KindValidation, CodePaginationEmpty, "page must be >= 1")

// ErrPagination means both page and a keyset bound (before/after) were supplied.
var ErrPagination = errs.NewWithCode(errs.KindValidation, CodePagination, "page and before/after are mutually exclusive")

// ErrOffsetLimitExceeded means the computed OFFSET exceeds 500000.
var ErrOffsetLimitExceeded = errs.NewWithCode(errs.KindValidation, CodeOffsetLimitExceeded, "offset exceeds maximum of 500000; use keyset pagination instead")

// ErrInvalidDate means a before/after string did not parse as DD/MM/YYYY.
func ErrInvalidDate(field string) error {
	return errs.NewWithCode(errs.KindValidation, CodeInvalidDate, "invalid date for field "+field+", expected DD/MM/YYYY")
}

// ErrTransactionNotFound is returned by single-item lookups with no match
// (not currently used by the list-returning operations, kept for parity with
// the error taxonomy's NotFound kind).
var ErrTransactionNotFound = errs.New(errs.KindNotFound, "transaction not found")
