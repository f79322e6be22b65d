// Package query implements the Query API: input validation, pagination
// composition, and filtered reads against the Storage DAO.
package query

import (
	"context"

	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
	"github.com/synnergy-labs/token-indexer/internal/storage"
)

// DAO is the narrow storage interface the Query API depends on.
type DAO interface {
	Readiness(ctx context.Context) error
	QueryTransfers(ctx context.Context, filter storage.TransferFilter, sortCol storage.SortColumn, dir storage.SortDirection, limit uint64, keyset *storage.KeysetWindow, page *storage.PageWindow) ([]chaintypes.TransferRow, error)
}

// API implements liveness/readiness/get_transactions_by_address/get_transactions_by_mint.
type API struct {
	dao DAO
}

// New builds an API backed by dao.
func New(dao DAO) *API {
	return &API{dao: dao}
}

// Liveness always succeeds.
func (a *API) Liveness(ctx context.Context) error {
	return nil
}

// Readiness executes SELECT 1 against the pool.
func (a *API) Readiness(ctx context.Context) error {
	return a.dao.Readiness(ctx)
}

// Transaction is the API-facing shape of one transfer row, base58-encoded at
// this boundary.
type Transaction struct {
	Signature          string  `json:"signature"`
	SourceAddress       string  `json:"sourceAddress"`
	DestinationAddress  string  `json:"destinationAddress"`
	SourceATA           *string `json:"sourceAta,omitempty"`
	DestinationATA      *string `json:"destinationAta,omitempty"`
	MintAddress         *string `json:"mintAddress,omitempty"`
	TokenType           string  `json:"tokenType"`
	Slot                uint64  `json:"slot"`
	Amount              uint64  `json:"amount"`
	Error               *string `json:"error,omitempty"`
	BlockTime           int64   `json:"blockTime"`
}

func toAPITransaction(r chaintypes.TransferRow) Transaction {
	t := Transaction{
		Signature:          r.Signature.String(),
		SourceAddress:      r.SourceAddress.String(),
		DestinationAddress: r.DestinationAddress.String(),
		TokenType:          string(r.TokenType),
		Slot:               r.Slot,
		Amount:             r.Amount,
		Error:              r.Error,
		BlockTime:          r.BlockTime,
	}
	if r.SourceATA != nil {
		s := r.SourceATA.String()
		t.SourceATA = &s
	}
	if r.DestinationATA != nil {
		s := r.DestinationATA.String()
		t.DestinationATA = &s
	}
	if r.MintAddress != nil {
		s := r.MintAddress.String()
		t.MintAddress = &s
	}
	return t
}

// TransactionList is the paginated result envelope. It includes exactly the
// pagination fields that were used to produce it.
type TransactionList struct {
	Total int           `json:"total"`
	Limit uint64        `json:"limit"`
	Page  *uint64       `json:"page,omitempty"`
	Before *string      `json:"before,omitempty"`
	After  *string      `json:"after,omitempty"`
	Items  []Transaction `json:"items"`
}

// TransactionsByAddressRequest is the get_transactions_by_address payload.
type TransactionsByAddressRequest struct {
	SourceAddress      *string
	DestinationAddress *string
	MintAddress        *string
	SortBy             *SortBy
	SortDirection      *SortDirection
	Limit              *uint64
	Page               *uint64
	Before             *string
	After              *string
}

// GetTransactionsByAddress filters on any non-empty subset of
// {source_address, destination_address, mint_address}; at least one MUST be
// present.
func (a *API) GetTransactionsByAddress(ctx context.Context, req TransactionsByAddressRequest) (TransactionList, error) {
	if req.SourceAddress == nil && req.DestinationAddress == nil && req.MintAddress == nil {
		return TransactionList{}, ErrInvalidInput
	}

	var filter storage.TransferFilter
	var err error
	if filter.SourceAddress, err = decodeOptional(req.SourceAddress, "source_address"); err != nil {
		return TransactionList{}, err
	}
	if filter.DestinationAddress, err = decodeOptional(req.DestinationAddress, "destination_address"); err != nil {
		return TransactionList{}, err
	}
	if filter.MintAddress, err = decodeOptional(req.MintAddress, "mint_address"); err != nil {
		return TransactionList{}, err
	}
	if filter.SourceAddress == nil && filter.DestinationAddress == nil && filter.MintAddress == nil {
		return TransactionList{}, ErrInvalidInput
	}

	return a.runQuery(ctx, filter, req.SortBy, req.SortDirection, req.Limit, req.Page, req.Before, req.After)
}

// TransactionsByMintRequest is the get_transactions_by_mint payload.
type TransactionsByMintRequest struct {
	MintAddress   string
	SortBy        *SortBy
	SortDirection *SortDirection
	Limit         *uint64
	Page          *uint64
	Before        *string
	After         *string
}

// GetTransactionsByMint filters by mint only; mint_address is required.
func (a *API) GetTransactionsByMint(ctx context.Context, req TransactionsByMintRequest) (TransactionList, error) {
	if req.MintAddress == "" {
		return TransactionList{}, ErrInvalidInput
	}
	mint, err := decodeOptional(&req.MintAddress, "mint_address")
	if err != nil {
		return TransactionList{}, err
	}
	filter := storage.TransferFilter{MintAddress: mint}
	return a.runQuery(ctx, filter, req.SortBy, req.SortDirection, req.Limit, req.Page, req.Before, req.After)
}

func (a *API) runQuery(ctx context.Context, filter storage.TransferFilter, sortBy *SortBy, sortDir *SortDirection, limit, page *uint64, before, after *string) (TransactionList, error) {
	pagination, keyset, pageWindow, err := resolvePagination(page, before, after, limit)
	if err != nil {
		return TransactionList{}, err
	}

	sortCol, sortDirection := resolveSort(sortBy, sortDir)

	rows, err := a.dao.QueryTransfers(ctx, filter, sortCol, sortDirection, pagination.Limit, keyset, pageWindow)
	if err != nil {
		return TransactionList{}, err
	}

	items := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		items = append(items, toAPITransaction(r))
	}

	list := TransactionList{
		Total: len(items),
		Limit: pagination.Limit,
		Items: items,
	}
	if pagination.isPage {
		list.Page = &pagination.Page
	}
	if pagination.Before != "" {
		list.Before = &pagination.Before
	}
	if pagination.After != "" {
		list.After = &pagination.After
	}
	return list, nil
}

func decodeOptional(s *string, field string) (*chaintypes.Address, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	addr, err := chaintypes.DecodeAddress(*s)
	if err != nil {
		return nil, ErrPubkeyValidation(field)
	}
	return &addr, nil
}
