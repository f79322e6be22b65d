// Package rpcapi is the RPC Surface: a thin JSON-RPC 2.0 dispatcher binding
// method names to the Query API. This layer is deliberately not part of the
// core contract — it exists only to expose the Query API over HTTP.
package rpcapi

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/synnergy-labs/token-indexer/internal/errs"
	"github.com/synnergy-labs/token-indexer/internal/query"
)

const jsonrpcVersion = "2.0"

// request is one JSON-RPC 2.0 call.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// response is one JSON-RPC 2.0 reply.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes follow the JSON-RPC 2.0 reserved ranges, with application
// codes for the domain taxonomy starting at -32000. Each distinct query
// validation failure gets its own code in the -32010 block rather than
// sharing one generic "validation" code, per the Query API's taxonomy.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeValidation     = -32000
	codeNotFound       = -32001
	codeDatabase       = -32002
	codeInternal       = -32003

	codeValidationPubkey             = -32010
	codeValidationInvalidInput       = -32011
	codeValidationPaginationExceeded = -32012
	codeValidationPaginationEmpty    = -32013
	codeValidationPagination         = -32014
	codeValidationOffsetExceeded     = -32015
	codeValidationInvalidDate        = -32016
)

// validationCodes maps the query package's Kind-scoped sub-codes to their
// JSON-RPC codes. A sub-code of 0 (no sub-classification) falls back to the
// generic codeValidation.
var validationCodes = map[int]int{
	query.CodePubkeyValidation:   codeValidationPubkey,
	query.CodeInvalidInput:       codeValidationInvalidInput,
	query.CodePaginationExceeded: codeValidationPaginationExceeded,
	query.CodePaginationEmpty:    codeValidationPaginationEmpty,
	query.CodePagination:         codeValidationPagination,
	query.CodeOffsetLimitExceeded: codeValidationOffsetExceeded,
	query.CodeInvalidDate:        codeValidationInvalidDate,
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Dispatcher maps method names to handlers, including the schema aliases.
type Dispatcher struct {
	api      *query.API
	handlers map[string]handlerFunc
}

// NewDispatcher builds a Dispatcher bound to api.
func NewDispatcher(api *query.API) *Dispatcher {
	d := &Dispatcher{api: api}
	d.handlers = map[string]handlerFunc{
		"liveness":                    d.liveness,
		"readiness":                   d.readiness,
		"get_transactions_by_address": d.getTransactionsByAddress,
		"get_transactions_by_mint":    d.getTransactionsByMint,
		"schema":                      d.schema,
		"api_schema":                  d.schema,
		"apiSchema":                   d.schema,
	}
	return d
}

// Dispatch executes one decoded JSON-RPC request and returns its response
// envelope. Dispatch never returns a transport-level error: every failure is
// encoded into the JSON-RPC error field.
func (d *Dispatcher) Dispatch(ctx context.Context, req request) response {
	resp := response{JSONRPC: jsonrpcVersion, ID: req.ID}

	h, ok := d.handlers[req.Method]
	if !ok {
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: "method not found: " + req.Method}
		return resp
	}

	result, err := h(ctx, req.Params)
	if err != nil {
		resp.Error = toRPCError(err)
		return resp
	}
	resp.Result = result
	return resp
}

func toRPCError(err error) *rpcError {
	var e *errs.Error
	switch {
	case errors.As(err, &e) && e.Kind == errs.KindValidation:
		code := codeValidation
		if mapped, ok := validationCodes[e.Code]; ok {
			code = mapped
		}
		return &rpcError{Code: code, Message: err.Error()}
	case errs.Is(err, errs.KindNotFound):
		return &rpcError{Code: codeNotFound, Message: err.Error()}
	case errs.Is(err, errs.KindDatabase):
		return &rpcError{Code: codeDatabase, Message: err.Error()}
	default:
		return &rpcError{Code: codeInternal, Message: err.Error()}
	}
}

func (d *Dispatcher) liveness(ctx context.Context, _ json.RawMessage) (any, error) {
	if err := d.api.Liveness(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func (d *Dispatcher) readiness(ctx context.Context, _ json.RawMessage) (any, error) {
	if err := d.api.Readiness(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

type transactionsByAddressParams struct {
	SourceAddress      *string             `json:"sourceAddress"`
	DestinationAddress *string             `json:"destinationAddress"`
	MintAddress        *string             `json:"mintAddress"`
	SortBy             *query.SortBy       `json:"sortBy"`
	SortDirection      *query.SortDirection `json:"sortDirection"`
	Limit              *uint64             `json:"limit"`
	Page               *uint64             `json:"page"`
	Before             *string             `json:"before"`
	After              *string             `json:"after"`
}

func (d *Dispatcher) getTransactionsByAddress(ctx context.Context, raw json.RawMessage) (any, error) {
	var p transactionsByAddressParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errs.New(errs.KindValidation, "invalid params: "+err.Error())
		}
	}
	return d.api.GetTransactionsByAddress(ctx, query.TransactionsByAddressRequest{
		SourceAddress:      p.SourceAddress,
		DestinationAddress: p.DestinationAddress,
		MintAddress:        p.MintAddress,
		SortBy:             p.SortBy,
		SortDirection:      p.SortDirection,
		Limit:              p.Limit,
		Page:               p.Page,
		Before:             p.Before,
		After:              p.After,
	})
}

type transactionsByMintParams struct {
	MintAddress   string               `json:"mintAddress"`
	SortBy        *query.SortBy        `json:"sortBy"`
	SortDirection *query.SortDirection `json:"sortDirection"`
	Limit         *uint64              `json:"limit"`
	Page          *uint64              `json:"page"`
	Before        *string              `json:"before"`
	After         *string              `json:"after"`
}

func (d *Dispatcher) getTransactionsByMint(ctx context.Context, raw json.RawMessage) (any, error) {
	var p transactionsByMintParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errs.New(errs.KindValidation, "invalid params: "+err.Error())
		}
	}
	return d.api.GetTransactionsByMint(ctx, query.TransactionsByMintRequest{
		MintAddress:   p.MintAddress,
		SortBy:        p.SortBy,
		SortDirection: p.SortDirection,
		Limit:         p.Limit,
		Page:          p.Page,
		Before:        p.Before,
		After:         p.After,
	})
}

func (d *Dispatcher) schema(ctx context.Context, _ json.RawMessage) (any, error) {
	return OpenRPCDocument, nil
}
