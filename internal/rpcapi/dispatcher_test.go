package rpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
	"github.com/synnergy-labs/token-indexer/internal/query"
	"github.com/synnergy-labs/token-indexer/internal/storage"
)

type fakeDAO struct {
	rows     []chaintypes.TransferRow
	readyErr error
}

func (f *fakeDAO) Readiness(ctx context.Context) error { return f.readyErr }

func (f *fakeDAO) QueryTransfers(ctx context.Context, filter storage.TransferFilter, sortCol storage.SortColumn, dir storage.SortDirection, limit uint64, keyset *storage.KeysetWindow, page *storage.PageWindow) ([]chaintypes.TransferRow, error) {
	return f.rows, nil
}

func validAddr(b byte) string {
	var a chaintypes.Address
	a[0] = b
	return a.String()
}

func TestDispatchLiveness(t *testing.T) {
	d := NewDispatcher(query.New(&fakeDAO{}))
	resp := d.Dispatch(context.Background(), request{JSONRPC: jsonrpcVersion, Method: "liveness"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
}

func TestDispatchReadinessPropagatesFailure(t *testing.T) {
	d := NewDispatcher(query.New(&fakeDAO{readyErr: errors.New("db down")}))
	resp := d.Dispatch(context.Background(), request{JSONRPC: jsonrpcVersion, Method: "readiness"})
	if resp.Error == nil {
		t.Fatal("expected error")
	}
	if resp.Error.Code != codeInternal {
		t.Fatalf("expected internal error code, got %d", resp.Error.Code)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := NewDispatcher(query.New(&fakeDAO{}))
	resp := d.Dispatch(context.Background(), request{JSONRPC: jsonrpcVersion, Method: "no_such_method"})
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found error, got %v", resp.Error)
	}
}

func TestDispatchGetTransactionsByAddressValidation(t *testing.T) {
	d := NewDispatcher(query.New(&fakeDAO{}))
	resp := d.Dispatch(context.Background(), request{JSONRPC: jsonrpcVersion, Method: "get_transactions_by_address"})
	if resp.Error == nil || resp.Error.Code != codeValidationInvalidInput {
		t.Fatalf("expected invalid-input validation error, got %v", resp.Error)
	}
}

func TestDispatchGetTransactionsByAddressSuccess(t *testing.T) {
	dao := &fakeDAO{rows: []chaintypes.TransferRow{{Amount: 42}}}
	d := NewDispatcher(query.New(dao))
	src := validAddr(1)
	params, _ := json.Marshal(map[string]any{"sourceAddress": src})
	resp := d.Dispatch(context.Background(), request{JSONRPC: jsonrpcVersion, Method: "get_transactions_by_address", Params: params})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	list, ok := resp.Result.(query.TransactionList)
	if !ok {
		t.Fatalf("unexpected result type: %T", resp.Result)
	}
	if list.Total != 1 {
		t.Fatalf("expected 1 item, got %d", list.Total)
	}
}

func TestDispatchGetTransactionsByMintValidation(t *testing.T) {
	d := NewDispatcher(query.New(&fakeDAO{}))
	resp := d.Dispatch(context.Background(), request{JSONRPC: jsonrpcVersion, Method: "get_transactions_by_mint"})
	if resp.Error == nil || resp.Error.Code != codeValidationInvalidInput {
		t.Fatalf("expected invalid-input validation error, got %v", resp.Error)
	}
}

func TestDispatchSchemaAliases(t *testing.T) {
	d := NewDispatcher(query.New(&fakeDAO{}))
	for _, method := range []string{"schema", "api_schema", "apiSchema"} {
		resp := d.Dispatch(context.Background(), request{JSONRPC: jsonrpcVersion, Method: method})
		if resp.Error != nil {
			t.Fatalf("method %s: unexpected error: %v", method, resp.Error)
		}
		if resp.Result == nil {
			t.Fatalf("method %s: expected a schema document", method)
		}
	}
}

func TestDispatchValidationErrorsGetDistinctCodes(t *testing.T) {
	d := NewDispatcher(query.New(&fakeDAO{}))

	badAddr, _ := json.Marshal(map[string]any{"sourceAddress": "not-base58!!"})
	resp := d.Dispatch(context.Background(), request{JSONRPC: jsonrpcVersion, Method: "get_transactions_by_address", Params: badAddr})
	if resp.Error == nil || resp.Error.Code != codeValidationPubkey {
		t.Fatalf("expected pubkey validation code, got %v", resp.Error)
	}

	bigLimit := uint64(5000)
	params, _ := json.Marshal(map[string]any{"sourceAddress": validAddr(1), "limit": bigLimit})
	resp = d.Dispatch(context.Background(), request{JSONRPC: jsonrpcVersion, Method: "get_transactions_by_address", Params: params})
	if resp.Error == nil || resp.Error.Code != codeValidationPaginationExceeded {
		t.Fatalf("expected pagination-exceeded code, got %v", resp.Error)
	}
}

func TestDispatchMalformedParams(t *testing.T) {
	d := NewDispatcher(query.New(&fakeDAO{}))
	resp := d.Dispatch(context.Background(), request{JSONRPC: jsonrpcVersion, Method: "get_transactions_by_mint", Params: json.RawMessage(`{"mintAddress": 123}`)})
	if resp.Error == nil || resp.Error.Code != codeValidation {
		t.Fatalf("expected validation error for malformed params, got %v", resp.Error)
	}
}
