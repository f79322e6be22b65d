package query

import (
	"context"
	"errors"
	"testing"

	"github.com/synnergy-labs/token-indexer/internal/chaintypes"
	"github.com/synnergy-labs/token-indexer/internal/errs"
	"github.com/synnergy-labs/token-indexer/internal/storage"
)

type fakeDAO struct {
	rows         []chaintypes.TransferRow
	readyErr     error
	lastFilter   storage.TransferFilter
	lastLimit    uint64
	lastKeyset   *storage.KeysetWindow
	lastPage     *storage.PageWindow
}

func (f *fakeDAO) Readiness(ctx context.Context) error { return f.readyErr }

func (f *fakeDAO) QueryTransfers(ctx context.Context, filter storage.TransferFilter, sortCol storage.SortColumn, dir storage.SortDirection, limit uint64, keyset *storage.KeysetWindow, page *storage.PageWindow) ([]chaintypes.TransferRow, error) {
	f.lastFilter = filter
	f.lastLimit = limit
	f.lastKeyset = keyset
	f.lastPage = page
	return f.rows, nil
}

func validAddr(b byte) string {
	var a chaintypes.Address
	a[0] = b
	return a.String()
}

func TestGetTransactionsByAddressRequiresOneFilter(t *testing.T) {
	api := New(&fakeDAO{})
	_, err := api.GetTransactionsByAddress(context.Background(), TransactionsByAddressRequest{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetTransactionsByAddressInvalidAddress(t *testing.T) {
	api := New(&fakeDAO{})
	bad := "not-base58-or-wrong-length"
	_, err := api.GetTransactionsByAddress(context.Background(), TransactionsByAddressRequest{SourceAddress: &bad})
	if err == nil || !errs.Is(err, errs.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetTransactionsByAddressAppliesFilter(t *testing.T) {
	dao := &fakeDAO{rows: []chaintypes.TransferRow{{Amount: 1}}}
	api := New(dao)
	src := validAddr(1)
	res, err := api.GetTransactionsByAddress(context.Background(), TransactionsByAddressRequest{SourceAddress: &src})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("expected 1 result, got %d", res.Total)
	}
	if dao.lastFilter.SourceAddress == nil {
		t.Fatal("expected source address filter to be set")
	}
	if dao.lastLimit != defaultLimit {
		t.Fatalf("expected default limit, got %d", dao.lastLimit)
	}
}

func TestPaginationLimitExceeded(t *testing.T) {
	dao := &fakeDAO{}
	api := New(dao)
	src := validAddr(1)
	limit := uint64(1001)
	_, err := api.GetTransactionsByAddress(context.Background(), TransactionsByAddressRequest{SourceAddress: &src, Limit: &limit})
	if !errors.Is(err, ErrPaginationExceeded) {
		t.Fatalf("expected ErrPaginationExceeded, got %v", err)
	}
}

func TestPaginationPageZeroRejected(t *testing.T) {
	dao := &fakeDAO{}
	api := New(dao)
	src := validAddr(1)
	page := uint64(0)
	_, err := api.GetTransactionsByAddress(context.Background(), TransactionsByAddressRequest{SourceAddress: &src, Page: &page})
	if !errors.Is(err, ErrPaginationEmpty) {
		t.Fatalf("expected ErrPaginationEmpty, got %v", err)
	}
}

func TestPaginationPageAndBeforeMutuallyExclusive(t *testing.T) {
	dao := &fakeDAO{}
	api := New(dao)
	src := validAddr(1)
	page := uint64(1)
	before := "01/01/2024"
	_, err := api.GetTransactionsByAddress(context.Background(), TransactionsByAddressRequest{SourceAddress: &src, Page: &page, Before: &before})
	if !errors.Is(err, ErrPagination) {
		t.Fatalf("expected ErrPagination, got %v", err)
	}
}

func TestPaginationOffsetExceeded(t *testing.T) {
	dao := &fakeDAO{}
	api := New(dao)
	src := validAddr(1)
	page := uint64(600) // (600-1)*1000 = 599000 > 500000
	_, err := api.GetTransactionsByAddress(context.Background(), TransactionsByAddressRequest{SourceAddress: &src, Page: &page})
	if !errors.Is(err, ErrOffsetLimitExceeded) {
		t.Fatalf("expected ErrOffsetLimitExceeded, got %v", err)
	}
}

func TestPaginationInvalidDate(t *testing.T) {
	dao := &fakeDAO{}
	api := New(dao)
	src := validAddr(1)
	bad := "2024-01-01"
	_, err := api.GetTransactionsByAddress(context.Background(), TransactionsByAddressRequest{SourceAddress: &src, Before: &bad})
	if err == nil || !errs.Is(err, errs.KindValidation) {
		t.Fatalf("expected invalid date validation error, got %v", err)
	}
}

func TestPaginationKeysetSetsWindow(t *testing.T) {
	dao := &fakeDAO{}
	api := New(dao)
	src := validAddr(1)
	before := "31/12/2024"
	after := "01/01/2024"
	_, err := api.GetTransactionsByAddress(context.Background(), TransactionsByAddressRequest{SourceAddress: &src, Before: &before, After: &after})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dao.lastKeyset == nil || dao.lastKeyset.Before == nil || dao.lastKeyset.After == nil {
		t.Fatal("expected both before and after bounds to be set")
	}
	if dao.lastKeyset.Before.Hour() != 23 || dao.lastKeyset.Before.Minute() != 59 {
		t.Fatalf("expected before to anchor end-of-day UTC, got %v", dao.lastKeyset.Before)
	}
	if dao.lastKeyset.After.Hour() != 0 {
		t.Fatalf("expected after to anchor start-of-day UTC, got %v", dao.lastKeyset.After)
	}
}

func TestGetTransactionsByMintRequiresMint(t *testing.T) {
	dao := &fakeDAO{}
	api := New(dao)
	_, err := api.GetTransactionsByMint(context.Background(), TransactionsByMintRequest{})
	if err == nil || !errs.Is(err, errs.KindValidation) {
		t.Fatalf("expected validation error for missing mint, got %v", err)
	}
}

func TestLivenessAlwaysSucceeds(t *testing.T) {
	api := New(&fakeDAO{readyErr: errors.New("db down")})
	if err := api.Liveness(context.Background()); err != nil {
		t.Fatalf("liveness should never fail, got %v", err)
	}
}

func TestReadinessPropagatesError(t *testing.T) {
	api := New(&fakeDAO{readyErr: errors.New("db down")})
	if err := api.Readiness(context.Background()); err == nil {
		t.Fatal("expected readiness to propagate db error")
	}
}
