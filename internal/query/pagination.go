package query

import (
	"time"

	"github.com/synnergy-labs/token-indexer/internal/storage"
)

const (
	defaultLimit      = 1000
	maxLimit          = 1000
	maxOffset         = 500000
	dateLayout        = "02/01/2006" // DD/MM/YYYY
)

// dateLocation anchors before/after date boundaries to UTC, matching the
// TIMESTAMPTZ storage column.
var dateLocation = time.UTC

// SortBy mirrors the RPC payload's sort_by field.
type SortBy string

const (
	SortByCreated SortBy = "created"
	SortBySlot    SortBy = "slot"
)

// SortDirection mirrors the RPC payload's direction field.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Pagination is the validated, normalized form of the request's pagination
// fields: Page (with isPage) or the Before/After keyset bounds are set,
// never both; with neither supplied, none of them is set.
type Pagination struct {
	Limit  uint64
	Before string
	After  string
	Page   uint64

	isPage bool
}

// resolvePagination validates the raw page/before/after/limit combination and
// produces the storage-layer window plus the limit to apply.
func resolvePagination(page *uint64, before, after *string, limit *uint64) (Pagination, *storage.KeysetWindow, *storage.PageWindow, error) {
	lim := uint64(defaultLimit)
	if limit != nil {
		lim = *limit
	}
	if lim > maxLimit {
		return Pagination{}, nil, nil, ErrPaginationExceeded
	}

	hasKeyset := before != nil || after != nil
	hasPage := page != nil

	if hasPage && hasKeyset {
		return Pagination{}, nil, nil, ErrPagination
	}

	if hasPage {
		if *page == 0 {
			return Pagination{}, nil, nil, ErrPaginationEmpty
		}
		offset := (*page - 1) * lim
		if offset > maxOffset {
			return Pagination{}, nil, nil, ErrOffsetLimitExceeded
		}
		p := Pagination{Limit: lim, Page: *page, isPage: true}
		return p, nil, &storage.PageWindow{Page: *page}, nil
	}

	window := &storage.KeysetWindow{}
	p := Pagination{Limit: lim}
	if before != nil {
		t, err := parseDateBoundary(*before, 23, 59, 59)
		if err != nil {
			return Pagination{}, nil, nil, ErrInvalidDate("before")
		}
		window.Before = &t
		p.Before = *before
	}
	if after != nil {
		t, err := parseDateBoundary(*after, 0, 0, 0)
		if err != nil {
			return Pagination{}, nil, nil, ErrInvalidDate("after")
		}
		window.After = &t
		p.After = *after
	}
	return p, window, nil, nil
}

func parseDateBoundary(s string, hour, min, sec int) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, s, dateLocation)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, sec, 0, dateLocation), nil
}

func resolveSort(sortBy *SortBy, direction *SortDirection) (storage.SortColumn, storage.SortDirection) {
	col := storage.SortBySlot
	if sortBy != nil && *sortBy == SortByCreated {
		col = storage.SortByCreated
	}
	dir := storage.SortDesc
	if direction != nil && *direction == SortAsc {
		dir = storage.SortAsc
	}
	return col, dir
}
