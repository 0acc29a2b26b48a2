// Package domain holds what the catalogs, documents and ledger share:
// paging, catalog storage, lifecycle hooks and event publishing.
package domain

import (
	"context"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
)

const (
	defaultCatalogPage = 50
	maxCatalogPage     = 1000
	defaultCatalogSort = "name"
)

// Page is the pagination part shared by every list filter.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to [1, max] rows with def as default size.
func (p Page) Normalize(def, max int) Page {
	if p.Limit <= 0 {
		p.Limit = def
	}
	p.Limit = min(p.Limit, max)
	p.Offset = max0(p.Offset)
	return p
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// ListFilter selects catalog records.
type ListFilter struct {
	Page

	// Search is matched against code and name, ignoring case.
	Search string
	IDs    []id.ID

	IncludeDeleted bool

	// OrderBy is a column name, "-" prefixed for descending order.
	OrderBy string
}

// DefaultListFilter is the filter used when a caller passes nothing.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Page:    Page{Limit: defaultCatalogPage},
		OrderBy: defaultCatalogSort,
	}
}

// ListResult is one page of T plus the total matching count.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// CatalogRepository stores a catalog kind.
// Reads of absent or soft-deleted records yield a NotFound AppError.
type CatalogRepository[T entity.Validatable] interface {
	Create(ctx context.Context, item T) error
	GetByID(ctx context.Context, id id.ID) (T, error)
	GetByCode(ctx context.Context, code string) (T, error)

	// Update fails with a conflict when item.Version is stale.
	Update(ctx context.Context, item T) error
	SetDeletionMark(ctx context.Context, id id.ID, marked bool) error

	List(ctx context.Context, filter ListFilter) (ListResult[T], error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
}
