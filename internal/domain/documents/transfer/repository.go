package transfer

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
)

// Repository defines operations for transfer documents.
type Repository interface {
	Create(ctx context.Context, doc *Transfer) error
	GetByID(ctx context.Context, docID id.ID) (*Transfer, error)
	GetForUpdate(ctx context.Context, docID id.ID) (*Transfer, error)
	Update(ctx context.Context, doc *Transfer) error
	Delete(ctx context.Context, docID id.ID) error

	GetItems(ctx context.Context, docID id.ID) ([]Item, error)
	SaveItems(ctx context.Context, docID id.ID, items []Item) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transfer], error)
	Summarize(ctx context.Context, filter ListFilter) (Summary, error)
}

// ListFilter for filtering transfers.
type ListFilter struct {
	FromWarehouseID *id.ID
	ToWarehouseID   *id.ID
	Status          Status
	DateFrom        *time.Time
	DateTo          *time.Time

	domain.Page
}

// Summary aggregates the transfers matching a filter.
type Summary struct {
	Total         int            `json:"total"`
	Draft         int            `json:"draft"`
	InTransit     int            `json:"inTransit"`
	Completed     int            `json:"completed"`
	Cancelled     int            `json:"cancelled"`
	TotalQuantity types.Quantity `json:"totalQuantity"`
}

// Add counts doc into the summary.
func (s *Summary) Add(doc *Transfer) {
	s.Total++
	s.TotalQuantity += doc.TotalQuantity
	switch doc.Status {
	case StatusDraft:
		s.Draft++
	case StatusInTransit, StatusPartialReceived:
		s.InTransit++
	case StatusCompleted:
		s.Completed++
	case StatusCancelled:
		s.Cancelled++
	}
}
