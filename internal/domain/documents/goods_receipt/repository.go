package goods_receipt

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
)

// Repository defines operations for goods receipt documents.
type Repository interface {
	// CRUD operations
	Create(ctx context.Context, doc *GoodsReceipt) error
	GetByID(ctx context.Context, docID id.ID) (*GoodsReceipt, error)
	Update(ctx context.Context, doc *GoodsReceipt) error
	Delete(ctx context.Context, docID id.ID) error

	// Item operations
	GetItems(ctx context.Context, docID id.ID) ([]Item, error)
	SaveItems(ctx context.Context, docID id.ID, items []Item) error

	// List operations
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*GoodsReceipt], error)
	Summarize(ctx context.Context, filter ListFilter) (Summary, error)

	// Locking
	GetForUpdate(ctx context.Context, docID id.ID) (*GoodsReceipt, error)
}

// ListFilter for filtering goods receipts.
type ListFilter struct {
	WarehouseID *id.ID
	VendorID    *id.ID
	Status      Status
	DateFrom    *time.Time
	DateTo      *time.Time

	// Search matches the GRN, invoice or purchase order number.
	Search string

	domain.Page
}

// Summary aggregates the goods receipts matching a filter.
type Summary struct {
	Total     int `json:"total"`
	Draft     int `json:"draft"`
	Received  int `json:"received"`
	Cancelled int `json:"cancelled"`

	// TotalValue sums received goods receipts only.
	TotalValue types.Money `json:"totalValue"`
}

// Add counts doc into the summary.
func (s *Summary) Add(doc *GoodsReceipt) {
	s.Total++
	switch doc.Status {
	case StatusDraft:
		s.Draft++
	case StatusReceived:
		s.Received++
		s.TotalValue = s.TotalValue.Add(doc.TotalValue)
	case StatusCancelled:
		s.Cancelled++
	}
}
