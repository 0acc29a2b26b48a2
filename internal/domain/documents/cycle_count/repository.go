package cycle_count

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// Repository defines operations for cycle count documents.
type Repository interface {
	Create(ctx context.Context, doc *CycleCount) error
	GetByID(ctx context.Context, docID id.ID) (*CycleCount, error)
	Update(ctx context.Context, doc *CycleCount) error
	Delete(ctx context.Context, docID id.ID) error

	GetItems(ctx context.Context, docID id.ID) ([]Item, error)
	SaveItems(ctx context.Context, docID id.ID, items []Item) error

	// SaveItem writes one item, used while applying adjustments item by item.
	SaveItem(ctx context.Context, docID id.ID, item Item) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*CycleCount], error)
	Summarize(ctx context.Context, filter ListFilter) (Summary, error)

	GetForUpdate(ctx context.Context, docID id.ID) (*CycleCount, error)
}

// ListFilter for filtering cycle counts.
type ListFilter struct {
	WarehouseID *id.ID
	Status      Status
	CountType   CountType
	DateFrom    *time.Time
	DateTo      *time.Time

	domain.Page
}

// Summary counts cycle counts by status.
type Summary struct {
	Total           int `json:"total"`
	Draft           int `json:"draft"`
	InProgress      int `json:"inProgress"`
	PendingApproval int `json:"pendingApproval"`
	Approved        int `json:"approved"`
	Completed       int `json:"completed"`
	Cancelled       int `json:"cancelled"`
}

// Add counts doc into the summary.
func (s *Summary) Add(doc *CycleCount) {
	s.Total++
	switch doc.Status {
	case StatusDraft:
		s.Draft++
	case StatusInProgress:
		s.InProgress++
	case StatusPendingApproval:
		s.PendingApproval++
	case StatusApproved:
		s.Approved++
	case StatusCompleted:
		s.Completed++
	case StatusCancelled:
		s.Cancelled++
	}
}
