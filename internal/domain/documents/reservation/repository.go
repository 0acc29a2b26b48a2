package reservation

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
)

// Repository defines operations for reservations.
type Repository interface {
	Create(ctx context.Context, r *Reservation) error
	GetByID(ctx context.Context, resID id.ID) (*Reservation, error)
	GetForUpdate(ctx context.Context, resID id.ID) (*Reservation, error)
	Update(ctx context.Context, r *Reservation) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Reservation], error)
	Summarize(ctx context.Context, filter ListFilter) (Summary, error)

	// ListExpired returns active reservations whose expiry is before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)
}

// ListFilter for filtering reservations.
type ListFilter struct {
	ProductID   *id.ID
	WarehouseID *id.ID
	Status      Status
	RefType     string
	RefID       string

	domain.Page
}

// Summary aggregates the reservations matching a filter.
type Summary struct {
	Total            int            `json:"total"`
	Active           int            `json:"active"`
	Fulfilled        int            `json:"fulfilled"`
	Released         int            `json:"released"`
	Cancelled        int            `json:"cancelled"`
	Expired          int            `json:"expired"`
	TotalReservedQty types.Quantity `json:"totalReservedQty"`
	TotalValue       types.Money    `json:"totalValue"`
}

// Add counts r into the summary. Quantities and value cover active reservations.
func (s *Summary) Add(r *Reservation) {
	s.Total++
	switch r.Status {
	case StatusActive:
		s.Active++
		s.TotalReservedQty += r.ReservedQty
		s.TotalValue = s.TotalValue.Add(r.ReservedValue)
	case StatusFulfilled:
		s.Fulfilled++
	case StatusReleased:
		s.Released++
	case StatusCancelled:
		s.Cancelled++
	case StatusExpired:
		s.Expired++
	}
}
