package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/domain"
	"stockledger/internal/domain/documents/reservation"
	"stockledger/internal/infrastructure/storage/postgres"
)

const reservationsTable = "doc_reservations"

// ReservationRepo implements reservation.Repository. Reservations have no
// lines.
type ReservationRepo struct {
	*BaseDocumentRepo[*reservation.Reservation, struct{}]
}

var _ reservation.Repository = (*ReservationRepo)(nil)

// NewReservationRepo creates a reservation repository.
func NewReservationRepo(txManager *postgres.TxManager) *ReservationRepo {
	return &ReservationRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*reservation.Reservation, struct{}](
			txManager,
			reservationsTable,
			"",
			"Reservation",
			func() *reservation.Reservation { return &reservation.Reservation{} },
		),
	}
}

// List implements reservation.Repository.
func (r *ReservationRepo) List(ctx context.Context, filter reservation.ListFilter) (domain.ListResult[*reservation.Reservation], error) {
	return r.list(ctx, r.query().Where(reservationWhere(filter)), filter.Page)
}

// Summarize implements reservation.Repository.
func (r *ReservationRepo) Summarize(ctx context.Context, filter reservation.ListFilter) (reservation.Summary, error) {
	var sum reservation.Summary
	rows, err := r.summaryRows(ctx, reservationWhere(filter), "status", "reserved_qty", "reserved_value")
	if err != nil {
		return sum, err
	}
	for _, res := range rows {
		sum.Add(res)
	}
	return sum, nil
}

// ListExpired implements reservation.Repository. The oldest expiries come
// first, and the rows are skipped by concurrent sweepers.
func (r *ReservationRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*reservation.Reservation, error) {
	q := r.query().
		Where(squirrel.Eq{"status": reservation.StatusActive}).
		Where(squirrel.Lt{"expires_at": now}).
		OrderBy("expires_at", "id")
	q = postgres.Paginate(q, limit, 0)
	if r.txManager.GetTx(ctx) != nil {
		q = q.Suffix("FOR UPDATE SKIP LOCKED")
	}

	var out []*reservation.Reservation
	if err := postgres.Select(ctx, r.db(ctx), &out, q); err != nil {
		return nil, fmt.Errorf("list expired reservations: %w", err)
	}
	return out, nil
}

func reservationWhere(f reservation.ListFilter) squirrel.And {
	eq := squirrel.Eq{}
	if f.ProductID != nil {
		eq["product_id"] = *f.ProductID
	}
	if f.WarehouseID != nil {
		eq["warehouse_id"] = *f.WarehouseID
	}
	if f.Status != "" {
		eq["status"] = f.Status
	}
	if f.RefType != "" {
		eq["ref_type"] = f.RefType
	}
	if f.RefID != "" {
		eq["ref_id"] = f.RefID
	}
	if len(eq) == 0 {
		return nil
	}
	return squirrel.And{eq}
}
