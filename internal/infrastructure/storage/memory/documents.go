package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents/cycle_count"
	"stockledger/internal/domain/documents/goods_receipt"
	"stockledger/internal/domain/documents/reservation"
	"stockledger/internal/domain/documents/transfer"
)

// document is the part of entity.Document the generic repository needs.
type document interface {
	GetID() id.ID
	GetVersion() int
	SetVersion(v int)
	IsDeleted() bool
	MarkDeleted()
}

// docStore implements the CRUD shared by every document repository.
// Deleted documents are invisible to reads.
type docStore[H document, I any] struct {
	s       *Store
	headers *table[id.ID, H]
	items   *table[id.ID, I]
	entity  string
}

// Create inserts a document header.
func (d docStore[H, I]) Create(ctx context.Context, doc H) error {
	return d.s.write(ctx, func(t *txState) error {
		if d.headers.has(doc.GetID()) {
			return apperror.NewConflict(d.entity + " already exists")
		}
		d.headers.put(t, doc.GetID(), doc)
		return nil
	})
}

// GetByID returns the document header.
func (d docStore[H, I]) GetByID(ctx context.Context, docID id.ID) (H, error) {
	var (
		doc H
		ok  bool
	)
	d.s.read(ctx, func() { doc, ok = d.headers.get(docID) })
	if !ok || doc.IsDeleted() {
		var zero H
		return zero, apperror.NewNotFound(d.entity, docID.String())
	}
	return doc, nil
}

// GetForUpdate returns the header; the unit of work already serializes writers.
func (d docStore[H, I]) GetForUpdate(ctx context.Context, docID id.ID) (H, error) {
	return d.GetByID(ctx, docID)
}

// Update writes the header if its version still matches, then bumps it.
func (d docStore[H, I]) Update(ctx context.Context, doc H) error {
	return d.s.write(ctx, func(t *txState) error {
		stored, ok := d.headers.get(doc.GetID())
		if !ok || stored.IsDeleted() {
			return apperror.NewNotFound(d.entity, doc.GetID().String())
		}
		if stored.GetVersion() != doc.GetVersion() {
			return apperror.NewConcurrentModification(d.entity, doc.GetID().String())
		}
		doc.SetVersion(doc.GetVersion() + 1)
		d.headers.put(t, doc.GetID(), doc)
		return nil
	})
}

// Delete soft-deletes the document.
func (d docStore[H, I]) Delete(ctx context.Context, docID id.ID) error {
	return d.s.write(ctx, func(t *txState) error {
		doc, ok := d.headers.get(docID)
		if !ok || doc.IsDeleted() {
			return apperror.NewNotFound(d.entity, docID.String())
		}
		doc.MarkDeleted()
		doc.SetVersion(doc.GetVersion() + 1)
		d.headers.put(t, docID, doc)
		return nil
	})
}

// GetItems returns the items of a document.
func (d docStore[H, I]) GetItems(ctx context.Context, docID id.ID) (I, error) {
	var items I
	d.s.read(ctx, func() { items, _ = d.items.get(docID) })
	return items, nil
}

// SaveItems replaces the items of a document.
func (d docStore[H, I]) SaveItems(ctx context.Context, docID id.ID, items I) error {
	return d.s.write(ctx, func(t *txState) error {
		d.items.put(t, docID, items)
		return nil
	})
}

// find returns live headers kept by keep, newest first.
func (d docStore[H, I]) find(ctx context.Context, keep func(H) bool) []H {
	var out []H
	d.s.read(ctx, func() {
		out = d.headers.scan(func(doc H) bool { return !doc.IsDeleted() && keep(doc) })
	})
	slices.Reverse(out)
	return out
}

func listResult[T any](all []T, p domain.Page) domain.ListResult[T] {
	return domain.ListResult[T]{
		Items:      page(all, p.Limit, p.Offset),
		TotalCount: int64(len(all)),
		Limit:      p.Limit,
		Offset:     p.Offset,
	}
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func cloneGoodsReceipt(g *goods_receipt.GoodsReceipt) *goods_receipt.GoodsReceipt {
	c := g.Clone()
	c.Items = nil
	return c
}

func cloneCycleCount(cc *cycle_count.CycleCount) *cycle_count.CycleCount {
	c := cc.Clone()
	c.Items = nil
	return c
}

func cloneCycleCountItems(items []cycle_count.Item) []cycle_count.Item {
	return (&cycle_count.CycleCount{Items: items}).Clone().Items
}

func cloneTransfer(tr *transfer.Transfer) *transfer.Transfer {
	c := tr.Clone()
	c.Items = nil
	return c
}

// GoodsReceiptRepo implements goods_receipt.Repository.
type GoodsReceiptRepo struct {
	docStore[*goods_receipt.GoodsReceipt, []goods_receipt.Item]
}

// NewGoodsReceiptRepo creates a GRN repository.
func NewGoodsReceiptRepo(s *Store) *GoodsReceiptRepo {
	return &GoodsReceiptRepo{docStore[*goods_receipt.GoodsReceipt, []goods_receipt.Item]{
		s: s, headers: s.grns.headers, items: s.grns.items, entity: "GRN",
	}}
}

var _ goods_receipt.Repository = (*GoodsReceiptRepo)(nil)

// List implements goods_receipt.Repository.
func (r *GoodsReceiptRepo) List(ctx context.Context, filter goods_receipt.ListFilter) (domain.ListResult[*goods_receipt.GoodsReceipt], error) {
	return listResult(r.find(ctx, grnMatcher(filter)), filter.Page), nil
}

// Summarize implements goods_receipt.Repository.
func (r *GoodsReceiptRepo) Summarize(ctx context.Context, filter goods_receipt.ListFilter) (goods_receipt.Summary, error) {
	var sum goods_receipt.Summary
	for _, doc := range r.find(ctx, grnMatcher(filter)) {
		sum.Add(doc)
	}
	return sum, nil
}

func grnMatcher(f goods_receipt.ListFilter) func(*goods_receipt.GoodsReceipt) bool {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	return func(g *goods_receipt.GoodsReceipt) bool {
		switch {
		case f.WarehouseID != nil && g.WarehouseID != *f.WarehouseID,
			f.VendorID != nil && (g.VendorID == nil || *g.VendorID != *f.VendorID),
			f.Status != "" && g.Status != f.Status,
			!inRange(g.Date, f.DateFrom, f.DateTo):
			return false
		}
		if search == "" {
			return true
		}
		for _, s := range []string{g.Number, g.InvoiceNumber, g.PurchaseOrderNumber} {
			if strings.Contains(strings.ToLower(s), search) {
				return true
			}
		}
		return false
	}
}

// CycleCountRepo implements cycle_count.Repository.
type CycleCountRepo struct {
	docStore[*cycle_count.CycleCount, []cycle_count.Item]
}

// NewCycleCountRepo creates a cycle count repository.
func NewCycleCountRepo(s *Store) *CycleCountRepo {
	return &CycleCountRepo{docStore[*cycle_count.CycleCount, []cycle_count.Item]{
		s: s, headers: s.cycleCounts.headers, items: s.cycleCounts.items, entity: "Cycle count",
	}}
}

var _ cycle_count.Repository = (*CycleCountRepo)(nil)

// SaveItem implements cycle_count.Repository.
func (r *CycleCountRepo) SaveItem(ctx context.Context, docID id.ID, item cycle_count.Item) error {
	return r.s.write(ctx, func(t *txState) error {
		items, _ := r.items.get(docID)
		i := slices.IndexFunc(items, func(it cycle_count.Item) bool { return it.LineNo == item.LineNo })
		if i < 0 {
			return apperror.NewNotFound("Cycle count item", item.LineNo)
		}
		items[i] = item
		r.items.put(t, docID, items)
		return nil
	})
}

// List implements cycle_count.Repository.
func (r *CycleCountRepo) List(ctx context.Context, filter cycle_count.ListFilter) (domain.ListResult[*cycle_count.CycleCount], error) {
	return listResult(r.find(ctx, cycleCountMatcher(filter)), filter.Page), nil
}

// Summarize implements cycle_count.Repository.
func (r *CycleCountRepo) Summarize(ctx context.Context, filter cycle_count.ListFilter) (cycle_count.Summary, error) {
	var sum cycle_count.Summary
	for _, doc := range r.find(ctx, cycleCountMatcher(filter)) {
		sum.Add(doc)
	}
	return sum, nil
}

func cycleCountMatcher(f cycle_count.ListFilter) func(*cycle_count.CycleCount) bool {
	return func(c *cycle_count.CycleCount) bool {
		switch {
		case f.WarehouseID != nil && c.WarehouseID != *f.WarehouseID,
			f.Status != "" && c.Status != f.Status,
			f.CountType != "" && c.CountType != f.CountType,
			!inRange(c.Date, f.DateFrom, f.DateTo):
			return false
		}
		return true
	}
}

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	docStore[*transfer.Transfer, []transfer.Item]
}

// NewTransferRepo creates a transfer repository.
func NewTransferRepo(s *Store) *TransferRepo {
	return &TransferRepo{docStore[*transfer.Transfer, []transfer.Item]{
		s: s, headers: s.transfers.headers, items: s.transfers.items, entity: "Transfer",
	}}
}

var _ transfer.Repository = (*TransferRepo)(nil)

// List implements transfer.Repository.
func (r *TransferRepo) List(ctx context.Context, filter transfer.ListFilter) (domain.ListResult[*transfer.Transfer], error) {
	return listResult(r.find(ctx, transferMatcher(filter)), filter.Page), nil
}

// Summarize implements transfer.Repository.
func (r *TransferRepo) Summarize(ctx context.Context, filter transfer.ListFilter) (transfer.Summary, error) {
	var sum transfer.Summary
	for _, doc := range r.find(ctx, transferMatcher(filter)) {
		sum.Add(doc)
	}
	return sum, nil
}

func transferMatcher(f transfer.ListFilter) func(*transfer.Transfer) bool {
	return func(t *transfer.Transfer) bool {
		switch {
		case f.FromWarehouseID != nil && t.FromWarehouseID != *f.FromWarehouseID,
			f.ToWarehouseID != nil && t.ToWarehouseID != *f.ToWarehouseID,
			f.Status != "" && t.Status != f.Status,
			!inRange(t.Date, f.DateFrom, f.DateTo):
			return false
		}
		return true
	}
}

// ReservationRepo implements reservation.Repository.
type ReservationRepo struct {
	docStore[*reservation.Reservation, struct{}]
}

// NewReservationRepo creates a reservation repository.
func NewReservationRepo(s *Store) *ReservationRepo {
	return &ReservationRepo{docStore[*reservation.Reservation, struct{}]{
		s: s, headers: s.reservations, entity: "Reservation",
	}}
}

var _ reservation.Repository = (*ReservationRepo)(nil)

// List implements reservation.Repository.
func (r *ReservationRepo) List(ctx context.Context, filter reservation.ListFilter) (domain.ListResult[*reservation.Reservation], error) {
	return listResult(r.find(ctx, reservationMatcher(filter)), filter.Page), nil
}

// Summarize implements reservation.Repository.
func (r *ReservationRepo) Summarize(ctx context.Context, filter reservation.ListFilter) (reservation.Summary, error) {
	var sum reservation.Summary
	for _, res := range r.find(ctx, reservationMatcher(filter)) {
		sum.Add(res)
	}
	return sum, nil
}

// ListExpired implements reservation.Repository. The oldest expiries come first.
func (r *ReservationRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*reservation.Reservation, error) {
	due := r.find(ctx, func(res *reservation.Reservation) bool { return res.IsExpired(now) })
	slices.SortStableFunc(due, func(a, b *reservation.Reservation) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	return page(due, limit, 0), nil
}

func reservationMatcher(f reservation.ListFilter) func(*reservation.Reservation) bool {
	return func(res *reservation.Reservation) bool {
		switch {
		case f.ProductID != nil && res.ProductID != *f.ProductID,
			f.WarehouseID != nil && res.WarehouseID != *f.WarehouseID,
			f.Status != "" && res.Status != f.Status,
			f.RefType != "" && res.RefType != f.RefType,
			f.RefID != "" && res.RefID != f.RefID:
			return false
		}
		return true
	}
}
