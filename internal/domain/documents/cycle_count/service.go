package cycle_count

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

const snapshotPageSize = 1000

// Service provides business operations for cycle counts.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	catalog   ledger.Catalog
	numerator numerator.Generator
	txManager tx.Manager
	events    domain.EventPublisher
	audit     domain.AuditRecorder
	now       func() time.Time
}

// ServiceConfig wires the cycle count service.
type ServiceConfig struct {
	Repo      Repository
	Ledger    *ledger.Service
	Catalog   ledger.Catalog
	Numerator numerator.Generator
	TxManager tx.Manager
	Events    domain.EventPublisher
	Audit     domain.AuditRecorder
	Clock     func() time.Time
}

// NewService creates a cycle count service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:      cfg.Repo,
		ledger:    cfg.Ledger,
		catalog:   cfg.Catalog,
		numerator: cfg.Numerator,
		txManager: cfg.TxManager,
		events:    cfg.Events,
		audit:     cfg.Audit,
		now:       cfg.Clock,
	}
	if s.events == nil {
		s.events = domain.NopPublisher{}
	}
	if s.audit == nil {
		s.audit = domain.NopAuditRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateRequest starts a cycle count. ProductIDs narrows the count; empty
// means every balance of the warehouse.
type CreateRequest struct {
	WarehouseID id.ID
	ProductIDs  []id.ID
	CountType   CountType
	Notes       string
}

// Create snapshots the matching balances into a draft cycle count.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CycleCount, error) {
	doc := NewCycleCount(req.WarehouseID, req.CountType)
	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.catalog.RequireWarehouse(ctx, req.WarehouseID); err != nil {
		return nil, err
	}

	balances, err := s.snapshot(ctx, req.WarehouseID, req.ProductIDs)
	if err != nil {
		return nil, err
	}
	if len(balances) == 0 {
		return nil, apperror.NewValidation("No products found in this warehouse to count").
			WithDetail("warehouseId", req.WarehouseID)
	}
	for _, b := range balances {
		doc.AddItem(b.ProductID, b.Quantity, b.AvgCostPrice)
	}

	now := s.now().UTC()
	user := appctx.GetUserID(ctx)
	doc.Date = now
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.CreatedBy = user
	doc.Notes = req.Notes

	number, err := s.numerator.Next(ctx, NumberConfig(), now)
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	doc.Number = number
	doc.RecordStatus(string(StatusDraft), user, fmt.Sprintf("Cycle count created with %d items", len(doc.Items)))

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveItems(ctx, doc.ID, doc.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		return s.audit.LogChange(ctx, EntityType, doc.ID, domain.AuditActionCreate, map[string]any{
			"number": doc.Number, "items": len(doc.Items),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "cycle count created",
		"number", doc.Number,
		"warehouse_id", doc.WarehouseID,
		"items", len(doc.Items))
	return doc, nil
}

func (s *Service) snapshot(ctx context.Context, warehouseID id.ID, productIDs []id.ID) ([]*ledger.Balance, error) {
	if len(productIDs) > 0 {
		out := make([]*ledger.Balance, 0, len(productIDs))
		seen := make(map[id.ID]bool, len(productIDs))
		for _, pid := range productIDs {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			b, err := s.ledger.GetBalance(ctx, pid, warehouseID)
			if err != nil {
				if apperror.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			out = append(out, b)
		}
		return out, nil
	}

	var out []*ledger.Balance
	filter := ledger.BalanceFilter{WarehouseID: &warehouseID, Page: domain.Page{Limit: snapshotPageSize}}
	for {
		page, err := s.ledger.ListBalances(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if len(page.Items) < filter.Limit {
			return out, nil
		}
		filter.Offset += filter.Limit
	}
}

// GetByID retrieves a cycle count with its items.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*CycleCount, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, documents.NotFound(err, "Cycle count", docID.String())
	}
	items, err := s.repo.GetItems(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	doc.Items = items
	return doc, nil
}

// Start moves a draft count to in_progress.
func (s *Service) Start(ctx context.Context, docID id.ID) (*CycleCount, error) {
	return s.transition(ctx, docID, StatusInProgress, "Only draft cycle counts can be started",
		[]Status{StatusDraft}, "Counting started", func(doc *CycleCount, now time.Time) error {
			doc.StartedAt = &now
			return nil
		})
}

// CountEntry is one counted product.
type CountEntry struct {
	ProductID       id.ID
	CountedQuantity types.Quantity
	Notes           string
}

// RecordCounts sets counted quantities and variances against the snapshot.
// Products that are not part of the count are skipped.
func (s *Service) RecordCounts(ctx context.Context, docID id.ID, entries []CountEntry) (*CycleCount, error) {
	for i, e := range entries {
		if e.CountedQuantity.IsNegative() {
			return nil, apperror.NewValidation("counted quantity must not be negative").
				WithDetail("field", "countedItems").
				WithDetail("index", i)
		}
	}

	var doc *CycleCount
	var skipped int
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.lockWithItems(ctx, docID)
		if err != nil {
			return err
		}
		if err := documents.RequireStatus(locked.Status,
			"Cycle count must be in progress to record counts", StatusInProgress); err != nil {
			return err
		}

		now := s.now().UTC()
		user := appctx.GetUserID(ctx)
		for _, e := range entries {
			if !locked.SetCounted(e.ProductID, e.CountedQuantity, user, e.Notes, now) {
				skipped++
			}
		}
		locked.UpdatedAt = now
		locked.UpdatedBy = user
		if err := s.repo.Update(ctx, locked); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveItems(ctx, locked.ID, locked.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		doc = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger.Warn(ctx, "counts for unknown products skipped", "number", doc.Number, "skipped", skipped)
	}
	logger.Info(ctx, "counts recorded",
		"number", doc.Number,
		"counted", doc.CountedItems,
		"total", doc.TotalItems)
	return doc, nil
}

// SubmitForApproval moves a fully counted count to pending_approval.
func (s *Service) SubmitForApproval(ctx context.Context, docID id.ID) (*CycleCount, error) {
	return s.transition(ctx, docID, StatusPendingApproval, "Cycle count must be in progress to submit",
		[]Status{StatusInProgress}, "Submitted for approval", func(doc *CycleCount, _ time.Time) error {
			if n := doc.Uncounted(); n > 0 {
				return apperror.NewBusinessRule(apperror.CodeIncompleteCount,
					fmt.Sprintf("%d items not yet counted", n)).
					WithDetail("uncounted", n)
			}
			return nil
		})
}

// Approve accepts the counted quantities.
func (s *Service) Approve(ctx context.Context, docID id.ID, notes string) (*CycleCount, error) {
	if notes == "" {
		notes = "Approved"
	}
	return s.transition(ctx, docID, StatusApproved, "Cycle count must be pending approval",
		[]Status{StatusPendingApproval}, notes, func(doc *CycleCount, now time.Time) error {
			doc.ApprovedAt = &now
			doc.ApprovedBy = appctx.GetUserID(ctx)
			return nil
		})
}

// Cancel abandons a count that was not approved yet.
func (s *Service) Cancel(ctx context.Context, docID id.ID, reason string) (*CycleCount, error) {
	return s.transition(ctx, docID, StatusCancelled, "Cycle count cannot be cancelled in its current status",
		[]Status{StatusDraft, StatusInProgress, StatusPendingApproval}, reason, nil)
}

// ApplyAdjustments posts the approved counts to the ledger. Each item is
// applied in its own transaction: the balance is locked and adjusted by
// counted − live so that it ends at the counted quantity. Applied items are
// skipped, so a failed run can be retried. The count completes once every
// item is applied.
func (s *Service) ApplyAdjustments(ctx context.Context, docID id.ID) (*CycleCount, error) {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := documents.RequireStatus(doc.Status,
		"Cycle count must be approved to apply adjustments", StatusApproved); err != nil {
		return nil, err
	}

	for i := range doc.Items {
		if doc.Items[i].Applied {
			continue
		}
		if err := s.applyItem(ctx, doc, &doc.Items[i]); err != nil {
			logger.Error(ctx, "cycle count adjustment failed",
				"number", doc.Number,
				"product_id", doc.Items[i].ProductID,
				"error", err)
			return nil, err
		}
	}

	return s.transition(ctx, docID, StatusCompleted, "Cycle count must be approved to apply adjustments",
		[]Status{StatusApproved}, "Adjustments applied", func(locked *CycleCount, now time.Time) error {
			if !locked.AllApplied() {
				return apperror.NewConflict("Cycle count items are still being applied")
			}
			locked.CompletedAt = &now
			return s.events.Publish(ctx, domain.DomainEvent{
				AggregateType: EntityType,
				AggregateID:   locked.ID,
				EventType:     domain.EventCycleCountCompleted,
				Payload: map[string]any{
					"number":             locked.Number,
					"warehouseId":        locked.WarehouseID,
					"totalVariance":      locked.TotalVariance.String(),
					"totalVarianceValue": locked.TotalVarianceValue.String(),
				},
			})
		})
}

func (s *Service) applyItem(ctx context.Context, doc *CycleCount, item *Item) error {
	if !item.Counted() {
		return apperror.NewBusinessRule(apperror.CodeIncompleteCount, "Item was not counted").
			WithDetail("productId", item.ProductID)
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		res, err := s.ledger.Reconcile(ctx, ledger.ReconcileRequest{
			ProductID:       item.ProductID,
			WarehouseID:     doc.WarehouseID,
			CountedQuantity: *item.CountedQuantity,
			Reference:       ledger.Reference{Type: ledger.RefCycleCount, ID: &doc.ID, Number: doc.Number},
			IdempotencyKey:  adjustmentKey(doc.ID.String(), item.ProductID.String()),
			Notes:           "Cycle count " + doc.Number,
		})
		if err != nil {
			return err
		}

		item.SnapshotDrift = res.LiveQuantity - item.SystemQuantity
		if item.SnapshotDrift != 0 {
			logger.Warn(ctx, "stock moved since cycle count snapshot",
				"number", doc.Number,
				"product_id", item.ProductID,
				"system", item.SystemQuantity.String(),
				"live", res.LiveQuantity.String())
		}
		if res.Movement != nil {
			movementID := res.Movement.ID
			item.AppliedMovementID = &movementID
		}
		item.Applied = true
		return s.repo.SaveItem(ctx, doc.ID, *item)
	})
}

// Delete soft-deletes a draft cycle count.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return documents.NotFound(err, "Cycle count", docID.String())
		}
		if err := documents.RequireStatus(doc.Status, "Only draft cycle counts can be deleted", StatusDraft); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return s.audit.LogChange(ctx, EntityType, docID, domain.AuditActionDelete, map[string]any{"number": doc.Number})
	})
}

// ListResult is a page of cycle counts with the summary of the whole filter.
type ListResult struct {
	domain.ListResult[*CycleCount]
	Summary Summary `json:"summary"`
}

// List retrieves cycle counts with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	filter.Page = filter.Page.Normalize(50, 500)
	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list cycle counts: %w", err)
	}
	summary, err := s.repo.Summarize(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("summarize cycle counts: %w", err)
	}
	return &ListResult{ListResult: page, Summary: summary}, nil
}

func (s *Service) lockWithItems(ctx context.Context, docID id.ID) (*CycleCount, error) {
	doc, err := s.repo.GetForUpdate(ctx, docID)
	if err != nil {
		return nil, documents.NotFound(err, "Cycle count", docID.String())
	}
	items, err := s.repo.GetItems(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	doc.Items = items
	return doc, nil
}

// transition locks the count, checks the source status, runs fn and records
// the new status.
func (s *Service) transition(ctx context.Context, docID id.ID, to Status, msg string, from []Status,
	notes string, fn func(doc *CycleCount, now time.Time) error) (*CycleCount, error) {
	var doc *CycleCount
	var prev Status
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.lockWithItems(ctx, docID)
		if err != nil {
			return err
		}
		if err := documents.RequireStatus(locked.Status, msg, from...); err != nil {
			return err
		}
		now := s.now().UTC()
		if fn != nil {
			if err := fn(locked, now); err != nil {
				return err
			}
		}
		prev = locked.Status
		locked.Status = to
		locked.RecordStatus(string(to), appctx.GetUserID(ctx), notes)
		if err := s.repo.Update(ctx, locked); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		doc = locked
		return s.audit.LogChange(ctx, EntityType, locked.ID, domain.AuditActionTransition, map[string]any{
			"from": prev, "to": to,
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "cycle count status changed",
		"number", doc.Number,
		"from", prev,
		"to", to)
	return doc, nil
}
