package transfer

import (
	"context"
	"fmt"
	"slices"
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

// Service provides business operations for transfers.
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

// ServiceConfig wires the transfer service.
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

// NewService creates a transfer service.
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

// CreateRequest is a new transfer.
type CreateRequest struct {
	FromWarehouseID id.ID
	ToWarehouseID   id.ID
	ExpectedDate    *time.Time
	Notes           string
	Items           []ItemRequest
}

// ItemRequest is one product to transfer.
type ItemRequest struct {
	ProductID   id.ID
	Quantity    types.Quantity
	BatchNumber string
	Notes       string
}

// Create validates the warehouses and the stock on hand at the source and
// stores a draft transfer. Nothing is reserved until dispatch.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Transfer, error) {
	doc := NewTransfer(req.FromWarehouseID, req.ToWarehouseID)
	for _, it := range req.Items {
		doc.AddItem(Item{ProductID: it.ProductID, Quantity: it.Quantity, BatchNumber: it.BatchNumber, Notes: it.Notes})
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.catalog.RequireWarehouse(ctx, req.FromWarehouseID); err != nil {
		return nil, err
	}
	if err := s.catalog.RequireWarehouse(ctx, req.ToWarehouseID); err != nil {
		return nil, err
	}

	for i := range doc.Items {
		it := &doc.Items[i]
		info, err := s.catalog.Product(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		available := types.Quantity(0)
		it.UnitCost = info.CostPrice
		bal, err := s.ledger.GetBalance(ctx, it.ProductID, req.FromWarehouseID)
		switch {
		case err == nil:
			available = bal.AvailableQty()
			it.UnitCost = bal.AvgCostPrice
		case !apperror.IsNotFound(err):
			return nil, err
		}
		if available < it.Quantity {
			return nil, apperror.NewInsufficientStock(it.ProductID.String(), it.Quantity.Float64(), available.Float64()).
				WithDetail("product", info.Name)
		}
	}
	doc.Recalculate()

	now := s.now().UTC()
	user := appctx.GetUserID(ctx)
	doc.Date = now
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.CreatedBy = user
	doc.ExpectedDate = req.ExpectedDate
	doc.Notes = req.Notes

	number, err := s.numerator.Next(ctx, NumberConfig(), now)
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	doc.Number = number
	doc.RecordStatus(string(StatusDraft), user, "Transfer created")

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
	logger.Info(ctx, "transfer created",
		"number", doc.Number,
		"from", doc.FromWarehouseID,
		"to", doc.ToWarehouseID)
	return doc, nil
}

// GetByID retrieves a transfer with its items.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Transfer, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, documents.NotFound(err, "Transfer", docID.String())
	}
	items, err := s.repo.GetItems(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	doc.Items = items
	return doc, nil
}

// Approve moves a draft transfer to approved.
func (s *Service) Approve(ctx context.Context, docID id.ID, notes string) (*Transfer, error) {
	return s.transition(ctx, docID, StatusApproved, "Only draft transfers can be approved",
		[]Status{StatusDraft}, notes, func(ctx context.Context, doc *Transfer, now time.Time) error {
			doc.ApprovedBy = appctx.GetUserID(ctx)
			doc.ApprovedAt = &now
			return nil
		})
}

// Dispatch posts a transfer_out per item at the source. The source average
// cost of each outward movement becomes the cost of the inward one.
func (s *Service) Dispatch(ctx context.Context, docID id.ID, notes string) (*Transfer, error) {
	return s.transition(ctx, docID, StatusInTransit, "Only approved transfers can be dispatched",
		[]Status{StatusApproved}, notes, func(ctx context.Context, doc *Transfer, now time.Time) error {
			for i := range doc.Items {
				it := &doc.Items[i]
				res, err := s.ledger.RecordMovement(ctx, ledger.RecordRequest{
					Type:           ledger.MovementTransferOut,
					ProductID:      it.ProductID,
					WarehouseID:    doc.FromWarehouseID,
					Quantity:       it.Quantity,
					Reference:      reference(doc),
					IdempotencyKey: fmt.Sprintf("tr:%s:out:%d", doc.ID, it.LineNo),
					Notes:          "Transfer " + doc.Number + " dispatched",
				})
				if err != nil {
					return err
				}
				it.UnitCost = res.Movement.UnitCost
			}
			doc.Recalculate()
			doc.DispatchedBy = appctx.GetUserID(ctx)
			doc.DispatchedAt = &now
			return s.events.Publish(ctx, domain.DomainEvent{
				AggregateType: EntityType,
				AggregateID:   doc.ID,
				EventType:     domain.EventTransferDispatched,
				Payload:       map[string]any{"number": doc.Number, "from": doc.FromWarehouseID, "to": doc.ToWarehouseID},
			})
		})
}

// ReceivedItem is a quantity arrived at the destination.
type ReceivedItem struct {
	ProductID id.ID
	Quantity  types.Quantity
}

// Receive posts a transfer_in at the destination for every received quantity.
// Partial receipts are allowed; an item never receives more than was sent.
func (s *Service) Receive(ctx context.Context, docID id.ID, received []ReceivedItem, notes string) (*Transfer, error) {
	if len(received) == 0 {
		return nil, apperror.NewValidation("Received items are required").WithDetail("field", "receivedItems")
	}
	var to Status
	doc, err := s.transitionFunc(ctx, docID, "Only in-transit transfers can be received",
		[]Status{StatusInTransit, StatusPartialReceived}, notes, func(ctx context.Context, doc *Transfer, now time.Time) (Status, error) {
			seq := len(doc.History)
			for _, r := range received {
				if r.Quantity.IsNegative() {
					return "", apperror.NewValidation("received quantity must not be negative").
						WithDetail("productId", r.ProductID)
				}
				i := slices.IndexFunc(doc.Items, func(it Item) bool { return it.ProductID == r.ProductID })
				if i < 0 || r.Quantity == 0 {
					continue
				}
				it := &doc.Items[i]
				if it.ReceivedQuantity+r.Quantity > it.Quantity {
					return "", apperror.NewBusinessRule(apperror.CodeTransferQuantity,
						"Cannot receive more than transferred").
						WithDetail("productId", it.ProductID).
						WithDetail("outstanding", it.Outstanding().Float64())
				}
				cost := it.UnitCost
				if _, err := s.ledger.RecordMovement(ctx, ledger.RecordRequest{
					Type:           ledger.MovementTransferIn,
					ProductID:      it.ProductID,
					WarehouseID:    doc.ToWarehouseID,
					Quantity:       r.Quantity,
					UnitCost:       &cost,
					Batch:          batchOf(it),
					Reference:      reference(doc),
					IdempotencyKey: fmt.Sprintf("tr:%s:in:%d:%d", doc.ID, it.LineNo, seq),
					Notes:          "Transfer " + doc.Number + " received",
				}); err != nil {
					return "", err
				}
				it.ReceivedQuantity += r.Quantity
			}
			doc.Recalculate()
			doc.ReceivedBy = appctx.GetUserID(ctx)
			doc.ReceivedAt = &now

			to = StatusPartialReceived
			if doc.FullyReceived() {
				to = StatusReceived
			}
			return to, s.events.Publish(ctx, domain.DomainEvent{
				AggregateType: EntityType,
				AggregateID:   doc.ID,
				EventType:     domain.EventTransferReceived,
				Payload: map[string]any{
					"number":           doc.Number,
					"receivedQuantity": doc.ReceivedQuantity.String(),
					"complete":         to == StatusReceived,
				},
			})
		})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Complete closes a fully received transfer.
func (s *Service) Complete(ctx context.Context, docID id.ID, notes string) (*Transfer, error) {
	return s.transition(ctx, docID, StatusCompleted, "Only fully received transfers can be completed",
		[]Status{StatusReceived}, notes, func(_ context.Context, doc *Transfer, now time.Time) error {
			doc.CompletedAt = &now
			return nil
		})
}

// Cancel abandons a transfer that is not completed. Stock still in transit is
// returned to the source with a transfer_in; received stock stays where it is.
func (s *Service) Cancel(ctx context.Context, docID id.ID, reason string) (*Transfer, error) {
	return s.transition(ctx, docID, StatusCancelled, "Completed transfers cannot be cancelled",
		[]Status{StatusDraft, StatusApproved, StatusInTransit, StatusPartialReceived, StatusReceived}, reason,
		func(ctx context.Context, doc *Transfer, _ time.Time) error {
			if doc.DispatchedAt != nil {
				for i := range doc.Items {
					it := &doc.Items[i]
					out := it.Outstanding()
					if out <= 0 {
						continue
					}
					cost := it.UnitCost
					if _, err := s.ledger.RecordMovement(ctx, ledger.RecordRequest{
						Type:           ledger.MovementTransferIn,
						ProductID:      it.ProductID,
						WarehouseID:    doc.FromWarehouseID,
						Quantity:       out,
						UnitCost:       &cost,
						Reference:      reference(doc),
						IdempotencyKey: fmt.Sprintf("tr:%s:return:%d", doc.ID, it.LineNo),
						Notes:          "Transfer " + doc.Number + " cancelled",
					}); err != nil {
						return err
					}
				}
			}
			doc.CancellationReason = reason
			return nil
		})
}

// Delete soft-deletes a draft transfer.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return documents.NotFound(err, "Transfer", docID.String())
		}
		if err := documents.RequireStatus(doc.Status, "Only draft transfers can be deleted", StatusDraft); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return s.audit.LogChange(ctx, EntityType, docID, domain.AuditActionDelete, map[string]any{"number": doc.Number})
	})
}

// ListResult is a page of transfers with the summary of the whole filter.
type ListResult struct {
	domain.ListResult[*Transfer]
	Summary Summary `json:"summary"`
}

// List retrieves transfers with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	filter.Page = filter.Page.Normalize(50, 500)
	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	summary, err := s.repo.Summarize(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("summarize transfers: %w", err)
	}
	return &ListResult{ListResult: page, Summary: summary}, nil
}

func (s *Service) transition(ctx context.Context, docID id.ID, to Status, msg string, from []Status, notes string,
	fn func(ctx context.Context, doc *Transfer, now time.Time) error) (*Transfer, error) {
	return s.transitionFunc(ctx, docID, msg, from, notes, func(ctx context.Context, doc *Transfer, now time.Time) (Status, error) {
		if fn == nil {
			return to, nil
		}
		return to, fn(ctx, doc, now)
	})
}

// transitionFunc locks the transfer, checks the source status and lets fn
// decide the target status.
func (s *Service) transitionFunc(ctx context.Context, docID id.ID, msg string, from []Status, notes string,
	fn func(ctx context.Context, doc *Transfer, now time.Time) (Status, error)) (*Transfer, error) {
	var doc *Transfer
	var prev, to Status
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return documents.NotFound(err, "Transfer", docID.String())
		}
		if err := documents.RequireStatus(locked.Status, msg, from...); err != nil {
			return err
		}
		items, err := s.repo.GetItems(ctx, docID)
		if err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		locked.Items = items

		now := s.now().UTC()
		to, err = fn(ctx, locked, now)
		if err != nil {
			return err
		}
		prev = locked.Status
		locked.Status = to
		if notes == "" {
			notes = "Status changed to " + string(to)
		}
		locked.RecordStatus(string(to), appctx.GetUserID(ctx), notes)
		if err := s.repo.Update(ctx, locked); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveItems(ctx, locked.ID, locked.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		doc = locked
		return s.audit.LogChange(ctx, EntityType, locked.ID, domain.AuditActionTransition, map[string]any{
			"from": prev, "to": to,
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "transfer status changed",
		"number", doc.Number,
		"from", prev,
		"to", to)
	return doc, nil
}

func reference(doc *Transfer) ledger.Reference {
	return ledger.Reference{Type: ledger.RefTransfer, ID: &doc.ID, Number: doc.Number}
}

func batchOf(it *Item) *ledger.BatchInfo {
	if it.BatchNumber == "" {
		return nil
	}
	return &ledger.BatchInfo{BatchNumber: it.BatchNumber}
}
