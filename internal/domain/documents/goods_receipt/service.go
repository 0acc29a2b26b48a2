package goods_receipt

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
	"stockledger/internal/domain/lots"
	"stockledger/pkg/logger"
)

// Service provides business operations for goods receipts.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	catalog   ledger.Catalog
	lots      *lots.Service
	numerator numerator.Generator
	txManager tx.Manager
	events    domain.EventPublisher
	audit     domain.AuditRecorder
	hooks     *domain.HookRegistry[*GoodsReceipt]
	now       func() time.Time
}

// ServiceConfig wires the goods receipt service.
type ServiceConfig struct {
	Repo      Repository
	Ledger    *ledger.Service
	Catalog   ledger.Catalog
	Lots      *lots.Service
	Numerator numerator.Generator
	TxManager tx.Manager
	Events    domain.EventPublisher
	Audit     domain.AuditRecorder
	Clock     func() time.Time
}

// NewService creates a goods receipt service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:      cfg.Repo,
		ledger:    cfg.Ledger,
		catalog:   cfg.Catalog,
		lots:      cfg.Lots,
		numerator: cfg.Numerator,
		txManager: cfg.TxManager,
		events:    cfg.Events,
		audit:     cfg.Audit,
		hooks:     domain.NewHookRegistry[*GoodsReceipt](),
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

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*GoodsReceipt] {
	return s.hooks
}

// CreateRequest is a new goods receipt.
type CreateRequest struct {
	WarehouseID         id.ID
	VendorID            *id.ID
	PurchaseOrderNumber string
	InvoiceNumber       string
	InvoiceDate         *time.Time
	Notes               string
	Items               []ItemRequest
}

// ItemRequest is one expected line. UnitCost defaults to the product cost price.
type ItemRequest struct {
	ProductID         id.ID
	Quantity          types.Quantity
	UnitCost          *types.Money
	BatchNumber       string
	LotNumber         string
	ManufacturingDate *time.Time
	ExpiryDate        *time.Time
}

// Create validates and stores a draft goods receipt.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*GoodsReceipt, error) {
	if id.IsNil(req.WarehouseID) {
		return nil, apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if len(req.Items) == 0 {
		return nil, apperror.NewValidation("at least one item is required").WithDetail("field", "items")
	}
	if err := s.catalog.RequireWarehouse(ctx, req.WarehouseID); err != nil {
		return nil, err
	}

	doc := NewGoodsReceipt(req.WarehouseID)
	doc.VendorID = req.VendorID
	doc.PurchaseOrderNumber = req.PurchaseOrderNumber
	doc.InvoiceNumber = req.InvoiceNumber
	doc.InvoiceDate = req.InvoiceDate
	doc.Notes = req.Notes
	doc.Date = s.now().UTC()
	doc.CreatedAt = doc.Date
	doc.UpdatedAt = doc.Date
	doc.CreatedBy = appctx.GetUserID(ctx)

	for i, it := range req.Items {
		if !it.Quantity.IsPositive() {
			return nil, apperror.NewValidation("quantity must be positive").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		info, err := s.catalog.Product(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		cost := info.CostPrice
		if it.UnitCost != nil {
			cost = *it.UnitCost
		}
		doc.AddItem(Item{
			ProductID:         it.ProductID,
			Quantity:          it.Quantity,
			UnitCost:          cost,
			BatchNumber:       it.BatchNumber,
			LotNumber:         it.LotNumber,
			ManufacturingDate: it.ManufacturingDate,
			ExpiryDate:        it.ExpiryDate,
		})
	}

	if err := s.hooks.Run(ctx, domain.BeforeCreate, doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}

	number, err := s.numerator.Next(ctx, NumberConfig(), doc.Date)
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	doc.Number = number
	doc.RecordStatus(string(StatusDraft), doc.CreatedBy, "GRN created")

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveItems(ctx, doc.ID, doc.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		return s.audit.LogChange(ctx, EntityType, doc.ID, domain.AuditActionCreate, map[string]any{
			"number":     doc.Number,
			"items":      len(doc.Items),
			"totalValue": doc.TotalValue.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterCreate, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "goods receipt created",
		"id", doc.ID,
		"number", doc.Number,
		"items", len(doc.Items))

	return doc, nil
}

// GetByID retrieves a goods receipt with its items.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*GoodsReceipt, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, documents.NotFound(err, "GRN", docID.String())
	}

	items, err := s.repo.GetItems(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	doc.Items = items

	return doc, nil
}

// Receive posts every item to the ledger as a goods receipt and registers the
// lots of items carrying a lot number. A goods receipt is received once.
func (s *Service) Receive(ctx context.Context, docID id.ID) (*GoodsReceipt, error) {
	var doc *GoodsReceipt
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return documents.NotFound(err, "GRN", docID.String())
		}
		if err := documents.RequireStatus(locked.Status, "Only draft GRNs can be received", StatusDraft); err != nil {
			return err
		}
		items, err := s.repo.GetItems(ctx, docID)
		if err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		locked.Items = items

		now := s.now().UTC()
		user := appctx.GetUserID(ctx)
		for i := range locked.Items {
			line := &locked.Items[i]
			cost := line.UnitCost
			res, err := s.ledger.RecordMovement(ctx, ledger.RecordRequest{
				Type:        ledger.MovementGoodsReceipt,
				ProductID:   line.ProductID,
				WarehouseID: locked.WarehouseID,
				Quantity:    line.Quantity,
				UnitCost:    &cost,
				Batch: &ledger.BatchInfo{
					BatchNumber:       line.BatchNumber,
					LotNumber:         line.LotNumber,
					ManufacturingDate: line.ManufacturingDate,
					ExpiryDate:        line.ExpiryDate,
					VendorID:          locked.VendorID,
				},
				Reference:      ledger.Reference{Type: ledger.RefGoodsReceipt, ID: &locked.ID, Number: locked.Number},
				IdempotencyKey: fmt.Sprintf("grn:%s:%d", locked.ID, line.LineNo),
				Notes:          "GRN " + locked.Number,
			})
			if err != nil {
				return err
			}
			movementID := res.Movement.ID
			line.MovementID = &movementID

			if line.LotNumber != "" && s.lots != nil {
				if _, err := s.lots.RegisterReceived(ctx, lots.ReceivedLot{
					LotNumber:   line.LotNumber,
					ProductID:   line.ProductID,
					WarehouseID: locked.WarehouseID,
					Sqft:        line.Quantity,
					UnitCost:    line.UnitCost,
					ExpiryDate:  line.ExpiryDate,
					GRNID:       locked.ID,
					ReceivedAt:  now,
				}); err != nil {
					return err
				}
			}
		}

		locked.Status = StatusReceived
		locked.ReceivedAt = &now
		locked.ReceivedBy = user
		locked.RecordStatus(string(StatusReceived), user, "Goods received")
		if err := s.repo.Update(ctx, locked); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveItems(ctx, locked.ID, locked.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}

		if err := s.events.Publish(ctx, domain.DomainEvent{
			AggregateType: EntityType,
			AggregateID:   locked.ID,
			EventType:     domain.EventGoodsReceiptReceived,
			Payload: map[string]any{
				"number":        locked.Number,
				"warehouseId":   locked.WarehouseID,
				"totalQuantity": locked.TotalQuantity.String(),
				"totalValue":    locked.TotalValue.String(),
			},
		}); err != nil {
			return err
		}
		doc = locked
		return s.audit.LogChange(ctx, EntityType, locked.ID, domain.AuditActionTransition, map[string]any{
			"from": StatusDraft, "to": StatusReceived,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "goods receipt received",
		"number", doc.Number,
		"items", len(doc.Items),
		"total_value", doc.TotalValue.String())
	return doc, nil
}

// Cancel moves a draft goods receipt to cancelled. No stock is touched.
func (s *Service) Cancel(ctx context.Context, docID id.ID, reason string) (*GoodsReceipt, error) {
	var doc *GoodsReceipt
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return documents.NotFound(err, "GRN", docID.String())
		}
		if err := documents.RequireStatus(locked.Status, "Only draft GRNs can be cancelled", StatusDraft); err != nil {
			return err
		}
		locked.Status = StatusCancelled
		locked.RecordStatus(string(StatusCancelled), appctx.GetUserID(ctx), reason)
		if err := s.repo.Update(ctx, locked); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		doc = locked
		return s.audit.LogChange(ctx, EntityType, locked.ID, domain.AuditActionTransition, map[string]any{
			"from": StatusDraft, "to": StatusCancelled, "reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "goods receipt cancelled", "number", doc.Number)
	return doc, nil
}

// Delete soft-deletes a draft goods receipt.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return documents.NotFound(err, "GRN", docID.String())
		}
		if err := documents.RequireStatus(doc.Status, "Only draft GRNs can be deleted", StatusDraft); err != nil {
			return err
		}
		if err := s.hooks.Run(ctx, domain.BeforeDelete, doc); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return s.audit.LogChange(ctx, EntityType, docID, domain.AuditActionDelete, map[string]any{"number": doc.Number})
	})
}

// ListResult is a page of goods receipts with the summary of the whole filter.
type ListResult struct {
	domain.ListResult[*GoodsReceipt]
	Summary Summary `json:"summary"`
}

// List retrieves goods receipts with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	filter.Page = filter.Page.Normalize(50, 500)
	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list goods receipts: %w", err)
	}
	summary, err := s.repo.Summarize(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("summarize goods receipts: %w", err)
	}
	return &ListResult{ListResult: page, Summary: summary}, nil
}
