package reservation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// Service provides reservation operations.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	numerator numerator.Generator
	txManager tx.Manager
	audit     domain.AuditRecorder
	now       func() time.Time
}

// ServiceConfig wires the reservation service.
type ServiceConfig struct {
	Repo      Repository
	Ledger    *ledger.Service
	Numerator numerator.Generator
	TxManager tx.Manager
	Audit     domain.AuditRecorder
	Clock     func() time.Time
}

// NewService creates a reservation service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:      cfg.Repo,
		ledger:    cfg.Ledger,
		numerator: cfg.Numerator,
		txManager: cfg.TxManager,
		audit:     cfg.Audit,
		now:       cfg.Clock,
	}
	if s.audit == nil {
		s.audit = domain.NopAuditRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateRequest reserves stock for a document.
type CreateRequest struct {
	ProductID    id.ID
	WarehouseID  id.ID
	Quantity     types.Quantity
	UnitPrice    types.Money
	RefType      string
	RefID        string
	RefNumber    string
	CustomerName string
	ExpiresAt    *time.Time
	Notes        string

	// IdempotencyKey makes a retried create return the first reservation.
	IdempotencyKey string
}

// Create posts a reservation movement and stores the reservation. The ledger
// rejects it when the available quantity is short. A repeated idempotency key
// returns the reservation created under it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Reservation, error) {
	key := req.IdempotencyKey
	if key != "" {
		key = "rs:" + key
		if r, err := s.replay(ctx, key); r != nil || err != nil {
			return r, err
		}
	}

	now := s.now().UTC()
	user := appctx.GetUserID(ctx)

	r := &Reservation{
		Document:     entityDocument(now, user, req.Notes),
		ProductID:    req.ProductID,
		WarehouseID:  req.WarehouseID,
		RequestedQty: req.Quantity,
		ReservedQty:  req.Quantity,
		UnitPrice:    req.UnitPrice,
		RefType:      strings.TrimSpace(req.RefType),
		RefID:        req.RefID,
		RefNumber:    req.RefNumber,
		CustomerName: req.CustomerName,
		Status:       StatusActive,
		ExpiresAt:    now.Add(DefaultExpiry),
	}
	if r.RefType == "" {
		r.RefType = ledger.RefManual
	}
	if req.ExpiresAt != nil {
		if !req.ExpiresAt.After(now) {
			return nil, apperror.NewValidation("expiry must be in the future").WithDetail("field", "expiresAt")
		}
		r.ExpiresAt = req.ExpiresAt.UTC()
	}
	if err := r.Validate(ctx); err != nil {
		return nil, err
	}
	r.recalculate()

	number, err := s.numerator.Next(ctx, NumberConfig(), now)
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	r.Number = number
	r.RecordStatus(string(StatusActive), user, fmt.Sprintf("Reservation created for %s: %s", r.RefType, refLabel(r)))

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		res, err := s.ledger.RecordMovement(ctx, ledger.RecordRequest{
			Type:           ledger.MovementReservation,
			ProductID:      r.ProductID,
			WarehouseID:    r.WarehouseID,
			Quantity:       r.ReservedQty,
			Reference:      reference(r),
			IdempotencyKey: key,
			Notes:          "Reservation " + r.Number,
		})
		if err != nil {
			return err
		}
		if res.Replayed {
			return apperror.NewIdempotencyConflict(req.IdempotencyKey)
		}
		r.StockAtReservation = res.Movement.StockBefore
		r.AvailableAtReservation = res.Movement.StockBefore - res.Movement.ReservedBefore
		if err := s.repo.Create(ctx, r); err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
		return s.audit.LogChange(ctx, EntityType, r.ID, domain.AuditActionCreate, map[string]any{
			"number": r.Number, "quantity": r.ReservedQty.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock reserved",
		"number", r.Number,
		"product_id", r.ProductID,
		"warehouse_id", r.WarehouseID,
		"quantity", r.ReservedQty.String())
	return r, nil
}

// replay returns the reservation already created under key, if any.
func (s *Service) replay(ctx context.Context, key string) (*Reservation, error) {
	mv, err := s.ledger.MovementByIdempotencyKey(ctx, key)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if mv.ReferenceID == nil {
		return nil, apperror.NewIdempotencyMismatch(key)
	}
	return s.Get(ctx, *mv.ReferenceID)
}

// Get returns one reservation.
func (s *Service) Get(ctx context.Context, resID id.ID) (*Reservation, error) {
	r, err := s.repo.GetByID(ctx, resID)
	if err != nil {
		return nil, documents.NotFound(err, "Reservation", resID.String())
	}
	return r, nil
}

// Fulfill converts qty of the held stock into a goods issue. A zero qty
// fulfills everything still reserved. The release and the issue are posted
// in one transaction.
func (s *Service) Fulfill(ctx context.Context, resID id.ID, qty types.Quantity, notes string) (*Reservation, error) {
	return s.act(ctx, resID, "Only active reservations can be fulfilled", notes,
		func(ctx context.Context, r *Reservation) (Status, error) {
			q, err := pick(qty, r.ReservedQty, r.ProductID)
			if err != nil {
				return "", err
			}
			if err := s.post(ctx, r, ledger.MovementRelease, q, "fulfill"); err != nil {
				return "", err
			}
			if err := s.post(ctx, r, ledger.MovementGoodsIssue, q, "fulfill"); err != nil {
				return "", err
			}
			r.ReservedQty -= q
			r.FulfilledQty += q
			if r.ReservedQty == 0 {
				return StatusFulfilled, nil
			}
			return StatusActive, nil
		})
}

// Release gives qty of the held stock back to available. A zero qty releases
// everything still reserved.
func (s *Service) Release(ctx context.Context, resID id.ID, qty types.Quantity, notes string) (*Reservation, error) {
	return s.act(ctx, resID, "Only active reservations can be released", notes,
		func(ctx context.Context, r *Reservation) (Status, error) {
			q, err := pick(qty, r.ReservedQty, r.ProductID)
			if err != nil {
				return "", err
			}
			if err := s.post(ctx, r, ledger.MovementRelease, q, "release"); err != nil {
				return "", err
			}
			r.ReservedQty -= q
			r.ReleasedQty += q
			if r.ReservedQty == 0 {
				return StatusReleased, nil
			}
			return StatusActive, nil
		})
}

// Extend moves the expiry of an active reservation.
func (s *Service) Extend(ctx context.Context, resID id.ID, expiresAt time.Time, notes string) (*Reservation, error) {
	if expiresAt.IsZero() {
		return nil, apperror.NewValidation("New expiry date required").WithDetail("field", "newExpiryDate")
	}
	if notes == "" {
		notes = "Expiry extended to " + expiresAt.UTC().Format(time.DateOnly)
	}
	return s.act(ctx, resID, "Only active reservations can be extended", notes,
		func(_ context.Context, r *Reservation) (Status, error) {
			if !expiresAt.After(s.now()) {
				return "", apperror.NewValidation("expiry must be in the future").WithDetail("field", "newExpiryDate")
			}
			r.ExpiresAt = expiresAt.UTC()
			return StatusActive, nil
		})
}

// Cancel releases whatever is still held and closes the reservation.
func (s *Service) Cancel(ctx context.Context, resID id.ID, reason string) (*Reservation, error) {
	return s.act(ctx, resID, "Only active reservations can be cancelled", reason,
		func(ctx context.Context, r *Reservation) (Status, error) {
			if err := s.releaseRemaining(ctx, r, "cancel"); err != nil {
				return "", err
			}
			return StatusCancelled, nil
		})
}

// Expire closes one reservation past its expiry.
func (s *Service) Expire(ctx context.Context, resID id.ID) (*Reservation, error) {
	return s.act(ctx, resID, "Only active reservations can expire", "Reservation expired",
		func(ctx context.Context, r *Reservation) (Status, error) {
			if !r.IsExpired(s.now()) {
				return "", apperror.NewBusinessRule(apperror.CodeBusinessRule, "Reservation has not expired yet").
					WithDetail("expiresAt", r.ExpiresAt)
			}
			if err := s.releaseRemaining(ctx, r, "expire"); err != nil {
				return "", err
			}
			return StatusExpired, nil
		})
}

// ExpireDue expires up to limit reservations past their expiry and returns how
// many were closed. Failures are logged and skipped.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	due, err := s.repo.ListExpired(ctx, s.now().UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired reservations: %w", err)
	}
	expired := 0
	for _, r := range due {
		if _, err := s.Expire(ctx, r.ID); err != nil {
			logger.Warn(ctx, "reservation expiry failed", "number", r.Number, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// ListResult is a page of reservations with the summary of the whole filter.
type ListResult struct {
	domain.ListResult[*Reservation]
	Summary Summary `json:"summary"`
}

// List retrieves reservations with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	filter.Page = filter.Page.Normalize(50, 500)
	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	summary, err := s.repo.Summarize(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("summarize reservations: %w", err)
	}
	return &ListResult{ListResult: page, Summary: summary}, nil
}

func (s *Service) releaseRemaining(ctx context.Context, r *Reservation, action string) error {
	if r.ReservedQty <= 0 {
		return nil
	}
	if err := s.post(ctx, r, ledger.MovementRelease, r.ReservedQty, action); err != nil {
		return err
	}
	r.ReleasedQty += r.ReservedQty
	r.ReservedQty = 0
	return nil
}

// post records a movement for r. Releases are clamped to the reserve the
// balance still holds; the document is closed out in full regardless.
func (s *Service) post(ctx context.Context, r *Reservation, t ledger.MovementType, qty types.Quantity, action string) error {
	req := ledger.RecordRequest{
		Type:        t,
		ProductID:   r.ProductID,
		WarehouseID: r.WarehouseID,
		Quantity:    qty,
		Reference:   reference(r),
		Notes:       fmt.Sprintf("Reservation %s %s", r.Number, action),
	}
	if t == ledger.MovementRelease {
		_, err := s.ledger.ReleaseHeld(ctx, req)
		return err
	}
	_, err := s.ledger.RecordMovement(ctx, req)
	return err
}

// act locks an active reservation, applies fn and records the resulting status.
func (s *Service) act(ctx context.Context, resID id.ID, msg, notes string,
	fn func(ctx context.Context, r *Reservation) (Status, error)) (*Reservation, error) {
	var out *Reservation
	var prev Status
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, resID)
		if err != nil {
			return documents.NotFound(err, "Reservation", resID.String())
		}
		if err := documents.RequireStatus(r.Status, msg, StatusActive); err != nil {
			return err
		}
		prev = r.Status
		to, err := fn(ctx, r)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		r.Status = to
		if to != StatusActive {
			r.ClosedAt = &now
		}
		r.recalculate()
		if notes == "" {
			notes = "Status changed to " + string(to)
		}
		r.RecordStatus(string(to), appctx.GetUserID(ctx), notes)
		if err := s.repo.Update(ctx, r); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		out = r
		return s.audit.LogChange(ctx, EntityType, r.ID, domain.AuditActionTransition, map[string]any{
			"from": prev, "to": to, "reservedQty": r.ReservedQty.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "reservation updated",
		"number", out.Number,
		"status", out.Status,
		"reserved", out.ReservedQty.String())
	return out, nil
}

// pick resolves the quantity of a partial action against what is reserved.
func pick(qty, reserved types.Quantity, productID id.ID) (types.Quantity, error) {
	if qty.IsNegative() {
		return 0, apperror.NewValidation("quantity must not be negative").WithDetail("field", "quantity")
	}
	if qty == 0 {
		return reserved, nil
	}
	if qty > reserved {
		return 0, apperror.NewOverRelease(productID.String(), qty.Float64(), reserved.Float64())
	}
	return qty, nil
}

func entityDocument(now time.Time, user, notes string) entity.Document {
	d := entity.NewDocument()
	d.Date = now
	d.CreatedAt = now
	d.UpdatedAt = now
	d.CreatedBy = user
	d.Notes = notes
	return d
}

func reference(r *Reservation) ledger.Reference {
	return ledger.Reference{Type: ledger.RefReservation, ID: &r.ID, Number: r.Number}
}

func refLabel(r *Reservation) string {
	switch {
	case r.RefNumber != "":
		return r.RefNumber
	case r.RefID != "":
		return r.RefID
	}
	return "N/A"
}
