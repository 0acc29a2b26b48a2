package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/domain/bins"
	"stockledger/internal/domain/documents/reservation"
	"stockledger/internal/domain/reports"
	"stockledger/internal/infrastructure/events"
	"stockledger/internal/infrastructure/idempotency"
	"stockledger/pkg/logger"
)

// Metrics records job runs and the alert gauge.
type Metrics interface {
	JobFinished(task string, elapsed time.Duration, err error)
	SetAlerts(counts map[reports.AlertType]int)
}

// Deps are the services the maintenance tasks act on. A nil dependency
// leaves its task unregistered.
type Deps struct {
	Relay        *events.Relay
	Idempotency  idempotency.Store
	Reports      *reports.Service
	Bins         *bins.Service
	Reservations *reservation.Service
	Metrics      Metrics
	Logger       *logger.Logger

	// ExpiryBatch caps the reservations expired per run.
	ExpiryBatch int
}

// Jobs holds the task handlers.
type Jobs struct {
	deps Deps
	log  *logger.Logger
}

// New creates the task handlers.
func New(deps Deps) *Jobs {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	if deps.ExpiryBatch <= 0 {
		deps.ExpiryBatch = 200
	}
	return &Jobs{deps: deps, log: log.WithComponent("jobs")}
}

// Handlers returns the handlers of every configured task.
func (j *Jobs) Handlers() []TaskHandler {
	var out []TaskHandler
	add := func(taskType string, ok bool, fn func(context.Context, Payload) error) {
		if ok {
			out = append(out, TaskHandler{Type: taskType, Handler: j.wrap(taskType, fn)})
		}
	}
	add(TaskOutboxRelay, j.deps.Relay != nil, j.RelayOutbox)
	add(TaskIdempotencyCleanup, j.deps.Idempotency != nil, j.CleanupIdempotency)
	add(TaskAlertScan, j.deps.Reports != nil, j.ScanAlerts)
	add(TaskOccupancyVerify, j.deps.Bins != nil, j.VerifyOccupancy)
	add(TaskReservationExpiry, j.deps.Reservations != nil, j.ExpireReservations)
	return out
}

// wrap decodes the payload and records the run.
func (j *Jobs) wrap(taskType string, fn func(context.Context, Payload) error) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p Payload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &p); err != nil {
				return fmt.Errorf("decode %s payload: %w: %w", taskType, err, asynq.SkipRetry)
			}
		}
		taskID, _ := asynq.GetTaskID(ctx)
		ctx = appctx.WithTrace(ctx, appctx.TaskTrace(taskID))
		ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "worker", Source: "worker"})
		ctx = logger.WithLogger(ctx, j.log.With("task", taskType))

		start := time.Now()
		err := fn(ctx, p)
		if j.deps.Metrics != nil {
			j.deps.Metrics.JobFinished(taskType, time.Since(start), err)
		}
		return err
	}
}

// RelayOutbox delivers one batch of pending outbox messages.
func (j *Jobs) RelayOutbox(ctx context.Context, _ Payload) error {
	n, err := j.deps.Relay.ProcessBatch(ctx)
	if n > 0 {
		logger.Info(ctx, "outbox messages delivered", "count", n)
	}
	return err
}

// CleanupIdempotency removes expired idempotency keys.
func (j *Jobs) CleanupIdempotency(ctx context.Context, _ Payload) error {
	n, err := j.deps.Idempotency.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	if n > 0 {
		logger.Info(ctx, "expired idempotency keys removed", "count", n)
	}
	return nil
}

// ScanAlerts runs the stock alert scan and publishes the counts as gauges.
func (j *Jobs) ScanAlerts(ctx context.Context, _ Payload) error {
	report, err := j.deps.Reports.Alerts(ctx, reports.AlertFilter{})
	if err != nil {
		return fmt.Errorf("scan stock alerts: %w", err)
	}
	if j.deps.Metrics != nil {
		j.deps.Metrics.SetAlerts(report.Counts)
	}
	if len(report.Alerts) > 0 {
		logger.Info(ctx, "stock alerts",
			"total", len(report.Alerts),
			"out_of_stock", report.Counts[reports.AlertOutOfStock],
			"low_stock", report.Counts[reports.AlertLowStock],
			"expired", report.Counts[reports.AlertExpired],
		)
	}
	return nil
}

// VerifyOccupancy compares bin occupancy with the lots stored in each bin.
func (j *Jobs) VerifyOccupancy(ctx context.Context, p Payload) error {
	drift, err := j.deps.Bins.VerifyOccupancy(ctx, nil, p.Repair)
	if err != nil {
		return fmt.Errorf("verify bin occupancy: %w", err)
	}
	for _, d := range drift {
		logger.Warn(ctx, "bin occupancy drift",
			"bin", d.BinCode,
			"stored_sqft", d.StoredSqft,
			"actual_sqft", d.ActualSqft,
			"stored_lots", d.StoredLotCount,
			"actual_lots", d.ActualLotCount,
			"repaired", d.Repaired,
		)
	}
	return nil
}

// ExpireReservations releases reservations past their expiry.
func (j *Jobs) ExpireReservations(ctx context.Context, _ Payload) error {
	n, err := j.deps.Reservations.ExpireDue(ctx, j.deps.ExpiryBatch)
	if n > 0 {
		logger.Info(ctx, "reservations expired", "count", n)
	}
	if err != nil {
		return fmt.Errorf("expire reservations: %w", err)
	}
	return nil
}
