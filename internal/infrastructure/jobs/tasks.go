// Package jobs runs the periodic maintenance of the ledger on asynq: the
// outbox relay, idempotency cleanup, alert scans, bin occupancy checks and
// reservation expiry.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"stockledger/internal/config"
)

// QueueDefault is the queue of every maintenance task.
const QueueDefault = "default"

// Task types.
const (
	TaskOutboxRelay        = "outbox:relay"
	TaskIdempotencyCleanup = "idempotency:cleanup"
	TaskAlertScan          = "stock:alert_scan"
	TaskOccupancyVerify    = "bins:verify_occupancy"
	TaskReservationExpiry  = "reservations:expire"
)

// Payload carries the scheduling metadata shared by the maintenance tasks.
type Payload struct {
	ScheduledFor time.Time `json:"scheduled_for"`

	// Repair lets the occupancy check rewrite drifted bins.
	Repair bool `json:"repair,omitempty"`
}

// NewTask constructs a maintenance task of the given type.
func NewTask(taskType string, payload Payload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// Schedule builds the cron table of the worker. An empty spec disables the
// task.
func Schedule(cfg config.WorkerConfig) ([]CronRegistration, error) {
	entries := []struct {
		spec    string
		task    string
		payload Payload
		opts    []asynq.Option
	}{
		// The relay runs often and must not pile up behind a slow sink.
		{cfg.CronOutboxRelay, TaskOutboxRelay, Payload{}, []asynq.Option{asynq.MaxRetry(0), asynq.Unique(time.Minute)}},
		{cfg.CronIdempotencyCleanup, TaskIdempotencyCleanup, Payload{}, []asynq.Option{asynq.MaxRetry(3)}},
		{cfg.CronAlertScan, TaskAlertScan, Payload{}, []asynq.Option{asynq.MaxRetry(1)}},
		{cfg.CronOccupancyVerify, TaskOccupancyVerify, Payload{Repair: true}, []asynq.Option{asynq.MaxRetry(3)}},
		{cfg.CronReservationExpiry, TaskReservationExpiry, Payload{}, []asynq.Option{asynq.MaxRetry(3), asynq.Unique(time.Minute)}},
	}

	out := make([]CronRegistration, 0, len(entries))
	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		task, err := NewTask(e.task, e.payload)
		if err != nil {
			return nil, err
		}
		out = append(out, CronRegistration{Spec: e.spec, Task: task, Options: e.opts})
	}
	return out, nil
}
