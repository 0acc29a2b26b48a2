package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app/apptest"
	"stockledger/internal/config"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/bins"
	"stockledger/internal/domain/documents/reservation"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/lots"
	"stockledger/internal/domain/reports"
	"stockledger/internal/infrastructure/events"
	"stockledger/internal/infrastructure/jobs"
	"stockledger/internal/infrastructure/storage/memory"
)

type recordedRun struct {
	task string
	err  error
}

type fakeMetrics struct {
	mu     sync.Mutex
	runs   []recordedRun
	alerts map[reports.AlertType]int
}

func (m *fakeMetrics) JobFinished(task string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, recordedRun{task: task, err: err})
}

func (m *fakeMetrics) SetAlerts(counts map[reports.AlertType]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = counts
}

func handlerFor(t *testing.T, j *jobs.Jobs, taskType string) asynq.HandlerFunc {
	t.Helper()
	for _, h := range j.Handlers() {
		if h.Type == taskType {
			return h.Handler
		}
	}
	t.Fatalf("no handler for %s", taskType)
	return nil
}

func run(t *testing.T, j *jobs.Jobs, taskType string, payload jobs.Payload) error {
	t.Helper()
	task, err := jobs.NewTask(taskType, payload)
	require.NoError(t, err)
	return handlerFor(t, j, taskType)(context.Background(), task)
}

func TestHandlers_OnlyConfiguredTasks(t *testing.T) {
	env := apptest.New(t)
	j := jobs.New(jobs.Deps{Reports: env.Reports, Reservations: env.Reservations})

	var registered []string
	for _, h := range j.Handlers() {
		registered = append(registered, h.Type)
	}
	assert.ElementsMatch(t, []string{jobs.TaskAlertScan, jobs.TaskReservationExpiry}, registered)
}

func TestRelayOutbox_DeliversLedgerEvents(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	p := env.Product(t, "OAK-01")
	w := env.Warehouse(t, "MAIN")
	env.Receive(t, p, w, 10, "12.50")

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	metrics := &fakeMetrics{}
	relay := events.NewRelay(env.Repos.Outbox, events.NewStreamSink(client, "", 0), 10)
	j := jobs.New(jobs.Deps{Relay: relay, Metrics: metrics})

	require.NoError(t, run(t, j, jobs.TaskOutboxRelay, jobs.Payload{}))

	entries, err := client.XRange(ctx, events.DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	assert.Empty(t, env.Repos.Outbox.(*memory.Outbox).Messages(ctx, events.StatusPending))

	require.Len(t, metrics.runs, 1)
	assert.Equal(t, jobs.TaskOutboxRelay, metrics.runs[0].task)
	assert.NoError(t, metrics.runs[0].err)
}

func TestCleanupIdempotency_RemovesExpiredKeys(t *testing.T) {
	ctx := context.Background()
	store := memory.NewIdempotencyStore(memory.New(), -time.Minute)
	_, err := store.AcquireKey(ctx, "key-1", "user-1", "POST /api/v1/movements", "hash")
	require.NoError(t, err)

	j := jobs.New(jobs.Deps{Idempotency: store})
	require.NoError(t, run(t, j, jobs.TaskIdempotencyCleanup, jobs.Payload{}))

	n, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "the job already removed the key")
}

func TestScanAlerts_PublishesCounts(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	p := env.Product(t, "TILE-1")
	w := env.Warehouse(t, "WH-1")
	env.Receive(t, p, w, 1, "10")
	_, err := env.Ledger.RecordMovement(ctx, ledger.RecordRequest{
		Type:        ledger.MovementGoodsIssue,
		ProductID:   p,
		WarehouseID: w,
		Quantity:    types.Qty(1),
	})
	require.NoError(t, err)

	metrics := &fakeMetrics{}
	j := jobs.New(jobs.Deps{Reports: env.Reports, Metrics: metrics})
	require.NoError(t, run(t, j, jobs.TaskAlertScan, jobs.Payload{}))

	require.NotNil(t, metrics.alerts)
	assert.Equal(t, 1, metrics.alerts[reports.AlertOutOfStock])
}

func TestVerifyOccupancy_RepairsWhenAsked(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	p := env.Product(t, "OAK-01")
	w := env.Warehouse(t, "MAIN")

	b, err := env.Bins.Create(ctx, bins.CreateRequest{WarehouseID: w, Code: "A-01-1-1", Capacity: types.Qty(500)})
	require.NoError(t, err)
	lot, err := env.Lots.Create(ctx, lots.CreateRequest{LotNumber: "LOT-1", ProductID: p, WarehouseID: w, Sqft: types.Qty(80)})
	require.NoError(t, err)
	require.NoError(t, env.Bins.AssignLot(ctx, lot.ID, b.Code))
	require.NoError(t, env.Bins.AdjustOccupancy(ctx, b.ID, types.Qty(15)))

	j := jobs.New(jobs.Deps{Bins: env.Bins})

	require.NoError(t, run(t, j, jobs.TaskOccupancyVerify, jobs.Payload{}))
	drift, err := env.Bins.VerifyOccupancy(ctx, &w, false)
	require.NoError(t, err)
	assert.Len(t, drift, 1, "a run without repair leaves the drift")

	require.NoError(t, run(t, j, jobs.TaskOccupancyVerify, jobs.Payload{Repair: true}))
	drift, err = env.Bins.VerifyOccupancy(ctx, &w, false)
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func TestExpireReservations(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	p := env.Product(t, "OAK-01")
	w := env.Warehouse(t, "MAIN")
	env.Receive(t, p, w, 100, "10")

	r, err := env.Reservations.Create(ctx, reservation.CreateRequest{
		ProductID:   p,
		WarehouseID: w,
		Quantity:    types.Qty(30),
		UnitPrice:   types.MustMoney("25"),
	})
	require.NoError(t, err)

	j := jobs.New(jobs.Deps{Reservations: env.Reservations, ExpiryBatch: 10})
	require.NoError(t, run(t, j, jobs.TaskReservationExpiry, jobs.Payload{}))
	got, err := env.Reservations.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusActive, got.Status)

	env.Now = env.Now.Add(reservation.DefaultExpiry + time.Minute)
	require.NoError(t, run(t, j, jobs.TaskReservationExpiry, jobs.Payload{}))
	got, err = env.Reservations.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusExpired, got.Status)
	assert.Zero(t, env.Balance(t, p, w).ReservedQty)
}

func TestHandler_MalformedPayloadSkipsRetry(t *testing.T) {
	env := apptest.New(t)
	metrics := &fakeMetrics{}
	j := jobs.New(jobs.Deps{Reports: env.Reports, Metrics: metrics})

	err := handlerFor(t, j, jobs.TaskAlertScan)(context.Background(), asynq.NewTask(jobs.TaskAlertScan, []byte("{")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, metrics.runs)
}

func TestSchedule_SkipsDisabledEntries(t *testing.T) {
	cfg := config.WorkerConfig{
		CronOutboxRelay:        "@every 10s",
		CronIdempotencyCleanup: "@hourly",
		CronOccupancyVerify:    "0 3 * * *",
	}
	entries, err := jobs.Schedule(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, jobs.TaskOutboxRelay, entries[0].Task.Type())
	assert.Equal(t, jobs.TaskIdempotencyCleanup, entries[1].Task.Type())
	assert.Equal(t, jobs.TaskOccupancyVerify, entries[2].Task.Type())
	assert.JSONEq(t, `{"scheduled_for":"0001-01-01T00:00:00Z","repair":true}`, string(entries[2].Task.Payload()))
}

func TestNewWorker_Validation(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}
	noop := jobs.TaskHandler{Type: jobs.TaskAlertScan, Handler: func(context.Context, *asynq.Task) error { return nil }}

	_, err := jobs.NewWorker(jobs.WorkerConfig{Handlers: []jobs.TaskHandler{noop}})
	assert.Error(t, err, "redis options are required")

	_, err = jobs.NewWorker(jobs.WorkerConfig{RedisOpts: opts})
	assert.ErrorIs(t, err, jobs.ErrNoHandlers)

	task, err := jobs.NewTask(jobs.TaskAlertScan, jobs.Payload{})
	require.NoError(t, err)
	_, err = jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: opts,
		Handlers:  []jobs.TaskHandler{noop},
		Cron:      []jobs.CronRegistration{{Spec: "not a cron", Task: task}},
	})
	assert.Error(t, err)

	w, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: opts,
		Handlers:  []jobs.TaskHandler{noop},
		Cron:      []jobs.CronRegistration{{Spec: "@every 1m", Task: task}},
	})
	require.NoError(t, err)
	assert.NotNil(t, w)
}
