package numerator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "stockledger/internal/core/numerator"
)

// fakeSequences emulates sys_sequences for the two statements of the service.
type fakeSequences struct {
	values  map[string]int64
	queries int
	fail    error
}

type row struct {
	v   int64
	err error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.v
	return nil
}

func (f *fakeSequences) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.queries++
	if f.fail != nil {
		return row{err: f.fail}
	}
	key, n := args[0].(string), args[1].(int64)
	if strings.Contains(sql, "EXCLUDED") {
		f.values[key] = n
	} else {
		f.values[key] += n
	}
	return row{v: f.values[key]}
}

func newFake() *fakeSequences { return &fakeSequences{values: map[string]int64{}} }

var march = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func TestNext_Strict(t *testing.T) {
	db := newFake()
	s := New(db)
	ctx := context.Background()

	first, err := s.Next(ctx, corenumerator.DocumentConfig(corenumerator.PrefixGoodsReceipt), march)
	require.NoError(t, err)
	second, err := s.Next(ctx, corenumerator.DocumentConfig(corenumerator.PrefixGoodsReceipt), march)
	require.NoError(t, err)

	assert.Equal(t, "GRN-2026-00001", first)
	assert.Equal(t, "GRN-2026-00002", second)
	assert.Equal(t, 2, db.queries)
}

func TestNext_CachedReservesBlocks(t *testing.T) {
	db := newFake()
	s := New(db)
	ctx := context.Background()
	cfg := corenumerator.MovementConfig()
	cfg.Strategy = corenumerator.StrategyCached
	cfg.RangeSize = 3

	var got []string
	for range 4 {
		num, err := s.Next(ctx, cfg, march)
		require.NoError(t, err)
		got = append(got, num)
	}

	assert.Equal(t, []string{"MV-2026-000001", "MV-2026-000002", "MV-2026-000003", "MV-2026-000004"}, got)
	assert.Equal(t, 2, db.queries, "one round trip per block of three")
	assert.Equal(t, int64(6), db.values["MV_2026"])
}

func TestRestart_DropsCachedBlock(t *testing.T) {
	db := newFake()
	s := New(db)
	ctx := context.Background()
	cfg := corenumerator.DocumentConfig(corenumerator.PrefixTransfer)
	cfg.Strategy = corenumerator.StrategyCached

	_, err := s.Next(ctx, cfg, march)
	require.NoError(t, err)
	require.NoError(t, s.Restart(ctx, cfg, march, 99))

	num, err := s.Next(ctx, cfg, march)
	require.NoError(t, err)
	assert.Equal(t, "TR-2026-00100", num)
}

func TestNext_WrapsQueryError(t *testing.T) {
	db := newFake()
	db.fail = errors.New("connection reset")
	s := New(db)

	_, err := s.Next(context.Background(), corenumerator.CodeConfig("WH"), march)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advance sequence WH")
}
