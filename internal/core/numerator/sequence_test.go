package numerator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceGenerator_FormatsPerPrefix(t *testing.T) {
	g := NewSequenceGenerator()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := g.Next(ctx, DocumentConfig(PrefixGoodsReceipt), at)
	require.NoError(t, err)
	second, err := g.Next(ctx, DocumentConfig(PrefixGoodsReceipt), at)
	require.NoError(t, err)
	mv, err := g.Next(ctx, MovementConfig(), at)
	require.NoError(t, err)
	code, err := g.Next(ctx, CodeConfig("WH"), at)
	require.NoError(t, err)

	assert.Equal(t, "GRN-2026-00001", first)
	assert.Equal(t, "GRN-2026-00002", second)
	assert.Equal(t, "MV-2026-000001", mv)
	assert.Equal(t, "WH-00001", code)
}

func TestSequenceGenerator_ResetsPerPeriod(t *testing.T) {
	g := NewSequenceGenerator()
	ctx := context.Background()

	yearly := DocumentConfig(PrefixCycleCount)
	_, _ = g.Next(ctx, yearly, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	num, err := g.Next(ctx, yearly, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "CC-2026-00001", num)

	never := CodeConfig("P")
	_, _ = g.Next(ctx, never, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	num, err = g.Next(ctx, never, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "P-00002", num)
}

func TestSequenceGenerator_Restart(t *testing.T) {
	g := NewSequenceGenerator()
	ctx := context.Background()
	cfg := DocumentConfig(PrefixTransfer)
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, g.Restart(ctx, cfg, at, 41))
	num, err := g.Next(ctx, cfg, at)
	require.NoError(t, err)
	assert.Equal(t, "TR-2026-00042", num)
}

func TestConfig_Key(t *testing.T) {
	at := time.Date(2026, 7, 9, 0, 0, 0, 0, time.UTC)
	monthly := DocumentConfig(PrefixReservation)
	monthly.Reset = ResetMonthly

	assert.Equal(t, "RS_2026_07", monthly.Key(at))
	assert.Equal(t, "RS_2026", DocumentConfig(PrefixReservation).Key(at))
	assert.Equal(t, "RS", CodeConfig(PrefixReservation).Key(at))
}
