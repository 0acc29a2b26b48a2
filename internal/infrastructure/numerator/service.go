// Package numerator numbers documents from the sys_sequences table.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "stockledger/internal/core/numerator"
)

// Querier is the part of a pool or transaction the service needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// advanceSQL moves a sequence forward by $2 and returns its new value.
const advanceSQL = `
	INSERT INTO sys_sequences (key, current_val)
	VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
	RETURNING current_val`

const restartSQL = `
	INSERT INTO sys_sequences (key, current_val)
	VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE SET current_val = EXCLUDED.current_val
	RETURNING current_val`

const defaultRangeSize = 50

// block is a reserved range (next-1, last] of a cached series.
type block struct {
	next int64
	last int64
}

// Service implements corenumerator.Generator over PostgreSQL.
//
// Numbers are taken on the pool, outside of business transactions, so a
// rolled back document leaves a gap instead of holding the sequence row locked.
type Service struct {
	db Querier

	mu     sync.Mutex
	blocks map[string]*block
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator service.
func New(db Querier) *Service {
	return &Service{db: db, blocks: make(map[string]*block)}
}

// Next implements corenumerator.Generator.
func (s *Service) Next(ctx context.Context, cfg corenumerator.Config, at time.Time) (string, error) {
	key := cfg.Key(at)

	var (
		num int64
		err error
	)
	if cfg.Strategy == corenumerator.StrategyCached {
		num, err = s.nextCached(ctx, key, cfg.RangeSize)
	} else {
		num, err = s.advance(ctx, key, 1)
	}
	if err != nil {
		return "", err
	}
	return cfg.Format(at, num), nil
}

func (s *Service) advance(ctx context.Context, key string, step int64) (int64, error) {
	var current int64
	if err := s.db.QueryRow(ctx, advanceSQL, key, step).Scan(&current); err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", key, err)
	}
	return current, nil
}

func (s *Service) nextCached(ctx context.Context, key string, size int64) (int64, error) {
	if size <= 0 {
		size = defaultRangeSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.blocks[key]
	if b == nil || b.next > b.last {
		last, err := s.advance(ctx, key, size)
		if err != nil {
			return 0, err
		}
		b = &block{next: last - size + 1, last: last}
		s.blocks[key] = b
	}
	num := b.next
	b.next++
	return num, nil
}

// Restart implements corenumerator.Generator and drops any cached block of
// the series.
func (s *Service) Restart(ctx context.Context, cfg corenumerator.Config, at time.Time, value int64) error {
	key := cfg.Key(at)

	s.mu.Lock()
	delete(s.blocks, key)
	s.mu.Unlock()

	var current int64
	err := s.db.QueryRow(ctx, restartSQL, key, value).Scan(&current)
	if err != nil {
		return fmt.Errorf("restart sequence %s: %w", key, err)
	}
	return nil
}
