package numerator

import (
	"context"
	"sync"
	"time"
)

// SequenceGenerator is an in-process Generator used by the memory driver.
type SequenceGenerator struct {
	mu       sync.Mutex
	counters map[string]int64
}

var _ Generator = (*SequenceGenerator)(nil)

// NewSequenceGenerator creates an empty in-process generator.
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{counters: make(map[string]int64)}
}

// Next implements Generator.
func (g *SequenceGenerator) Next(_ context.Context, cfg Config, at time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := cfg.Key(at)
	g.counters[key]++
	return cfg.Format(at, g.counters[key]), nil
}

// Restart implements Generator.
func (g *SequenceGenerator) Restart(_ context.Context, cfg Config, at time.Time, value int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counters[cfg.Key(at)] = value
	return nil
}
