// Package numerator defines document auto-numbering contracts.
// Implementations live in the storage layer.
package numerator

import (
	"context"
	"time"
)

// Generator produces sequential document numbers such as GRN-2026-00001.
type Generator interface {
	// Next returns the next number of cfg within the period of at.
	Next(ctx context.Context, cfg Config, at time.Time) (string, error)

	// Restart makes the next number of the period value+1.
	Restart(ctx context.Context, cfg Config, at time.Time, value int64) error
}
