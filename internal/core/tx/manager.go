// Package tx defines the transaction boundary used by domain services.
// Both the PostgreSQL and the in-memory storage implement it.
package tx

import (
	"context"
)

// Manager runs a unit of work atomically.
//
// A ledger operation (balance read, balance write, movement insert, batch
// mutation) is always executed inside one RunInTransaction call.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, every change made through ctx is rolled back.
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
