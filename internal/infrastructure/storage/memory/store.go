// Package memory is the in-process storage driver. It implements every
// repository of the domain on top of maps guarded by one lock, and is used by
// the tests and by STORAGE_DRIVER=memory.
//
// Transactions are serialized: RunInTransaction holds the write lock for the
// whole unit of work, so a row read inside it is effectively locked for update.
// Every write records an undo step and a failed unit of work is rolled back.
package memory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/batches"
	"stockledger/internal/domain/bins"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/documents/cycle_count"
	"stockledger/internal/domain/documents/goods_receipt"
	"stockledger/internal/domain/documents/reservation"
	"stockledger/internal/domain/documents/transfer"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/lots"
	"stockledger/internal/infrastructure/events"
	"stockledger/internal/infrastructure/idempotency"
)

var errReadOnly = errors.New("memory: write in read-only transaction")

// Store holds the state of every repository.
type Store struct {
	mu sync.RWMutex

	balances     *table[balanceKey, *ledger.Balance]
	movements    *table[id.ID, *ledger.Movement]
	batches      *table[id.ID, *batches.Batch]
	lots         *table[id.ID, *lots.Lot]
	bins         *table[id.ID, *bins.Bin]
	grns         *documentTable[*goods_receipt.GoodsReceipt, []goods_receipt.Item]
	cycleCounts  *documentTable[*cycle_count.CycleCount, []cycle_count.Item]
	transfers    *documentTable[*transfer.Transfer, []transfer.Item]
	reservations *table[id.ID, *reservation.Reservation]
	products     *table[id.ID, *product.Product]
	warehouses   *table[id.ID, *warehouse.Warehouse]
	outbox       *table[id.ID, *events.Message]
	audit        *table[id.ID, *AuditEntry]
	keys         *table[string, *idempotency.Record]
}

// New creates an empty store.
func New() *Store {
	return &Store{
		balances:     newTable[balanceKey](cloneBalance),
		movements:    newTable[id.ID]((*ledger.Movement).Clone),
		batches:      newTable[id.ID]((*batches.Batch).Clone),
		lots:         newTable[id.ID]((*lots.Lot).Clone),
		bins:         newTable[id.ID]((*bins.Bin).Clone),
		grns:         newDocumentTable(cloneGoodsReceipt, slices.Clone[[]goods_receipt.Item]),
		cycleCounts:  newDocumentTable(cloneCycleCount, cloneCycleCountItems),
		transfers:    newDocumentTable(cloneTransfer, slices.Clone[[]transfer.Item]),
		reservations: newTable[id.ID]((*reservation.Reservation).Clone),
		products:     newTable[id.ID](cloneProduct),
		warehouses:   newTable[id.ID](cloneWarehouse),
		outbox:       newTable[id.ID](cloneMessage),
		audit:        newTable[id.ID](cloneAuditEntry),
		keys:         newTable[string](cloneIdempotencyRecord),
	}
}

var (
	_ tx.Manager         = (*Store)(nil)
	_ tx.ReadOnlyManager = (*Store)(nil)
)

type txKey struct{}

// txState is the unit of work carried in the context.
type txState struct {
	owner    *Store
	readOnly bool
	undo     []func()
}

func (t *txState) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *txState) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (s *Store) txFrom(ctx context.Context) (*txState, bool) {
	t, ok := ctx.Value(txKey{}).(*txState)
	if !ok || t.owner != s {
		return nil, false
	}
	return t, true
}

// RunInTransaction implements tx.Manager.
// Nested calls join the outer unit of work.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := s.txFrom(ctx); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txState{owner: s}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		t.rollback()
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := s.txFrom(ctx); ok {
		return fn(ctx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(context.WithValue(ctx, txKey{}, &txState{owner: s, readOnly: true}))
}

// read runs fn under the read lock unless ctx already holds a unit of work.
func (s *Store) read(ctx context.Context, fn func()) {
	if _, ok := s.txFrom(ctx); ok {
		fn()
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// write runs fn in the caller's unit of work, or in a single-statement one.
func (s *Store) write(ctx context.Context, fn func(t *txState) error) error {
	if t, ok := s.txFrom(ctx); ok {
		if t.readOnly {
			return errReadOnly
		}
		return fn(t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txState{owner: s}
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

type entry[V any] struct {
	val V
	seq uint64
}

// table is a map with insertion order and undo-aware writes.
// Values are cloned on the way in and on the way out.
type table[K comparable, V any] struct {
	rows  map[K]entry[V]
	clone func(V) V
	next  uint64
}

func newTable[K comparable, V any](clone func(V) V) *table[K, V] {
	return &table[K, V]{rows: make(map[K]entry[V]), clone: clone}
}

func (tb *table[K, V]) get(k K) (V, bool) {
	e, ok := tb.rows[k]
	if !ok {
		var zero V
		return zero, false
	}
	return tb.clone(e.val), true
}

func (tb *table[K, V]) has(k K) bool {
	_, ok := tb.rows[k]
	return ok
}

func (tb *table[K, V]) put(t *txState, k K, v V) {
	prev, existed := tb.rows[k]
	e := entry[V]{val: tb.clone(v), seq: prev.seq}
	if !existed {
		tb.next++
		e.seq = tb.next
	}
	tb.rows[k] = e
	t.onRollback(func() {
		if existed {
			tb.rows[k] = prev
		} else {
			delete(tb.rows, k)
		}
	})
}

func (tb *table[K, V]) remove(t *txState, k K) {
	prev, existed := tb.rows[k]
	if !existed {
		return
	}
	delete(tb.rows, k)
	t.onRollback(func() { tb.rows[k] = prev })
}

// scan returns clones of the rows kept by keep, in insertion order.
func (tb *table[K, V]) scan(keep func(V) bool) []V {
	matched := make([]entry[V], 0, len(tb.rows))
	for _, e := range tb.rows {
		if keep == nil || keep(e.val) {
			matched = append(matched, e)
		}
	}
	slices.SortFunc(matched, func(a, b entry[V]) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]V, len(matched))
	for i, e := range matched {
		out[i] = tb.clone(e.val)
	}
	return out
}

// documentTable stores document headers and their items apart,
// the way the SQL schema does.
type documentTable[H any, I any] struct {
	headers *table[id.ID, H]
	items   *table[id.ID, I]
}

func newDocumentTable[H any, I any](cloneHeader func(H) H, cloneItems func(I) I) *documentTable[H, I] {
	return &documentTable[H, I]{
		headers: newTable[id.ID](cloneHeader),
		items:   newTable[id.ID](cloneItems),
	}
}

// page slices items by limit and offset.
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
