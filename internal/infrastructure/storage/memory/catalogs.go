package memory

import (
	"context"
	"slices"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
)

// catalogItem is the part of entity.Catalog the generic repository needs.
type catalogItem interface {
	entity.Validatable
	GetID() id.ID
	GetCode() string
	GetName() string
	GetVersion() int
	SetVersion(v int)
	IsDeleted() bool
	SetDeletionMark(marked bool)
}

// catalogStore implements domain.CatalogRepository over one table.
type catalogStore[T catalogItem] struct {
	s      *Store
	rows   *table[id.ID, T]
	entity string
}

// Create implements domain.CatalogRepository.
func (c catalogStore[T]) Create(ctx context.Context, item T) error {
	return c.s.write(ctx, func(t *txState) error {
		if c.codeTaken(item.GetCode(), item.GetID()) {
			return apperror.NewDuplicate(c.entity, "code", item.GetCode())
		}
		c.rows.put(t, item.GetID(), item)
		return nil
	})
}

func (c catalogStore[T]) codeTaken(code string, except id.ID) bool {
	return len(c.rows.scan(func(x T) bool {
		return !x.IsDeleted() && x.GetID() != except && strings.EqualFold(x.GetCode(), code)
	})) > 0
}

// GetByID implements domain.CatalogRepository.
func (c catalogStore[T]) GetByID(ctx context.Context, itemID id.ID) (T, error) {
	var (
		item T
		ok   bool
	)
	c.s.read(ctx, func() { item, ok = c.rows.get(itemID) })
	if !ok || item.IsDeleted() {
		var zero T
		return zero, apperror.NewNotFound(c.entity, itemID.String())
	}
	return item, nil
}

// GetByCode implements domain.CatalogRepository.
func (c catalogStore[T]) GetByCode(ctx context.Context, code string) (T, error) {
	var found []T
	c.s.read(ctx, func() {
		found = c.rows.scan(func(x T) bool { return !x.IsDeleted() && strings.EqualFold(x.GetCode(), code) })
	})
	if len(found) == 0 {
		var zero T
		return zero, apperror.NewNotFound(c.entity, code)
	}
	return found[0], nil
}

// Update implements domain.CatalogRepository.
func (c catalogStore[T]) Update(ctx context.Context, item T) error {
	return c.s.write(ctx, func(t *txState) error {
		stored, ok := c.rows.get(item.GetID())
		if !ok || stored.IsDeleted() {
			return apperror.NewNotFound(c.entity, item.GetID().String())
		}
		if stored.GetVersion() != item.GetVersion() {
			return apperror.NewConcurrentModification(c.entity, item.GetID().String())
		}
		if c.codeTaken(item.GetCode(), item.GetID()) {
			return apperror.NewDuplicate(c.entity, "code", item.GetCode())
		}
		item.SetVersion(item.GetVersion() + 1)
		c.rows.put(t, item.GetID(), item)
		return nil
	})
}

// SetDeletionMark implements domain.CatalogRepository.
func (c catalogStore[T]) SetDeletionMark(ctx context.Context, itemID id.ID, marked bool) error {
	return c.s.write(ctx, func(t *txState) error {
		item, ok := c.rows.get(itemID)
		if !ok {
			return apperror.NewNotFound(c.entity, itemID.String())
		}
		item.SetDeletionMark(marked)
		item.SetVersion(item.GetVersion() + 1)
		c.rows.put(t, itemID, item)
		return nil
	})
}

// List implements domain.CatalogRepository.
func (c catalogStore[T]) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[T], error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var all []T
	c.s.read(ctx, func() {
		all = c.rows.scan(func(x T) bool {
			if x.IsDeleted() && !filter.IncludeDeleted {
				return false
			}
			if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, x.GetID()) {
				return false
			}
			if search != "" {
				return strings.Contains(strings.ToLower(x.GetCode()), search) ||
					strings.Contains(strings.ToLower(x.GetName()), search)
			}
			return true
		})
	})
	sortCatalog(all, filter.OrderBy)
	return listResult(all, domain.Page{Limit: filter.Limit, Offset: filter.Offset}), nil
}

// ExistsByCode implements domain.CatalogRepository.
func (c catalogStore[T]) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var taken bool
	c.s.read(ctx, func() { taken = c.codeTaken(code, id.ID{}) })
	return taken, nil
}

// sortCatalog orders by "code" or "name", descending with a leading "-".
func sortCatalog[T catalogItem](items []T, orderBy string) {
	desc := strings.HasPrefix(orderBy, "-")
	key := func(x T) string { return x.GetName() }
	if strings.TrimPrefix(orderBy, "-") == "code" {
		key = func(x T) string { return x.GetCode() }
	}
	slices.SortStableFunc(items, func(a, b T) int {
		if desc {
			return strings.Compare(key(b), key(a))
		}
		return strings.Compare(key(a), key(b))
	})
}

func cloneProduct(p *product.Product) *product.Product {
	c := *p
	c.Specs = p.Specs.Clone()
	if p.SKU != nil {
		sku := *p.SKU
		c.SKU = &sku
	}
	return &c
}

func cloneWarehouse(w *warehouse.Warehouse) *warehouse.Warehouse {
	c := *w
	if w.Address != nil {
		addr := *w.Address
		c.Address = &addr
	}
	return &c
}

// ProductRepo implements product.Repository.
type ProductRepo struct {
	catalogStore[*product.Product]
}

// NewProductRepo creates a product repository.
func NewProductRepo(s *Store) *ProductRepo {
	return &ProductRepo{catalogStore[*product.Product]{s: s, rows: s.products, entity: "Product"}}
}

var _ product.Repository = (*ProductRepo)(nil)

// WarehouseRepo implements warehouse.Repository.
type WarehouseRepo struct {
	catalogStore[*warehouse.Warehouse]
}

// NewWarehouseRepo creates a warehouse repository.
func NewWarehouseRepo(s *Store) *WarehouseRepo {
	return &WarehouseRepo{catalogStore[*warehouse.Warehouse]{s: s, rows: s.warehouses, entity: "Warehouse"}}
}

var _ warehouse.Repository = (*WarehouseRepo)(nil)
