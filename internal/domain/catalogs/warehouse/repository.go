package warehouse

import (
	"stockledger/internal/domain"
)

// Repository defines persistence for warehouses.
type Repository interface {
	domain.CatalogRepository[*Warehouse]
}
