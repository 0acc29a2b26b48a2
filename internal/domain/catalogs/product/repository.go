package product

import (
	"stockledger/internal/domain"
)

// Repository defines persistence for products.
type Repository interface {
	domain.CatalogRepository[*Product]
}
