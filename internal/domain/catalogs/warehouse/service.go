package warehouse

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
)

// Service provides business logic for the Warehouse catalog.
type Service struct {
	*domain.CatalogService[*Warehouse]
	repo Repository
}

// NewService creates a new Warehouse service. Codes default to WH-00001.
func NewService(repo Repository, txManager tx.Manager, gen numerator.Generator) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Warehouse]{
		Repo:       repo,
		TxManager:  txManager,
		Numerator:  gen,
		EntityName: "Warehouse",
		CodePrefix: "WH",
	})
	return &Service{CatalogService: base, repo: repo}
}

// Exists reports whether an active warehouse exists.
func (s *Service) Exists(ctx context.Context, warehouseID id.ID) (bool, error) {
	w, err := s.repo.GetByID(ctx, warehouseID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return w.IsActive, nil
}
