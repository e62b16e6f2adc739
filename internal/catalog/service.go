package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/counterline/poscore/pkg/db/models"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/ledger"
)

// Service exposes read access to the locally cached catalog and the delta
// apply path the sync engine feeds.
type Service interface {
	ProductByID(ctx context.Context, id uuid.UUID) (*models.CatalogProduct, error)
	ProductByBarcode(ctx context.Context, barcode string) (*models.CatalogProduct, error)
	CustomerProfile(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	SearchCustomers(ctx context.Context, term string, limit int) ([]models.Customer, error)
	ApplyProductDeltas(ctx context.Context, deltas []ledger.ProductDelta, pulledAt time.Time) (int, error)
	ApplyCustomerDeltas(ctx context.Context, deltas []ledger.CustomerDelta, pulledAt time.Time) (int, error)
}

type service struct {
	repo *Repository
}

// NewService builds a catalog service backed by the local cache.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// ProductByID returns a sellable product. Rows marked inactive upstream are
// treated as absent so they cannot be added to a cart.
func (s *service) ProductByID(ctx context.Context, id uuid.UUID) (*models.CatalogProduct, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

// ProductByBarcode resolves a scan to a sellable product.
func (s *service) ProductByBarcode(ctx context.Context, barcode string) (*models.CatalogProduct, error) {
	if barcode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "barcode is required")
	}
	product, err := s.repo.FindProductByBarcode(ctx, barcode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product by barcode")
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

// CustomerProfile returns the cached credit profile for the store-credit
// payment method.
func (s *service) CustomerProfile(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	customer, err := s.repo.FindCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading customer")
	}
	return customer, nil
}

func (s *service) SearchCustomers(ctx context.Context, term string, limit int) ([]models.Customer, error) {
	customers, err := s.repo.SearchCustomers(ctx, term, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "searching customers")
	}
	return customers, nil
}

// ApplyProductDeltas merges one pulled page into the cache and reports how
// many rows changed.
func (s *service) ApplyProductDeltas(ctx context.Context, deltas []ledger.ProductDelta, pulledAt time.Time) (int, error) {
	if len(deltas) == 0 {
		return 0, nil
	}
	products := make([]models.CatalogProduct, 0, len(deltas))
	for _, delta := range deltas {
		id, err := uuid.Parse(delta.ID)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeSync, err, "malformed product id in delta")
		}
		products = append(products, models.CatalogProduct{
			ID:              id,
			Barcode:         delta.Barcode,
			Name:            delta.Name,
			UnitPriceCents:  delta.UnitPriceCents,
			Active:          delta.Active,
			RemoteUpdatedAt: delta.UpdatedAt,
			PulledAt:        pulledAt,
		})
	}
	if err := s.repo.UpsertProducts(ctx, products); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeSync, err, "upserting product deltas")
	}
	return len(products), nil
}

// ApplyCustomerDeltas merges one pulled page of credit profiles.
func (s *service) ApplyCustomerDeltas(ctx context.Context, deltas []ledger.CustomerDelta, pulledAt time.Time) (int, error) {
	if len(deltas) == 0 {
		return 0, nil
	}
	customers := make([]models.Customer, 0, len(deltas))
	for _, delta := range deltas {
		id, err := uuid.Parse(delta.ID)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeSync, err, "malformed customer id in delta")
		}
		customers = append(customers, models.Customer{
			ID:                  id,
			Name:                delta.Name,
			Phone:               delta.Phone,
			CurrentBalanceCents: delta.CurrentBalanceCents,
			CreditLimitCents:    delta.CreditLimitCents,
			RemoteUpdatedAt:     delta.UpdatedAt,
			PulledAt:            pulledAt,
		})
	}
	if err := s.repo.UpsertCustomers(ctx, customers); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeSync, err, "upserting customer deltas")
	}
	return len(customers), nil
}
