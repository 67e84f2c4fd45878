package application

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/money"
)

// CatalogService exposes reference data and category pricing.
type CatalogService struct {
	catalog billing.CatalogRepository
	logger  *zap.Logger
}

// NewCatalogService constructs a service.
func NewCatalogService(catalog billing.CatalogRepository, logger *zap.Logger) (*CatalogService, error) {
	if catalog == nil {
		return nil, errors.New("catalog service: nil repository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{catalog: catalog, logger: logger}, nil
}

// Categories lists categories.
func (s *CatalogService) Categories(ctx context.Context) ([]billing.Category, error) {
	return s.catalog.ListCategories(ctx)
}

// Disciplines lists disciplines.
func (s *CatalogService) Disciplines(ctx context.Context) ([]billing.Discipline, error) {
	return s.catalog.ListDisciplines(ctx)
}

// PaymentMethods lists payment methods.
func (s *CatalogService) PaymentMethods(ctx context.Context) ([]billing.PaymentMethod, error) {
	return s.catalog.ListPaymentMethods(ctx)
}

// UpdateCategoryPrice sets the price future fee runs use and returns the
// updated category with its previous price. Existing charges keep their amounts.
func (s *CatalogService) UpdateCategoryPrice(ctx context.Context, id int64, amount string) (billing.Category, decimal.Decimal, error) {
	price, err := money.ParseNonNegative(amount)
	if err != nil {
		return billing.Category{}, decimal.Zero, billing.AmountError("amount", err)
	}
	category, err := s.catalog.FindCategory(ctx, id)
	if err != nil {
		return billing.Category{}, decimal.Zero, err
	}
	if category == nil {
		return billing.Category{}, decimal.Zero, billing.NotFoundf("category %d", id)
	}
	if err := s.catalog.UpdateCategoryPrice(ctx, id, price); err != nil {
		return billing.Category{}, decimal.Zero, err
	}
	previous := category.Price
	category.Price = price
	s.logger.Info("category price updated",
		zap.Int64("category_id", id),
		zap.String("from", money.Format(previous)),
		zap.String("to", money.Format(price)))
	return *category, previous, nil
}
