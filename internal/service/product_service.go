package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// ProductService manages the catalog
type ProductService struct {
	store  store.Store
	logger *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(store store.Store) *ProductService {
	return &ProductService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ProductInput is the body of a product create request
type ProductInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Code        string          `json:"code"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	Status      string          `json:"status"`
}

// ProductPatch is a partial update; nil fields are left untouched
type ProductPatch struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Code        *string          `json:"code"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Category    *string          `json:"category"`
	Status      *string          `json:"status"`
}

// List returns one page of the catalog
func (s *ProductService) List(ctx context.Context, q models.ProductQuery) (*models.ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.List")
	defer span.End()

	if q.Limit <= 0 {
		q.Limit = defaultPageLimit
	}
	if q.Limit > maxPageLimit {
		q.Limit = maxPageLimit
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	switch q.Sort {
	case "", models.SortAsc, models.SortDesc:
	default:
		return nil, validationf("sort must be %q or %q", models.SortAsc, models.SortDesc)
	}

	products, total, err := s.store.ListProducts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return paginate(products, total, q), nil
}

// Get returns a single product
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Get")
	defer span.End()

	product, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("product %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return product, nil
}

// Create validates and stores a new product
func (s *ProductService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Create")
	defer span.End()

	product := &models.Product{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Code:        strings.TrimSpace(in.Code),
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    strings.TrimSpace(in.Category),
		Status:      in.Status,
	}
	if product.Status == "" {
		product.Status = models.ProductStatusActive
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, validationf("code %q is already in use", product.Code)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID), zap.String("code", product.Code))
	return product, nil
}

// Update applies a partial update
func (s *ProductService) Update(ctx context.Context, id string, patch ProductPatch) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Update")
	defer span.End()

	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		product.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		product.Description = *patch.Description
	}
	if patch.Code != nil {
		product.Code = strings.TrimSpace(*patch.Code)
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	if patch.Stock != nil {
		product.Stock = *patch.Stock
	}
	if patch.Category != nil {
		product.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Status != nil {
		product.Status = *patch.Status
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, notFoundf("product %s not found", id)
		case errors.Is(err, store.ErrDuplicate):
			return nil, validationf("code %q is already in use", product.Code)
		default:
			return nil, fmt.Errorf("failed to update product: %w", err)
		}
	}

	s.logger.Info("Product updated", zap.String("product_id", product.ID))
	return product, nil
}

// Delete removes a product. Carts still referencing it resolve it as missing.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "ProductService.Delete")
	defer span.End()

	err := s.store.DeleteProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundf("product %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

func validateProduct(p *models.Product) error {
	switch {
	case p.Title == "":
		return validationf("title is required")
	case p.Code == "":
		return validationf("code is required")
	case p.Category == "":
		return validationf("category is required")
	case p.Price.IsNegative():
		return validationf("price must not be negative")
	case p.Stock < 0:
		return validationf("stock must not be negative")
	case p.Status != models.ProductStatusActive && p.Status != models.ProductStatusInactive:
		return validationf("status must be %q or %q", models.ProductStatusActive, models.ProductStatusInactive)
	}
	return nil
}

func paginate(products []models.Product, total int, q models.ProductQuery) *models.ProductPage {
	totalPages := (total + q.Limit - 1) / q.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	page := &models.ProductPage{
		Payload:     products,
		TotalDocs:   total,
		TotalPages:  totalPages,
		Page:        q.Page,
		HasPrevPage: q.Page > 1,
		HasNextPage: q.Page < totalPages,
	}
	if page.HasPrevPage {
		prev := q.Page - 1
		page.PrevPage = &prev
	}
	if page.HasNextPage {
		next := q.Page + 1
		page.NextPage = &next
	}
	return page
}
