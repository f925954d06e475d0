package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PurchaseService settles a cart against current stock
type PurchaseService struct {
	store          store.Store
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(store store.Store, eventPublisher EventPublisher) *PurchaseService {
	return &PurchaseService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// Purchase commits every line item whose quantity fits the product's stock,
// charges only for those, and leaves exactly the rejected items in the cart.
// purchaser is the email the receipt goes to.
func (s *PurchaseService) Purchase(ctx context.Context, cartID, purchaser string) (*models.PurchaseResult, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.Purchase")
	defer span.End()

	start := time.Now()
	defer func() {
		util.PurchaseLatency.Observe(time.Since(start).Seconds())
	}()

	cart, err := s.store.GetCart(ctx, cartID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("cart %s not found", cartID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cart.Items) == 0 {
		util.PurchasesTotal.WithLabelValues("empty_cart").Inc()
		return nil, newError(ErrEmptyCart, "cart %s has no products", cartID)
	}

	products, err := s.loadProducts(ctx, cart.Items)
	if err != nil {
		return nil, err
	}

	result := &models.PurchaseResult{
		CartID:    cart.ID,
		Amount:    decimal.Zero,
		Fulfilled: []models.PurchasedLine{},
		Rejected:  []string{},
	}
	residual := make([]models.LineItem, 0, len(cart.Items))
	reject := func(item models.LineItem) {
		result.Rejected = append(result.Rejected, item.ProductID)
		residual = append(residual, item)
	}

	var commitErr error
	for _, item := range cart.Items {
		if commitErr != nil {
			reject(item)
			continue
		}

		product, ok := products[item.ProductID]
		if !ok || item.Quantity > product.Stock {
			reject(item)
			continue
		}

		err := s.commit(ctx, product, item.Quantity)
		switch {
		case err == nil:
			subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			result.Fulfilled = append(result.Fulfilled, models.PurchasedLine{
				ProductID: product.ID,
				Title:     product.Title,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
				Subtotal:  subtotal,
			})
			result.Amount = result.Amount.Add(subtotal)
		case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound):
			s.logger.Info("Line item demoted to rejected",
				zap.String("cart_id", cart.ID),
				zap.String("product_id", item.ProductID),
				zap.Error(err))
			reject(item)
		default:
			if len(result.Fulfilled) == 0 {
				return nil, err
			}
			s.logger.Error("Stock commit failed, rejecting remaining line items",
				zap.String("cart_id", cart.ID),
				zap.String("product_id", item.ProductID),
				zap.Error(err))
			commitErr = err
			reject(item)
		}
	}

	if err := s.store.SetCartItems(ctx, cart.ID, residual); err != nil {
		s.logger.Error("Failed to settle cart after purchase",
			zap.String("cart_id", cart.ID),
			zap.Int("fulfilled", len(result.Fulfilled)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to settle cart: %w", err)
	}

	result.Outcome = outcome(len(result.Fulfilled), len(cart.Items))
	util.PurchasesTotal.WithLabelValues(result.Outcome).Inc()
	revenue, _ := result.Amount.Float64()
	util.PurchaseRevenueTotal.Add(revenue)

	s.logger.Info("Purchase settled",
		zap.String("cart_id", cart.ID),
		zap.String("outcome", result.Outcome),
		zap.String("amount", result.Amount.StringFixed(2)),
		zap.Strings("rejected", result.Rejected))

	if len(result.Fulfilled) > 0 {
		s.publishCompleted(ctx, result, purchaser)
	}
	return result, nil
}

// commit runs the store's conditional decrement; losing the race to a
// concurrent purchase surfaces as ErrConflict for this one item.
func (s *PurchaseService) commit(ctx context.Context, product models.Product, quantity int) error {
	ok, err := s.store.DecrementStock(ctx, product.ID, quantity)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundf("product %s was removed", product.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to commit stock for product %s: %w", product.ID, err)
	}
	if !ok {
		util.StockConflictsTotal.Inc()
		return newError(ErrConflict, "stock for product %s dropped below %d", product.ID, quantity)
	}
	return nil
}

func (s *PurchaseService) loadProducts(ctx context.Context, items []models.LineItem) (map[string]models.Product, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

func (s *PurchaseService) publishCompleted(ctx context.Context, result *models.PurchaseResult, purchaser string) {
	event := &models.PurchaseCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePurchaseCompleted,
			Timestamp: time.Now(),
		},
		CartID:    result.CartID,
		Purchaser: purchaser,
		Amount:    result.Amount,
		Outcome:   result.Outcome,
		Items:     result.Fulfilled,
		Rejected:  result.Rejected,
	}

	if err := s.eventPublisher.PublishPurchaseCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish PurchaseCompleted event", zap.Error(err))
	}
}

func outcome(fulfilled, total int) string {
	switch {
	case fulfilled == total:
		return models.PurchaseComplete
	case fulfilled == 0:
		return models.PurchaseNone
	default:
		return models.PurchasePartial
	}
}
