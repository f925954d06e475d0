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

// EventPublisher publishes shop domain events. Publish failures never fail the
// operation that produced the event.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, event *models.CartUpdatedEvent) error
	PublishPurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error
	PublishChatMessagePosted(ctx context.Context, event *models.ChatMessagePostedEvent) error
}

// CartService handles cart business rules. Every mutation touches only the
// cart document it names; concurrent edits of one cart are last-writer-wins.
type CartService struct {
	store          store.Store
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store store.Store, eventPublisher EventPublisher) *CartService {
	return &CartService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// LineItemInput is one entry of a full cart replacement
type LineItemInput struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

// CreateCart provisions an empty cart
func (s *CartService) CreateCart(ctx context.Context) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.CreateCart")
	defer span.End()

	cart := &models.Cart{Items: []models.LineItem{}}
	if err := s.store.CreateCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	util.CartMutationsTotal.WithLabelValues("create").Inc()
	s.logger.Info("Cart created", zap.String("cart_id", cart.ID))
	return cart, nil
}

// AddProduct merges quantity into the line item for productID, appending a new
// line item when the cart has none for it.
func (s *CartService) AddProduct(ctx context.Context, cartID, productID string, quantity int) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddProduct")
	defer span.End()

	if quantity <= 0 {
		return nil, validationf("quantity must be positive, got %d", quantity)
	}

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadProduct(ctx, productID); err != nil {
		return nil, err
	}

	items := mergeLineItem(cart.Items, productID, quantity)
	if err := s.saveItems(ctx, cart, items, "add"); err != nil {
		return nil, err
	}
	return cart, nil
}

// SetQuantities replaces the whole line-item sequence. Nothing is written
// unless every entry is valid.
func (s *CartService) SetQuantities(ctx context.Context, cartID string, inputs []LineItemInput) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.SetQuantities")
	defer span.End()

	items := make([]models.LineItem, 0, len(inputs))
	ids := make([]string, 0, len(inputs))
	for i, in := range inputs {
		if in.ProductID == "" {
			return nil, validationf("products[%d]: product is required", i)
		}
		if in.Quantity <= 0 {
			return nil, validationf("products[%d]: quantity must be positive, got %d", i, in.Quantity)
		}
		before := len(items)
		items = mergeLineItem(items, in.ProductID, in.Quantity)
		if len(items) > before {
			ids = append(ids, in.ProductID)
		}
	}

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	found := make(map[string]bool, len(products))
	for _, p := range products {
		found[p.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, validationf("product %s does not exist", id)
		}
	}

	if err := s.saveItems(ctx, cart, items, "replace"); err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateQuantity sets the quantity of an existing line item
func (s *CartService) UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity")
	defer span.End()

	if quantity <= 0 {
		return nil, validationf("quantity must be positive, got %d", quantity)
	}

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	items := append([]models.LineItem{}, cart.Items...)
	idx := indexOf(items, productID)
	if idx < 0 {
		return nil, notFoundf("product %s is not in cart %s", productID, cartID)
	}
	items[idx].Quantity = quantity

	if err := s.saveItems(ctx, cart, items, "update"); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveProduct drops the line item for productID. Absent items are not an error.
func (s *CartService) RemoveProduct(ctx context.Context, cartID, productID string) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveProduct")
	defer span.End()

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	idx := indexOf(cart.Items, productID)
	if idx < 0 {
		return cart, nil
	}

	items := make([]models.LineItem, 0, len(cart.Items)-1)
	items = append(items, cart.Items[:idx]...)
	items = append(items, cart.Items[idx+1:]...)

	if err := s.saveItems(ctx, cart, items, "remove"); err != nil {
		return nil, err
	}
	return cart, nil
}

// ClearCart empties the cart; its identity persists
func (s *CartService) ClearCart(ctx context.Context, cartID string) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ClearCart")
	defer span.End()

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if err := s.saveItems(ctx, cart, []models.LineItem{}, "clear"); err != nil {
		return nil, err
	}
	return cart, nil
}

// GetCart returns the cart with line items resolved to the products as they
// are now, not as they were when added.
func (s *CartService) GetCart(ctx context.Context, cartID string) (*models.CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart")
	defer span.End()

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(cart.Items))
	for i, item := range cart.Items {
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

	view := &models.CartView{
		ID:       cart.ID,
		Products: make([]models.CartLine, 0, len(cart.Items)),
		Total:    decimal.Zero,
	}
	for _, item := range cart.Items {
		line := models.CartLine{ProductID: item.ProductID, Quantity: item.Quantity, Subtotal: decimal.Zero}
		if p, ok := byID[item.ProductID]; ok {
			p := p
			line.Product = &p
			line.Subtotal = p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			view.Total = view.Total.Add(line.Subtotal)
		}
		view.Products = append(view.Products, line)
	}
	return view, nil
}

func (s *CartService) loadCart(ctx context.Context, cartID string) (*models.Cart, error) {
	cart, err := s.store.GetCart(ctx, cartID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("cart %s not found", cartID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) loadProduct(ctx context.Context, productID string) (*models.Product, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("product %s not found", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return product, nil
}

func (s *CartService) saveItems(ctx context.Context, cart *models.Cart, items []models.LineItem, op string) error {
	err := s.store.SetCartItems(ctx, cart.ID, items)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundf("cart %s not found", cart.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	cart.Items = items

	util.CartMutationsTotal.WithLabelValues(op).Inc()
	s.logger.Debug("Cart updated",
		zap.String("cart_id", cart.ID),
		zap.String("op", op),
		zap.Int("line_items", len(items)))

	event := &models.CartUpdatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCartUpdated,
			Timestamp: time.Now(),
		},
		CartID:    cart.ID,
		Operation: op,
		Items:     items,
	}
	if err := s.eventPublisher.PublishCartUpdated(ctx, event); err != nil {
		s.logger.Error("Failed to publish CartUpdated event", zap.Error(err))
	}
	return nil
}

// mergeLineItem returns items with quantity added to productID's line item,
// or with a new line item appended. The input slice is not modified.
func mergeLineItem(items []models.LineItem, productID string, quantity int) []models.LineItem {
	out := append([]models.LineItem{}, items...)
	if idx := indexOf(out, productID); idx >= 0 {
		out[idx].Quantity += quantity
		return out
	}
	return append(out, models.LineItem{ProductID: productID, Quantity: quantity})
}

func indexOf(items []models.LineItem, productID string) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
