package store

import (
	"context"
	"errors"
	"fmt"

	"storefront/config"
	"storefront/internal/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Store is the document store the services run against. Every backend must
// implement DecrementStock as a single conditional update.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, int, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	// DecrementStock subtracts quantity only if stock >= quantity. It reports
	// false when the condition did not hold.
	DecrementStock(ctx context.Context, id string, quantity int) (bool, error)

	CreateCart(ctx context.Context, c *models.Cart) error
	GetCart(ctx context.Context, id string) (*models.Cart, error)
	SetCartItems(ctx context.Context, id string, items []models.LineItem) error
	// DeleteCart removes a cart no user was created for. Absent carts are not an error.
	DeleteCart(ctx context.Context, id string) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	AppendMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context) ([]models.Message, error)
}

// Open connects to the backend selected by cfg.Driver
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.StoreDriverMongo:
		return NewMongoStore(ctx, cfg.MongoURL, cfg.MongoDatabase)
	case config.StoreDriverPostgres:
		return NewPostgresStore(cfg.PostgresURL)
	case config.StoreDriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

func offset(q models.ProductQuery) int {
	if q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}
