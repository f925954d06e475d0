package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// lineItems maps a cart's JSONB items column
type lineItems []models.LineItem

func (l lineItems) Value() (driver.Value, error) {
	if l == nil {
		l = lineItems{}
	}
	return json.Marshal(l)
}

func (l *lineItems) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*l = lineItems{}
		return nil
	default:
		return fmt.Errorf("unsupported items column type %T", src)
	}
	return json.Unmarshal(raw, l)
}

type cartRow struct {
	ID        string    `db:"id"`
	Items     lineItems `db:"items"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CreateCart inserts an empty or pre-filled cart
func (s *PostgresStore) CreateCart(ctx context.Context, c *models.Cart) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Items == nil {
		c.Items = []models.LineItem{}
	}

	return s.db.QueryRowxContext(ctx,
		"INSERT INTO carts (id, items) VALUES ($1, $2) RETURNING created_at, updated_at",
		c.ID, lineItems(c.Items),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// GetCart retrieves a cart by ID
func (s *PostgresStore) GetCart(ctx context.Context, id string) (*models.Cart, error) {
	var row cartRow
	err := s.db.GetContext(ctx, &row, "SELECT id, items, created_at, updated_at FROM carts WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &models.Cart{
		ID:        row.ID,
		Items:     []models.LineItem(row.Items),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// SetCartItems replaces the line items of a cart
func (s *PostgresStore) SetCartItems(ctx context.Context, id string, items []models.LineItem) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE carts SET items = $1, updated_at = NOW() WHERE id = $2",
		lineItems(items), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteCart removes a cart
func (s *PostgresStore) DeleteCart(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM carts WHERE id = $1", id)
	return err
}

// CreateUser inserts a user
func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, first_name, last_name, email, age, password, role, cart_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := s.db.QueryRowxContext(ctx, query,
		u.ID, u.FirstName, u.LastName, u.Email, u.Age, u.Password, u.Role, u.CartID,
	).Scan(&u.CreatedAt)
	return mapPostgresErr(err)
}

// GetUserByID retrieves a user by ID
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "SELECT * FROM users WHERE id = $1", id)
}

// GetUserByEmail retrieves a user by email
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "SELECT * FROM users WHERE email = $1", email)
}

func (s *PostgresStore) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AppendMessage inserts a message; the sequence assigns its creation order
func (s *PostgresStore) AppendMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	return s.db.QueryRowxContext(ctx,
		"INSERT INTO messages (id, author, body) VALUES ($1, $2, $3) RETURNING seq, created_at",
		m.ID, m.User, m.Message,
	).Scan(&m.Seq, &m.CreatedAt)
}

// ListMessages returns the whole chat log in creation order
func (s *PostgresStore) ListMessages(ctx context.Context) ([]models.Message, error) {
	messages := []models.Message{}
	err := s.db.SelectContext(ctx, &messages,
		"SELECT seq, id, author, body, created_at FROM messages ORDER BY seq")
	return messages, err
}
