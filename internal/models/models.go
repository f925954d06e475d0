package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog entry
type Product struct {
	ID          string          `db:"id" json:"id"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	Code        string          `db:"code" json:"code"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	Category    string          `db:"category" json:"category"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Product statuses
const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
)

// LineItem is a product reference plus a positive quantity inside a cart
type LineItem struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

// Cart holds the ordered line items of one user
type Cart struct {
	ID        string     `json:"id"`
	Items     []LineItem `json:"products"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartLine is a line item resolved to the current product snapshot.
// Product is nil when the referenced product no longer exists.
type CartLine struct {
	Product   *Product        `json:"product"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartView is what readers of a cart get back
type CartView struct {
	ID       string          `json:"id"`
	Products []CartLine      `json:"products"`
	Total    decimal.Decimal `json:"total"`
}

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered customer or administrator
type User struct {
	ID        string    `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
	Age       int       `db:"age" json:"age"`
	Password  string    `db:"password" json:"-"`
	Role      string    `db:"role" json:"role"`
	CartID    string    `db:"cart_id" json:"cart_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Message is an immutable chat log entry. Seq is the server-assigned creation order.
type Message struct {
	ID        string    `db:"id" json:"id"`
	User      string    `db:"author" json:"user"`
	Message   string    `db:"body" json:"message"`
	Seq       int64     `db:"seq" json:"seq"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Session is the server-side record behind a login token
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CartID    string    `json:"cart_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the authenticated caller attached to a request
type Identity struct {
	SessionID string `json:"-"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CartID    string `json:"cart_id"`
}

// IsAdmin reports whether the identity carries the admin role
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// Purchase outcomes
const (
	PurchaseComplete = "complete"
	PurchasePartial  = "partial"
	PurchaseNone     = "none"
)

// PurchasedLine is a line item whose stock was committed
type PurchasedLine struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// PurchaseResult reports the settlement of one purchase attempt. It is not persisted.
type PurchaseResult struct {
	CartID    string          `json:"cart_id"`
	Amount    decimal.Decimal `json:"amount"`
	Fulfilled []PurchasedLine `json:"fulfilled"`
	Rejected  []string        `json:"rejected"`
	Outcome   string          `json:"outcome"`
}

// ProductQuery selects a page of the catalog
type ProductQuery struct {
	Limit    int
	Page     int
	Sort     string
	Category string
	Status   string
}

// Sort directions for ProductQuery.Sort (by price)
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ProductPage is a paginated catalog listing
type ProductPage struct {
	Payload     []Product `json:"payload"`
	TotalDocs   int       `json:"total_docs"`
	TotalPages  int       `json:"total_pages"`
	Page        int       `json:"page"`
	PrevPage    *int      `json:"prev_page"`
	NextPage    *int      `json:"next_page"`
	HasPrevPage bool      `json:"has_prev_page"`
	HasNextPage bool      `json:"has_next_page"`
}
