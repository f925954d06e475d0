package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeCartUpdated       = "CART_UPDATED"
	EventTypePurchaseCompleted = "PURCHASE_COMPLETED"
	EventTypeChatMessagePosted = "CHAT_MESSAGE_POSTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CartUpdatedEvent published after any cart mutation
type CartUpdatedEvent struct {
	BaseEvent
	CartID    string     `json:"cart_id"`
	Operation string     `json:"operation"`
	Items     []LineItem `json:"items"`
}

// PurchaseCompletedEvent published when at least one line item was committed
type PurchaseCompletedEvent struct {
	BaseEvent
	CartID    string          `json:"cart_id"`
	Purchaser string          `json:"purchaser"`
	Amount    decimal.Decimal `json:"amount"`
	Outcome   string          `json:"outcome"`
	Items     []PurchasedLine `json:"items"`
	Rejected  []string        `json:"rejected"`
}

// ChatMessagePostedEvent published after a message is appended to the log
type ChatMessagePostedEvent struct {
	BaseEvent
	MessageID string `json:"message_id"`
	User      string `json:"user"`
	Seq       int64  `json:"seq"`
}
