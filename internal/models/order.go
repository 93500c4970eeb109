package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
	OrderStatusUnpaid    OrderStatus = "UNPAID"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID        string      `bun:"order_id,pk" json:"order_id"`
	OrderReference string      `bun:"order_reference,unique,notnull" json:"order_reference"`
	RaffleID       string      `bun:"raffle_id,notnull" json:"raffle_id"`
	CustomerID     string      `bun:"customer_id,notnull" json:"customer_id"`
	UserID         string      `bun:"user_id,notnull" json:"user_id"`
	Status         OrderStatus `bun:"status,notnull" json:"status"`
	Comment        string      `bun:"comment,nullzero" json:"comment,omitempty"`
	CreatedAt      time.Time   `bun:"created_at,notnull" json:"created_at"`
	CompletedAt    *time.Time  `bun:"completed_at,nullzero" json:"completed_at,omitempty"`
	CancelledAt    *time.Time  `bun:"cancelled_at,nullzero" json:"cancelled_at,omitempty"`
	RefundedAt     *time.Time  `bun:"refunded_at,nullzero" json:"refunded_at,omitempty"`
	UnpaidAt       *time.Time  `bun:"unpaid_at,nullzero" json:"unpaid_at,omitempty"`

	Items   []OrderItem `bun:"-" json:"items,omitempty"`
	Payment *Payment    `bun:"-" json:"payment,omitempty"`
}

// OrderItem is a purchase-time snapshot; later ticket mutation never touches it.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	OrderItemID     string  `bun:"order_item_id,pk" json:"order_item_id"`
	OrderID         string  `bun:"order_id,notnull" json:"order_id"`
	TicketID        string  `bun:"ticket_id,notnull" json:"ticket_id"`
	TicketNumber    string  `bun:"ticket_number,notnull" json:"ticket_number"`
	PriceAtPurchase float64 `bun:"price_at_purchase,notnull" json:"price_at_purchase"`
	RaffleID        string  `bun:"raffle_id,notnull" json:"raffle_id"`
	CustomerID      string  `bun:"customer_id,notnull" json:"customer_id"`
}

type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	PaymentID string    `bun:"payment_id,pk" json:"payment_id"`
	OrderID   string    `bun:"order_id,notnull" json:"order_id"`
	Total     float64   `bun:"total,notnull" json:"total"`
	Method    string    `bun:"method,nullzero" json:"method,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// NewOrderReference builds the customer-facing reference: "ORD-" plus the
// first eight hex characters of a random UUID, uppercased.
func NewOrderReference() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(raw[:8])
}
