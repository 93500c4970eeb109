package models

import (
	"time"

	"github.com/uptrace/bun"
)

type CartStatus string

const (
	CartStatusActive CartStatus = "ACTIVE"
	CartStatusClosed CartStatus = "CLOSED"
)

// Cart holds tickets a user has reserved but not yet purchased. A user has at
// most one ACTIVE cart; carts are closed, never deleted.
type Cart struct {
	bun.BaseModel `bun:"table:carts"`

	CartID    string     `bun:"cart_id,pk" json:"cart_id"`
	UserID    string     `bun:"user_id,notnull" json:"user_id"`
	Status    CartStatus `bun:"status,notnull" json:"status"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,notnull" json:"updated_at"`

	Tickets []Ticket `bun:"-" json:"tickets,omitempty"`
}
