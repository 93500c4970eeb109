package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Customer struct {
	bun.BaseModel `bun:"table:customers"`

	CustomerID string    `bun:"customer_id,pk" json:"customer_id"`
	FullName   string    `bun:"full_name,notnull" json:"full_name"`
	Email      string    `bun:"email,notnull" json:"email"`
	Phone      string    `bun:"phone,nullzero" json:"phone,omitempty"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}
