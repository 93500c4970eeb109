package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketStatusAvailable TicketStatus = "AVAILABLE"
	TicketStatusReserved  TicketStatus = "RESERVED"
	TicketStatusSold      TicketStatus = "SOLD"
)

// Ticket is one numbered entry in a raffle. A ticket references at most one
// of cart or customer at a time: the cart while it sits RESERVED in a
// checkout, the customer once a finalized cart handed it over.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID     string       `bun:"ticket_id,pk" json:"ticket_id"`
	RaffleID     string       `bun:"raffle_id,notnull" json:"raffle_id"`
	TicketNumber string       `bun:"ticket_number,notnull" json:"ticket_number"`
	Status       TicketStatus `bun:"status,notnull" json:"status"`
	CartID       string       `bun:"cart_id,nullzero" json:"cart_id,omitempty"`
	CustomerID   string       `bun:"customer_id,nullzero" json:"customer_id,omitempty"`
	QRCode       []byte       `bun:"qr_code,nullzero" json:"qr_code,omitempty"`
	CreatedAt    time.Time    `bun:"created_at,notnull" json:"created_at"`
}
