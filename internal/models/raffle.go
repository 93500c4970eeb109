package models

import (
	"time"

	"github.com/uptrace/bun"
)

type RaffleStatus string

const (
	RaffleStatusPending   RaffleStatus = "PENDING"
	RaffleStatusActive    RaffleStatus = "ACTIVE"
	RaffleStatusCompleted RaffleStatus = "COMPLETED"
)

type CompletionReason string

const (
	CompletionReasonEndDate CompletionReason = "END_DATE_REACHED"
	CompletionReasonSoldOut CompletionReason = "ALL_TICKETS_SOLD"
	CompletionReasonNone    CompletionReason = ""
)

type Raffle struct {
	bun.BaseModel `bun:"table:raffles"`

	RaffleID          string           `bun:"raffle_id,pk" json:"raffle_id"`
	AssociationID     string           `bun:"association_id,notnull" json:"association_id"`
	Name              string           `bun:"name,notnull" json:"name"`
	Status            RaffleStatus     `bun:"status,notnull" json:"status"`
	TotalTickets      int              `bun:"total_tickets,notnull" json:"total_tickets"`
	FirstTicketNumber int              `bun:"first_ticket_number,notnull" json:"first_ticket_number"`
	TicketPrice       float64          `bun:"ticket_price,notnull" json:"ticket_price"`
	StartDate         time.Time        `bun:"start_date,notnull" json:"start_date"`
	EndDate           time.Time        `bun:"end_date,notnull" json:"end_date"`
	CompletionReason  CompletionReason `bun:"completion_reason,nullzero" json:"completion_reason,omitempty"`
	WinningTicketID   string           `bun:"winning_ticket_id,nullzero" json:"winning_ticket_id,omitempty"`
	CompletedAt       *time.Time       `bun:"completed_at,nullzero" json:"completed_at,omitempty"`
	CreatedAt         time.Time        `bun:"created_at,notnull" json:"created_at"`
}

type RaffleStatistics struct {
	bun.BaseModel `bun:"table:raffle_statistics"`

	RaffleID              string     `bun:"raffle_id,pk" json:"raffle_id"`
	AvailableTickets      int        `bun:"available_tickets,notnull" json:"available_tickets"`
	SoldTickets           int        `bun:"sold_tickets,notnull" json:"sold_tickets"`
	Revenue               float64    `bun:"revenue,notnull" json:"revenue"`
	AverageOrderValue     float64    `bun:"average_order_value,notnull" json:"average_order_value"`
	TotalOrders           int        `bun:"total_orders,notnull" json:"total_orders"`
	CompletedOrders       int        `bun:"completed_orders,notnull" json:"completed_orders"`
	PendingOrders         int        `bun:"pending_orders,notnull" json:"pending_orders"`
	CancelledOrders       int        `bun:"cancelled_orders,notnull" json:"cancelled_orders"`
	UnpaidOrders          int        `bun:"unpaid_orders,notnull" json:"unpaid_orders"`
	RefundedOrders        int        `bun:"refunded_orders,notnull" json:"refunded_orders"`
	Participants          int        `bun:"participants,notnull" json:"participants"`
	TicketsPerParticipant float64    `bun:"tickets_per_participant,notnull" json:"tickets_per_participant"`
	FirstSaleDate         *time.Time `bun:"first_sale_date,nullzero" json:"first_sale_date,omitempty"`
	LastSaleDate          *time.Time `bun:"last_sale_date,nullzero" json:"last_sale_date,omitempty"`
	DailySalesVelocity    float64    `bun:"daily_sales_velocity,notnull" json:"daily_sales_velocity"`
}
