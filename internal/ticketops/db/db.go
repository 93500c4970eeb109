package db

import (
	"context"
	"ms-raffle/internal/models"

	"github.com/uptrace/bun"
)

// DB owns every query against the tickets table. Status changes go through
// the conditional updates below so two concurrent requests can never both
// claim the same ticket.
type DB struct {
	Bun bun.IDB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// CreateTickets bulk-inserts the tickets created alongside a raffle.
func (d *DB) CreateTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&tickets).Exec(ctx)
	return err
}

func (d *DB) GetTicketsByIDs(ctx context.Context, ticketIDs []string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if len(ticketIDs) == 0 {
		return tickets, nil
	}
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("ticket_id IN (?)", bun.In(ticketIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) GetTicketsByCart(ctx context.Context, cartID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("cart_id = ?", cartID).
		Order("ticket_number").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ReserveTickets flips AVAILABLE tickets to RESERVED and attaches the cart.
// The status predicate makes the AVAILABLE→RESERVED transition exclusive at
// the row level; the returned count tells the caller whether the whole batch
// was claimed.
func (d *DB) ReserveTickets(ctx context.Context, ticketIDs []string, cartID string) (int, error) {
	if len(ticketIDs) == 0 {
		return 0, nil
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusReserved).
		Set("cart_id = ?", cartID).
		Where("ticket_id IN (?)", bun.In(ticketIDs)).
		Where("status = ?", models.TicketStatusAvailable).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// ReleaseTickets puts tickets back into the available pool, clearing both the
// cart and customer references.
func (d *DB) ReleaseTickets(ctx context.Context, ticketIDs []string) error {
	if len(ticketIDs) == 0 {
		return nil
	}
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusAvailable).
		Set("cart_id = NULL").
		Set("customer_id = NULL").
		Set("qr_code = NULL").
		Where("ticket_id IN (?)", bun.In(ticketIDs)).
		Exec(ctx)
	return err
}

// ReleaseTicketsForCart undoes a partially applied reservation. Only rows the
// given cart claimed are touched.
func (d *DB) ReleaseTicketsForCart(ctx context.Context, ticketIDs []string, cartID string) error {
	if len(ticketIDs) == 0 {
		return nil
	}
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusAvailable).
		Set("cart_id = NULL").
		Where("ticket_id IN (?)", bun.In(ticketIDs)).
		Where("cart_id = ?", cartID).
		Exec(ctx)
	return err
}

// AssignTicketsToCustomer hands cart tickets over to a customer. Status stays
// RESERVED; the sale is not final until the order completes.
func (d *DB) AssignTicketsToCustomer(ctx context.Context, ticketIDs []string, customerID string) error {
	if len(ticketIDs) == 0 {
		return nil
	}
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("customer_id = ?", customerID).
		Set("cart_id = NULL").
		Where("ticket_id IN (?)", bun.In(ticketIDs)).
		Exec(ctx)
	return err
}

// RestoreTickets writes status, cart and customer back from the given
// snapshots. Compensation path: callers pass the rows as they looked before a
// partially applied transition.
func (d *DB) RestoreTickets(ctx context.Context, tickets []models.Ticket) error {
	for _, t := range tickets {
		q := d.Bun.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", t.Status).
			Where("ticket_id = ?", t.TicketID)
		if t.CartID != "" {
			q = q.Set("cart_id = ?", t.CartID)
		} else {
			q = q.Set("cart_id = NULL")
		}
		if t.CustomerID != "" {
			q = q.Set("customer_id = ?", t.CustomerID)
		} else {
			q = q.Set("customer_id = NULL")
		}
		if _, err := q.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) MarkTicketsSold(ctx context.Context, ticketIDs []string) error {
	if len(ticketIDs) == 0 {
		return nil
	}
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusSold).
		Where("ticket_id IN (?)", bun.In(ticketIDs)).
		Exec(ctx)
	return err
}

func (d *DB) UpdateTicketQRCode(ctx context.Context, ticketID string, qrCode []byte) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("qr_code = ?", qrCode).
		Where("ticket_id = ?", ticketID).
		Exec(ctx)
	return err
}

func (d *DB) DeleteTicketsByRaffle(ctx context.Context, raffleID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("raffle_id = ?", raffleID).
		Exec(ctx)
	return err
}

func (d *DB) CountTicketsByStatus(ctx context.Context, raffleID string, status models.TicketStatus) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("raffle_id = ?", raffleID).
		Where("status = ?", status).
		Count(ctx)
}
