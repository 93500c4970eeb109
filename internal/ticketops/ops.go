package ticketops

import (
	"context"

	"ms-raffle/internal/apperrors"
	"ms-raffle/internal/models"
)

type DBLayer interface {
	ReserveTickets(ctx context.Context, ticketIDs []string, cartID string) (int, error)
	ReleaseTickets(ctx context.Context, ticketIDs []string) error
	ReleaseTicketsForCart(ctx context.Context, ticketIDs []string, cartID string) error
	AssignTicketsToCustomer(ctx context.Context, ticketIDs []string, customerID string) error
	MarkTicketsSold(ctx context.Context, ticketIDs []string) error
	RestoreTickets(ctx context.Context, tickets []models.Ticket) error
}

// Ops holds the primitive ticket state changes every higher component builds
// on. No business rules live here; callers validate first.
type Ops struct {
	DB DBLayer
}

func New(db DBLayer) *Ops {
	return &Ops{DB: db}
}

// Reserve claims the whole batch for the cart or none of it. A ticket that
// slipped out of AVAILABLE between the caller's validation and this write
// makes the batch fail, and the rows already claimed are put back.
func (o *Ops) Reserve(ctx context.Context, cartID string, tickets []models.Ticket) error {
	ids := ticketIDs(tickets)
	claimed, err := o.DB.ReserveTickets(ctx, ids, cartID)
	if err != nil {
		return apperrors.NewDatabase("reserve tickets", err)
	}
	if claimed != len(ids) {
		if err := o.DB.ReleaseTicketsForCart(ctx, ids, cartID); err != nil {
			return apperrors.NewDatabase("rollback partial reservation", err)
		}
		return apperrors.NewBusiness(apperrors.CodeTicketUnavailable,
			"one or more tickets are no longer available",
			map[string]any{"requested": len(ids), "claimed": claimed})
	}
	return nil
}

// Release returns tickets to the available pool. No-op on an empty batch.
func (o *Ops) Release(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	if err := o.DB.ReleaseTickets(ctx, ticketIDs(tickets)); err != nil {
		return apperrors.NewDatabase("release tickets", err)
	}
	return nil
}

// TransferToCustomer sets the customer and clears the cart reference. Status
// stays RESERVED until the order lifecycle marks the tickets sold.
func (o *Ops) TransferToCustomer(ctx context.Context, tickets []models.Ticket, customerID string) error {
	if len(tickets) == 0 {
		return nil
	}
	if err := o.DB.AssignTicketsToCustomer(ctx, ticketIDs(tickets), customerID); err != nil {
		return apperrors.NewDatabase("transfer tickets to customer", err)
	}
	return nil
}

// Restore puts rows back into the state captured in the snapshots. Used to
// unwind the ticket side of a transition whose later writes failed.
func (o *Ops) Restore(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	if err := o.DB.RestoreTickets(ctx, tickets); err != nil {
		return apperrors.NewDatabase("restore tickets", err)
	}
	return nil
}

func (o *Ops) MarkSold(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	if err := o.DB.MarkTicketsSold(ctx, ticketIDs(tickets)); err != nil {
		return apperrors.NewDatabase("mark tickets sold", err)
	}
	return nil
}

func ticketIDs(tickets []models.Ticket) []string {
	ids := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i] = t.TicketID
	}
	return ids
}
