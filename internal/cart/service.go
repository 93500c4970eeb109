package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-raffle/internal/apperrors"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
)

type DBLayer interface {
	CreateCart(ctx context.Context, cart *models.Cart) error
	GetCartByID(ctx context.Context, id string) (*models.Cart, error)
	GetActiveCartByUser(ctx context.Context, userID string) (*models.Cart, error)
	UpdateCart(ctx context.Context, cart *models.Cart) error
	GetExpiredCarts(ctx context.Context, cutoff time.Time) ([]models.Cart, error)
}

type TicketStore interface {
	GetTicketsByIDs(ctx context.Context, ticketIDs []string) ([]models.Ticket, error)
	GetTicketsByCart(ctx context.Context, cartID string) ([]models.Ticket, error)
}

type TicketOps interface {
	Reserve(ctx context.Context, cartID string, tickets []models.Ticket) error
	Release(ctx context.Context, tickets []models.Ticket) error
	Restore(ctx context.Context, tickets []models.Ticket) error
	TransferToCustomer(ctx context.Context, tickets []models.Ticket, customerID string) error
}

type Statistics interface {
	ReservationForTickets(ctx context.Context, tickets []models.Ticket) error
	ReleaseForTickets(ctx context.Context, tickets []models.Ticket) error
}

type TicketLock interface {
	LockTickets(ticketIDs []string, cartID string) (bool, error)
	UnlockTickets(ticketIDs []string, cartID string) error
}

// AssociationChecker is the narrow membership gate consumed from the
// association service; reservation never reimplements it.
type AssociationChecker interface {
	RaffleBelongsTo(ctx context.Context, raffleID, associationID string) (bool, error)
}

// CartService owns carts end to end: creation, the reserve/release engine and
// the close/finalize lifecycle.
type CartService struct {
	DB           DBLayer
	Tickets      TicketStore
	Ops          TicketOps
	Stats        Statistics
	Lock         TicketLock
	Associations AssociationChecker
	Logger       *logger.Logger
	CartExpiry   time.Duration
}

func NewCartService(db DBLayer, tickets TicketStore, ops TicketOps, stats Statistics, lock TicketLock, associations AssociationChecker, log *logger.Logger, cartExpiry time.Duration) *CartService {
	return &CartService{
		DB:           db,
		Tickets:      tickets,
		Ops:          ops,
		Stats:        stats,
		Lock:         lock,
		Associations: associations,
		Logger:       log,
		CartExpiry:   cartExpiry,
	}
}

// CreateCart opens a new ACTIVE cart for the user. Any prior active cart is
// released first so the one-active-cart invariant holds.
func (s *CartService) CreateCart(ctx context.Context, userID string) (*models.Cart, error) {
	existing, err := s.DB.GetActiveCartByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDatabase("load active cart", err)
	}
	if existing != nil {
		if err := s.ReleaseCart(ctx, existing); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	cart := &models.Cart{
		CartID:    uuid.NewString(),
		UserID:    userID,
		Status:    models.CartStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.DB.CreateCart(ctx, cart); err != nil {
		return nil, apperrors.NewDatabase("create cart", err)
	}
	return cart, nil
}

func (s *CartService) GetCart(ctx context.Context, cartID string) (*models.Cart, error) {
	cart, err := s.DB.GetCartByID(ctx, cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("cart", cartID)
	}
	if err != nil {
		return nil, apperrors.NewDatabase("load cart", err)
	}
	tickets, err := s.Tickets.GetTicketsByCart(ctx, cartID)
	if err != nil {
		return nil, apperrors.NewDatabase("load cart tickets", err)
	}
	cart.Tickets = tickets
	return cart, nil
}

func (s *CartService) GetActiveCart(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.DB.GetActiveCartByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDatabase("load active cart", err)
	}
	if cart == nil {
		return nil, apperrors.NewNotFound("active cart for user", userID)
	}
	tickets, err := s.Tickets.GetTicketsByCart(ctx, cart.CartID)
	if err != nil {
		return nil, apperrors.NewDatabase("load cart tickets", err)
	}
	cart.Tickets = tickets
	return cart, nil
}

// Reserve validates and applies a reservation. All-or-nothing: one ineligible
// ticket aborts the whole batch.
func (s *CartService) Reserve(ctx context.Context, userID, cartID string, ticketIDs []string, associationID string) error {
	cart, err := s.loadOwnedActiveCart(ctx, userID, cartID)
	if err != nil {
		return err
	}

	tickets, err := s.loadRequestedTickets(ctx, ticketIDs)
	if err != nil {
		return err
	}

	if err := s.checkAssociation(ctx, tickets, associationID); err != nil {
		return err
	}
	for _, t := range tickets {
		if t.Status != models.TicketStatusAvailable {
			return apperrors.NewBusiness(apperrors.CodeTicketUnavailable,
				fmt.Sprintf("ticket %s is %s, not AVAILABLE", t.TicketNumber, t.Status), nil)
		}
	}

	// The lock closes the window between the availability check above and the
	// conditional update inside Reserve.
	locked, err := s.Lock.LockTickets(ticketIDs, cartID)
	if err != nil {
		return apperrors.NewDatabase("lock tickets", err)
	}
	if !locked {
		return apperrors.NewBusiness(apperrors.CodeTicketUnavailable,
			"one or more tickets are locked by another checkout", nil)
	}
	defer func() {
		if err := s.Lock.UnlockTickets(ticketIDs, cartID); err != nil {
			s.Logger.Warn("CART", fmt.Sprintf("failed to unlock tickets for cart %s: %v", cartID, err))
		}
	}()

	if err := s.Ops.Reserve(ctx, cartID, tickets); err != nil {
		return err
	}
	if err := s.Stats.ReservationForTickets(ctx, tickets); err != nil {
		// Put the tickets back so counters and rows stay in step.
		if relErr := s.Ops.Release(ctx, tickets); relErr != nil {
			s.Logger.Error("CART", fmt.Sprintf("failed to roll back reservation for cart %s: %v", cartID, relErr))
		}
		return err
	}

	cart.UpdatedAt = time.Now()
	if err := s.DB.UpdateCart(ctx, cart); err != nil {
		return apperrors.NewDatabase("update cart", err)
	}
	return nil
}

// Release removes tickets from the cart and returns them to the pool. Every
// requested ticket must already belong to the cart.
func (s *CartService) Release(ctx context.Context, userID, cartID string, ticketIDs []string, associationID string) error {
	cart, err := s.loadOwnedActiveCart(ctx, userID, cartID)
	if err != nil {
		return err
	}

	tickets, err := s.loadRequestedTickets(ctx, ticketIDs)
	if err != nil {
		return err
	}

	if err := s.checkAssociation(ctx, tickets, associationID); err != nil {
		return err
	}
	for _, t := range tickets {
		if t.CartID != cartID {
			return apperrors.NewBusiness(apperrors.CodeTicketNotInCart,
				fmt.Sprintf("ticket %s does not belong to cart %s", t.TicketNumber, cartID), nil)
		}
	}

	if err := s.Ops.Release(ctx, tickets); err != nil {
		return err
	}
	if err := s.Stats.ReleaseForTickets(ctx, tickets); err != nil {
		// Put the rows back so counters and tickets stay in step.
		if resErr := s.Ops.Restore(ctx, tickets); resErr != nil {
			s.Logger.Error("CART", fmt.Sprintf("failed to roll back release for cart %s: %v", cartID, resErr))
		}
		return err
	}

	cart.UpdatedAt = time.Now()
	if err := s.DB.UpdateCart(ctx, cart); err != nil {
		return apperrors.NewDatabase("update cart", err)
	}
	return nil
}

// ReleaseCart releases every ticket on the cart and closes it.
func (s *CartService) ReleaseCart(ctx context.Context, cart *models.Cart) error {
	tickets, err := s.Tickets.GetTicketsByCart(ctx, cart.CartID)
	if err != nil {
		return apperrors.NewDatabase("load cart tickets", err)
	}

	if len(tickets) > 0 {
		if err := s.Ops.Release(ctx, tickets); err != nil {
			return err
		}
		if err := s.Stats.ReleaseForTickets(ctx, tickets); err != nil {
			if resErr := s.Ops.Restore(ctx, tickets); resErr != nil {
				s.Logger.Error("CART", fmt.Sprintf("failed to roll back release for cart %s: %v", cart.CartID, resErr))
			}
			return err
		}
	}

	cart.Status = models.CartStatusClosed
	cart.UpdatedAt = time.Now()
	if err := s.DB.UpdateCart(ctx, cart); err != nil {
		return apperrors.NewDatabase("close cart", err)
	}
	return nil
}

// FinalizeCart hands the cart's tickets to the customer and then closes the
// cart, returning the tickets for order creation. Statistics are the caller's
// concern. The transfer runs first: if the close fails the cart stays ACTIVE
// and the expiry sweep can still reach its tickets.
func (s *CartService) FinalizeCart(ctx context.Context, cart *models.Cart, customerID string) ([]models.Ticket, error) {
	tickets, err := s.Tickets.GetTicketsByCart(ctx, cart.CartID)
	if err != nil {
		return nil, apperrors.NewDatabase("load cart tickets", err)
	}

	if err := s.Ops.TransferToCustomer(ctx, tickets, customerID); err != nil {
		return nil, err
	}

	cart.Status = models.CartStatusClosed
	cart.UpdatedAt = time.Now()
	if err := s.DB.UpdateCart(ctx, cart); err != nil {
		cart.Status = models.CartStatusActive
		if resErr := s.Ops.Restore(ctx, tickets); resErr != nil {
			s.Logger.Error("CART", fmt.Sprintf("failed to return tickets to cart %s: %v", cart.CartID, resErr))
		}
		return nil, apperrors.NewDatabase("close cart", err)
	}
	return tickets, nil
}

// ReopenCart reverses a finalized cart's close; the order lifecycle calls it
// when a create fails after the cart was already handed over.
func (s *CartService) ReopenCart(ctx context.Context, cart *models.Cart) error {
	cart.Status = models.CartStatusActive
	cart.UpdatedAt = time.Now()
	if err := s.DB.UpdateCart(ctx, cart); err != nil {
		return apperrors.NewDatabase("reopen cart", err)
	}
	return nil
}

// ReleaseExpiredCarts sweeps ACTIVE carts idle past the configured threshold.
// Each cart releases independently; one failure does not abort the batch.
func (s *CartService) ReleaseExpiredCarts(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.CartExpiry)
	carts, err := s.DB.GetExpiredCarts(ctx, cutoff)
	if err != nil {
		return 0, apperrors.NewDatabase("load expired carts", err)
	}

	released := 0
	for i := range carts {
		cart := carts[i]
		if err := s.ReleaseCart(ctx, &cart); err != nil {
			s.Logger.Error("CART", fmt.Sprintf("failed to release expired cart %s: %v", cart.CartID, err))
			continue
		}
		released++
	}
	return released, nil
}

func (s *CartService) loadOwnedActiveCart(ctx context.Context, userID, cartID string) (*models.Cart, error) {
	cart, err := s.DB.GetCartByID(ctx, cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("cart", cartID)
	}
	if err != nil {
		return nil, apperrors.NewDatabase("load cart", err)
	}
	if cart.UserID != userID {
		return nil, apperrors.NewAuthorization("cart does not belong to the requester")
	}
	if cart.Status != models.CartStatusActive {
		return nil, apperrors.NewBusiness(apperrors.CodeCartNotActive,
			fmt.Sprintf("cart %s is %s", cartID, cart.Status), nil)
	}
	return cart, nil
}

func (s *CartService) loadRequestedTickets(ctx context.Context, ticketIDs []string) ([]models.Ticket, error) {
	tickets, err := s.Tickets.GetTicketsByIDs(ctx, ticketIDs)
	if err != nil {
		return nil, apperrors.NewDatabase("load tickets", err)
	}
	if len(tickets) != len(ticketIDs) {
		found := make(map[string]bool, len(tickets))
		for _, t := range tickets {
			found[t.TicketID] = true
		}
		for _, id := range ticketIDs {
			if !found[id] {
				return nil, apperrors.NewNotFound("ticket", id)
			}
		}
	}
	return tickets, nil
}

func (s *CartService) checkAssociation(ctx context.Context, tickets []models.Ticket, associationID string) error {
	checked := make(map[string]bool)
	for _, t := range tickets {
		if checked[t.RaffleID] {
			continue
		}
		ok, err := s.Associations.RaffleBelongsTo(ctx, t.RaffleID, associationID)
		if err != nil {
			return apperrors.NewDatabase("check association membership", err)
		}
		if !ok {
			return apperrors.NewBusiness(apperrors.CodeAssociationMismatch,
				fmt.Sprintf("raffle %s does not belong to association %s", t.RaffleID, associationID), nil)
		}
		checked[t.RaffleID] = true
	}
	return nil
}
