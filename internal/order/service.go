package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-raffle/internal/apperrors"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/notify"
)

const maxCommentLength = 500

type DBLayer interface {
	CreateOrderSnapshot(ctx context.Context, order *models.Order, items []models.OrderItem, payment *models.Payment) error
	DeleteOrder(ctx context.Context, orderID string) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	GetPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error)
	UpdatePaymentMethod(ctx context.Context, orderID, method string) error
}

type CartLifecycle interface {
	GetCart(ctx context.Context, cartID string) (*models.Cart, error)
	FinalizeCart(ctx context.Context, cart *models.Cart, customerID string) ([]models.Ticket, error)
	ReopenCart(ctx context.Context, cart *models.Cart) error
}

type TicketStore interface {
	GetTicketsByIDs(ctx context.Context, ticketIDs []string) ([]models.Ticket, error)
}

type TicketOps interface {
	Release(ctx context.Context, tickets []models.Ticket) error
	MarkSold(ctx context.Context, tickets []models.Ticket) error
	Restore(ctx context.Context, tickets []models.Ticket) error
}

type Statistics interface {
	CreateOrder(ctx context.Context, raffle *models.Raffle, qty int) error
	Complete(ctx context.Context, raffle *models.Raffle, qty int) error
	Cancel(ctx context.Context, raffle *models.Raffle, qty int) error
	Refund(ctx context.Context, raffle *models.Raffle, qty int) error
	Unpaid(ctx context.Context, raffle *models.Raffle, qty int) error
}

type RaffleController interface {
	GetRaffle(ctx context.Context, id string) (*models.Raffle, error)
	CompleteIfAllTicketsSold(ctx context.Context, raffle *models.Raffle) error
	ReactivateAfterAvailableIncrease(ctx context.Context, raffle *models.Raffle) error
}

type AssociationChecker interface {
	RaffleBelongsTo(ctx context.Context, raffleID, associationID string) (bool, error)
}

// CustomerProvider turns contact details into a customer id. Consumed, not
// implemented, by the lifecycle.
type CustomerProvider interface {
	EnsureCustomer(ctx context.Context, input CustomerInput) (string, error)
}

type Notifier interface {
	Notify(kind notify.EventKind, order models.Order)
}

// QRIssuer produces the validation code stamped on sold tickets.
type QRIssuer interface {
	GenerateEncryptedQR(ticket models.Ticket) ([]byte, error)
}

type QRStore interface {
	UpdateTicketQRCode(ctx context.Context, ticketID string, qrCode []byte) error
}

type CustomerInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

type CreateOrderInput struct {
	CartID        string
	RaffleID      string
	TicketIDs     []string
	AssociationID string
	Customer      CustomerInput
	Comment       string
}

// OrderService drives the order state machine:
// PENDING → {COMPLETED, CANCELLED, UNPAID}; COMPLETED → REFUNDED.
type OrderService struct {
	DB           DBLayer
	Carts        CartLifecycle
	Tickets      TicketStore
	Ops          TicketOps
	Stats        Statistics
	Raffles      RaffleController
	Customers    CustomerProvider
	Associations AssociationChecker
	Notifier     Notifier
	QR           QRIssuer
	QRStore      QRStore
	Logger       *logger.Logger
}

// Create finalizes an active cart into a PENDING order with payment and
// item snapshots.
func (s *OrderService) Create(ctx context.Context, userID string, input CreateOrderInput) (*models.Order, error) {
	cart, err := s.Carts.GetCart(ctx, input.CartID)
	if err != nil {
		return nil, err
	}
	if cart.UserID != userID {
		return nil, apperrors.NewAuthorization("cart does not belong to the requester")
	}
	if cart.Status != models.CartStatusActive {
		return nil, apperrors.NewBusiness(apperrors.CodeCartNotActive,
			fmt.Sprintf("cart %s is %s", cart.CartID, cart.Status), nil)
	}

	requested, err := s.Tickets.GetTicketsByIDs(ctx, input.TicketIDs)
	if err != nil {
		return nil, apperrors.NewDatabase("load tickets", err)
	}
	if len(requested) != len(input.TicketIDs) {
		found := make(map[string]bool, len(requested))
		for _, t := range requested {
			found[t.TicketID] = true
		}
		for _, id := range input.TicketIDs {
			if !found[id] {
				return nil, apperrors.NewNotFound("ticket", id)
			}
		}
	}

	// The requested set must match the cart's tickets exactly, no subset or
	// superset.
	if err := ticketSetsEqual(cart.Tickets, input.TicketIDs); err != nil {
		return nil, err
	}

	for _, t := range cart.Tickets {
		ok, err := s.Associations.RaffleBelongsTo(ctx, t.RaffleID, input.AssociationID)
		if err != nil {
			return nil, apperrors.NewDatabase("check association membership", err)
		}
		if !ok {
			return nil, apperrors.NewBusiness(apperrors.CodeAssociationMismatch,
				fmt.Sprintf("raffle %s does not belong to association %s", t.RaffleID, input.AssociationID), nil)
		}
	}

	raffle, err := s.Raffles.GetRaffle(ctx, input.RaffleID)
	if err != nil {
		return nil, err
	}
	if raffle.Status != models.RaffleStatusActive {
		return nil, apperrors.NewBusiness(apperrors.CodeRaffleNotInStatus,
			fmt.Sprintf("raffle %s is %s, orders require ACTIVE", raffle.RaffleID, raffle.Status), nil)
	}

	if len(input.Comment) > maxCommentLength {
		return nil, apperrors.NewBusiness(apperrors.CodeInvalidComment,
			fmt.Sprintf("comment exceeds %d characters", maxCommentLength), nil)
	}

	customerID, err := s.Customers.EnsureCustomer(ctx, input.Customer)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderID:        newOrderID(),
		OrderReference: models.NewOrderReference(),
		RaffleID:       raffle.RaffleID,
		CustomerID:     customerID,
		UserID:         cart.UserID,
		Status:         models.OrderStatusPending,
		Comment:        input.Comment,
		CreatedAt:      time.Now(),
	}

	items, total, err := s.buildItems(ctx, order, cart.Tickets, customerID)
	if err != nil {
		return nil, err
	}
	payment := &models.Payment{
		PaymentID: newOrderID(),
		OrderID:   order.OrderID,
		Total:     total,
		CreatedAt: time.Now(),
	}

	// Snapshot the rows before finalize hands them over, so a later failure
	// can put them back on the cart.
	snapshot := make([]models.Ticket, len(cart.Tickets))
	copy(snapshot, cart.Tickets)

	tickets, err := s.Carts.FinalizeCart(ctx, cart, customerID)
	if err != nil {
		return nil, err
	}

	if err := s.DB.CreateOrderSnapshot(ctx, order, items, payment); err != nil {
		s.undoFinalize(ctx, cart, snapshot)
		return nil, apperrors.NewDatabase("create order", err)
	}

	if err := s.Stats.CreateOrder(ctx, raffle, len(tickets)); err != nil {
		if delErr := s.DB.DeleteOrder(ctx, order.OrderID); delErr != nil {
			s.Logger.Error("ORDER", fmt.Sprintf("failed to remove order %s during rollback: %v", order.OrderID, delErr))
		}
		s.undoFinalize(ctx, cart, snapshot)
		return nil, err
	}

	order.Items = items
	order.Payment = payment
	s.Logger.LogOrder("create", order.OrderID, fmt.Sprintf("reference %s, %d tickets, total %.2f", order.OrderReference, len(items), total))
	s.Notifier.Notify(notify.EventOrderCreated, *order)
	return order, nil
}

// Complete marks the order's tickets SOLD, records the sale and may complete
// a sold-out raffle.
func (s *OrderService) Complete(ctx context.Context, orderID, paymentMethod string) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, apperrors.NewIllegalTransition(string(order.Status), string(models.OrderStatusPending))
	}

	raffle, err := s.Raffles.GetRaffle(ctx, order.RaffleID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.orderTickets(ctx, orderID)
	if err != nil {
		return nil, err
	}

	prev := *order
	if err := s.Ops.MarkSold(ctx, tickets); err != nil {
		return nil, err
	}

	if err := s.DB.UpdatePaymentMethod(ctx, orderID, paymentMethod); err != nil {
		s.restoreTickets(ctx, tickets)
		return nil, apperrors.NewDatabase("record payment method", err)
	}

	now := time.Now()
	order.Status = models.OrderStatusCompleted
	order.CompletedAt = &now
	if err := s.DB.UpdateOrder(ctx, order); err != nil {
		s.clearPaymentMethod(ctx, orderID)
		s.restoreTickets(ctx, tickets)
		return nil, apperrors.NewDatabase("update order", err)
	}

	if err := s.Stats.Complete(ctx, raffle, len(tickets)); err != nil {
		s.revertOrder(ctx, prev)
		s.clearPaymentMethod(ctx, orderID)
		s.restoreTickets(ctx, tickets)
		return nil, err
	}

	// Derived raffle state; a failure here does not undo the sale.
	if err := s.Raffles.CompleteIfAllTicketsSold(ctx, raffle); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("failed to check raffle %s for sell-out: %v", raffle.RaffleID, err))
	}

	s.issueTicketQRCodes(ctx, tickets)

	s.Logger.LogOrder("complete", order.OrderID, fmt.Sprintf("%d tickets sold", len(tickets)))
	s.Notifier.Notify(notify.EventOrderCompleted, *order)
	return order, nil
}

// Cancel releases a pending order's tickets back into an ACTIVE raffle.
func (s *OrderService) Cancel(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, apperrors.NewIllegalTransition(string(order.Status), string(models.OrderStatusPending))
	}

	raffle, err := s.Raffles.GetRaffle(ctx, order.RaffleID)
	if err != nil {
		return nil, err
	}
	if raffle.Status != models.RaffleStatusActive {
		return nil, apperrors.NewBusiness(apperrors.CodeRaffleNotInStatus,
			fmt.Sprintf("raffle %s is %s, cancel requires ACTIVE", raffle.RaffleID, raffle.Status), nil)
	}

	tickets, err := s.orderTickets(ctx, orderID)
	if err != nil {
		return nil, err
	}

	prev := *order
	if err := s.Ops.Release(ctx, tickets); err != nil {
		return nil, err
	}

	now := time.Now()
	order.Status = models.OrderStatusCancelled
	order.CancelledAt = &now
	if err := s.DB.UpdateOrder(ctx, order); err != nil {
		s.restoreTickets(ctx, tickets)
		return nil, apperrors.NewDatabase("update order", err)
	}

	if err := s.Stats.Cancel(ctx, raffle, len(tickets)); err != nil {
		s.revertOrder(ctx, prev)
		s.restoreTickets(ctx, tickets)
		return nil, err
	}

	s.Logger.LogOrder("cancel", order.OrderID, fmt.Sprintf("%d tickets released", len(tickets)))
	s.Notifier.Notify(notify.EventOrderCancelled, *order)
	return order, nil
}

// Refund reverses a completed order and reactivates a raffle that had
// completed by selling out.
func (s *OrderService) Refund(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, apperrors.NewIllegalTransition(string(order.Status), string(models.OrderStatusCompleted))
	}

	raffle, err := s.Raffles.GetRaffle(ctx, order.RaffleID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.orderTickets(ctx, orderID)
	if err != nil {
		return nil, err
	}

	prev := *order
	if err := s.Ops.Release(ctx, tickets); err != nil {
		return nil, err
	}

	now := time.Now()
	order.Status = models.OrderStatusRefunded
	order.RefundedAt = &now
	if err := s.DB.UpdateOrder(ctx, order); err != nil {
		s.restoreTickets(ctx, tickets)
		return nil, apperrors.NewDatabase("update order", err)
	}

	if err := s.Stats.Refund(ctx, raffle, len(tickets)); err != nil {
		s.revertOrder(ctx, prev)
		s.restoreTickets(ctx, tickets)
		return nil, err
	}

	// Derived raffle state; a failure here does not undo the refund.
	if err := s.Raffles.ReactivateAfterAvailableIncrease(ctx, raffle); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("failed to reactivate raffle %s after refund: %v", raffle.RaffleID, err))
	}

	s.Logger.LogOrder("refund", order.OrderID, fmt.Sprintf("%d tickets returned", len(tickets)))
	s.Notifier.Notify(notify.EventOrderRefunded, *order)
	return order, nil
}

// SetUnpaid closes out a pending order whose raffle already completed.
func (s *OrderService) SetUnpaid(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, apperrors.NewIllegalTransition(string(order.Status), string(models.OrderStatusPending))
	}

	raffle, err := s.Raffles.GetRaffle(ctx, order.RaffleID)
	if err != nil {
		return nil, err
	}
	if raffle.Status != models.RaffleStatusCompleted {
		return nil, apperrors.NewBusiness(apperrors.CodeRaffleNotInStatus,
			fmt.Sprintf("raffle %s is %s, unpaid requires COMPLETED", raffle.RaffleID, raffle.Status), nil)
	}

	tickets, err := s.orderTickets(ctx, orderID)
	if err != nil {
		return nil, err
	}

	prev := *order
	if err := s.Ops.Release(ctx, tickets); err != nil {
		return nil, err
	}

	now := time.Now()
	order.Status = models.OrderStatusUnpaid
	order.UnpaidAt = &now
	if err := s.DB.UpdateOrder(ctx, order); err != nil {
		s.restoreTickets(ctx, tickets)
		return nil, apperrors.NewDatabase("update order", err)
	}

	if err := s.Stats.Unpaid(ctx, raffle, len(tickets)); err != nil {
		s.revertOrder(ctx, prev)
		s.restoreTickets(ctx, tickets)
		return nil, err
	}

	s.Logger.LogOrder("unpaid", order.OrderID, fmt.Sprintf("%d tickets released", len(tickets)))
	s.Notifier.Notify(notify.EventOrderUnpaid, *order)
	return order, nil
}

func (s *OrderService) AddComment(ctx context.Context, orderID, comment string) (*models.Order, error) {
	if len(comment) > maxCommentLength {
		return nil, apperrors.NewBusiness(apperrors.CodeInvalidComment,
			fmt.Sprintf("comment exceeds %d characters", maxCommentLength), nil)
	}
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Comment = comment
	if err := s.DB.UpdateOrder(ctx, order); err != nil {
		return nil, apperrors.NewDatabase("update order", err)
	}
	return order, nil
}

func (s *OrderService) DeleteComment(ctx context.Context, orderID string) (*models.Order, error) {
	return s.AddComment(ctx, orderID, "")
}

// GetOrder returns the order with its items and payment attached.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.DB.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, apperrors.NewDatabase("load order items", err)
	}
	order.Items = items
	payment, err := s.DB.GetPaymentByOrder(ctx, orderID)
	if err == nil {
		order.Payment = payment
	}
	return order, nil
}

// restoreTickets unwinds the ticket side of a failed transition. The snapshot
// was taken before the first write, so putting it back is always safe.
func (s *OrderService) restoreTickets(ctx context.Context, tickets []models.Ticket) {
	if err := s.Ops.Restore(ctx, tickets); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("failed to restore tickets during rollback: %v", err))
	}
}

func (s *OrderService) revertOrder(ctx context.Context, prev models.Order) {
	if err := s.DB.UpdateOrder(ctx, &prev); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("failed to revert order %s during rollback: %v", prev.OrderID, err))
	}
}

func (s *OrderService) clearPaymentMethod(ctx context.Context, orderID string) {
	if err := s.DB.UpdatePaymentMethod(ctx, orderID, ""); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("failed to clear payment method for order %s during rollback: %v", orderID, err))
	}
}

// undoFinalize reverses a finalized cart: tickets go back onto the cart and
// the cart reopens.
func (s *OrderService) undoFinalize(ctx context.Context, cart *models.Cart, snapshot []models.Ticket) {
	s.restoreTickets(ctx, snapshot)
	if err := s.Carts.ReopenCart(ctx, cart); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("failed to reopen cart %s during rollback: %v", cart.CartID, err))
	}
}

func (s *OrderService) getOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("order", orderID)
	}
	if err != nil {
		return nil, apperrors.NewDatabase("load order", err)
	}
	return order, nil
}

func (s *OrderService) orderTickets(ctx context.Context, orderID string) ([]models.Ticket, error) {
	items, err := s.DB.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, apperrors.NewDatabase("load order items", err)
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.TicketID
	}
	tickets, err := s.Tickets.GetTicketsByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.NewDatabase("load tickets", err)
	}
	return tickets, nil
}

// buildItems snapshots every ticket at its raffle's current price and sums
// the payment total, price×qty per raffle.
func (s *OrderService) buildItems(ctx context.Context, order *models.Order, tickets []models.Ticket, customerID string) ([]models.OrderItem, float64, error) {
	prices := make(map[string]float64)
	items := make([]models.OrderItem, 0, len(tickets))
	total := 0.0
	for _, t := range tickets {
		price, ok := prices[t.RaffleID]
		if !ok {
			raffle, err := s.Raffles.GetRaffle(ctx, t.RaffleID)
			if err != nil {
				return nil, 0, err
			}
			price = raffle.TicketPrice
			prices[t.RaffleID] = price
		}
		items = append(items, models.OrderItem{
			OrderItemID:     newOrderID(),
			OrderID:         order.OrderID,
			TicketID:        t.TicketID,
			TicketNumber:    t.TicketNumber,
			PriceAtPurchase: price,
			RaffleID:        t.RaffleID,
			CustomerID:      customerID,
		})
		total += price
	}
	return items, total, nil
}

// issueTicketQRCodes is best effort; a QR failure never fails the sale.
func (s *OrderService) issueTicketQRCodes(ctx context.Context, tickets []models.Ticket) {
	if s.QR == nil || s.QRStore == nil {
		return
	}
	for _, t := range tickets {
		qrBytes, err := s.QR.GenerateEncryptedQR(t)
		if err != nil {
			s.Logger.Warn("ORDER", fmt.Sprintf("failed to generate QR for ticket %s: %v", t.TicketID, err))
			continue
		}
		if err := s.QRStore.UpdateTicketQRCode(ctx, t.TicketID, qrBytes); err != nil {
			s.Logger.Warn("ORDER", fmt.Sprintf("failed to store QR for ticket %s: %v", t.TicketID, err))
		}
	}
}

func ticketSetsEqual(cartTickets []models.Ticket, requestedIDs []string) error {
	cartSet := make(map[string]bool, len(cartTickets))
	for _, t := range cartTickets {
		cartSet[t.TicketID] = true
	}
	requestedSet := make(map[string]bool, len(requestedIDs))
	for _, id := range requestedIDs {
		requestedSet[id] = true
	}
	if len(cartSet) != len(requestedSet) {
		return apperrors.NewBusiness(apperrors.CodeTicketSetMismatch,
			fmt.Sprintf("cart holds %d tickets, request names %d", len(cartSet), len(requestedSet)), nil)
	}
	for id := range requestedSet {
		if !cartSet[id] {
			return apperrors.NewBusiness(apperrors.CodeTicketSetMismatch,
				fmt.Sprintf("ticket %s is not in the cart", id), nil)
		}
	}
	return nil
}
