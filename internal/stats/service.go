package stats

import (
	"context"
	"fmt"
	"time"

	"ms-raffle/internal/apperrors"
	"ms-raffle/internal/models"
)

type DBLayer interface {
	GetStatistics(ctx context.Context, raffleID string) (*models.RaffleStatistics, error)
	UpdateStatistics(ctx context.Context, stats *models.RaffleStatistics) error
}

type RaffleStore interface {
	GetRaffleByID(ctx context.Context, id string) (*models.Raffle, error)
}

// Service is the only writer of RaffleStatistics. Each operation loads the
// row, applies one of the documented transformations and persists it.
type Service struct {
	DB      DBLayer
	Raffles RaffleStore
	now     func() time.Time
}

func NewService(db DBLayer, raffles RaffleStore) *Service {
	return &Service{DB: db, Raffles: raffles, now: time.Now}
}

// Reservation removes qty tickets from the pool and counts one new participant.
func (s *Service) Reservation(ctx context.Context, raffle *models.Raffle, qty int) error {
	return s.apply(ctx, raffle.RaffleID, func(st *models.RaffleStatistics) error {
		if st.AvailableTickets < qty {
			return apperrors.NewBusiness(apperrors.CodeInsufficientTickets,
				fmt.Sprintf("raffle %s has %d tickets available, %d requested", raffle.RaffleID, st.AvailableTickets, qty),
				map[string]any{"available": st.AvailableTickets, "requested": qty})
		}
		st.AvailableTickets -= qty
		st.Participants++
		recomputeTicketsPerParticipant(st, raffle)
		return nil
	})
}

// Release puts qty tickets back and drops one participant.
func (s *Service) Release(ctx context.Context, raffle *models.Raffle, qty int) error {
	return s.apply(ctx, raffle.RaffleID, func(st *models.RaffleStatistics) error {
		st.AvailableTickets += qty
		if st.AvailableTickets > raffle.TotalTickets {
			st.AvailableTickets = raffle.TotalTickets
		}
		if st.Participants > 0 {
			st.Participants--
		}
		recomputeTicketsPerParticipant(st, raffle)
		return nil
	})
}

func (s *Service) CreateOrder(ctx context.Context, raffle *models.Raffle, qty int) error {
	return s.apply(ctx, raffle.RaffleID, func(st *models.RaffleStatistics) error {
		st.PendingOrders++
		st.TotalOrders++
		return nil
	})
}

// Complete records a sale of qty tickets at the raffle's ticket price.
func (s *Service) Complete(ctx context.Context, raffle *models.Raffle, qty int) error {
	return s.apply(ctx, raffle.RaffleID, func(st *models.RaffleStatistics) error {
		now := s.now()
		st.PendingOrders--
		st.CompletedOrders++
		st.SoldTickets += qty
		st.Revenue += raffle.TicketPrice * float64(qty)
		recomputeAverageOrderValue(st)
		if st.FirstSaleDate == nil {
			first := now
			st.FirstSaleDate = &first
		}
		last := now
		st.LastSaleDate = &last
		recomputeDailySalesVelocity(st, now)
		return nil
	})
}

// Refund reverses a completed sale and returns the tickets to the pool.
func (s *Service) Refund(ctx context.Context, raffle *models.Raffle, qty int) error {
	return s.apply(ctx, raffle.RaffleID, func(st *models.RaffleStatistics) error {
		st.RefundedOrders++
		st.CompletedOrders--
		st.SoldTickets -= qty
		st.AvailableTickets += qty
		if st.AvailableTickets > raffle.TotalTickets {
			st.AvailableTickets = raffle.TotalTickets
		}
		st.Revenue -= raffle.TicketPrice * float64(qty)
		recomputeAverageOrderValue(st)
		recomputeDailySalesVelocity(st, s.now())
		return nil
	})
}

func (s *Service) Cancel(ctx context.Context, raffle *models.Raffle, qty int) error {
	return s.apply(ctx, raffle.RaffleID, func(st *models.RaffleStatistics) error {
		st.PendingOrders--
		st.CancelledOrders++
		st.AvailableTickets += qty
		if st.AvailableTickets > raffle.TotalTickets {
			st.AvailableTickets = raffle.TotalTickets
		}
		return nil
	})
}

func (s *Service) Unpaid(ctx context.Context, raffle *models.Raffle, qty int) error {
	return s.apply(ctx, raffle.RaffleID, func(st *models.RaffleStatistics) error {
		st.PendingOrders--
		st.UnpaidOrders++
		st.AvailableTickets += qty
		if st.AvailableTickets > raffle.TotalTickets {
			st.AvailableTickets = raffle.TotalTickets
		}
		return nil
	})
}

// ReservationForTickets groups tickets by raffle and applies Reservation per
// group; used for multi-raffle cart batches.
func (s *Service) ReservationForTickets(ctx context.Context, tickets []models.Ticket) error {
	return s.perRaffle(ctx, tickets, s.Reservation)
}

// ReleaseForTickets groups tickets by raffle and applies Release per group.
func (s *Service) ReleaseForTickets(ctx context.Context, tickets []models.Ticket) error {
	return s.perRaffle(ctx, tickets, s.Release)
}

func (s *Service) perRaffle(ctx context.Context, tickets []models.Ticket, op func(context.Context, *models.Raffle, int) error) error {
	groups := make(map[string]int)
	for _, t := range tickets {
		groups[t.RaffleID]++
	}
	for raffleID, qty := range groups {
		raffle, err := s.Raffles.GetRaffleByID(ctx, raffleID)
		if err != nil {
			return apperrors.NewDatabase("load raffle for statistics", err)
		}
		if err := op(ctx, raffle, qty); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) apply(ctx context.Context, raffleID string, mutate func(*models.RaffleStatistics) error) error {
	st, err := s.DB.GetStatistics(ctx, raffleID)
	if err != nil {
		return apperrors.NewDatabase("load raffle statistics", err)
	}
	if err := mutate(st); err != nil {
		return err
	}
	if err := s.DB.UpdateStatistics(ctx, st); err != nil {
		return apperrors.NewDatabase("update raffle statistics", err)
	}
	return nil
}

func recomputeTicketsPerParticipant(st *models.RaffleStatistics, raffle *models.Raffle) {
	if st.Participants == 0 {
		st.TicketsPerParticipant = 0
		return
	}
	taken := raffle.TotalTickets - st.AvailableTickets
	st.TicketsPerParticipant = float64(taken) / float64(st.Participants)
}

func recomputeAverageOrderValue(st *models.RaffleStatistics) {
	if st.CompletedOrders <= 0 {
		st.AverageOrderValue = 0
		return
	}
	st.AverageOrderValue = st.Revenue / float64(st.CompletedOrders)
}

func recomputeDailySalesVelocity(st *models.RaffleStatistics, now time.Time) {
	if st.FirstSaleDate == nil || st.SoldTickets <= 0 {
		st.DailySalesVelocity = 0
		return
	}
	days := now.Sub(*st.FirstSaleDate).Hours() / 24
	if days < 1 {
		days = 1
	}
	st.DailySalesVelocity = float64(st.SoldTickets) / days
}
