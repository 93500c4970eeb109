package raffle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ms-raffle/internal/apperrors"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
)

type DBLayer interface {
	CreateRaffle(ctx context.Context, raffle *models.Raffle) error
	GetRaffleByID(ctx context.Context, id string) (*models.Raffle, error)
	UpdateRaffle(ctx context.Context, raffle *models.Raffle) error
	DeleteRaffle(ctx context.Context, id string) error
	GetRafflesDueForActivation(ctx context.Context, now time.Time) ([]models.Raffle, error)
	GetRafflesDueForCompletion(ctx context.Context, now time.Time) ([]models.Raffle, error)
	CreateStatistics(ctx context.Context, stats *models.RaffleStatistics) error
	GetStatistics(ctx context.Context, raffleID string) (*models.RaffleStatistics, error)
	DeleteStatistics(ctx context.Context, raffleID string) error
}

type TicketWriter interface {
	CreateTickets(ctx context.Context, tickets []models.Ticket) error
	DeleteTicketsByRaffle(ctx context.Context, raffleID string) error
}

type CreateRaffleInput struct {
	AssociationID     string    `json:"association_id"`
	Name              string    `json:"name"`
	TotalTickets      int       `json:"total_tickets"`
	FirstTicketNumber int       `json:"first_ticket_number"`
	TicketPrice       float64   `json:"ticket_price"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
}

// RaffleService controls raffle status transitions, driven by time through
// the sweeps or by ticket-availability side effects of the order lifecycle.
type RaffleService struct {
	DB      DBLayer
	Tickets TicketWriter
	Logger  *logger.Logger
}

func NewRaffleService(db DBLayer, tickets TicketWriter, log *logger.Logger) *RaffleService {
	return &RaffleService{DB: db, Tickets: tickets, Logger: log}
}

// CreateRaffle creates a PENDING raffle with its full ticket range and a
// fresh statistics row.
func (s *RaffleService) CreateRaffle(ctx context.Context, input CreateRaffleInput) (*models.Raffle, error) {
	if input.TotalTickets <= 0 {
		return nil, apperrors.NewBusiness("INVALID_RAFFLE", "total tickets must be positive", nil)
	}
	if !input.EndDate.After(input.StartDate) {
		return nil, apperrors.NewBusiness("INVALID_RAFFLE", "end date must be after start date", nil)
	}

	now := time.Now()
	raffle := &models.Raffle{
		RaffleID:          uuid.NewString(),
		AssociationID:     input.AssociationID,
		Name:              input.Name,
		Status:            models.RaffleStatusPending,
		TotalTickets:      input.TotalTickets,
		FirstTicketNumber: input.FirstTicketNumber,
		TicketPrice:       input.TicketPrice,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		CreatedAt:         now,
	}
	if err := s.DB.CreateRaffle(ctx, raffle); err != nil {
		return nil, apperrors.NewDatabase("create raffle", err)
	}

	// Contiguous numbering from firstTicketNumber, persisted as strings.
	tickets := make([]models.Ticket, input.TotalTickets)
	for i := 0; i < input.TotalTickets; i++ {
		tickets[i] = models.Ticket{
			TicketID:     uuid.NewString(),
			RaffleID:     raffle.RaffleID,
			TicketNumber: strconv.Itoa(input.FirstTicketNumber + i),
			Status:       models.TicketStatusAvailable,
			CreatedAt:    now,
		}
	}
	if err := s.Tickets.CreateTickets(ctx, tickets); err != nil {
		return nil, apperrors.NewDatabase("create tickets", err)
	}

	stats := &models.RaffleStatistics{
		RaffleID:         raffle.RaffleID,
		AvailableTickets: input.TotalTickets,
	}
	if err := s.DB.CreateStatistics(ctx, stats); err != nil {
		return nil, apperrors.NewDatabase("create raffle statistics", err)
	}

	s.Logger.Info("RAFFLE", fmt.Sprintf("created raffle %s with %d tickets", raffle.RaffleID, input.TotalTickets))
	return raffle, nil
}

func (s *RaffleService) GetRaffle(ctx context.Context, id string) (*models.Raffle, error) {
	raffle, err := s.DB.GetRaffleByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("raffle", id)
	}
	if err != nil {
		return nil, apperrors.NewDatabase("load raffle", err)
	}
	return raffle, nil
}

// GetStatistics returns the raffle's current statistics snapshot.
func (s *RaffleService) GetStatistics(ctx context.Context, raffleID string) (*models.RaffleStatistics, error) {
	stats, err := s.DB.GetStatistics(ctx, raffleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("raffle statistics", raffleID)
	}
	if err != nil {
		return nil, apperrors.NewDatabase("load raffle statistics", err)
	}
	return stats, nil
}

// RaffleBelongsTo is the association membership gate other services consume.
func (s *RaffleService) RaffleBelongsTo(ctx context.Context, raffleID, associationID string) (bool, error) {
	raffle, err := s.GetRaffle(ctx, raffleID)
	if err != nil {
		return false, err
	}
	return raffle.AssociationID == associationID, nil
}

// UpdateStatus is the manual operator transition. PENDING→ACTIVE and
// ACTIVE→COMPLETED only.
func (s *RaffleService) UpdateStatus(ctx context.Context, raffleID string, status models.RaffleStatus) (*models.Raffle, error) {
	raffle, err := s.GetRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}

	legal := (raffle.Status == models.RaffleStatusPending && status == models.RaffleStatusActive) ||
		(raffle.Status == models.RaffleStatusActive && status == models.RaffleStatusCompleted)
	if !legal {
		return nil, apperrors.NewIllegalTransition(string(raffle.Status), string(status))
	}

	raffle.Status = status
	if status == models.RaffleStatusCompleted {
		now := time.Now()
		raffle.CompletedAt = &now
	}
	if err := s.DB.UpdateRaffle(ctx, raffle); err != nil {
		return nil, apperrors.NewDatabase("update raffle", err)
	}
	return raffle, nil
}

// Delete removes a raffle and everything it owns, in explicit order. Only
// legal while PENDING.
func (s *RaffleService) Delete(ctx context.Context, raffleID string) error {
	raffle, err := s.GetRaffle(ctx, raffleID)
	if err != nil {
		return err
	}
	if raffle.Status != models.RaffleStatusPending {
		return apperrors.NewBusiness(apperrors.CodeRaffleNotInStatus,
			fmt.Sprintf("raffle %s is %s, delete requires PENDING", raffleID, raffle.Status), nil)
	}

	if err := s.Tickets.DeleteTicketsByRaffle(ctx, raffleID); err != nil {
		return apperrors.NewDatabase("delete raffle tickets", err)
	}
	if err := s.DB.DeleteStatistics(ctx, raffleID); err != nil {
		return apperrors.NewDatabase("delete raffle statistics", err)
	}
	if err := s.DB.DeleteRaffle(ctx, raffleID); err != nil {
		return apperrors.NewDatabase("delete raffle", err)
	}
	s.Logger.LogDatabase("delete", "raffles", fmt.Sprintf("raffle %s removed with its tickets and statistics", raffleID))
	return nil
}

// CompleteIfAllTicketsSold completes an ACTIVE raffle once every ticket is
// sold. Called after each order completion.
func (s *RaffleService) CompleteIfAllTicketsSold(ctx context.Context, raffle *models.Raffle) error {
	if raffle.Status != models.RaffleStatusActive {
		return nil
	}
	stats, err := s.GetStatistics(ctx, raffle.RaffleID)
	if err != nil {
		return err
	}
	if stats.SoldTickets < raffle.TotalTickets {
		return nil
	}

	now := time.Now()
	raffle.Status = models.RaffleStatusCompleted
	raffle.CompletionReason = models.CompletionReasonSoldOut
	raffle.CompletedAt = &now
	if err := s.DB.UpdateRaffle(ctx, raffle); err != nil {
		return apperrors.NewDatabase("complete raffle", err)
	}
	s.Logger.Info("RAFFLE", fmt.Sprintf("raffle %s completed, all tickets sold", raffle.RaffleID))
	return nil
}

// ReactivateAfterAvailableIncrease reopens a sold-out-completed raffle when a
// refund put tickets back into the pool.
func (s *RaffleService) ReactivateAfterAvailableIncrease(ctx context.Context, raffle *models.Raffle) error {
	if raffle.Status != models.RaffleStatusCompleted || raffle.CompletionReason != models.CompletionReasonSoldOut {
		return nil
	}
	stats, err := s.GetStatistics(ctx, raffle.RaffleID)
	if err != nil {
		return err
	}
	if stats.AvailableTickets <= 0 {
		return nil
	}

	raffle.Status = models.RaffleStatusActive
	raffle.CompletionReason = models.CompletionReasonNone
	raffle.CompletedAt = nil
	if err := s.DB.UpdateRaffle(ctx, raffle); err != nil {
		return apperrors.NewDatabase("reactivate raffle", err)
	}
	s.Logger.Info("RAFFLE", fmt.Sprintf("raffle %s reactivated, tickets available again", raffle.RaffleID))
	return nil
}

// UpdateEndDate moves the end date and reactivates a raffle that completed by
// reaching its old end date, if the new one lies in the future.
func (s *RaffleService) UpdateEndDate(ctx context.Context, raffleID string, endDate time.Time) (*models.Raffle, error) {
	raffle, err := s.GetRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}

	raffle.EndDate = endDate
	if raffle.Status == models.RaffleStatusCompleted &&
		raffle.CompletionReason == models.CompletionReasonEndDate &&
		endDate.After(time.Now()) {
		raffle.Status = models.RaffleStatusActive
		raffle.CompletionReason = models.CompletionReasonNone
		raffle.CompletedAt = nil
		s.Logger.Info("RAFFLE", fmt.Sprintf("raffle %s reactivated after end date change", raffleID))
	}
	if err := s.DB.UpdateRaffle(ctx, raffle); err != nil {
		return nil, apperrors.NewDatabase("update raffle", err)
	}
	return raffle, nil
}

// ActivateDueRaffles flips PENDING raffles whose start date passed to ACTIVE.
// Idempotent: an already activated raffle no longer matches the fetch.
func (s *RaffleService) ActivateDueRaffles(ctx context.Context, now time.Time) (int, error) {
	due, err := s.DB.GetRafflesDueForActivation(ctx, now)
	if err != nil {
		return 0, apperrors.NewDatabase("load due raffles", err)
	}

	activated := 0
	for i := range due {
		raffle := due[i]
		raffle.Status = models.RaffleStatusActive
		if err := s.DB.UpdateRaffle(ctx, &raffle); err != nil {
			s.Logger.Error("RAFFLE", fmt.Sprintf("failed to activate raffle %s: %v", raffle.RaffleID, err))
			continue
		}
		activated++
	}
	return activated, nil
}

// CompleteDueRaffles completes ACTIVE raffles whose end date passed.
func (s *RaffleService) CompleteDueRaffles(ctx context.Context, now time.Time) (int, error) {
	due, err := s.DB.GetRafflesDueForCompletion(ctx, now)
	if err != nil {
		return 0, apperrors.NewDatabase("load due raffles", err)
	}

	completed := 0
	for i := range due {
		raffle := due[i]
		completedAt := now
		raffle.Status = models.RaffleStatusCompleted
		raffle.CompletionReason = models.CompletionReasonEndDate
		raffle.CompletedAt = &completedAt
		if err := s.DB.UpdateRaffle(ctx, &raffle); err != nil {
			s.Logger.Error("RAFFLE", fmt.Sprintf("failed to complete raffle %s: %v", raffle.RaffleID, err))
			continue
		}
		completed++
	}
	return completed, nil
}
