package raffle_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ms-raffle/internal/apperrors"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/raffle"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreateRaffle(ctx context.Context, r *models.Raffle) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockDBLayer) GetRaffleByID(ctx context.Context, id string) (*models.Raffle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Raffle), args.Error(1)
}

func (m *MockDBLayer) UpdateRaffle(ctx context.Context, r *models.Raffle) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockDBLayer) DeleteRaffle(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDBLayer) GetRafflesDueForActivation(ctx context.Context, now time.Time) ([]models.Raffle, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Raffle), args.Error(1)
}

func (m *MockDBLayer) GetRafflesDueForCompletion(ctx context.Context, now time.Time) ([]models.Raffle, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Raffle), args.Error(1)
}

func (m *MockDBLayer) CreateStatistics(ctx context.Context, stats *models.RaffleStatistics) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

func (m *MockDBLayer) GetStatistics(ctx context.Context, raffleID string) (*models.RaffleStatistics, error) {
	args := m.Called(ctx, raffleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RaffleStatistics), args.Error(1)
}

func (m *MockDBLayer) DeleteStatistics(ctx context.Context, raffleID string) error {
	args := m.Called(ctx, raffleID)
	return args.Error(0)
}

type MockTicketWriter struct {
	mock.Mock
}

func (m *MockTicketWriter) CreateTickets(ctx context.Context, tickets []models.Ticket) error {
	args := m.Called(ctx, tickets)
	return args.Error(0)
}

func (m *MockTicketWriter) DeleteTicketsByRaffle(ctx context.Context, raffleID string) error {
	args := m.Called(ctx, raffleID)
	return args.Error(0)
}

func newService() (*raffle.RaffleService, *MockDBLayer, *MockTicketWriter) {
	mockDB := new(MockDBLayer)
	mockTickets := new(MockTicketWriter)
	return raffle.NewRaffleService(mockDB, mockTickets, logger.NewLogger()), mockDB, mockTickets
}

func validInput() raffle.CreateRaffleInput {
	return raffle.CreateRaffleInput{
		AssociationID:     "assoc-1",
		Name:              "Spring Tombola",
		TotalTickets:      50,
		FirstTicketNumber: 100,
		TicketPrice:       2.5,
		StartDate:         time.Now().Add(24 * time.Hour),
		EndDate:           time.Now().Add(7 * 24 * time.Hour),
	}
}

func TestCreateRaffleNumbersTicketsContiguously(t *testing.T) {
	svc, mockDB, mockTickets := newService()

	var created []models.Ticket
	mockDB.On("CreateRaffle", mock.Anything, mock.AnythingOfType("*models.Raffle")).Return(nil)
	mockTickets.On("CreateTickets", mock.Anything, mock.AnythingOfType("[]models.Ticket")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).([]models.Ticket)
		}).Return(nil)
	mockDB.On("CreateStatistics", mock.Anything, mock.MatchedBy(func(st *models.RaffleStatistics) bool {
		return st.AvailableTickets == 50
	})).Return(nil)

	result, err := svc.CreateRaffle(context.Background(), validInput())

	assert.NoError(t, err)
	assert.Equal(t, models.RaffleStatusPending, result.Status)
	assert.Len(t, created, 50)
	for i, ticket := range created {
		assert.Equal(t, strconv.Itoa(100+i), ticket.TicketNumber)
		assert.Equal(t, models.TicketStatusAvailable, ticket.Status)
		assert.Equal(t, result.RaffleID, ticket.RaffleID)
	}
	mockDB.AssertExpectations(t)
}

func TestCreateRaffleRejectsInvalidInput(t *testing.T) {
	svc, _, _ := newService()

	input := validInput()
	input.TotalTickets = 0
	_, err := svc.CreateRaffle(context.Background(), input)
	assert.Error(t, err)

	input = validInput()
	input.EndDate = input.StartDate
	_, err = svc.CreateRaffle(context.Background(), input)
	assert.Error(t, err)
}

func TestUpdateStatusLegalTransitions(t *testing.T) {
	svc, mockDB, _ := newService()

	pending := &models.Raffle{RaffleID: "raffle-1", Status: models.RaffleStatusPending}
	mockDB.On("GetRaffleByID", mock.Anything, "raffle-1").Return(pending, nil)
	mockDB.On("UpdateRaffle", mock.Anything, pending).Return(nil)

	updated, err := svc.UpdateStatus(context.Background(), "raffle-1", models.RaffleStatusActive)
	assert.NoError(t, err)
	assert.Equal(t, models.RaffleStatusActive, updated.Status)

	updated, err = svc.UpdateStatus(context.Background(), "raffle-1", models.RaffleStatusCompleted)
	assert.NoError(t, err)
	assert.Equal(t, models.RaffleStatusCompleted, updated.Status)
	assert.NotNil(t, updated.CompletedAt)
}

func TestUpdateStatusRejectsIllegalTransitions(t *testing.T) {
	svc, mockDB, _ := newService()

	pending := &models.Raffle{RaffleID: "raffle-1", Status: models.RaffleStatusPending}
	mockDB.On("GetRaffleByID", mock.Anything, "raffle-1").Return(pending, nil)

	// PENDING can only go to ACTIVE, never straight to COMPLETED.
	_, err := svc.UpdateStatus(context.Background(), "raffle-1", models.RaffleStatusCompleted)
	assert.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeIllegalTransition))

	completed := &models.Raffle{RaffleID: "raffle-2", Status: models.RaffleStatusCompleted}
	mockDB.On("GetRaffleByID", mock.Anything, "raffle-2").Return(completed, nil)

	// COMPLETED is terminal for the manual transition.
	_, err = svc.UpdateStatus(context.Background(), "raffle-2", models.RaffleStatusActive)
	assert.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeIllegalTransition))
}

func TestDeleteRequiresPendingStatus(t *testing.T) {
	svc, mockDB, mockTickets := newService()

	active := &models.Raffle{RaffleID: "raffle-1", Status: models.RaffleStatusActive}
	mockDB.On("GetRaffleByID", mock.Anything, "raffle-1").Return(active, nil)

	err := svc.Delete(context.Background(), "raffle-1")

	assert.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRaffleNotInStatus))
	mockTickets.AssertNotCalled(t, "DeleteTicketsByRaffle", mock.Anything, mock.Anything)
}

func TestDeleteRemovesOwnedRows(t *testing.T) {
	svc, mockDB, mockTickets := newService()

	pending := &models.Raffle{RaffleID: "raffle-1", Status: models.RaffleStatusPending}
	mockDB.On("GetRaffleByID", mock.Anything, "raffle-1").Return(pending, nil)
	mockTickets.On("DeleteTicketsByRaffle", mock.Anything, "raffle-1").Return(nil)
	mockDB.On("DeleteStatistics", mock.Anything, "raffle-1").Return(nil)
	mockDB.On("DeleteRaffle", mock.Anything, "raffle-1").Return(nil)

	err := svc.Delete(context.Background(), "raffle-1")

	assert.NoError(t, err)
	mockDB.AssertExpectations(t)
	mockTickets.AssertExpectations(t)
}

func TestCompleteIfAllTicketsSold(t *testing.T) {
	svc, mockDB, _ := newService()

	active := &models.Raffle{RaffleID: "raffle-1", Status: models.RaffleStatusActive, TotalTickets: 10}
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").
		Return(&models.RaffleStatistics{RaffleID: "raffle-1", SoldTickets: 10}, nil)
	mockDB.On("UpdateRaffle", mock.Anything, active).Return(nil)

	err := svc.CompleteIfAllTicketsSold(context.Background(), active)

	assert.NoError(t, err)
	assert.Equal(t, models.RaffleStatusCompleted, active.Status)
	assert.Equal(t, models.CompletionReasonSoldOut, active.CompletionReason)
	assert.NotNil(t, active.CompletedAt)
}

func TestCompleteIfAllTicketsSoldNoOpWhenTicketsRemain(t *testing.T) {
	svc, mockDB, _ := newService()

	active := &models.Raffle{RaffleID: "raffle-1", Status: models.RaffleStatusActive, TotalTickets: 10}
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").
		Return(&models.RaffleStatistics{RaffleID: "raffle-1", SoldTickets: 9}, nil)

	err := svc.CompleteIfAllTicketsSold(context.Background(), active)

	assert.NoError(t, err)
	assert.Equal(t, models.RaffleStatusActive, active.Status)
	mockDB.AssertNotCalled(t, "UpdateRaffle", mock.Anything, mock.Anything)
}

func TestReactivateAfterAvailableIncrease(t *testing.T) {
	svc, mockDB, _ := newService()

	completedAt := time.Now()
	soldOut := &models.Raffle{
		RaffleID:         "raffle-1",
		Status:           models.RaffleStatusCompleted,
		CompletionReason: models.CompletionReasonSoldOut,
		CompletedAt:      &completedAt,
		TotalTickets:     10,
	}
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").
		Return(&models.RaffleStatistics{RaffleID: "raffle-1", AvailableTickets: 2, SoldTickets: 8}, nil)
	mockDB.On("UpdateRaffle", mock.Anything, soldOut).Return(nil)

	err := svc.ReactivateAfterAvailableIncrease(context.Background(), soldOut)

	assert.NoError(t, err)
	assert.Equal(t, models.RaffleStatusActive, soldOut.Status)
	assert.Equal(t, models.CompletionReasonNone, soldOut.CompletionReason)
	assert.Nil(t, soldOut.CompletedAt)
}

func TestReactivateLeavesEndDateCompletionAlone(t *testing.T) {
	svc, mockDB, _ := newService()

	expired := &models.Raffle{
		RaffleID:         "raffle-1",
		Status:           models.RaffleStatusCompleted,
		CompletionReason: models.CompletionReasonEndDate,
	}

	err := svc.ReactivateAfterAvailableIncrease(context.Background(), expired)

	assert.NoError(t, err)
	assert.Equal(t, models.RaffleStatusCompleted, expired.Status)
	mockDB.AssertNotCalled(t, "UpdateRaffle", mock.Anything, mock.Anything)
}

func TestUpdateEndDateReactivatesExpiredRaffle(t *testing.T) {
	svc, mockDB, _ := newService()

	completedAt := time.Now().Add(-time.Hour)
	expired := &models.Raffle{
		RaffleID:         "raffle-1",
		Status:           models.RaffleStatusCompleted,
		CompletionReason: models.CompletionReasonEndDate,
		CompletedAt:      &completedAt,
		EndDate:          completedAt,
	}
	mockDB.On("GetRaffleByID", mock.Anything, "raffle-1").Return(expired, nil)
	mockDB.On("UpdateRaffle", mock.Anything, expired).Return(nil)

	newEnd := time.Now().Add(48 * time.Hour)
	updated, err := svc.UpdateEndDate(context.Background(), "raffle-1", newEnd)

	assert.NoError(t, err)
	assert.Equal(t, models.RaffleStatusActive, updated.Status)
	assert.Equal(t, newEnd, updated.EndDate)
	assert.Nil(t, updated.CompletedAt)
}

func TestUpdateEndDatePastDateDoesNotReactivate(t *testing.T) {
	svc, mockDB, _ := newService()

	expired := &models.Raffle{
		RaffleID:         "raffle-1",
		Status:           models.RaffleStatusCompleted,
		CompletionReason: models.CompletionReasonEndDate,
	}
	mockDB.On("GetRaffleByID", mock.Anything, "raffle-1").Return(expired, nil)
	mockDB.On("UpdateRaffle", mock.Anything, expired).Return(nil)

	updated, err := svc.UpdateEndDate(context.Background(), "raffle-1", time.Now().Add(-time.Hour))

	assert.NoError(t, err)
	assert.Equal(t, models.RaffleStatusCompleted, updated.Status)
}

func TestRaffleBelongsTo(t *testing.T) {
	svc, mockDB, _ := newService()

	r := &models.Raffle{RaffleID: "raffle-1", AssociationID: "assoc-1"}
	mockDB.On("GetRaffleByID", mock.Anything, "raffle-1").Return(r, nil)

	ok, err := svc.RaffleBelongsTo(context.Background(), "raffle-1", "assoc-1")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.RaffleBelongsTo(context.Background(), "raffle-1", "assoc-2")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestActivateDueRafflesContinuesPastFailures(t *testing.T) {
	svc, mockDB, _ := newService()

	now := time.Now()
	due := []models.Raffle{
		{RaffleID: "raffle-1", Status: models.RaffleStatusPending},
		{RaffleID: "raffle-2", Status: models.RaffleStatusPending},
	}
	mockDB.On("GetRafflesDueForActivation", mock.Anything, now).Return(due, nil)
	mockDB.On("UpdateRaffle", mock.Anything, mock.MatchedBy(func(r *models.Raffle) bool {
		return r.RaffleID == "raffle-1"
	})).Return(assert.AnError)
	mockDB.On("UpdateRaffle", mock.Anything, mock.MatchedBy(func(r *models.Raffle) bool {
		return r.RaffleID == "raffle-2"
	})).Return(nil)

	activated, err := svc.ActivateDueRaffles(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 1, activated)
}

func TestCompleteDueRafflesRecordsEndDateReason(t *testing.T) {
	svc, mockDB, _ := newService()

	now := time.Now()
	due := []models.Raffle{{RaffleID: "raffle-1", Status: models.RaffleStatusActive}}
	mockDB.On("GetRafflesDueForCompletion", mock.Anything, now).Return(due, nil)
	mockDB.On("UpdateRaffle", mock.Anything, mock.MatchedBy(func(r *models.Raffle) bool {
		return r.Status == models.RaffleStatusCompleted &&
			r.CompletionReason == models.CompletionReasonEndDate &&
			r.CompletedAt != nil
	})).Return(nil)

	completed, err := svc.CompleteDueRaffles(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 1, completed)
	mockDB.AssertExpectations(t)
}
