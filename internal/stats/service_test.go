package stats_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ms-raffle/internal/apperrors"
	"ms-raffle/internal/models"
	"ms-raffle/internal/stats"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetStatistics(ctx context.Context, raffleID string) (*models.RaffleStatistics, error) {
	args := m.Called(ctx, raffleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RaffleStatistics), args.Error(1)
}

func (m *MockDBLayer) UpdateStatistics(ctx context.Context, st *models.RaffleStatistics) error {
	args := m.Called(ctx, st)
	return args.Error(0)
}

type MockRaffleStore struct {
	mock.Mock
}

func (m *MockRaffleStore) GetRaffleByID(ctx context.Context, id string) (*models.Raffle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Raffle), args.Error(1)
}

func testRaffle() *models.Raffle {
	return &models.Raffle{
		RaffleID:     "raffle-1",
		Status:       models.RaffleStatusActive,
		TotalTickets: 100,
		TicketPrice:  5.0,
	}
}

func freshStatistics() *models.RaffleStatistics {
	return &models.RaffleStatistics{
		RaffleID:         "raffle-1",
		AvailableTickets: 100,
	}
}

func TestReservationDecrementsPool(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := stats.NewService(mockDB, new(MockRaffleStore))

	st := freshStatistics()
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").Return(st, nil)
	mockDB.On("UpdateStatistics", mock.Anything, st).Return(nil)

	err := svc.Reservation(context.Background(), testRaffle(), 3)

	assert.NoError(t, err)
	assert.Equal(t, 97, st.AvailableTickets)
	assert.Equal(t, 1, st.Participants)
	assert.Equal(t, 3.0, st.TicketsPerParticipant)
	mockDB.AssertExpectations(t)
}

func TestReservationInsufficientTickets(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := stats.NewService(mockDB, new(MockRaffleStore))

	st := freshStatistics()
	st.AvailableTickets = 2
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").Return(st, nil)

	err := svc.Reservation(context.Background(), testRaffle(), 3)

	assert.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientTickets))
	// The row must not be persisted when the guard fires.
	mockDB.AssertNotCalled(t, "UpdateStatistics", mock.Anything, mock.Anything)
	assert.Equal(t, 2, st.AvailableTickets)
}

func TestReleaseRestoresPoolAndClamps(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := stats.NewService(mockDB, new(MockRaffleStore))

	st := freshStatistics()
	st.AvailableTickets = 99
	st.Participants = 1
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").Return(st, nil)
	mockDB.On("UpdateStatistics", mock.Anything, st).Return(nil)

	err := svc.Release(context.Background(), testRaffle(), 5)

	assert.NoError(t, err)
	assert.Equal(t, 100, st.AvailableTickets, "release never exceeds total tickets")
	assert.Equal(t, 0, st.Participants)
	assert.Equal(t, 0.0, st.TicketsPerParticipant)
	mockDB.AssertExpectations(t)
}

func TestReservationThenReleaseRoundTrip(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := stats.NewService(mockDB, new(MockRaffleStore))

	st := freshStatistics()
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").Return(st, nil)
	mockDB.On("UpdateStatistics", mock.Anything, st).Return(nil)

	raffle := testRaffle()
	assert.NoError(t, svc.Reservation(context.Background(), raffle, 4))
	assert.NoError(t, svc.Release(context.Background(), raffle, 4))

	assert.Equal(t, 100, st.AvailableTickets)
	assert.Equal(t, 0, st.Participants)
}

func TestCreateOrderCountsPending(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := stats.NewService(mockDB, new(MockRaffleStore))

	st := freshStatistics()
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").Return(st, nil)
	mockDB.On("UpdateStatistics", mock.Anything, st).Return(nil)

	err := svc.CreateOrder(context.Background(), testRaffle(), 3)

	assert.NoError(t, err)
	assert.Equal(t, 1, st.PendingOrders)
	assert.Equal(t, 1, st.TotalOrders)
	assert.Equal(t, 100, st.AvailableTickets, "order creation does not touch the pool")
}

func TestCompleteRecordsSale(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := stats.NewService(mockDB, new(MockRaffleStore))

	st := freshStatistics()
	st.AvailableTickets = 96
	st.PendingOrders = 1
	st.TotalOrders = 1
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").Return(st, nil)
	mockDB.On("UpdateStatistics", mock.Anything, st).Return(nil)

	err := svc.Complete(context.Background(), testRaffle(), 4)

	assert.NoError(t, err)
	assert.Equal(t, 0, st.PendingOrders)
	assert.Equal(t, 1, st.CompletedOrders)
	assert.Equal(t, 4, st.SoldTickets)
	assert.Equal(t, 20.0, st.Revenue)
	assert.Equal(t, 20.0, st.AverageOrderValue)
	assert.NotNil(t, st.FirstSaleDate)
	assert.NotNil(t, st.LastSaleDate)
	assert.Equal(t, 4.0, st.DailySalesVelocity, "first-day velocity counts a full day")
}

func TestCompletePreservesFirstSaleDate(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := stats.NewService(mockDB, new(MockRaffleStore))

	firstSale := time.Now().Add(-48 * time.Hour)
	st := freshStatistics()
	st.AvailableTickets = 90
	st.PendingOrders = 2
	st.TotalOrders = 2
	st.CompletedOrders = 1
	st.SoldTickets = 6
	st.Revenue = 30.0
	st.FirstSaleDate = &firstSale
	st.LastSaleDate = &firstSale
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").Return(st, nil)
	mockDB.On("UpdateStatistics", mock.Anything, st).Return(nil)

	err := svc.Complete(context.Background(), testRaffle(), 4)

	assert.NoError(t, err)
	assert.Equal(t, firstSale, *st.FirstSaleDate)
	assert.True(t, st.LastSaleDate.After(firstSale))
	assert.InDelta(t, 5.0, st.DailySalesVelocity, 0.1, "10 tickets over 2 days")
}

func TestRefundReversesSale(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := stats.NewService(mockDB, new(MockRaffleStore))

	firstSale := time.Now().Add(-24 * time.Hour)
	st := freshStatistics()
	st.AvailableTickets = 96
	st.SoldTickets = 4
	st.Revenue = 20.0
	st.AverageOrderValue = 20.0
	st.TotalOrders = 1
	st.CompletedOrders = 1
	st.FirstSaleDate = &firstSale
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").Return(st, nil)
	mockDB.On("UpdateStatistics", mock.Anything, st).Return(nil)

	err := svc.Refund(context.Background(), testRaffle(), 4)

	assert.NoError(t, err)
	assert.Equal(t, 1, st.RefundedOrders)
	assert.Equal(t, 0, st.CompletedOrders)
	assert.Equal(t, 0, st.SoldTickets)
	assert.Equal(t, 100, st.AvailableTickets)
	assert.Equal(t, 0.0, st.Revenue)
	assert.Equal(t, 0.0, st.AverageOrderValue, "no completed orders left")
	assert.Equal(t, 0.0, st.DailySalesVelocity)
	// TotalOrders is a lifetime counter and never decremented.
	assert.Equal(t, 1, st.TotalOrders)
}

func TestCancelReturnsTicketsWithoutSale(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := stats.NewService(mockDB, new(MockRaffleStore))

	st := freshStatistics()
	st.AvailableTickets = 97
	st.PendingOrders = 1
	st.TotalOrders = 1
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").Return(st, nil)
	mockDB.On("UpdateStatistics", mock.Anything, st).Return(nil)

	err := svc.Cancel(context.Background(), testRaffle(), 3)

	assert.NoError(t, err)
	assert.Equal(t, 0, st.PendingOrders)
	assert.Equal(t, 1, st.CancelledOrders)
	assert.Equal(t, 100, st.AvailableTickets)
	assert.Equal(t, 0.0, st.Revenue)
}

func TestUnpaidReturnsTickets(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := stats.NewService(mockDB, new(MockRaffleStore))

	st := freshStatistics()
	st.AvailableTickets = 98
	st.PendingOrders = 1
	st.TotalOrders = 1
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").Return(st, nil)
	mockDB.On("UpdateStatistics", mock.Anything, st).Return(nil)

	err := svc.Unpaid(context.Background(), testRaffle(), 2)

	assert.NoError(t, err)
	assert.Equal(t, 0, st.PendingOrders)
	assert.Equal(t, 1, st.UnpaidOrders)
	assert.Equal(t, 100, st.AvailableTickets)
}

func TestReservationForTicketsGroupsByRaffle(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockRaffles := new(MockRaffleStore)
	svc := stats.NewService(mockDB, mockRaffles)

	raffleA := testRaffle()
	raffleB := &models.Raffle{RaffleID: "raffle-2", TotalTickets: 50, TicketPrice: 2.0}
	stA := freshStatistics()
	stB := &models.RaffleStatistics{RaffleID: "raffle-2", AvailableTickets: 50}

	mockRaffles.On("GetRaffleByID", mock.Anything, "raffle-1").Return(raffleA, nil)
	mockRaffles.On("GetRaffleByID", mock.Anything, "raffle-2").Return(raffleB, nil)
	mockDB.On("GetStatistics", mock.Anything, "raffle-1").Return(stA, nil)
	mockDB.On("GetStatistics", mock.Anything, "raffle-2").Return(stB, nil)
	mockDB.On("UpdateStatistics", mock.Anything, mock.Anything).Return(nil)

	tickets := []models.Ticket{
		{TicketID: "t1", RaffleID: "raffle-1"},
		{TicketID: "t2", RaffleID: "raffle-1"},
		{TicketID: "t3", RaffleID: "raffle-2"},
	}
	err := svc.ReservationForTickets(context.Background(), tickets)

	assert.NoError(t, err)
	assert.Equal(t, 98, stA.AvailableTickets)
	assert.Equal(t, 49, stB.AvailableTickets)
	mockRaffles.AssertExpectations(t)
}

func TestStatisticsLoadFailureWrapsDatabaseError(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := stats.NewService(mockDB, new(MockRaffleStore))

	mockDB.On("GetStatistics", mock.Anything, "raffle-1").Return(nil, errors.New("connection refused"))

	err := svc.CreateOrder(context.Background(), testRaffle(), 1)

	assert.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDatabase))
}
