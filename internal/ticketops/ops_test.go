package ticketops_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ms-raffle/internal/apperrors"
	"ms-raffle/internal/models"
	"ms-raffle/internal/ticketops"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) ReserveTickets(ctx context.Context, ticketIDs []string, cartID string) (int, error) {
	args := m.Called(ctx, ticketIDs, cartID)
	return args.Int(0), args.Error(1)
}

func (m *MockDBLayer) ReleaseTickets(ctx context.Context, ticketIDs []string) error {
	args := m.Called(ctx, ticketIDs)
	return args.Error(0)
}

func (m *MockDBLayer) ReleaseTicketsForCart(ctx context.Context, ticketIDs []string, cartID string) error {
	args := m.Called(ctx, ticketIDs, cartID)
	return args.Error(0)
}

func (m *MockDBLayer) AssignTicketsToCustomer(ctx context.Context, ticketIDs []string, customerID string) error {
	args := m.Called(ctx, ticketIDs, customerID)
	return args.Error(0)
}

func (m *MockDBLayer) MarkTicketsSold(ctx context.Context, ticketIDs []string) error {
	args := m.Called(ctx, ticketIDs)
	return args.Error(0)
}

func (m *MockDBLayer) RestoreTickets(ctx context.Context, tickets []models.Ticket) error {
	args := m.Called(ctx, tickets)
	return args.Error(0)
}

func tickets(ids ...string) []models.Ticket {
	result := make([]models.Ticket, len(ids))
	for i, id := range ids {
		result[i] = models.Ticket{TicketID: id, RaffleID: "raffle-1", TicketNumber: id}
	}
	return result
}

func TestReserveClaimsWholeBatch(t *testing.T) {
	mockDB := new(MockDBLayer)
	ops := ticketops.New(mockDB)

	mockDB.On("ReserveTickets", mock.Anything, []string{"t1", "t2"}, "cart-1").Return(2, nil)

	err := ops.Reserve(context.Background(), "cart-1", tickets("t1", "t2"))

	assert.NoError(t, err)
	mockDB.AssertNotCalled(t, "ReleaseTicketsForCart", mock.Anything, mock.Anything, mock.Anything)
}

func TestReserveRollsBackPartialClaim(t *testing.T) {
	mockDB := new(MockDBLayer)
	ops := ticketops.New(mockDB)

	// Only one of two rows flipped; the claimed row must be put back.
	mockDB.On("ReserveTickets", mock.Anything, []string{"t1", "t2"}, "cart-1").Return(1, nil)
	mockDB.On("ReleaseTicketsForCart", mock.Anything, []string{"t1", "t2"}, "cart-1").Return(nil)

	err := ops.Reserve(context.Background(), "cart-1", tickets("t1", "t2"))

	assert.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTicketUnavailable))
	mockDB.AssertExpectations(t)
}

func TestReserveWrapsStorageFailure(t *testing.T) {
	mockDB := new(MockDBLayer)
	ops := ticketops.New(mockDB)

	mockDB.On("ReserveTickets", mock.Anything, []string{"t1"}, "cart-1").Return(0, errors.New("deadlock detected"))

	err := ops.Reserve(context.Background(), "cart-1", tickets("t1"))

	assert.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDatabase))
}

func TestReleaseEmptyBatchIsNoOp(t *testing.T) {
	mockDB := new(MockDBLayer)
	ops := ticketops.New(mockDB)

	err := ops.Release(context.Background(), nil)

	assert.NoError(t, err)
	mockDB.AssertNotCalled(t, "ReleaseTickets", mock.Anything, mock.Anything)
}

func TestTransferToCustomer(t *testing.T) {
	mockDB := new(MockDBLayer)
	ops := ticketops.New(mockDB)

	mockDB.On("AssignTicketsToCustomer", mock.Anything, []string{"t1"}, "customer-1").Return(nil)

	err := ops.TransferToCustomer(context.Background(), tickets("t1"), "customer-1")

	assert.NoError(t, err)
	mockDB.AssertExpectations(t)
}

func TestRestorePassesSnapshotsThrough(t *testing.T) {
	mockDB := new(MockDBLayer)
	ops := ticketops.New(mockDB)

	snapshot := tickets("t1")
	snapshot[0].Status = models.TicketStatusReserved
	snapshot[0].CartID = "cart-1"
	mockDB.On("RestoreTickets", mock.Anything, snapshot).Return(nil)

	err := ops.Restore(context.Background(), snapshot)

	assert.NoError(t, err)
	mockDB.AssertExpectations(t)
}

func TestRestoreEmptyBatchIsNoOp(t *testing.T) {
	mockDB := new(MockDBLayer)
	ops := ticketops.New(mockDB)

	err := ops.Restore(context.Background(), nil)

	assert.NoError(t, err)
	mockDB.AssertNotCalled(t, "RestoreTickets", mock.Anything, mock.Anything)
}

func TestMarkSold(t *testing.T) {
	mockDB := new(MockDBLayer)
	ops := ticketops.New(mockDB)

	mockDB.On("MarkTicketsSold", mock.Anything, []string{"t1", "t2"}).Return(nil)

	err := ops.MarkSold(context.Background(), tickets("t1", "t2"))

	assert.NoError(t, err)
	mockDB.AssertExpectations(t)
}
