package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/raffle"
	"ms-raffle/internal/raffle/db"
	ticketdb "ms-raffle/internal/ticketops/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []interface{}{
		(*models.Raffle)(nil),
		(*models.RaffleStatistics)(nil),
		(*models.Ticket)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func insertRaffle(t *testing.T, raffleDB *db.DB, status models.RaffleStatus, start, end time.Time) *models.Raffle {
	r := &models.Raffle{
		RaffleID:          uuid.NewString(),
		AssociationID:     "assoc-1",
		Name:              "summer raffle",
		Status:            status,
		TotalTickets:      10,
		FirstTicketNumber: 1,
		TicketPrice:       5.0,
		StartDate:         start,
		EndDate:           end,
		CreatedAt:         time.Now(),
	}
	assert.NoError(t, raffleDB.CreateRaffle(context.Background(), r))
	return r
}

func TestGetRafflesDueForActivationFilters(t *testing.T) {
	raffleDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	now := time.Now()
	due := insertRaffle(t, raffleDB, models.RaffleStatusPending, now.Add(-time.Hour), now.Add(time.Hour))
	insertRaffle(t, raffleDB, models.RaffleStatusPending, now.Add(time.Hour), now.Add(2*time.Hour))
	insertRaffle(t, raffleDB, models.RaffleStatusActive, now.Add(-time.Hour), now.Add(time.Hour))

	found, err := raffleDB.GetRafflesDueForActivation(context.Background(), now)
	assert.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, due.RaffleID, found[0].RaffleID)
}

func TestGetRafflesDueForCompletionFilters(t *testing.T) {
	raffleDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	now := time.Now()
	due := insertRaffle(t, raffleDB, models.RaffleStatusActive, now.Add(-2*time.Hour), now.Add(-time.Hour))
	insertRaffle(t, raffleDB, models.RaffleStatusActive, now.Add(-time.Hour), now.Add(time.Hour))
	insertRaffle(t, raffleDB, models.RaffleStatusPending, now.Add(-2*time.Hour), now.Add(-time.Hour))

	found, err := raffleDB.GetRafflesDueForCompletion(context.Background(), now)
	assert.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, due.RaffleID, found[0].RaffleID)
}

func TestActivationSweepTwiceIsNoOp(t *testing.T) {
	raffleDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	now := time.Now()
	due := insertRaffle(t, raffleDB, models.RaffleStatusPending, now.Add(-time.Hour), now.Add(time.Hour))
	svc := raffle.NewRaffleService(raffleDB, &ticketdb.DB{Bun: bunDB}, logger.NewLogger())

	activated, err := svc.ActivateDueRaffles(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, 1, activated)

	// The activated raffle no longer matches the fetch, so a second pass
	// changes nothing.
	activated, err = svc.ActivateDueRaffles(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, 0, activated)

	found, err := raffleDB.GetRaffleByID(context.Background(), due.RaffleID)
	assert.NoError(t, err)
	assert.Equal(t, models.RaffleStatusActive, found.Status)
}

func TestCompletionSweepTwiceIsNoOp(t *testing.T) {
	raffleDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	now := time.Now()
	due := insertRaffle(t, raffleDB, models.RaffleStatusActive, now.Add(-2*time.Hour), now.Add(-time.Hour))
	svc := raffle.NewRaffleService(raffleDB, &ticketdb.DB{Bun: bunDB}, logger.NewLogger())

	completed, err := svc.CompleteDueRaffles(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, 1, completed)

	first, err := raffleDB.GetRaffleByID(context.Background(), due.RaffleID)
	assert.NoError(t, err)
	assert.Equal(t, models.RaffleStatusCompleted, first.Status)
	assert.Equal(t, models.CompletionReasonEndDate, first.CompletionReason)
	assert.NotNil(t, first.CompletedAt)

	completed, err = svc.CompleteDueRaffles(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, 0, completed)

	second, err := raffleDB.GetRaffleByID(context.Background(), due.RaffleID)
	assert.NoError(t, err)
	assert.Equal(t, first.CompletedAt.Unix(), second.CompletedAt.Unix(), "the second pass must not touch the raffle")
}
