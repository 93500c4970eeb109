package db

import (
	"context"
	"time"

	"ms-raffle/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun bun.IDB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// ---------------- RAFFLES ----------------

func (d *DB) CreateRaffle(ctx context.Context, raffle *models.Raffle) error {
	_, err := d.Bun.NewInsert().Model(raffle).Exec(ctx)
	return err
}

func (d *DB) GetRaffleByID(ctx context.Context, id string) (*models.Raffle, error) {
	var raffle models.Raffle
	err := d.Bun.NewSelect().
		Model(&raffle).
		Where("raffle_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &raffle, nil
}

func (d *DB) UpdateRaffle(ctx context.Context, raffle *models.Raffle) error {
	_, err := d.Bun.NewUpdate().
		Model(raffle).
		Column("status", "completion_reason", "winning_ticket_id", "completed_at", "end_date").
		Where("raffle_id = ?", raffle.RaffleID).
		Exec(ctx)
	return err
}

func (d *DB) DeleteRaffle(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Raffle)(nil)).
		Where("raffle_id = ?", id).
		Exec(ctx)
	return err
}

// GetRafflesDueForActivation returns PENDING raffles whose start date passed.
func (d *DB) GetRafflesDueForActivation(ctx context.Context, now time.Time) ([]models.Raffle, error) {
	var raffles []models.Raffle
	err := d.Bun.NewSelect().
		Model(&raffles).
		Where("status = ?", models.RaffleStatusPending).
		Where("start_date <= ?", now).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return raffles, nil
}

// GetRafflesDueForCompletion returns ACTIVE raffles whose end date passed.
func (d *DB) GetRafflesDueForCompletion(ctx context.Context, now time.Time) ([]models.Raffle, error) {
	var raffles []models.Raffle
	err := d.Bun.NewSelect().
		Model(&raffles).
		Where("status = ?", models.RaffleStatusActive).
		Where("end_date <= ?", now).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return raffles, nil
}

// ---------------- STATISTICS ----------------

func (d *DB) CreateStatistics(ctx context.Context, stats *models.RaffleStatistics) error {
	_, err := d.Bun.NewInsert().Model(stats).Exec(ctx)
	return err
}

func (d *DB) GetStatistics(ctx context.Context, raffleID string) (*models.RaffleStatistics, error) {
	var stats models.RaffleStatistics
	err := d.Bun.NewSelect().
		Model(&stats).
		Where("raffle_id = ?", raffleID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (d *DB) UpdateStatistics(ctx context.Context, stats *models.RaffleStatistics) error {
	_, err := d.Bun.NewUpdate().
		Model(stats).
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) DeleteStatistics(ctx context.Context, raffleID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.RaffleStatistics)(nil)).
		Where("raffle_id = ?", raffleID).
		Exec(ctx)
	return err
}
