package db

import (
	"context"
	"database/sql"
	"errors"
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

func (d *DB) CreateCart(ctx context.Context, cart *models.Cart) error {
	_, err := d.Bun.NewInsert().Model(cart).Exec(ctx)
	return err
}

func (d *DB) GetCartByID(ctx context.Context, id string) (*models.Cart, error) {
	var cart models.Cart
	err := d.Bun.NewSelect().
		Model(&cart).
		Where("cart_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetActiveCartByUser returns the user's ACTIVE cart, or nil when there is none.
func (d *DB) GetActiveCartByUser(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := d.Bun.NewSelect().
		Model(&cart).
		Where("user_id = ?", userID).
		Where("status = ?", models.CartStatusActive).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (d *DB) UpdateCart(ctx context.Context, cart *models.Cart) error {
	_, err := d.Bun.NewUpdate().
		Model(cart).
		Column("status", "updated_at").
		Where("cart_id = ?", cart.CartID).
		Exec(ctx)
	return err
}

// GetExpiredCarts returns ACTIVE carts untouched since the cutoff.
func (d *DB) GetExpiredCarts(ctx context.Context, cutoff time.Time) ([]models.Cart, error) {
	var carts []models.Cart
	err := d.Bun.NewSelect().
		Model(&carts).
		Where("status = ?", models.CartStatusActive).
		Where("updated_at < ?", cutoff).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return carts, nil
}
