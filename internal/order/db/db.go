package db

import (
	"context"

	"ms-raffle/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun bun.IDB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// WithTx rebinds the layer to a running transaction.
func (d *DB) WithTx(tx bun.Tx) *DB {
	return &DB{Bun: tx}
}

// ---------------- ORDERS ----------------

func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewInsert().Model(order).Exec(ctx)
	return err
}

// CreateOrderSnapshot inserts the order with its items and payment as one
// unit of work. Either the whole graph lands or none of it.
func (d *DB) CreateOrderSnapshot(ctx context.Context, order *models.Order, items []models.OrderItem, payment *models.Payment) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		txDB := d.WithTx(tx)
		if err := txDB.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := txDB.CreateOrderItems(ctx, items); err != nil {
			return err
		}
		return txDB.CreatePayment(ctx, payment)
	})
}

// DeleteOrder removes the order with its items and payment. Compensation for
// a create whose later writes failed.
func (d *DB) DeleteOrder(ctx context.Context, orderID string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Payment)(nil)).
			Where("order_id = ?", orderID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.OrderItem)(nil)).
			Where("order_id = ?", orderID).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.Order)(nil)).
			Where("order_id = ?", orderID).
			Exec(ctx)
		return err
	})
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrderByReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_reference = ?", reference).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) UpdateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewUpdate().
		Model(order).
		Column("status", "comment", "completed_at", "cancelled_at", "refunded_at", "unpaid_at").
		Where("order_id = ?", order.OrderID).
		Exec(ctx)
	return err
}

// ---------------- ORDER ITEMS ----------------

func (d *DB) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&items).Exec(ctx)
	return err
}

func (d *DB) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("order_id = ?", orderID).
		Order("ticket_number").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ---------------- PAYMENTS ----------------

func (d *DB) CreatePayment(ctx context.Context, payment *models.Payment) error {
	_, err := d.Bun.NewInsert().Model(payment).Exec(ctx)
	return err
}

func (d *DB) GetPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	err := d.Bun.NewSelect().
		Model(&payment).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (d *DB) UpdatePaymentMethod(ctx context.Context, orderID, method string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("method = ?", method).
		Where("order_id = ?", orderID).
		Exec(ctx)
	return err
}

// ---------------- CUSTOMERS ----------------

func (d *DB) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	_, err := d.Bun.NewInsert().Model(customer).Exec(ctx)
	return err
}

func (d *DB) GetCustomerByID(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	err := d.Bun.NewSelect().
		Model(&customer).
		Where("customer_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}
