package order

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-raffle/internal/apperrors"
	"ms-raffle/internal/models"
)

func newOrderID() string {
	return uuid.NewString()
}

type CustomerDB interface {
	CreateCustomer(ctx context.Context, customer *models.Customer) error
}

// CustomerService is the default CustomerProvider, backed by the local
// customers table.
type CustomerService struct {
	DB CustomerDB
}

func (c *CustomerService) EnsureCustomer(ctx context.Context, input CustomerInput) (string, error) {
	if strings.TrimSpace(input.Email) == "" {
		return "", apperrors.NewBusiness("INVALID_CUSTOMER", "customer email is required", nil)
	}
	customer := &models.Customer{
		CustomerID: uuid.NewString(),
		FullName:   strings.TrimSpace(input.FullName),
		Email:      strings.TrimSpace(input.Email),
		Phone:      strings.TrimSpace(input.Phone),
		CreatedAt:  time.Now(),
	}
	if err := c.DB.CreateCustomer(ctx, customer); err != nil {
		return "", apperrors.NewDatabase("create customer", err)
	}
	return customer.CustomerID, nil
}
