package repository

import (
	"context"

	"github.com/biyshop/payments-backend/internal/models"
)

// Orders is the order-store collaborator: the payment core only ever reads
// an order and moves its payment status.
type Orders interface {
	Create(ctx context.Context, o models.Order) (models.Order, error)
	GetByID(ctx context.Context, id string) (models.Order, error)
	List(ctx context.Context, limit, offset int) ([]models.Order, error)

	// UpdatePaymentStatus transitions an order's payment state. receipt and
	// note are optional; receipt carries the gateway receipt on success,
	// note carries the failure description otherwise.
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, receipt, note *string) error
}
