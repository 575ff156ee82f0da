package services

import (
	"context"
	"fmt"

	"github.com/biyshop/payments-backend/internal/models"
	repo "github.com/biyshop/payments-backend/internal/repository"
)

// OrderService is thin glue over the order store; the interesting state
// transitions happen in PaymentService and Reconciler.
type OrderService struct {
	orders repo.Orders
}

func NewOrderService(orders repo.Orders) *OrderService {
	return &OrderService{orders: orders}
}

func (s *OrderService) Create(ctx context.Context, o models.Order) (models.Order, error) {
	if o.Customer.Name == "" || o.Customer.Email == "" || o.Customer.Phone == "" {
		return models.Order{}, fmt.Errorf("%w: customer name, email and phone are required", ErrInvalidInput)
	}
	if len(o.Items) == 0 {
		return models.Order{}, fmt.Errorf("%w: order has no items", ErrInvalidInput)
	}
	if o.Total <= 0 {
		return models.Order{}, fmt.Errorf("%w: total must be > 0", ErrInvalidInput)
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = models.MethodCOD
	}
	return s.orders.Create(ctx, o)
}

func (s *OrderService) GetByID(ctx context.Context, id string) (models.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *OrderService) List(ctx context.Context, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.orders.List(ctx, limit, offset)
}
