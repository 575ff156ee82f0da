package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/biyshop/payments-backend/internal/models"
	"github.com/biyshop/payments-backend/internal/mpesa"
)

type fakeOrders struct {
	mu          sync.Mutex
	orders      map[string]models.Order
	updates     map[string]int // order id -> UpdatePaymentStatus calls
	failUpdates bool
	getErr      error
}

func newFakeOrders(ids ...string) *fakeOrders {
	f := &fakeOrders{
		orders:  make(map[string]models.Order),
		updates: make(map[string]int),
	}
	for _, id := range ids {
		f.orders[id] = models.Order{
			ID:            id,
			OrderNumber:   "ORD-20260829-0001",
			Customer:      models.Customer{Name: "Jane", Email: "jane@example.com", Phone: "0712345678"},
			Total:         500,
			Status:        models.OrderPending,
			PaymentStatus: models.PaymentPending,
			PaymentMethod: models.MethodMpesa,
		}
	}
	return f
}

func (f *fakeOrders) Create(_ context.Context, o models.Order) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return models.Order{}, f.getErr
	}
	o, ok := f.orders[id]
	if !ok {
		return models.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeOrders) List(_ context.Context, _, _ int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOrders) UpdatePaymentStatus(_ context.Context, id string, status models.PaymentStatus, receipt, note *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdates {
		return errors.New("store down")
	}
	o, ok := f.orders[id]
	if !ok {
		return errors.New("no rows")
	}
	if o.PaymentStatus == models.PaymentPaid {
		// mirrors the repository's terminal-state guard
		return fmt.Errorf("order %s not found or already paid", id)
	}
	o.PaymentStatus = status
	if receipt != nil {
		o.MpesaReceipt = receipt
	}
	if note != nil {
		o.PaymentNote = note
	}
	f.orders[id] = o
	f.updates[id]++
	return nil
}

func (f *fakeOrders) get(id string) models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id]
}

func (f *fakeOrders) updateCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates[id]
}

type fakeGateway struct {
	mu      sync.Mutex
	pushes  int
	pushErr error
	query   *mpesa.QueryResponse
	qErr    error
}

func (g *fakeGateway) STKPush(_ context.Context, phone string, amount int64, orderID string) (*mpesa.STKPushResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pushErr != nil {
		return nil, g.pushErr
	}
	g.pushes++
	return &mpesa.STKPushResponse{
		MerchantRequestID: fmt.Sprintf("merchant-%d", g.pushes),
		CheckoutRequestID: fmt.Sprintf("ws_CO_%d", g.pushes),
		ResponseCode:      "0",
	}, nil
}

func (g *fakeGateway) QueryStatus(_ context.Context, _ string) (*mpesa.QueryResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.qErr != nil {
		return nil, g.qErr
	}
	if g.query == nil {
		return &mpesa.QueryResponse{}, nil
	}
	return g.query, nil
}

type captureNotifier struct {
	mu     sync.Mutex
	orders []string
}

func (n *captureNotifier) NotifyPaymentOutcome(order models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order.ID)
}

func (n *captureNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.orders...)
}
