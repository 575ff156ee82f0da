package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/biyshop/payments-backend/internal/correlation"
	"github.com/biyshop/payments-backend/internal/metrics"
	"github.com/biyshop/payments-backend/internal/models"
	repo "github.com/biyshop/payments-backend/internal/repository"
)

// Reconciler sweeps intents whose TTL elapsed without a callback and assigns
// them a terminal state. Optionally it asks the gateway for the outcome
// first, which shrinks the window in which a genuine success is lost to the
// expiry race.
type Reconciler struct {
	store        correlation.Store
	orders       repo.Orders
	gateway      Gateway
	interval     time.Duration
	queryGateway bool
	scheduler    *gocron.Scheduler
	now          func() time.Time
}

func NewReconciler(store correlation.Store, orders repo.Orders, gw Gateway, interval time.Duration, queryGateway bool) *Reconciler {
	return &Reconciler{
		store:        store,
		orders:       orders,
		gateway:      gw,
		interval:     interval,
		queryGateway: queryGateway,
		now:          time.Now,
	}
}

func (r *Reconciler) Start() error {
	r.scheduler = gocron.NewScheduler(time.UTC)
	if _, err := r.scheduler.Every(r.interval).Do(r.Sweep); err != nil {
		return err
	}
	r.scheduler.StartAsync()
	return nil
}

func (r *Reconciler) Stop() {
	if r.scheduler != nil {
		r.scheduler.Stop()
	}
}

// Sweep pops every overdue intent and transitions its order. Because the pop
// is atomic, repeated sweeps (or a sweep racing a late callback) act on each
// intent at most once.
func (r *Reconciler) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := r.store.ExpireOlderThan(ctx, r.now())
	if err != nil {
		slog.Error("expiry sweep failed", "err", err)
		return
	}
	for _, intent := range expired {
		metrics.IntentsPending.Dec()
		r.resolve(ctx, intent)
	}
}

func (r *Reconciler) resolve(ctx context.Context, intent models.PaymentIntent) {
	if r.queryGateway {
		if done := r.resolveViaQuery(ctx, intent); done {
			return
		}
	}

	metrics.IntentsExpired.Inc()
	note := "no callback received before expiry"
	if err := r.orders.UpdatePaymentStatus(ctx, intent.OrderID, models.PaymentExpired, nil, &note); err != nil {
		metrics.ReconciliationWriteFailures.Inc()
		slog.Error("order update failed for expired intent",
			"order_id", intent.OrderID,
			"checkout_request_id", intent.CheckoutRequestID,
			"err", err)
		return
	}
	slog.Warn("payment intent expired",
		"order_id", intent.OrderID,
		"checkout_request_id", intent.CheckoutRequestID,
	)
}

// resolveViaQuery asks the gateway for a definitive outcome before declaring
// expiry. Returns true when the intent was settled here.
func (r *Reconciler) resolveViaQuery(ctx context.Context, intent models.PaymentIntent) bool {
	q, err := r.gateway.QueryStatus(ctx, intent.CheckoutRequestID)
	if err != nil {
		slog.Warn("status query failed, declaring expiry",
			"checkout_request_id", intent.CheckoutRequestID, "err", err)
		return false
	}

	switch q.ResultCode {
	case "":
		// Still pending at the gateway; a late callback for this handle
		// will be absorbed as an unknown-handle no-op.
		return false
	case "0":
		note := "confirmed via status query"
		if err := r.orders.UpdatePaymentStatus(ctx, intent.OrderID, models.PaymentPaid, nil, &note); err != nil {
			metrics.ReconciliationWriteFailures.Inc()
			slog.Error("order update failed after status query success",
				"order_id", intent.OrderID, "err", err)
		}
		return true
	default:
		note := q.ResultDesc
		if err := r.orders.UpdatePaymentStatus(ctx, intent.OrderID, models.PaymentFailed, nil, &note); err != nil {
			metrics.ReconciliationWriteFailures.Inc()
			slog.Error("order update failed after status query failure",
				"order_id", intent.OrderID, "err", err)
		}
		return true
	}
}
