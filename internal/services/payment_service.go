package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/biyshop/payments-backend/internal/correlation"
	"github.com/biyshop/payments-backend/internal/metrics"
	"github.com/biyshop/payments-backend/internal/models"
	"github.com/biyshop/payments-backend/internal/mpesa"
	"github.com/biyshop/payments-backend/internal/notify"
	repo "github.com/biyshop/payments-backend/internal/repository"
	"github.com/biyshop/payments-backend/internal/worker"
)

// downstreamTimeout bounds the order-store write on the callback path so a
// slow store cannot stall the acknowledgment until the gateway redelivers.
const downstreamTimeout = 5 * time.Second

// Gateway is the outbound Daraja surface the service needs. *mpesa.Client
// satisfies it.
type Gateway interface {
	STKPush(ctx context.Context, phone string, amount int64, orderID string) (*mpesa.STKPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResponse, error)
}

type PaymentService struct {
	store    correlation.Store
	orders   repo.Orders
	gateway  Gateway
	notifier notify.Notifier
	wp       *worker.Pool
	ttl      time.Duration
	now      func() time.Time
}

func NewPaymentService(store correlation.Store, orders repo.Orders, gw Gateway, n notify.Notifier, wp *worker.Pool, ttl time.Duration) *PaymentService {
	return &PaymentService{
		store:    store,
		orders:   orders,
		gateway:  gw,
		notifier: n,
		wp:       wp,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Initiate submits an STK push for the order and records the pending intent.
// Initiation-time failures propagate so the checkout flow can offer another
// payment method.
func (s *PaymentService) Initiate(ctx context.Context, orderID string, amount int64, phone string) (models.PaymentIntent, error) {
	if amount <= 0 {
		return models.PaymentIntent{}, fmt.Errorf("%w: amount must be > 0", ErrInvalidInput)
	}
	msisdn, ok := mpesa.NormalizeMSISDN(phone)
	if !ok {
		return models.PaymentIntent{}, fmt.Errorf("%w: malformed phone number", ErrInvalidInput)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PaymentIntent{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return models.PaymentIntent{}, err
	}
	if order.PaymentStatus == models.PaymentPaid {
		return models.PaymentIntent{}, ErrAlreadyPaid
	}

	// Cheap pre-check; the store's per-order uniqueness is the real guard.
	if live, err := s.store.FindByOrder(ctx, orderID); err != nil {
		return models.PaymentIntent{}, err
	} else if live != nil {
		return models.PaymentIntent{}, ErrDuplicateInProgress
	}

	resp, err := s.gateway.STKPush(ctx, msisdn, amount, orderID)
	if err != nil {
		result := "error"
		if errors.Is(err, mpesa.ErrGatewayUnavailable) {
			result = "rejected"
		}
		metrics.StkPushTotal.WithLabelValues(result).Inc()
		return models.PaymentIntent{}, err
	}
	metrics.StkPushTotal.WithLabelValues("accepted").Inc()

	now := s.now()
	intent := models.PaymentIntent{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		OrderID:           orderID,
		Amount:            amount,
		Phone:             msisdn,
		Status:            models.IntentAwaitingCallback,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.ttl),
	}
	if err := s.store.Insert(ctx, intent); err != nil {
		if errors.Is(err, correlation.ErrDuplicateOrder) {
			// A concurrent initiate won the race after our pre-check. The
			// loser's push was already sent; its callback will be absorbed
			// as an unknown handle.
			return models.PaymentIntent{}, ErrDuplicateInProgress
		}
		return models.PaymentIntent{}, err
	}
	metrics.IntentsPending.Inc()

	slog.Info("stk push submitted",
		"order_id", orderID,
		"checkout_request_id", intent.CheckoutRequestID,
		"amount", amount,
	)
	return intent, nil
}

// HandleCallback consumes one asynchronous gateway notification. It never
// returns an error: the transport layer must always be able to acknowledge,
// because a missing or malformed ack makes the gateway redeliver.
func (s *PaymentService) HandleCallback(ctx context.Context, raw []byte) mpesa.CallbackAck {
	outcome, err := mpesa.ParseCallback(raw)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues("malformed").Inc()
		slog.Error("malformed callback", "err", err)
		return mpesa.AckFailure
	}

	intent, err := s.store.LookupAndRemove(ctx, outcome.CheckoutRequestID)
	if err != nil {
		// Store unavailable; the intent is still present, so let the
		// gateway redeliver rather than lose the outcome.
		slog.Error("callback correlation lookup failed", "err", err,
			"checkout_request_id", outcome.CheckoutRequestID)
		return mpesa.AckFailure
	}
	if intent == nil {
		// Duplicate delivery, or a straggler for an expired intent. Absorb.
		metrics.CallbacksTotal.WithLabelValues("unknown_handle").Inc()
		slog.Info("callback for unknown or already-consumed handle",
			"checkout_request_id", outcome.CheckoutRequestID)
		return mpesa.AckSuccess
	}
	metrics.IntentsPending.Dec()

	// The ack to the gateway and the internal write are decoupled: from here
	// on any failure is logged and alerted, never surfaced to the sender.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), downstreamTimeout)
	defer cancel()

	if outcome.ResultCode == 0 {
		s.applyConfirmed(dctx, *intent, outcome)
	} else {
		s.applyRejected(dctx, *intent, outcome)
	}
	return mpesa.AckSuccess
}

func (s *PaymentService) applyConfirmed(ctx context.Context, intent models.PaymentIntent, outcome mpesa.CallbackOutcome) {
	metrics.CallbacksTotal.WithLabelValues("confirmed").Inc()

	receipt := outcome.ReceiptNumber
	note := "paid at " + strconv.FormatInt(outcome.TransactionDate, 10)
	if err := s.orders.UpdatePaymentStatus(ctx, intent.OrderID, models.PaymentPaid, &receipt, &note); err != nil {
		metrics.ReconciliationWriteFailures.Inc()
		slog.Error("order update failed after confirmed payment",
			"order_id", intent.OrderID, "receipt", receipt, "err", err)
		return
	}
	slog.Info("payment confirmed",
		"order_id", intent.OrderID,
		"receipt", receipt,
		"amount", outcome.Amount,
	)

	orderID := intent.OrderID
	s.wp.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), downstreamTimeout)
		defer cancel()
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			slog.Error("notification skipped, order fetch failed", "order_id", orderID, "err", err)
			return
		}
		s.notifier.NotifyPaymentOutcome(order)
	})
}

func (s *PaymentService) applyRejected(ctx context.Context, intent models.PaymentIntent, outcome mpesa.CallbackOutcome) {
	metrics.CallbacksTotal.WithLabelValues("rejected").Inc()

	note := outcome.ResultDesc
	if err := s.orders.UpdatePaymentStatus(ctx, intent.OrderID, models.PaymentFailed, nil, &note); err != nil {
		metrics.ReconciliationWriteFailures.Inc()
		slog.Error("order update failed after rejected payment",
			"order_id", intent.OrderID, "err", err)
		return
	}
	slog.Info("payment rejected",
		"order_id", intent.OrderID,
		"result_code", outcome.ResultCode,
		"result_desc", outcome.ResultDesc,
	)
}
