// Package notify is the notification collaborator boundary. The payment core
// fires it and forgets; delivery failures are logged, never retried here.
package notify

import (
	"log/slog"

	"github.com/biyshop/payments-backend/internal/models"
)

type Notifier interface {
	NotifyPaymentOutcome(order models.Order)
}

// LogNotifier stands in for the mail-sending service. Message composition
// and delivery live outside this backend.
type LogNotifier struct{}

func (LogNotifier) NotifyPaymentOutcome(order models.Order) {
	slog.Info("payment outcome notification",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"payment_status", order.PaymentStatus,
		"customer_email", order.Customer.Email,
	)
}
