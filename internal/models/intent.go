package models

import "time"

type IntentStatus string

const (
	IntentAwaitingCallback IntentStatus = "awaiting_callback"
	IntentConfirmed        IntentStatus = "confirmed"
	IntentRejected         IntentStatus = "rejected"
	IntentExpired          IntentStatus = "expired"
)

// PaymentIntent is the pending half of an STK push: created when the push is
// accepted by the gateway, keyed by the CheckoutRequestID the gateway echoes
// back in its callback.
type PaymentIntent struct {
	CheckoutRequestID string       `json:"checkout_request_id"`
	MerchantRequestID string       `json:"merchant_request_id"`
	OrderID           string       `json:"order_id"`
	Amount            int64        `json:"amount"`
	Phone             string       `json:"phone"`
	Status            IntentStatus `json:"status"`
	CreatedAt         time.Time    `json:"created_at"`
	ExpiresAt         time.Time    `json:"expires_at"`
}
