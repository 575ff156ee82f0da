// Package correlation owns the table of pending payment intents, keyed by
// the gateway's CheckoutRequestID. Its atomic pop operations are what make
// callback processing at-most-once: a handle removed by LookupAndRemove or
// ExpireOlderThan can never be observed again.
package correlation

import (
	"context"
	"errors"
	"time"

	"github.com/biyshop/payments-backend/internal/models"
)

var (
	// ErrConflict: an intent with the same handle is already stored. Handles
	// are gateway-unique, so this indicates a duplicate insert.
	ErrConflict = errors.New("correlation: handle already present")
	// ErrDuplicateOrder: the order already has a live intent.
	ErrDuplicateOrder = errors.New("correlation: order already has a live intent")
)

type Store interface {
	// Insert stores a new pending intent. Fails with ErrConflict on a
	// duplicate handle and ErrDuplicateOrder when the order already has a
	// live intent; both checks are atomic with the insert.
	Insert(ctx context.Context, intent models.PaymentIntent) error

	// LookupAndRemove atomically pops the intent for a handle. At most one
	// caller ever receives a given intent; an absent handle returns
	// (nil, nil).
	LookupAndRemove(ctx context.Context, handle string) (*models.PaymentIntent, error)

	// ExpireOlderThan atomically pops every intent with expiresAt <= now.
	ExpireOlderThan(ctx context.Context, now time.Time) ([]models.PaymentIntent, error)

	// FindByOrder returns the live intent for an order, or (nil, nil).
	FindByOrder(ctx context.Context, orderID string) (*models.PaymentIntent, error)
}
