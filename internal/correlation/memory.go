package correlation

import (
	"context"
	"sync"
	"time"

	"github.com/biyshop/payments-backend/internal/models"
)

// MemoryStore keeps intents in process memory. Intents are lost on restart;
// the postgres store exists for deployments that cannot accept that.
type MemoryStore struct {
	mu       sync.Mutex
	byHandle map[string]models.PaymentIntent
	byOrder  map[string]string // orderID -> handle
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byHandle: make(map[string]models.PaymentIntent),
		byOrder:  make(map[string]string),
	}
}

func (s *MemoryStore) Insert(_ context.Context, intent models.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHandle[intent.CheckoutRequestID]; ok {
		return ErrConflict
	}
	if handle, ok := s.byOrder[intent.OrderID]; ok {
		// An expired leftover the sweep has not collected yet does not
		// block a retry; the order is getting a fresh intent anyway.
		if prev := s.byHandle[handle]; prev.ExpiresAt.After(time.Now()) {
			return ErrDuplicateOrder
		}
		delete(s.byHandle, handle)
		delete(s.byOrder, intent.OrderID)
	}
	s.byHandle[intent.CheckoutRequestID] = intent
	s.byOrder[intent.OrderID] = intent.CheckoutRequestID
	return nil
}

func (s *MemoryStore) LookupAndRemove(_ context.Context, handle string) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.byHandle[handle]
	if !ok {
		return nil, nil
	}
	delete(s.byHandle, handle)
	delete(s.byOrder, intent.OrderID)
	return &intent, nil
}

func (s *MemoryStore) ExpireOlderThan(_ context.Context, now time.Time) ([]models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []models.PaymentIntent
	for handle, intent := range s.byHandle {
		if !intent.ExpiresAt.After(now) {
			delete(s.byHandle, handle)
			delete(s.byOrder, intent.OrderID)
			expired = append(expired, intent)
		}
	}
	return expired, nil
}

func (s *MemoryStore) FindByOrder(_ context.Context, orderID string) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.byOrder[orderID]
	if !ok {
		return nil, nil
	}
	intent := s.byHandle[handle]
	if !intent.ExpiresAt.After(time.Now()) {
		// Past its TTL but not yet swept: no longer a live intent.
		return nil, nil
	}
	return &intent, nil
}
