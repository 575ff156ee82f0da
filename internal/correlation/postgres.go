package correlation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biyshop/payments-backend/internal/models"
)

// PostgresStore persists intents in the payment_intents table so a callback
// arriving after a process restart can still be correlated. The atomic pop
// operations map to DELETE ... RETURNING.
type PostgresStore struct{ pool *pgxpool.Pool }

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const intentColumns = `checkout_request_id, merchant_request_id, order_id, amount, phone, status, created_at, expires_at`

func (s *PostgresStore) Insert(ctx context.Context, intent models.PaymentIntent) error {
	// An expired leftover the sweep has not collected yet must not block a
	// retry for the same order. Racing inserts still collapse to one winner
	// on the unique index.
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM payment_intents WHERE order_id=$1 AND expires_at <= now()`,
		intent.OrderID,
	); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO payment_intents (`+intentColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		intent.CheckoutRequestID, intent.MerchantRequestID, intent.OrderID,
		intent.Amount, intent.Phone, intent.Status, intent.CreatedAt, intent.ExpiresAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "payment_intents_order_id_key" {
			return ErrDuplicateOrder
		}
		return ErrConflict
	}
	return err
}

func (s *PostgresStore) LookupAndRemove(ctx context.Context, handle string) (*models.PaymentIntent, error) {
	row := s.pool.QueryRow(ctx,
		`DELETE FROM payment_intents WHERE checkout_request_id=$1 RETURNING `+intentColumns,
		handle,
	)
	intent, err := scanIntent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (s *PostgresStore) ExpireOlderThan(ctx context.Context, now time.Time) ([]models.PaymentIntent, error) {
	rows, err := s.pool.Query(ctx,
		`DELETE FROM payment_intents WHERE expires_at <= $1 RETURNING `+intentColumns,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PaymentIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, intent)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindByOrder(ctx context.Context, orderID string) (*models.PaymentIntent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE order_id=$1 AND expires_at > now()`,
		orderID,
	)
	intent, err := scanIntent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func scanIntent(row pgx.Row) (models.PaymentIntent, error) {
	var i models.PaymentIntent
	err := row.Scan(&i.CheckoutRequestID, &i.MerchantRequestID, &i.OrderID,
		&i.Amount, &i.Phone, &i.Status, &i.CreatedAt, &i.ExpiresAt)
	return i, err
}
