package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biyshop/payments-backend/internal/models"
)

type ordersRepo struct{ pool *pgxpool.Pool }

// orderNumber format: ORD-YYYYMMDD-XXXX
func orderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102"), rand.Intn(10000))
}

func (r *ordersRepo) Create(ctx context.Context, o models.Order) (models.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.OrderNumber == "" {
		o.OrderNumber = orderNumber(time.Now())
	}
	if o.Status == "" {
		o.Status = models.OrderPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = models.PaymentPending
	}

	items, err := json.Marshal(o.Items)
	if err != nil {
		return models.Order{}, err
	}
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return models.Order{}, err
	}

	err = r.pool.QueryRow(ctx, `
INSERT INTO orders (
  id, order_number, customer, items, total, status, payment_status, payment_method, notes
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING created_at, updated_at`,
		o.ID, o.OrderNumber, customer, items, o.Total, o.Status, o.PaymentStatus, o.PaymentMethod, o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return models.Order{}, err
	}
	return o, nil
}

const orderColumns = `id, order_number, customer, items, total, status, payment_status,
       payment_method, mpesa_receipt, payment_note, notes, created_at, updated_at`

func (r *ordersRepo) GetByID(ctx context.Context, id string) (models.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	return scanOrder(row)
}

func (r *ordersRepo) List(ctx context.Context, limit, offset int) ([]models.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *ordersRepo) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, receipt, note *string) error {
	// paid is terminal: a straggler failure or expiry write must never
	// clobber a confirmed payment.
	tag, err := r.pool.Exec(ctx, `
UPDATE orders
   SET payment_status=$2,
       mpesa_receipt=COALESCE($3, mpesa_receipt),
       payment_note=COALESCE($4, payment_note),
       updated_at=now()
 WHERE id=$1 AND payment_status <> 'paid'`,
		id, status, receipt, note,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s not found or already paid", id)
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanOrder(row rowScanner) (models.Order, error) {
	var o models.Order
	var customer, items []byte
	err := row.Scan(&o.ID, &o.OrderNumber, &customer, &items, &o.Total, &o.Status,
		&o.PaymentStatus, &o.PaymentMethod, &o.MpesaReceipt, &o.PaymentNote,
		&o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return models.Order{}, err
	}
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return models.Order{}, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return models.Order{}, err
		}
	}
	return o, nil
}
