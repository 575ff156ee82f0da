package postgres

import (
	repo "github.com/biyshop/payments-backend/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	Orders repo.Orders
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Orders: &ordersRepo{pool},
	}
}
