package models

import "time"

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	PaymentExpired PaymentStatus = "expired"
)

type PaymentMethod string

const (
	MethodMpesa PaymentMethod = "mpesa"
	MethodCOD   PaymentMethod = "cod"
)

type Customer struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

type OrderItem struct {
	Name     string `json:"name"`
	Size     string `json:"size,omitempty"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"` // KES, whole shillings
}

type Order struct {
	ID             string        `json:"id"`
	OrderNumber    string        `json:"order_number"`
	Customer       Customer      `json:"customer"`
	Items          []OrderItem   `json:"items"`
	Total          int64         `json:"total"`
	Status         OrderStatus   `json:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	MpesaReceipt   *string       `json:"mpesa_receipt,omitempty"`
	PaymentNote    *string       `json:"payment_note,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
