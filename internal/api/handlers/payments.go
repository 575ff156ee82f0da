package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/biyshop/payments-backend/internal/api/httpx"
	"github.com/biyshop/payments-backend/internal/api/validate"
	"github.com/biyshop/payments-backend/internal/mpesa"
	"github.com/biyshop/payments-backend/internal/services"
)

type PaymentHandler struct {
	Svc *services.PaymentService
}

func NewPaymentHandler(svc *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{Svc: svc}
}

type paymentRequest struct {
	OrderID     string `json:"orderId"`
	PhoneNumber string `json:"phoneNumber"`
	Amount      int64  `json:"amount"`
}

type paymentResponse struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
	MerchantRequestID string `json:"merchantRequestId"`
	OrderID           string `json:"orderId"`
	PhoneNumber       string `json:"phoneNumber"`
	Status            string `json:"status"`
	ExpiresAt         string `json:"expiresAt"`
}

// Initiate handles POST /payment-request.
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", "bad request body", nil)
		return
	}

	var errs validate.Errs
	if e := validate.Required("orderId", req.OrderID); e != nil {
		errs = append(errs, *e)
	}
	if e := validate.Required("phoneNumber", req.PhoneNumber); e != nil {
		errs = append(errs, *e)
	}
	if e := validate.MinInt("amount", req.Amount, 1); e != nil {
		errs = append(errs, *e)
	}
	if len(errs) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", errs.Error(), errs)
		return
	}

	intent, err := h.Svc.Initiate(r.Context(), req.OrderID, req.Amount, req.PhoneNumber)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		case errors.Is(err, services.ErrOrderNotFound):
			httpx.WriteError(w, http.StatusNotFound, "order_not_found", err.Error(), nil)
		case errors.Is(err, services.ErrDuplicateInProgress):
			httpx.WriteError(w, http.StatusConflict, "duplicate_in_progress", err.Error(), nil)
		case errors.Is(err, services.ErrAlreadyPaid):
			httpx.WriteError(w, http.StatusConflict, "already_paid", err.Error(), nil)
		case errors.Is(err, mpesa.ErrAuthFailure):
			httpx.WriteError(w, http.StatusBadGateway, "auth_failure", "payment gateway rejected our credentials", nil)
		case errors.Is(err, mpesa.ErrGatewayUnavailable):
			httpx.WriteError(w, http.StatusBadGateway, "gateway_unavailable", "payment gateway unavailable", nil)
		default:
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, paymentResponse{
		CheckoutRequestID: intent.CheckoutRequestID,
		MerchantRequestID: intent.MerchantRequestID,
		OrderID:           intent.OrderID,
		PhoneNumber:       intent.Phone,
		Status:            string(intent.Status),
		ExpiresAt:         intent.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// Callback handles POST /payment-callback. It always answers 200 with a
// JSON ack; anything else makes the gateway redeliver.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteJSON(w, http.StatusOK, mpesa.AckFailure)
		return
	}
	ack := h.Svc.HandleCallback(r.Context(), raw)
	httpx.WriteJSON(w, http.StatusOK, ack)
}
