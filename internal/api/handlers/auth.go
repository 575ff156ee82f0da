package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/biyshop/payments-backend/internal/api/httpx"
	"github.com/biyshop/payments-backend/internal/auth"
)

type AuthHandler struct {
	TM           *auth.TokenManager
	AdminKeyHash string
}

func NewAuthHandler(tm *auth.TokenManager, adminKeyHash string) *AuthHandler {
	return &AuthHandler{TM: tm, AdminKeyHash: adminKeyHash}
}

type loginReq struct {
	Key string `json:"key"`
}

type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// Login exchanges the admin API key for a token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", "key required", nil)
		return
	}
	if h.AdminKeyHash == "" || auth.VerifyKey(req.Key, h.AdminKeyHash) != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid key", nil)
		return
	}
	access, refresh, exp, err := h.TM.GeneratePair()
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	})
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", "refresh_token required", nil)
		return
	}
	if _, isRefresh, err := h.TM.ParseAny(req.RefreshToken); err != nil || !isRefresh {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token", nil)
		return
	}
	access, refresh, exp, err := h.TM.GeneratePair()
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	})
}
