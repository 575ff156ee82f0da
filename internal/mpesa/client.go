package mpesa

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	cfg    Config
	http   *resty.Client
	tokens *TokenProvider
	now    func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{
		cfg:    cfg,
		http:   http,
		tokens: NewTokenProvider(http, cfg.ConsumerKey, cfg.ConsumerSecret),
		now:    time.Now,
	}
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type gatewayError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// STKPush asks the gateway to prompt the payer's device. phone must already
// be in 254XXXXXXXXX form. The CheckoutRequestID in the response is the
// correlation handle echoed back in the asynchronous callback.
func (c *Client) STKPush(ctx context.Context, phone string, amount int64, orderID string) (*STKPushResponse, error) {
	cred, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	ts := c.now().Format(timestampFormat)
	req := stkPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          password(c.cfg.Shortcode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  orderID,
		TransactionDesc:   fmt.Sprintf("Payment for order %s", orderID),
	}

	var out STKPushResponse
	var gwErr gatewayError
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(cred.Token).
		SetBody(req).
		SetResult(&out).
		SetError(&gwErr).
		Post("/mpesa/stkpush/v1/processrequest")
	if err != nil {
		return nil, ErrGatewayUnavailable
	}
	if resp.StatusCode() == 401 {
		c.tokens.Invalidate()
		return nil, ErrAuthFailure
	}
	if resp.IsError() {
		slog.Error("stk push rejected", "status", resp.StatusCode(), "code", gwErr.ErrorCode, "msg", gwErr.ErrorMessage)
		return nil, ErrGatewayUnavailable
	}
	if out.ResponseCode != "0" || out.CheckoutRequestID == "" {
		slog.Error("stk push not accepted", "response_code", out.ResponseCode, "desc", out.ResponseDescription)
		return nil, ErrGatewayUnavailable
	}
	return &out, nil
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type QueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// QueryStatus asks the gateway for the outcome of an earlier push. Used by
// the reconciler before declaring an intent expired.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResponse, error) {
	cred, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	ts := c.now().Format(timestampFormat)
	req := stkQueryRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          password(c.cfg.Shortcode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	var out QueryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(cred.Token).
		SetBody(req).
		SetResult(&out).
		Post("/mpesa/stkpushquery/v1/query")
	if err != nil {
		return nil, ErrGatewayUnavailable
	}
	if resp.StatusCode() == 401 {
		c.tokens.Invalidate()
		return nil, ErrAuthFailure
	}
	if resp.IsError() {
		return nil, ErrGatewayUnavailable
	}
	return &out, nil
}
