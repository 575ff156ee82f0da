package mpesa

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrMalformedCallback = errors.New("mpesa: malformed callback payload")

// CallbackOutcome is the parsed result of one asynchronous STK callback.
// The success-only fields are zero when ResultCode != 0.
type CallbackOutcome struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string

	Amount          int64
	ReceiptNumber   string
	TransactionDate int64 // YYYYMMDDHHMMSS as sent by the gateway
	Phone           string
}

// CallbackAck is the JSON body the gateway expects in response to every
// callback delivery, success or not.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var (
	AckSuccess = CallbackAck{ResultCode: 0, ResultDesc: "Success"}
	AckFailure = CallbackAck{ResultCode: 1, ResultDesc: "Error processing callback"}
)

type callbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes the Body.stkCallback envelope. A payload without a
// CheckoutRequestID is unusable for correlation and reported as malformed.
func ParseCallback(raw []byte) (CallbackOutcome, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return CallbackOutcome{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return CallbackOutcome{}, fmt.Errorf("%w: missing CheckoutRequestID", ErrMalformedCallback)
	}

	out := CallbackOutcome{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			out.Amount = asInt64(item.Value)
		case "MpesaReceiptNumber":
			out.ReceiptNumber = asString(item.Value)
		case "TransactionDate":
			out.TransactionDate = asInt64(item.Value)
		case "PhoneNumber":
			out.Phone = asString(item.Value)
		}
	}
	return out, nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatInt(int64(s), 10)
	}
	return ""
}
