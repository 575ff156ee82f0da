// Package mpesa is the Daraja gateway client: OAuth credential caching, STK
// push submission, status queries and callback payload parsing.
package mpesa

import (
	"encoding/base64"
	"errors"
	"time"
)

const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"
)

var (
	// ErrAuthFailure: the credential exchange was rejected. Propagated to the
	// caller, never retried here.
	ErrAuthFailure = errors.New("mpesa: authentication rejected")
	// ErrGatewayUnavailable: network failure, 5xx, or a rejected submission.
	ErrGatewayUnavailable = errors.New("mpesa: gateway unavailable")
)

// Config is everything the client needs to talk to Daraja. BaseURL is
// normally derived from the environment selector via BaseURL().
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

func BaseURL(environment string) string {
	if environment == "production" {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// timestampFormat is the Daraja request timestamp layout (YYYYMMDDHHMMSS).
const timestampFormat = "20060102150405"

// password derives the STK push password per the Daraja contract:
// base64(shortcode + passkey + timestamp).
func password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}
