package tessera

import (
	"errors"
	"fmt"
)

// ErrNoSigningKey is returned when a payment challenge is received
// but the client has no signing key configured. Fails fast rather
// than silently skipping payment.
var ErrNoSigningKey = errors.New("tessera: payment required but no signing key configured")

// ErrInvalidSigningKey is returned when the key passed to
// WithPrivateKey did not parse. Surfaced from Fetch so a bad key is
// not mistaken for a missing one.
var ErrInvalidSigningKey = errors.New("tessera: invalid signing key")

// ErrUnsupportedScheme is returned when a challenge contains no
// payment option the client can sign for.
var ErrUnsupportedScheme = errors.New("tessera: no supported payment option in challenge")

// APIError is a non-payment error response from the gateway.
type APIError struct {
	StatusCode int
	Message    string
	Hostname   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tessera: gateway returned %d: %s", e.StatusCode, e.Message)
}

// PaymentError means the paid retry failed: the gateway or its
// facilitator did not accept the signed authorization. StatusCode is
// the facilitator's status, surfaced unchanged by the gateway. The
// nonce is spent; retry with a fresh call if at all.
type PaymentError struct {
	StatusCode int
	Message    string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("tessera: payment failed (%d): %s", e.StatusCode, e.Message)
}
