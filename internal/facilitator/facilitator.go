// Package facilitator defines the settlement boundary: the external
// service that verifies a signed transfer authorization and executes
// the underlying value transfer. The gateway never reimplements its
// chain logic; any conforming implementation can be substituted.
package facilitator

import (
	"context"
	"errors"
	"net/http"

	"github.com/tessera/tessera/pkg/x402"
)

// Settlement is the facilitator's verdict for one authorization.
// Status carries the facilitator's HTTP-style status unchanged; the
// gateway surfaces it to the caller without translation.
type Settlement struct {
	Status  int
	TxHash  string
	Network string
	Payer   string
	Message string
}

// Accepted reports whether the payment was verified and settled.
func (s *Settlement) Accepted() bool {
	return s.Status == http.StatusOK
}

// ErrUnavailable indicates the facilitator could not be reached or
// timed out. Distinct from a rejection: the authorization's fate is
// unknown and the request must fail without a local retry.
var ErrUnavailable = errors.New("settlement facilitator unavailable")

// Facilitator verifies and settles a payment authorization. Called at
// most once per incoming envelope; the facilitator is the single
// source of truth for nonce-reuse rejection.
type Facilitator interface {
	VerifyAndSettle(ctx context.Context, env *x402.PaymentEnvelope, opt *x402.PaymentOption) (*Settlement, error)
}
