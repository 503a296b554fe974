package gateway

import (
	"fmt"

	"github.com/tessera/tessera/pkg/x402"
)

// NotIntegratedError means the target URL resolves to no active
// publisher endpoint. Hostname is echoed back to the caller.
type NotIntegratedError struct {
	Hostname string
}

func (e *NotIntegratedError) Error() string {
	return fmt.Sprintf("content not integrated: %s", e.Hostname)
}

// FreeContentError means the matched endpoint has a zero price. The
// payment path exists only for priced content.
type FreeContentError struct {
	URL string
}

func (e *FreeContentError) Error() string {
	return fmt.Sprintf("content is free, fetch it directly: %s", e.URL)
}

// ChallengeError carries a 402 payment challenge. Returned when no
// payment envelope is attached, or the attached one is unusable
// before any facilitator call.
type ChallengeError struct {
	Challenge *x402.PaymentRequired
}

func (e *ChallengeError) Error() string {
	return "payment required"
}

// SettlementError means the facilitator rejected the authorization or
// could not be reached. Status is the facilitator's verdict, surfaced
// unchanged.
type SettlementError struct {
	Status  int
	Message string
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement failed (%d): %s", e.Status, e.Message)
}

// UpstreamError means the publisher API failed after settlement
// already succeeded. Money was captured without content delivered, so
// callers must surface this distinctly and operators reconcile it.
type UpstreamError struct {
	Status int
	TxHash string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream publisher error (%d)", e.Status)
}
