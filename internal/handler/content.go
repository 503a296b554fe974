package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tessera/tessera/internal/gateway"
	"github.com/tessera/tessera/internal/middleware"
	"github.com/tessera/tessera/pkg/x402"
)

// ContentHandler serves the preview and fetch endpoints.
type ContentHandler struct {
	gateway *gateway.Service
	logger  *slog.Logger
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(svc *gateway.Service, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{
		gateway: svc,
		logger:  logger,
	}
}

// Preview returns a truncated excerpt plus pricing metadata. Never
// requires payment.
//
// GET /preview?url=<encoded-url>
func (h *ContentHandler) Preview(w http.ResponseWriter, r *http.Request) {
	target, ok := targetURL(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid url parameter")
		return
	}

	result, err := h.gateway.Preview(r.Context(), target)
	if err != nil {
		h.writeGatewayError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Fetch runs the paid-content flow. Responds 402 with a payment
// challenge until a valid X-PAYMENT envelope is attached.
//
// GET /fetch?url=<encoded-url>
func (h *ContentHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	target, ok := targetURL(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid url parameter")
		return
	}

	result, err := h.gateway.Fetch(r.Context(), target, r.Header.Get(x402.PaymentHeader))
	if err != nil {
		h.writeGatewayError(w, r, err)
		return
	}

	if result.Receipt != "" {
		w.Header().Set(x402.PaymentResponseHeader, result.Receipt)
	}
	writeJSON(w, http.StatusOK, result)
}

// writeGatewayError maps the gateway error taxonomy onto HTTP
// responses. Facilitator statuses pass through unchanged.
func (h *ContentHandler) writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notIntegrated *gateway.NotIntegratedError
		freeContent   *gateway.FreeContentError
		challenge     *gateway.ChallengeError
		settlement    *gateway.SettlementError
		upstream      *gateway.UpstreamError
	)

	switch {
	case errors.As(err, &notIntegrated):
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:    "content not integrated",
			Hostname: notIntegrated.Hostname,
		})

	case errors.As(err, &freeContent):
		writeError(w, http.StatusBadRequest, "content is free, fetch it directly")

	case errors.As(err, &challenge):
		writeJSON(w, http.StatusPaymentRequired, challenge.Challenge)

	case errors.As(err, &settlement):
		status := settlement.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		writeError(w, status, "payment settlement failed: "+settlement.Message)

	case errors.As(err, &upstream):
		writeError(w, http.StatusBadGateway, "publisher upstream error")

	default:
		h.logger.Error("unhandled gateway error",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
