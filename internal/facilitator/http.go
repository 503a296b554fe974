package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tessera/tessera/pkg/x402"
)

const (
	// DefaultTimeout bounds a settle call when the payment option
	// carries no timeout of its own.
	DefaultTimeout = 30 * time.Second

	dialTimeout           = 10 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 15 * time.Second
)

// Client talks to an HTTP settlement facilitator.
type Client struct {
	endpoint string
	secret   string
	http     *http.Client
}

// NewClient creates a facilitator client. The secret authenticates the
// gateway to the facilitator as a bearer credential.
func NewClient(endpoint, secret string) *Client {
	return &Client{
		endpoint: endpoint,
		secret:   secret,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   dialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   tlsHandshakeTimeout,
				ResponseHeaderTimeout: responseHeaderTimeout,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

// settleRequest is the facilitator's wire request: the envelope to
// verify plus the requirements it must satisfy.
type settleRequest struct {
	PaymentPayload      *x402.PaymentEnvelope `json:"paymentPayload"`
	PaymentRequirements *x402.PaymentOption   `json:"paymentRequirements"`
}

type settleResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
	Payer       string `json:"payer"`
	Error       string `json:"errorReason,omitempty"`
}

// VerifyAndSettle posts the authorization for verification and
// settlement. The call is bounded by the option's MaxTimeoutSeconds
// and is never retried here: a second attempt could double-charge.
func (c *Client) VerifyAndSettle(ctx context.Context, env *x402.PaymentEnvelope, opt *x402.PaymentOption) (*Settlement, error) {
	timeout := DefaultTimeout
	if opt.MaxTimeoutSeconds > 0 {
		timeout = time.Duration(opt.MaxTimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(settleRequest{
		PaymentPayload:      env,
		PaymentRequirements: opt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal settle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/settle", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create settle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	var settled settleResponse
	if err := json.Unmarshal(data, &settled); err != nil {
		return nil, fmt.Errorf("%w: bad response: %v", ErrUnavailable, err)
	}

	return &Settlement{
		Status:  resp.StatusCode,
		TxHash:  settled.Transaction,
		Network: settled.Network,
		Payer:   settled.Payer,
		Message: settled.Error,
	}, nil
}
