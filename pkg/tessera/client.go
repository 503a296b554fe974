// Package tessera is the Go client for the Tessera content gateway.
// It handles the payment challenge flow transparently: a fetch that
// hits a 402 is signed with the configured key and retried once.
package tessera

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tessera/tessera/pkg/x402"
)

const defaultTimeout = 90 * time.Second

// PreviewResponse is the body of a successful preview call.
type PreviewResponse struct {
	URL       string   `json:"url"`
	Title     string   `json:"title,omitempty"`
	Preview   string   `json:"preview"`
	PriceUSD  *float64 `json:"price,omitempty"`
	Publisher string   `json:"publisher,omitempty"`
	FetchURL  string   `json:"fetch_url"`
}

// FetchResponse is the body of a successful fetch call. Receipt is
// the decoded X-PAYMENT-RESPONSE header when the fetch was paid.
type FetchResponse struct {
	URL       string    `json:"url"`
	Markdown  string    `json:"markdown"`
	Title     string    `json:"title,omitempty"`
	Publisher string    `json:"publisher"`
	PriceUSD  float64   `json:"price"`
	Paid      bool      `json:"paid"`
	FetchedAt time.Time `json:"fetched_at"`

	Receipt *x402.SettlementReceipt `json:"-"`
}

// Client talks to a Tessera gateway.
type Client struct {
	baseURL    string
	apiKey     string
	signingKey *ecdsa.PrivateKey
	keyErr     error
	http       *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey attaches an API key to every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithPrivateKey configures the EVM signing key from a hex string
// (with or without 0x prefix). Required for paid fetches. A key that
// does not parse is reported by the first Fetch as
// ErrInvalidSigningKey.
func WithPrivateKey(hexKey string) Option {
	return func(c *Client) {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			c.signingKey = nil
			c.keyErr = fmt.Errorf("%w: %v", ErrInvalidSigningKey, err)
			return
		}
		c.signingKey = key
		c.keyErr = nil
	}
}

// WithSigningKey configures the EVM signing key directly.
func WithSigningKey(key *ecdsa.PrivateKey) Option {
	return func(c *Client) {
		c.signingKey = key
		c.keyErr = nil
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a gateway client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Preview fetches pricing metadata and a content excerpt. Never
// triggers a payment.
func (c *Client) Preview(ctx context.Context, rawURL string) (*PreviewResponse, error) {
	resp, err := c.get(ctx, "/preview", rawURL, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var out PreviewResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tessera: decode preview response: %w", err)
	}
	return &out, nil
}

// Fetch retrieves the full content. On a 402 challenge it signs a
// transfer authorization with the configured key and retries exactly
// once; a second failure is surfaced as a typed error.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*FetchResponse, error) {
	resp, err := c.get(ctx, "/fetch", rawURL, "")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		return decodeFetch(resp)
	}

	challenge, err := decodeChallenge(resp)
	if err != nil {
		return nil, err
	}

	if c.keyErr != nil {
		return nil, c.keyErr
	}
	if c.signingKey == nil {
		return nil, ErrNoSigningKey
	}

	opt, ok := selectOption(challenge)
	if !ok {
		return nil, ErrUnsupportedScheme
	}

	env, err := buildEnvelope(c.signingKey, opt)
	if err != nil {
		return nil, err
	}
	header, err := x402.EncodeEnvelope(env)
	if err != nil {
		return nil, fmt.Errorf("tessera: encode envelope: %w", err)
	}

	paid, err := c.get(ctx, "/fetch", rawURL, header)
	if err != nil {
		return nil, err
	}
	if paid.StatusCode == http.StatusPaymentRequired {
		// The gateway rejected our signed envelope. No further retry:
		// the nonce is spent either way.
		defer paid.Body.Close()
		rejected, derr := decodeChallenge(paid)
		msg := "payment not accepted"
		if derr == nil && rejected.Error != "" {
			msg = rejected.Error
		}
		return nil, &PaymentError{StatusCode: paid.StatusCode, Message: msg}
	}
	if paid.StatusCode != http.StatusOK {
		defer paid.Body.Close()
		apiErr := readAPIError(paid)
		if ae, ok := apiErr.(*APIError); ok {
			// Post-challenge failure: settlement or upstream. The
			// facilitator status arrives unchanged.
			return nil, &PaymentError{StatusCode: ae.StatusCode, Message: ae.Message}
		}
		return nil, apiErr
	}

	return decodeFetch(paid)
}

func (c *Client) get(ctx context.Context, path, rawURL, payment string) (*http.Response, error) {
	endpoint := c.baseURL + path + "?url=" + url.QueryEscape(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("tessera: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if payment != "" {
		req.Header.Set(x402.PaymentHeader, payment)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tessera: request failed: %w", err)
	}
	return resp, nil
}

func decodeFetch(resp *http.Response) (*FetchResponse, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var out FetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tessera: decode fetch response: %w", err)
	}

	if header := resp.Header.Get(x402.PaymentResponseHeader); header != "" {
		if receipt, err := x402.DecodeReceipt(header); err == nil {
			out.Receipt = receipt
		}
	}
	return &out, nil
}

func decodeChallenge(resp *http.Response) (*x402.PaymentRequired, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("tessera: read challenge: %w", err)
	}

	var challenge x402.PaymentRequired
	if err := json.Unmarshal(body, &challenge); err != nil {
		return nil, fmt.Errorf("tessera: decode challenge: %w", err)
	}
	if len(challenge.Accepts) == 0 {
		return nil, ErrUnsupportedScheme
	}
	return &challenge, nil
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var parsed struct {
		Error    string `json:"error"`
		Hostname string `json:"hostname,omitempty"`
	}
	msg := strings.TrimSpace(string(body))
	hostname := ""
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		msg = parsed.Error
		hostname = parsed.Hostname
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		Hostname:   hostname,
	}
}
