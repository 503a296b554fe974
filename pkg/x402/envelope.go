package x402

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope size guard: a legitimate envelope is well under 4 KiB.
const maxEnvelopeLen = 8192

var (
	// ErrEnvelopeTooLarge indicates an oversized X-PAYMENT header.
	ErrEnvelopeTooLarge = errors.New("payment envelope too large")
	// ErrVersionMismatch indicates an unsupported protocol version.
	ErrVersionMismatch = errors.New("unsupported x402 version")
)

// EncodeEnvelope serializes an envelope for the X-PAYMENT header.
func EncodeEnvelope(env *PaymentEnvelope) (string, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeEnvelope parses an X-PAYMENT header value.
func DecodeEnvelope(header string) (*PaymentEnvelope, error) {
	if len(header) > maxEnvelopeLen {
		return nil, ErrEnvelopeTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var env PaymentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	if env.X402Version != Version {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, env.X402Version, Version)
	}

	return &env, nil
}

// EncodeReceipt serializes a receipt for the X-PAYMENT-RESPONSE header.
func EncodeReceipt(rcpt *SettlementReceipt) (string, error) {
	data, err := json.Marshal(rcpt)
	if err != nil {
		return "", fmt.Errorf("marshal receipt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeReceipt parses an X-PAYMENT-RESPONSE header value.
func DecodeReceipt(header string) (*SettlementReceipt, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}

	var rcpt SettlementReceipt
	if err := json.Unmarshal(data, &rcpt); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return &rcpt, nil
}
