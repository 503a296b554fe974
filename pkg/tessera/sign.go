package tessera

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tessera/tessera/pkg/x402"
)

// clockSkewMargin backdates validAfter so a slightly fast gateway or
// facilitator clock does not see the authorization as not-yet-valid.
const clockSkewMargin = 60 * time.Second

// buildEnvelope constructs and signs a payment envelope for one
// challenge option. The nonce is fresh per call; the value is exactly
// the challenged amount.
func buildEnvelope(key *ecdsa.PrivateKey, opt *x402.PaymentOption) (*x402.PaymentEnvelope, error) {
	nonce, err := x402.NewNonce()
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	now := time.Now()
	auth := &x402.Authorization{
		From:        crypto.PubkeyToAddress(key.PublicKey).Hex(),
		To:          opt.PayTo,
		Value:       opt.MaxAmountRequired,
		ValidAfter:  fmt.Sprintf("%d", now.Add(-clockSkewMargin).Unix()),
		ValidBefore: fmt.Sprintf("%d", now.Add(time.Duration(opt.MaxTimeoutSeconds)*time.Second).Unix()),
		Nonce:       nonce,
	}

	hash, err := x402.AuthorizationHash(auth, opt)
	if err != nil {
		return nil, fmt.Errorf("hash authorization: %w", err)
	}

	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, fmt.Errorf("sign authorization: %w", err)
	}
	// EIP-712 signatures use v in {27, 28}; crypto.Sign yields {0, 1}.
	sig[64] += 27

	return &x402.PaymentEnvelope{
		X402Version: x402.Version,
		Scheme:      opt.Scheme,
		Network:     opt.Network,
		Payload: x402.PaymentPayload{
			Signature:     hexutil.Encode(sig),
			Authorization: *auth,
		},
	}, nil
}

// selectOption picks the first challenge option the client can sign
// for: exact scheme on a known EVM network.
func selectOption(challenge *x402.PaymentRequired) (*x402.PaymentOption, bool) {
	for i := range challenge.Accepts {
		opt := &challenge.Accepts[i]
		if opt.Scheme != x402.SchemeExact {
			continue
		}
		if !x402.SupportedNetwork(opt.Network) {
			continue
		}
		return opt, true
	}
	return nil, false
}
