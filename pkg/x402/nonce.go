package x402

import (
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NonceLen is the nonce size in bytes. EIP-3009 authorizations carry a
// bytes32 nonce; 32 random bytes is far past the 128-bit minimum.
const NonceLen = 32

// NewNonce returns a fresh random nonce as a 0x-prefixed hex string.
// Every authorization must use a new one; the facilitator rejects
// replays of a (payer, nonce) pair.
func NewNonce() (string, error) {
	buf := make([]byte, NonceLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hexutil.Encode(buf), nil
}
