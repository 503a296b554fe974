package x402

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// transferWithAuthorizationTypes is the EIP-3009 struct layout. The
// field order is part of the type hash and must not change.
var transferWithAuthorizationTypes = []apitypes.Type{
	{Name: "from", Type: "address"},
	{Name: "to", Type: "address"},
	{Name: "value", Type: "uint256"},
	{Name: "validAfter", Type: "uint256"},
	{Name: "validBefore", Type: "uint256"},
	{Name: "nonce", Type: "bytes32"},
}

var eip712DomainTypes = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// AuthorizationHash computes the EIP-712 digest a client signs (and a
// verifier recovers against) for a TransferWithAuthorization. The
// domain is the asset contract's: name/version from the challenge's
// extra block, chain ID from the network, verifying contract the asset
// address.
func AuthorizationHash(auth *Authorization, opt *PaymentOption) ([]byte, error) {
	chainID, ok := ChainID(opt.Network)
	if !ok {
		return nil, fmt.Errorf("unknown network %q", opt.Network)
	}

	value, err := ParseAmount(auth.Value)
	if err != nil {
		return nil, err
	}
	validAfter, err := parseUnix(auth.ValidAfter)
	if err != nil {
		return nil, fmt.Errorf("validAfter: %w", err)
	}
	validBefore, err := parseUnix(auth.ValidBefore)
	if err != nil {
		return nil, fmt.Errorf("validBefore: %w", err)
	}

	typed := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":              eip712DomainTypes,
			"TransferWithAuthorization": transferWithAuthorizationTypes,
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              opt.Extra.Name,
			Version:           opt.Extra.Version,
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: opt.Asset,
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From,
			"to":          auth.To,
			"value":       value.String(),
			"validAfter":  validAfter.String(),
			"validBefore": validBefore.String(),
			"nonce":       auth.Nonce,
		},
	}

	digest, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	return digest, nil
}

func parseUnix(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid unix time %q", s)
	}
	return v, nil
}
