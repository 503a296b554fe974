// Package x402 defines the wire types of the payment-gated content
// protocol: the 402 challenge a gateway issues, the signed transfer
// authorization a client attaches in the X-PAYMENT header, and the
// helpers both sides share (envelope codec, amount conversion, nonce
// generation, EIP-712 typed-data construction).
//
// The types mirror x402 protocol version 1 for the "exact" scheme on
// EVM networks, where the authorization is an EIP-3009
// TransferWithAuthorization signed over the asset contract's EIP-712
// domain.
package x402
