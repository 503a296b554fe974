package x402

// Version is the protocol version this package implements.
const Version = 1

// SchemeExact is the exact-amount transfer scheme (EIP-3009 on EVM).
const SchemeExact = "exact"

// PaymentHeader carries the base64 payment envelope on a request.
const PaymentHeader = "X-PAYMENT"

// PaymentResponseHeader carries the base64 settlement receipt on a
// successful paid response.
const PaymentResponseHeader = "X-PAYMENT-RESPONSE"

// PaymentRequired is the body of a 402 response: the challenge.
type PaymentRequired struct {
	X402Version int             `json:"x402Version"`
	Accepts     []PaymentOption `json:"accepts"`
	Error       string          `json:"error,omitempty"`
}

// PaymentOption is one way the caller may pay. MaxAmountRequired is the
// exact amount in the asset's smallest unit, as a decimal string.
type PaymentOption struct {
	Scheme            string      `json:"scheme"`
	Network           string      `json:"network"`
	MaxAmountRequired string      `json:"maxAmountRequired"`
	Resource          string      `json:"resource"`
	Description       string      `json:"description"`
	MimeType          string      `json:"mimeType"`
	PayTo             string      `json:"payTo"`
	MaxTimeoutSeconds int         `json:"maxTimeoutSeconds"`
	Asset             string      `json:"asset"`
	Extra             DomainExtra `json:"extra"`
}

// DomainExtra is the asset contract's EIP-712 domain metadata. The
// client must reproduce it byte-for-byte when signing or the
// facilitator rejects the signature.
type DomainExtra struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// PaymentEnvelope is the decoded X-PAYMENT header value.
type PaymentEnvelope struct {
	X402Version int            `json:"x402Version"`
	Scheme      string         `json:"scheme"`
	Network     string         `json:"network"`
	Payload     PaymentPayload `json:"payload"`
}

// PaymentPayload is the signature plus the authorization it covers.
type PaymentPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// Authorization is the client-constructed, time-bounded, single-use
// transfer statement. Times are unix seconds as decimal strings; Value
// is in the asset's smallest unit; Nonce is 32 random bytes, 0x-hex.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// SettlementReceipt is the gateway's echo of a completed settlement,
// sent base64-encoded in the X-PAYMENT-RESPONSE header.
type SettlementReceipt struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
	Payer       string `json:"payer,omitempty"`
}
