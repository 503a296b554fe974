// Package model defines domain entities for the application.
package model

import "time"

// Publisher is a registered content source. Publishers are created and
// approved by the admin subsystem; the gateway only reads them.
type Publisher struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Website       string    `json:"website"`
	WalletAddress string    `json:"wallet_address"`
	Active        bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Endpoint is one priced access rule owned by a publisher. PriceUSD is
// decimal dollars at rest; conversion to atomic stablecoin units
// happens only at the protocol boundary.
type Endpoint struct {
	ID           string    `json:"id"`
	PublisherID  string    `json:"publisher_id"`
	PathTemplate string    `json:"path"`
	PriceUSD     float64   `json:"price_usd"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsFree reports whether the endpoint has a zero price. Free content is
// out of protocol: the gateway rejects it rather than settling nothing.
func (e *Endpoint) IsFree() bool {
	return e.PriceUSD <= 0
}
