package x402

// chainIDs maps x402 network identifiers to EVM chain IDs. Only EVM
// networks are listed; the exact scheme on other chain families is not
// supported by this implementation.
var chainIDs = map[string]int64{
	"ethereum":       1,
	"base":           8453,
	"base-sepolia":   84532,
	"avalanche":      43114,
	"avalanche-fuji": 43113,
	"polygon":        137,
}

// ChainID returns the EVM chain ID for a network identifier.
func ChainID(network string) (int64, bool) {
	id, ok := chainIDs[network]
	return id, ok
}

// SupportedNetwork reports whether the exact scheme is signable on the
// given network.
func SupportedNetwork(network string) bool {
	_, ok := chainIDs[network]
	return ok
}
