package chain

import (
	"fmt"
	"strings"
)

var defaultRPCBySlug = map[string]string{
	"ethereum": "https://eth.llamarpc.com",
	"base":     "https://mainnet.base.org",
	"arbitrum": "https://arb1.arbitrum.io/rpc",
	"polygon":  "https://polygon-rpc.com",
}

// DefaultRPCURL returns the public RPC endpoint for a supported chain.
func DefaultRPCURL(c Chain) (string, bool) {
	v, ok := defaultRPCBySlug[c.Slug]
	return v, ok
}

// ResolveRPCURL prefers an explicit override, then the default endpoint.
func ResolveRPCURL(override string, c Chain) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	if v, ok := DefaultRPCURL(c); ok {
		return v, nil
	}
	return "", fmt.Errorf("no rpc endpoint configured for %s", c.Slug)
}
