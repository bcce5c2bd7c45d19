package chain

import (
	"fmt"
	"strconv"
	"strings"

	clierr "github.com/avelasquez/swapdesk/internal/errors"
)

// NativeAddress is the sentinel contract address used for a chain's native
// asset in token references and transfer intents.
const NativeAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// Chain identifies a supported network.
type Chain struct {
	Name    string
	Slug    string
	ChainID int64
}

// Token is a (chain, contract) pair with its display symbol and the decimal
// count that scales all base-unit arithmetic for the asset.
type Token struct {
	Symbol   string
	Address  string
	Decimals int
	Native   bool
}

// IsNative reports whether the token address is the native-asset sentinel.
func (t Token) IsNative() bool {
	return t.Native || strings.EqualFold(t.Address, NativeAddress)
}

var chainOrder = []string{"ethereum", "base", "arbitrum", "polygon"}

var chainBySlug = map[string]Chain{
	"ethereum": {Name: "Ethereum", Slug: "ethereum", ChainID: 1},
	"mainnet":  {Name: "Ethereum", Slug: "ethereum", ChainID: 1},
	"base":     {Name: "Base", Slug: "base", ChainID: 8453},
	"arbitrum": {Name: "Arbitrum", Slug: "arbitrum", ChainID: 42161},
	"polygon":  {Name: "Polygon", Slug: "polygon", ChainID: 137},
}

var chainByID = map[int64]Chain{
	1:     chainBySlug["ethereum"],
	8453:  chainBySlug["base"],
	42161: chainBySlug["arbitrum"],
	137:   chainBySlug["polygon"],
}

var tokenRegistry = map[string][]Token{
	"ethereum": {
		{Symbol: "ETH", Address: NativeAddress, Decimals: 18, Native: true},
		{Symbol: "USDC", Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6},
		{Symbol: "USDT", Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Decimals: 6},
		{Symbol: "DAI", Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Decimals: 18},
		{Symbol: "WETH", Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", Decimals: 18},
	},
	"base": {
		{Symbol: "ETH", Address: NativeAddress, Decimals: 18, Native: true},
		{Symbol: "USDC", Address: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", Decimals: 6},
		{Symbol: "DAI", Address: "0x50c5725949a6f0c72e6c4a641f24049a917db0cb", Decimals: 18},
		{Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	},
	"arbitrum": {
		{Symbol: "ETH", Address: NativeAddress, Decimals: 18, Native: true},
		{Symbol: "USDC", Address: "0xaf88d065e77c8cc2239327c5edb3a432268e5831", Decimals: 6},
		{Symbol: "USDT", Address: "0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9", Decimals: 6},
		{Symbol: "DAI", Address: "0xda10009cbd5d07dd0cecc66161fc93d7c9000da1", Decimals: 18},
		{Symbol: "WETH", Address: "0x82af49447d8a07e3bd95bd0d56f35241523fbab1", Decimals: 18},
	},
	"polygon": {
		{Symbol: "POL", Address: NativeAddress, Decimals: 18, Native: true},
		{Symbol: "USDC", Address: "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359", Decimals: 6},
		{Symbol: "USDT", Address: "0xc2132d05d31c914a87c6611c10748aeb04b58e8f", Decimals: 6},
		{Symbol: "DAI", Address: "0x8f3cf7ad23cd3cadbd9735aff958023239c6a063", Decimals: 18},
		{Symbol: "WETH", Address: "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619", Decimals: 18},
	},
}

// Parse resolves a chain by slug, name, or numeric chain id.
func Parse(input string) (Chain, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Chain{}, clierr.New(clierr.CodeUsage, "chain is required")
	}
	norm := strings.ToLower(raw)

	if c, ok := chainBySlug[norm]; ok {
		return c, nil
	}
	if id, err := strconv.ParseInt(norm, 10, 64); err == nil {
		if c, ok := chainByID[id]; ok {
			return c, nil
		}
	}
	return Chain{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported chain: %s", input))
}

// MustParse is Parse for statically known slugs.
func MustParse(slug string) Chain {
	c, err := Parse(slug)
	if err != nil {
		panic(err)
	}
	return c
}

// Supported returns the supported chains in registry order.
func Supported() []Chain {
	out := make([]Chain, 0, len(chainOrder))
	for _, slug := range chainOrder {
		out = append(out, chainBySlug[slug])
	}
	return out
}

// Tokens returns the token registry for a chain in declaration order.
func Tokens(c Chain) []Token {
	return tokenRegistry[c.Slug]
}

// FindToken resolves a symbol on a chain.
func FindToken(c Chain, symbol string) (Token, error) {
	for _, t := range tokenRegistry[c.Slug] {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, nil
		}
	}
	return Token{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("token %s is not listed on %s", strings.ToUpper(symbol), c.Name))
}

// TokenByAddress resolves a token on a chain by its contract address.
func TokenByAddress(c Chain, address string) (Token, bool) {
	for _, t := range tokenRegistry[c.Slug] {
		if strings.EqualFold(t.Address, address) {
			return t, true
		}
	}
	return Token{}, false
}

// InferChain matches a destination address against the registry of
// well-known per-chain token contracts, case-insensitively. Chains are
// scanned in registry order so shared deployments resolve deterministically.
// Best-effort: an unmatched address returns ok=false and the caller decides
// the fallback.
func InferChain(address string) (Chain, bool) {
	addr := strings.TrimSpace(address)
	if addr == "" || strings.EqualFold(addr, NativeAddress) {
		return Chain{}, false
	}
	for _, slug := range chainOrder {
		c := chainBySlug[slug]
		for _, t := range tokenRegistry[slug] {
			if t.IsNative() {
				continue
			}
			if strings.EqualFold(t.Address, addr) {
				return c, true
			}
		}
	}
	return Chain{}, false
}
