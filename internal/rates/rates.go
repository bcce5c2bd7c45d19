// Package rates holds the static conversion-rate and fee table for the
// supported (token, chain) pairs.
package rates

import (
	"fmt"
	"math/big"

	"github.com/avelasquez/swapdesk/internal/chain"
	clierr "github.com/avelasquez/swapdesk/internal/errors"
)

// Pair is an ordered (from, to) token key. Tokens are identified by
// chain slug and symbol so the same asset on two chains rates separately.
type Pair struct {
	FromChain  string
	FromSymbol string
	ToChain    string
	ToSymbol   string
}

// Table maps directed pairs to a positive rational multiplier and applies a
// single global fee percentage to every conversion. Rates are not required
// to be reciprocal.
type Table struct {
	rates  map[Pair]*big.Rat
	feePct *big.Rat
}

// New builds a table with the given fee percentage. The fee must satisfy
// 0 <= fee < 100.
func New(feePct *big.Rat) (*Table, error) {
	if feePct == nil {
		feePct = new(big.Rat)
	}
	if feePct.Sign() < 0 || feePct.Cmp(big.NewRat(100, 1)) >= 0 {
		return nil, clierr.New(clierr.CodeUsage, "fee percentage must be in [0, 100)")
	}
	return &Table{rates: make(map[Pair]*big.Rat), feePct: new(big.Rat).Set(feePct)}, nil
}

// Set registers the multiplier for a directed pair, replacing any prior rate.
func (t *Table) Set(p Pair, rate *big.Rat) error {
	if rate == nil || rate.Sign() <= 0 {
		return clierr.New(clierr.CodeUsage, "conversion rate must be positive")
	}
	t.rates[p] = new(big.Rat).Set(rate)
	return nil
}

// Rate looks up the multiplier for a directed pair.
func (t *Table) Rate(p Pair) (*big.Rat, error) {
	r, ok := t.rates[p]
	if !ok {
		return nil, clierr.New(clierr.CodeUnsupportedPair,
			fmt.Sprintf("no conversion rate for %s (%s) -> %s (%s)", p.FromSymbol, p.FromChain, p.ToSymbol, p.ToChain))
	}
	return r, nil
}

// FeePct returns the global fee percentage.
func (t *Table) FeePct() *big.Rat {
	return new(big.Rat).Set(t.feePct)
}

// Convert turns amount base units of the source token into base units of the
// target token: amount * rate * (1 - fee/100), rescaled between the two
// tokens' decimal widths. The result truncates toward zero at the target
// token's precision so the quoted output never exceeds what the escrow is
// checked against.
func (t *Table) Convert(amount *big.Int, from, to chain.Token, p Pair) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeInvalidAmount, "conversion amount must be positive")
	}
	rate, err := t.Rate(p)
	if err != nil {
		return nil, err
	}

	out := new(big.Rat).SetInt(amount)
	out.Mul(out, rate)

	keep := new(big.Rat).Sub(big.NewRat(100, 1), t.feePct)
	keep.Quo(keep, big.NewRat(100, 1))
	out.Mul(out, keep)

	// Rescale source base units to target base units.
	out.Mul(out, new(big.Rat).SetInt(pow10(to.Decimals)))
	out.Quo(out, new(big.Rat).SetInt(pow10(from.Decimals)))

	return new(big.Int).Quo(out.Num(), out.Denom()), nil
}

// Defaults returns the shipped pair table: stable-to-stable 1:1 routes
// between the supported chains plus WETH routes, at the given fee.
func Defaults(feePct *big.Rat) (*Table, error) {
	t, err := New(feePct)
	if err != nil {
		return nil, err
	}
	stables := []string{"USDC", "USDT", "DAI"}
	for _, from := range chain.Supported() {
		for _, to := range chain.Supported() {
			for _, fromSym := range stables {
				if _, err := chain.FindToken(from, fromSym); err != nil {
					continue
				}
				for _, toSym := range stables {
					if from.Slug == to.Slug && fromSym == toSym {
						continue
					}
					if _, err := chain.FindToken(to, toSym); err != nil {
						continue
					}
					pair := Pair{FromChain: from.Slug, FromSymbol: fromSym, ToChain: to.Slug, ToSymbol: toSym}
					if err := t.Set(pair, big.NewRat(1, 1)); err != nil {
						return nil, err
					}
				}
			}
			if from.Slug != to.Slug {
				pair := Pair{FromChain: from.Slug, FromSymbol: "WETH", ToChain: to.Slug, ToSymbol: "WETH"}
				if err := t.Set(pair, big.NewRat(1, 1)); err != nil {
					return nil, err
				}
			}
		}
	}
	return t, nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
