package chain

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/avelasquez/swapdesk/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ToBaseUnits converts a positive decimal string into base units scaled by
// decimals. Fractional digits beyond the token's precision are rejected.
func ToBaseUnits(decimal string, decimals int) (*big.Int, error) {
	clean := strings.TrimSpace(decimal)
	if !decimalPattern.MatchString(clean) {
		return nil, clierr.New(clierr.CodeInvalidAmount, fmt.Sprintf("amount must be a decimal like 1.25, got %q", decimal))
	}
	parts := strings.SplitN(clean, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return nil, clierr.New(clierr.CodeInvalidAmount, fmt.Sprintf("amount precision exceeds token decimals (%d)", decimals))
	}
	fracPart = fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeInvalidAmount, "invalid decimal amount")
	}
	return n, nil
}

// FormatUnits renders base units as a decimal string with the full
// fractional width of the token, e.g. 4975000 with 6 decimals -> "4.975000".
func FormatUnits(n *big.Int, decimals int) string {
	if n == nil {
		return "0"
	}
	s := new(big.Int).Abs(n).String()
	sign := ""
	if n.Sign() < 0 {
		sign = "-"
	}
	if decimals == 0 {
		return sign + s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	return sign + s[:len(s)-decimals] + "." + s[len(s)-decimals:]
}

// FormatDisplay renders base units as a decimal string with trailing zeros
// trimmed, for human-facing summaries.
func FormatDisplay(n *big.Int, decimals int) string {
	s := FormatUnits(n, decimals)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
