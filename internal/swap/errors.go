package swap

import (
	"errors"
	"fmt"

	clierr "github.com/avelasquez/swapdesk/internal/errors"
)

// The failure taxonomy is a closed set of error types so callers can switch
// exhaustively instead of matching message strings. ToCLIError maps each
// kind to its stable exit code at the engine boundary.

// InvalidAmountError reports a malformed or out-of-range swap amount.
type InvalidAmountError struct {
	Amount string
	Min    string
	Max    string
	Token  string
}

func (e *InvalidAmountError) Error() string {
	if e.Min != "" || e.Max != "" {
		return fmt.Sprintf("invalid amount %q for %s (min %s, max %s)", e.Amount, e.Token, e.Min, e.Max)
	}
	return fmt.Sprintf("invalid amount %q for %s: must be a positive decimal", e.Amount, e.Token)
}

// InsufficientBalanceError reports that the sender cannot fund the source leg.
type InsufficientBalanceError struct {
	Chain string
	Token string
	Have  string
	Need  string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance on %s: have %s, need %s", e.Token, e.Chain, e.Have, e.Need)
}

// InsufficientEscrowBalanceError reports that the escrow wallet cannot fund
// the target leg. Operator liquidity shortfall, not a user error.
type InsufficientEscrowBalanceError struct {
	Chain string
	Token string
	Have  string
	Need  string
}

func (e *InsufficientEscrowBalanceError) Error() string {
	return fmt.Sprintf("escrow cannot cover %s %s on %s (available %s); the operator must top up liquidity", e.Need, e.Token, e.Chain, e.Have)
}

// UnsupportedPairError reports a missing conversion rate.
type UnsupportedPairError struct {
	FromChain string
	FromToken string
	ToChain   string
	ToToken   string
}

func (e *UnsupportedPairError) Error() string {
	return fmt.Sprintf("swapping %s on %s to %s on %s is not supported", e.FromToken, e.FromChain, e.ToToken, e.ToChain)
}

// TransactionFailedError reports a chain-client submission failure. Unlike
// balance and amount failures, the underlying RPC error is surfaced.
type TransactionFailedError struct {
	Chain string
	Cause error
}

func (e *TransactionFailedError) Error() string {
	return fmt.Sprintf("transaction failed on %s: %v", e.Chain, e.Cause)
}

func (e *TransactionFailedError) Unwrap() error { return e.Cause }

// WrongNetworkError reports a single-chain operation attempted against the
// wrong active network.
type WrongNetworkError struct {
	Required string
	Active   string
}

func (e *WrongNetworkError) Error() string {
	return fmt.Sprintf("operation requires network %s but the active network is %s", e.Required, e.Active)
}

// NotFoundError reports a missing swap or pending transaction.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("no %s recorded yet", e.Kind)
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ToCLIError converts a taxonomy error into a typed CLI error with its
// stable code. Unknown errors map to the internal code.
func ToCLIError(err error) *clierr.Error {
	if err == nil {
		return nil
	}
	var (
		invalidAmount *InvalidAmountError
		insufficient  *InsufficientBalanceError
		escrow        *InsufficientEscrowBalanceError
		unsupported   *UnsupportedPairError
		txFailed      *TransactionFailedError
		wrongNetwork  *WrongNetworkError
		notFound      *NotFoundError
	)
	switch {
	case errors.As(err, &invalidAmount):
		return clierr.Wrap(clierr.CodeInvalidAmount, "validate amount", err)
	case errors.As(err, &insufficient):
		return clierr.Wrap(clierr.CodeInsufficientFunds, "check sender balance", err)
	case errors.As(err, &escrow):
		return clierr.Wrap(clierr.CodeInsufficientEscrow, "check escrow balance", err)
	case errors.As(err, &unsupported):
		return clierr.Wrap(clierr.CodeUnsupportedPair, "resolve conversion rate", err)
	case errors.As(err, &txFailed):
		return clierr.Wrap(clierr.CodeTxFailed, "submit transaction", err)
	case errors.As(err, &wrongNetwork):
		return clierr.Wrap(clierr.CodeWrongNetwork, "check active network", err)
	case errors.As(err, &notFound):
		return clierr.Wrap(clierr.CodeNotFound, "look up record", err)
	}
	if cli, ok := clierr.As(err); ok {
		return cli
	}
	return clierr.Wrap(clierr.CodeInternal, "swap engine failure", err)
}
