package swap

import (
	"context"
	"errors"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/avelasquez/swapdesk/internal/chain"
)

// Verifier issues read-only balance queries and compares them against a
// required minimum. Failures are surfaced verbatim, never retried.
type Verifier struct {
	clients chain.Clients
	log     *logrus.Logger
}

func NewVerifier(clients chain.Clients, log *logrus.Logger) *Verifier {
	if log == nil {
		log = logrus.New()
	}
	return &Verifier{clients: clients, log: log}
}

// Balance reads the holder's balance of a token on a chain.
func (v *Verifier) Balance(ctx context.Context, c chain.Chain, token chain.Token, holder string) (*big.Int, error) {
	client, err := v.clients.For(c)
	if err != nil {
		return nil, err
	}
	if token.IsNative() {
		return client.NativeBalance(ctx, holder)
	}
	return client.TokenBalance(ctx, token.Address, holder)
}

// Require fails with InsufficientBalanceError when the holder's balance does
// not cover minimum base units.
func (v *Verifier) Require(ctx context.Context, c chain.Chain, token chain.Token, holder string, minimum *big.Int) error {
	have, err := v.Balance(ctx, c, token, holder)
	if err != nil {
		return err
	}
	v.log.WithFields(logrus.Fields{
		"chain":  c.Slug,
		"token":  token.Symbol,
		"holder": holder,
		"have":   have.String(),
		"need":   minimum.String(),
	}).Debug("balance check")
	if have.Cmp(minimum) < 0 {
		return &InsufficientBalanceError{
			Chain: c.Slug,
			Token: token.Symbol,
			Have:  chain.FormatUnits(have, token.Decimals),
			Need:  chain.FormatUnits(minimum, token.Decimals),
		}
	}
	return nil
}

// RequireEscrow is Require for the escrow wallet's target-chain liquidity,
// failing with the operator-alert error kind instead of the user one.
func (v *Verifier) RequireEscrow(ctx context.Context, c chain.Chain, token chain.Token, escrow string, minimum *big.Int) error {
	err := v.Require(ctx, c, token, escrow, minimum)
	var insufficient *InsufficientBalanceError
	if errors.As(err, &insufficient) {
		return &InsufficientEscrowBalanceError{
			Chain: insufficient.Chain,
			Token: insufficient.Token,
			Have:  insufficient.Have,
			Need:  insufficient.Need,
		}
	}
	return err
}
