package swap

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/avelasquez/swapdesk/internal/chain"
	"github.com/avelasquez/swapdesk/internal/signer"
)

// fakeClient serves balances from in-memory maps and records transfer
// submissions. Token balances are keyed by "tokenAddress|holder", native
// balances by holder, all lowercased.
type fakeClient struct {
	mu        sync.Mutex
	native    map[string]*big.Int
	tokens    map[string]*big.Int
	transfers []fakeTransfer
	submitErr error
	hash      string
}

type fakeTransfer struct {
	token  chain.Token
	to     string
	amount *big.Int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		native: make(map[string]*big.Int),
		tokens: make(map[string]*big.Int),
		hash:   "0xfeedbeef",
	}
}

func (f *fakeClient) setNative(holder string, amount *big.Int) {
	f.native[strings.ToLower(holder)] = amount
}

func (f *fakeClient) setToken(tokenAddress, holder string, amount *big.Int) {
	f.tokens[strings.ToLower(tokenAddress)+"|"+strings.ToLower(holder)] = amount
}

func (f *fakeClient) NativeBalance(_ context.Context, address string) (*big.Int, error) {
	if b, ok := f.native[strings.ToLower(address)]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *fakeClient) TokenBalance(_ context.Context, tokenAddress, address string) (*big.Int, error) {
	if b, ok := f.tokens[strings.ToLower(tokenAddress)+"|"+strings.ToLower(address)]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *fakeClient) SubmitTransfer(_ context.Context, token chain.Token, to string, amount *big.Int, _ signer.Signer) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.mu.Lock()
	f.transfers = append(f.transfers, fakeTransfer{token: token, to: to, amount: new(big.Int).Set(amount)})
	f.mu.Unlock()
	return f.hash, nil
}

func (f *fakeClient) Close() {}

// fakeClients serves one fakeClient per chain slug, creating on demand so a
// test can seed balances on any chain with client(t, "base").
type fakeClients struct {
	byChain map[string]*fakeClient
}

func newFakeClients() *fakeClients {
	return &fakeClients{byChain: make(map[string]*fakeClient)}
}

func (f *fakeClients) client(slug string) *fakeClient {
	if c, ok := f.byChain[slug]; ok {
		return c
	}
	c := newFakeClient()
	f.byChain[slug] = c
	return c
}

func (f *fakeClients) For(c chain.Chain) (chain.Client, error) {
	return f.client(c.Slug), nil
}

// fakeSigner identifies itself as the escrow address and signs nothing.
type fakeSigner struct {
	addr common.Address
}

func (s fakeSigner) Address() common.Address { return s.addr }

func (s fakeSigner) SignTx(_ *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	return tx, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}
