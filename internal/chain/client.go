package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	clierr "github.com/avelasquez/swapdesk/internal/errors"
	"github.com/avelasquez/swapdesk/internal/signer"
)

// Client is the minimal chain surface the swap engine needs: two read-only
// balance queries and a transfer submission used by the payout leg.
type Client interface {
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
	TokenBalance(ctx context.Context, tokenAddress, address string) (*big.Int, error)
	SubmitTransfer(ctx context.Context, token Token, to string, amount *big.Int, s signer.Signer) (string, error)
	Close()
}

// Clients resolves a Client per chain slug.
type Clients interface {
	For(c Chain) (Client, error)
}

// transfer(address,uint256)
var erc20TransferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

// balanceOf(address)
var erc20BalanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// EVMClient implements Client over a JSON-RPC endpoint.
type EVMClient struct {
	eth          *ethclient.Client
	pollInterval time.Duration
	waitTimeout  time.Duration
}

// Dial connects to the chain's RPC endpoint, honoring an override URL.
func Dial(ctx context.Context, c Chain, overrideURL string) (*EVMClient, error) {
	url, err := ResolveRPCURL(overrideURL, c)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "resolve rpc endpoint", err)
	}
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
	}
	return &EVMClient{eth: eth, pollInterval: 2 * time.Second, waitTimeout: 2 * time.Minute}, nil
}

func (c *EVMClient) Close() {
	if c != nil && c.eth != nil {
		c.eth.Close()
	}
}

func (c *EVMClient) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid address %q", address))
	}
	bal, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "read native balance", err)
	}
	return bal, nil
}

func (c *EVMClient) TokenBalance(ctx context.Context, tokenAddress, address string) (*big.Int, error) {
	if !common.IsHexAddress(tokenAddress) || !common.IsHexAddress(address) {
		return nil, clierr.New(clierr.CodeUsage, "invalid token or holder address")
	}
	token := common.HexToAddress(tokenAddress)
	data := make([]byte, 0, 36)
	data = append(data, erc20BalanceOfSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32)...)

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "read token balance (balanceOf)", err)
	}
	if len(out) == 0 {
		return nil, clierr.New(clierr.CodeUnavailable, "empty balanceOf response")
	}
	return new(big.Int).SetBytes(out), nil
}

// SubmitTransfer signs and broadcasts a transfer, then waits for the receipt.
// Native transfers move value directly; token transfers call transfer() on
// the contract.
func (c *EVMClient) SubmitTransfer(ctx context.Context, token Token, to string, amount *big.Int, s signer.Signer) (string, error) {
	if s == nil {
		return "", clierr.New(clierr.CodeSigner, "missing signer")
	}
	if !common.IsHexAddress(to) {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid recipient address %q", to))
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", clierr.New(clierr.CodeInvalidAmount, "transfer amount must be positive")
	}

	var (
		target common.Address
		value  = new(big.Int)
		data   []byte
	)
	if token.IsNative() {
		target = common.HexToAddress(to)
		value.Set(amount)
	} else {
		target = common.HexToAddress(token.Address)
		data = append(data, erc20TransferSelector...)
		data = append(data, common.LeftPadBytes(common.HexToAddress(to).Bytes(), 32)...)
		data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	}

	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeUnavailable, "read chain id", err)
	}
	msg := ethereum.CallMsg{From: s.Address(), To: &target, Value: value, Data: data}
	gasLimit, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeTxFailed, "estimate gas", err)
	}
	gasLimit = gasLimit * 12 / 10

	tipCap, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		tipCap = big.NewInt(2_000_000_000)
	}
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeUnavailable, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	nonce, err := c.eth.PendingNonceAt(ctx, s.Address())
	if err != nil {
		return "", clierr.Wrap(clierr.CodeUnavailable, "fetch nonce", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &target,
		Value:     value,
		Data:      data,
	})
	signed, err := s.SignTx(chainID, tx)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeSigner, "sign transfer", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", clierr.Wrap(clierr.CodeTxFailed, "broadcast transfer", err)
	}

	hash := signed.Hash()
	waitCtx, cancel := context.WithTimeout(ctx, c.waitTimeout)
	defer cancel()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	// Transient polling failures (including not-yet-mined) retry until the
	// timeout; only a mined receipt resolves the wait.
	for {
		receipt, err := c.eth.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return hash.Hex(), nil
			}
			return hash.Hex(), clierr.New(clierr.CodeTxFailed, "transfer reverted on-chain")
		}
		select {
		case <-waitCtx.Done():
			return hash.Hex(), clierr.Wrap(clierr.CodeTxFailed, "timed out waiting for receipt", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// RPCClients dials lazily per chain and caches the connection. The cache is
// mutex-guarded so concurrent swaps share one client per chain.
type RPCClients struct {
	overrides map[string]string

	mu   sync.Mutex
	open map[string]*EVMClient
}

func NewRPCClients(rpcOverrides map[string]string) *RPCClients {
	return &RPCClients{overrides: rpcOverrides, open: make(map[string]*EVMClient)}
}

func (r *RPCClients) For(c Chain) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cl, ok := r.open[c.Slug]; ok {
		return cl, nil
	}
	override := ""
	if r.overrides != nil {
		override = strings.TrimSpace(r.overrides[c.Slug])
	}
	cl, err := Dial(context.Background(), c, override)
	if err != nil {
		return nil, err
	}
	r.open[c.Slug] = cl
	return cl, nil
}

func (r *RPCClients) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cl := range r.open {
		cl.Close()
	}
	r.open = make(map[string]*EVMClient)
}
