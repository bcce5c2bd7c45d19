package swap

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/avelasquez/swapdesk/internal/chain"
	clierr "github.com/avelasquez/swapdesk/internal/errors"
	"github.com/avelasquez/swapdesk/internal/rates"
	"github.com/avelasquez/swapdesk/internal/signer"
)

// EngineConfig wires the orchestrator's collaborators and the escrow wallet.
// The escrow key (Signer) is only required for the synchronous payout
// variant and for administrative settlement.
type EngineConfig struct {
	EscrowAddress string
	SenderAddress string
	// ActiveChain is the wallet session's network, enforced for
	// single-chain flows only.
	ActiveChain string
	// SyncPayout pays the target leg immediately after the escrow balance
	// check when source and target chain are the same and a signer is
	// loaded. Cross-chain swaps always settle asynchronously.
	SyncPayout bool
	// MinAmount/MaxAmount optionally bound the source amount, as decimal
	// strings in the source token's units.
	MinAmount string
	MaxAmount string

	Rates    *rates.Table
	Ledger   Ledger
	Tracker  *Tracker
	Verifier *Verifier
	Clients  chain.Clients
	Signer   signer.Signer
	Logger   *logrus.Logger
}

// Engine composes the rate table, balance verifier, pending-transaction
// tracker, and swap ledger into the end-to-end custodial swap workflow.
// Balance checks happen before any mutation, so a failure never leaves a
// half-committed pending transaction or ledger entry.
type Engine struct {
	cfg EngineConfig
	log *logrus.Logger
	now func() time.Time
}

type SwapRequest struct {
	SourceChain string
	SourceToken string
	TargetChain string
	TargetToken string
	Amount      string
	// Recipient defaults to the sender when empty.
	Recipient string
}

type SwapResult struct {
	SwapID       string `json:"swap_id"`
	PendingTxID  string `json:"pending_tx_id"`
	SourceAmount string `json:"source_amount"`
	TargetAmount string `json:"target_amount"`
	Summary      string `json:"summary"`
	Record       Record `json:"record"`
}

type DepositRequest struct {
	Chain  string
	Token  string
	Amount string
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Rates == nil || cfg.Ledger == nil || cfg.Tracker == nil || cfg.Verifier == nil {
		return nil, clierr.New(clierr.CodeInternal, "engine is missing a collaborator")
	}
	if !common.IsHexAddress(cfg.EscrowAddress) {
		return nil, clierr.New(clierr.CodeUsage, "escrow wallet address is not configured")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Engine{cfg: cfg, log: cfg.Logger, now: time.Now}, nil
}

// InitiateSwap runs the swap state machine: validate, check the sender's
// source-chain balance, convert through the rate table, check the escrow's
// target-chain balance, create the source-leg transfer intent, and append a
// pending ledger record.
func (e *Engine) InitiateSwap(ctx context.Context, req SwapRequest) (SwapResult, error) {
	sourceChain, err := chain.Parse(req.SourceChain)
	if err != nil {
		return SwapResult{}, err
	}
	targetChain, err := chain.Parse(req.TargetChain)
	if err != nil {
		return SwapResult{}, err
	}
	sourceToken, err := chain.FindToken(sourceChain, req.SourceToken)
	if err != nil {
		return SwapResult{}, err
	}
	targetToken, err := chain.FindToken(targetChain, req.TargetToken)
	if err != nil {
		return SwapResult{}, err
	}

	amount, err := e.validateAmount(req.Amount, sourceToken)
	if err != nil {
		return SwapResult{}, err
	}

	sender := strings.TrimSpace(e.cfg.SenderAddress)
	if sender == "" {
		return SwapResult{}, clierr.New(clierr.CodeUsage, "no active wallet: configure the sender address")
	}
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		recipient = sender
	}

	// A same-chain swap that will pay out synchronously is a single-chain
	// flow, so the active-network check belongs to validation: it must fail
	// before any balance check or mutation.
	syncPayout := e.cfg.SyncPayout && sourceChain.Slug == targetChain.Slug && e.cfg.Signer != nil
	if syncPayout {
		if err := e.requireActiveChain(sourceChain); err != nil {
			return SwapResult{}, err
		}
	}

	if err := e.cfg.Verifier.Require(ctx, sourceChain, sourceToken, sender, amount); err != nil {
		return SwapResult{}, err
	}

	pair := rates.Pair{
		FromChain:  sourceChain.Slug,
		FromSymbol: sourceToken.Symbol,
		ToChain:    targetChain.Slug,
		ToSymbol:   targetToken.Symbol,
	}
	targetAmount, err := e.cfg.Rates.Convert(amount, sourceToken, targetToken, pair)
	if err != nil {
		if cli, ok := clierr.As(err); ok && cli.Code == clierr.CodeUnsupportedPair {
			return SwapResult{}, &UnsupportedPairError{
				FromChain: sourceChain.Slug,
				FromToken: sourceToken.Symbol,
				ToChain:   targetChain.Slug,
				ToToken:   targetToken.Symbol,
			}
		}
		return SwapResult{}, err
	}

	if err := e.cfg.Verifier.RequireEscrow(ctx, targetChain, targetToken, e.cfg.EscrowAddress, targetAmount); err != nil {
		return SwapResult{}, err
	}

	txID, err := e.createEscrowTransfer(sourceChain, sourceToken, sender, amount)
	if err != nil {
		return SwapResult{}, err
	}

	record := Record{
		SwapID:           NewSwapID(),
		SourceChain:      sourceChain.Slug,
		TargetChain:      targetChain.Slug,
		SourceToken:      sourceToken.Symbol,
		TargetToken:      targetToken.Symbol,
		SourceAmount:     chain.FormatUnits(amount, sourceToken.Decimals),
		TargetAmount:     chain.FormatUnits(targetAmount, targetToken.Decimals),
		SenderAddress:    sender,
		RecipientAddress: recipient,
		SourceTxHash:     txID,
		Status:           StatusPending,
		Timestamp:        e.now().UTC(),
	}
	record, err = e.cfg.Ledger.Append(record)
	if err != nil {
		return SwapResult{}, clierr.Wrap(clierr.CodeInternal, "append swap record", err)
	}

	e.log.WithFields(logrus.Fields{
		"swap_id":       record.SwapID,
		"source":        fmt.Sprintf("%s/%s", record.SourceChain, record.SourceToken),
		"target":        fmt.Sprintf("%s/%s", record.TargetChain, record.TargetToken),
		"source_amount": record.SourceAmount,
		"target_amount": record.TargetAmount,
	}).Info("swap recorded")

	if syncPayout {
		record, err = e.settle(ctx, record, targetChain, targetToken, targetAmount)
		if err != nil {
			return SwapResult{}, err
		}
	}

	return SwapResult{
		SwapID:       record.SwapID,
		PendingTxID:  txID,
		SourceAmount: record.SourceAmount,
		TargetAmount: record.TargetAmount,
		Summary:      e.summary(record),
		Record:       record,
	}, nil
}

// CreateEscrowDeposit is the liquidity-provision entry point: validate,
// check the sender balance, and create a transfer intent to the escrow
// wallet. No target-chain leg.
func (e *Engine) CreateEscrowDeposit(ctx context.Context, req DepositRequest) (string, error) {
	c, err := chain.Parse(req.Chain)
	if err != nil {
		return "", err
	}
	if err := e.requireActiveChain(c); err != nil {
		return "", err
	}
	token, err := chain.FindToken(c, req.Token)
	if err != nil {
		return "", err
	}
	amount, err := e.validateAmount(req.Amount, token)
	if err != nil {
		return "", err
	}
	sender := strings.TrimSpace(e.cfg.SenderAddress)
	if sender == "" {
		return "", clierr.New(clierr.CodeUsage, "no active wallet: configure the sender address")
	}
	if err := e.cfg.Verifier.Require(ctx, c, token, sender, amount); err != nil {
		return "", err
	}
	return e.createEscrowTransfer(c, token, sender, amount)
}

// Settle pays the target leg of a pending swap from the escrow wallet and
// moves the record to completed, or failed when submission fails. This is
// the explicit second state-machine step for asynchronous settlement.
func (e *Engine) Settle(ctx context.Context, swapID string) (Record, error) {
	record, err := e.cfg.Ledger.FindByID(swapID)
	if err != nil {
		return Record{}, err
	}
	if record.Status != StatusPending {
		return Record{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("swap %s is already %s", swapID, record.Status))
	}
	targetChain, err := chain.Parse(record.TargetChain)
	if err != nil {
		return Record{}, err
	}
	targetToken, err := chain.FindToken(targetChain, record.TargetToken)
	if err != nil {
		return Record{}, err
	}
	targetAmount, err := chain.ToBaseUnits(record.TargetAmount, targetToken.Decimals)
	if err != nil {
		return Record{}, err
	}
	return e.settle(ctx, record, targetChain, targetToken, targetAmount)
}

func (e *Engine) settle(ctx context.Context, record Record, targetChain chain.Chain, targetToken chain.Token, targetAmount *big.Int) (Record, error) {
	if e.cfg.Signer == nil {
		return Record{}, clierr.New(clierr.CodeSigner, "settlement requires the escrow private key")
	}
	client, err := e.cfg.Clients.For(targetChain)
	if err != nil {
		return Record{}, err
	}
	hash, err := client.SubmitTransfer(ctx, targetToken, record.RecipientAddress, targetAmount, e.cfg.Signer)
	if err != nil {
		if _, updateErr := e.cfg.Ledger.UpdateStatus(record.SwapID, StatusFailed, "", hash); updateErr != nil {
			e.log.WithField("swap_id", record.SwapID).WithError(updateErr).Error("mark swap failed")
		}
		return Record{}, &TransactionFailedError{Chain: targetChain.Slug, Cause: err}
	}
	updated, err := e.cfg.Ledger.UpdateStatus(record.SwapID, StatusCompleted, "", hash)
	if err != nil {
		return Record{}, clierr.Wrap(clierr.CodeInternal, "update swap record", err)
	}
	e.log.WithFields(logrus.Fields{
		"swap_id":        updated.SwapID,
		"target_tx_hash": hash,
	}).Info("swap settled")
	return updated, nil
}

// Receipt renders a swap by id, or the most recent swap when id is empty.
func (e *Engine) Receipt(swapID string) (Receipt, error) {
	var (
		record Record
		err    error
	)
	if strings.TrimSpace(swapID) == "" {
		record, err = e.cfg.Ledger.MostRecent()
	} else {
		record, err = e.cfg.Ledger.FindByID(strings.TrimSpace(swapID))
	}
	if err != nil {
		return Receipt{}, err
	}
	return RenderReceipt(record), nil
}

// ReportTx forwards the external signer's outcome to the tracker and, when
// the transfer belongs to a swap's source leg, mirrors the broadcast hash
// into the ledger record.
func (e *Engine) ReportTx(txID string, status TxStatus, hash string) (PendingTransaction, error) {
	tx, err := e.cfg.Tracker.UpdateTxStatus(txID, status, hash)
	if err != nil {
		return PendingTransaction{}, err
	}
	if strings.TrimSpace(hash) == "" {
		return tx, nil
	}
	records, err := e.cfg.Ledger.List("", 100)
	if err != nil {
		return tx, nil
	}
	for _, r := range records {
		if r.SourceTxHash == txID {
			if _, err := e.cfg.Ledger.UpdateStatus(r.SwapID, r.Status, hash, ""); err != nil {
				e.log.WithField("swap_id", r.SwapID).WithError(err).Warn("mirror source tx hash")
			}
			break
		}
	}
	return tx, nil
}

func (e *Engine) validateAmount(raw string, token chain.Token) (*big.Int, error) {
	amount, err := chain.ToBaseUnits(raw, token.Decimals)
	if err != nil || amount.Sign() <= 0 {
		return nil, &InvalidAmountError{Amount: raw, Min: e.cfg.MinAmount, Max: e.cfg.MaxAmount, Token: token.Symbol}
	}
	if strings.TrimSpace(e.cfg.MinAmount) != "" {
		lower, err := chain.ToBaseUnits(e.cfg.MinAmount, token.Decimals)
		if err == nil && amount.Cmp(lower) < 0 {
			return nil, &InvalidAmountError{Amount: raw, Min: e.cfg.MinAmount, Max: e.cfg.MaxAmount, Token: token.Symbol}
		}
	}
	if strings.TrimSpace(e.cfg.MaxAmount) != "" {
		upper, err := chain.ToBaseUnits(e.cfg.MaxAmount, token.Decimals)
		if err == nil && amount.Cmp(upper) > 0 {
			return nil, &InvalidAmountError{Amount: raw, Min: e.cfg.MinAmount, Max: e.cfg.MaxAmount, Token: token.Symbol}
		}
	}
	return amount, nil
}

// createEscrowTransfer records the user-signed source leg: native value
// moves directly to the escrow wallet, token transfers call the contract.
func (e *Engine) createEscrowTransfer(c chain.Chain, token chain.Token, sender string, amount *big.Int) (string, error) {
	in := CreateTxInput{
		WalletAddress: sender,
		Chain:         c.Slug,
		Source:        TxSourceFrontendWallet,
	}
	if token.IsNative() {
		in.To = e.cfg.EscrowAddress
		in.Value = amount.String()
	} else {
		in.To = token.Address
		in.Value = "0"
		in.Data = erc20TransferData(e.cfg.EscrowAddress, amount)
	}
	return e.cfg.Tracker.Create(in)
}

func (e *Engine) requireActiveChain(c chain.Chain) error {
	active := strings.TrimSpace(e.cfg.ActiveChain)
	if active == "" || active == c.Slug {
		return nil
	}
	return &WrongNetworkError{Required: c.Slug, Active: active}
}

func (e *Engine) summary(r Record) string {
	fee := e.cfg.Rates.FeePct()
	base := fmt.Sprintf("Swapping %s %s on %s for %s %s on %s (fee %s%%).",
		r.SourceAmount, r.SourceToken, r.SourceChain,
		r.TargetAmount, r.TargetToken, r.TargetChain,
		fee.FloatString(2))
	if r.Status == StatusCompleted {
		return base + fmt.Sprintf(" Paid out to %s.", r.RecipientAddress)
	}
	return base + fmt.Sprintf(" Sign pending transaction %s to fund the escrow; the %s payout is asynchronous.",
		r.SourceTxHash, r.TargetChain)
}

func erc20TransferData(to string, amount *big.Int) string {
	data := make([]byte, 0, 68)
	data = append(data, 0xa9, 0x05, 0x9c, 0xbb)
	data = append(data, common.LeftPadBytes(common.HexToAddress(to).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return "0x" + common.Bytes2Hex(data)
}
