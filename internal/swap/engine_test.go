package swap

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/avelasquez/swapdesk/internal/chain"
	clierr "github.com/avelasquez/swapdesk/internal/errors"
	"github.com/avelasquez/swapdesk/internal/rates"
)

const testRecipient = "0x3333333333333333333333333333333333333333"

type engineFixture struct {
	clients *fakeClients
	tracker *Tracker
	ledger  *MemoryLedger
	engine  *Engine
}

func newTestEngine(t *testing.T, mutate func(*EngineConfig)) *engineFixture {
	t.Helper()
	clients := newFakeClients()
	ledger := NewMemoryLedger()
	tracker := NewTracker(chain.MustParse("ethereum"), quietLogger())
	table, err := rates.Defaults(big.NewRat(1, 2)) // 0.5%
	if err != nil {
		t.Fatalf("rates.Defaults failed: %v", err)
	}
	cfg := EngineConfig{
		EscrowAddress: testEscrow,
		SenderAddress: testSender,
		Rates:         table,
		Ledger:        ledger,
		Tracker:       tracker,
		Verifier:      NewVerifier(clients, quietLogger()),
		Clients:       clients,
		Logger:        quietLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return &engineFixture{clients: clients, tracker: tracker, ledger: ledger, engine: engine}
}

// fundCrossChainSwap seeds the sender with ethereum USDC and the escrow with
// base USDC so a 5 USDC ethereum -> base swap passes both balance checks.
func (f *engineFixture) fundCrossChainSwap(t *testing.T) {
	t.Helper()
	eth := chain.MustParse("ethereum")
	base := chain.MustParse("base")
	ethToken, _ := chain.FindToken(eth, "USDC")
	baseToken, _ := chain.FindToken(base, "USDC")
	f.clients.client("ethereum").setToken(ethToken.Address, testSender, big.NewInt(10_000_000))
	f.clients.client("base").setToken(baseToken.Address, testEscrow, big.NewInt(100_000_000))
}

func crossChainRequest() SwapRequest {
	return SwapRequest{
		SourceChain: "ethereum",
		SourceToken: "USDC",
		TargetChain: "base",
		TargetToken: "USDC",
		Amount:      "5",
		Recipient:   testRecipient,
	}
}

func TestInitiateSwapHappyPath(t *testing.T) {
	f := newTestEngine(t, nil)
	f.fundCrossChainSwap(t)

	res, err := f.engine.InitiateSwap(context.Background(), crossChainRequest())
	if err != nil {
		t.Fatalf("InitiateSwap failed: %v", err)
	}

	if res.SourceAmount != "5.000000" {
		t.Fatalf("SourceAmount = %q", res.SourceAmount)
	}
	if res.TargetAmount != "4.975000" {
		t.Fatalf("TargetAmount = %q, want fee-adjusted 4.975000", res.TargetAmount)
	}
	if res.Record.Status != StatusPending {
		t.Fatalf("Status = %q, want pending", res.Record.Status)
	}
	if res.Record.SourceTxHash != res.PendingTxID {
		t.Fatalf("record source hash %q != pending tx id %q", res.Record.SourceTxHash, res.PendingTxID)
	}
	if res.Record.RecipientAddress != testRecipient {
		t.Fatalf("RecipientAddress = %q", res.Record.RecipientAddress)
	}
	if f.ledger.Len() != 1 || f.tracker.Len() != 1 {
		t.Fatalf("ledger/tracker entries = %d/%d, want 1/1", f.ledger.Len(), f.tracker.Len())
	}

	// The source leg is an ERC-20 transfer to the token contract, moving the
	// funds to the escrow wallet in calldata.
	tx, err := f.tracker.Get(res.PendingTxID)
	if err != nil {
		t.Fatalf("tracker Get failed: %v", err)
	}
	usdc, _ := chain.FindToken(chain.MustParse("ethereum"), "USDC")
	if !strings.EqualFold(tx.To, usdc.Address) {
		t.Fatalf("transfer target = %q, want USDC contract", tx.To)
	}
	if tx.Value != "0" {
		t.Fatalf("token transfer value = %q, want 0", tx.Value)
	}
	if !strings.HasPrefix(tx.Data, "0xa9059cbb") {
		t.Fatalf("calldata %q missing transfer selector", tx.Data)
	}
	if !strings.Contains(strings.ToLower(tx.Data), strings.ToLower(strings.TrimPrefix(testEscrow, "0x"))) {
		t.Fatalf("calldata %q does not pay the escrow wallet", tx.Data)
	}
	if tx.Metadata.Chain != "ethereum" {
		t.Fatalf("transfer chain = %q", tx.Metadata.Chain)
	}
}

func TestInitiateSwapRecipientDefaultsToSender(t *testing.T) {
	f := newTestEngine(t, nil)
	f.fundCrossChainSwap(t)

	req := crossChainRequest()
	req.Recipient = ""
	res, err := f.engine.InitiateSwap(context.Background(), req)
	if err != nil {
		t.Fatalf("InitiateSwap failed: %v", err)
	}
	if res.Record.RecipientAddress != testSender {
		t.Fatalf("RecipientAddress = %q, want sender", res.Record.RecipientAddress)
	}
}

func TestInitiateSwapInsufficientBalance(t *testing.T) {
	f := newTestEngine(t, nil)
	// Sender has nothing.

	_, err := f.engine.InitiateSwap(context.Background(), crossChainRequest())
	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("error = %v, want InsufficientBalanceError", err)
	}
	if f.ledger.Len() != 0 || f.tracker.Len() != 0 {
		t.Fatalf("failed swap mutated state: ledger %d, tracker %d", f.ledger.Len(), f.tracker.Len())
	}
}

func TestInitiateSwapInsufficientEscrow(t *testing.T) {
	f := newTestEngine(t, nil)
	eth := chain.MustParse("ethereum")
	usdc, _ := chain.FindToken(eth, "USDC")
	f.clients.client("ethereum").setToken(usdc.Address, testSender, big.NewInt(10_000_000))
	// Escrow has no base-chain liquidity.

	_, err := f.engine.InitiateSwap(context.Background(), crossChainRequest())
	var escrowErr *InsufficientEscrowBalanceError
	if !errors.As(err, &escrowErr) {
		t.Fatalf("error = %v, want InsufficientEscrowBalanceError", err)
	}
	if escrowErr.Need != "4.975000" {
		t.Fatalf("escrow Need = %q, want the fee-adjusted target amount", escrowErr.Need)
	}
	if f.ledger.Len() != 0 || f.tracker.Len() != 0 {
		t.Fatalf("failed swap mutated state: ledger %d, tracker %d", f.ledger.Len(), f.tracker.Len())
	}
}

func TestInitiateSwapInvalidAmount(t *testing.T) {
	f := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.MinAmount = "1"
		cfg.MaxAmount = "100"
	})
	f.fundCrossChainSwap(t)

	for _, amount := range []string{"abc", "0", "-3", "0.5", "150"} {
		req := crossChainRequest()
		req.Amount = amount
		_, err := f.engine.InitiateSwap(context.Background(), req)
		var invalid *InvalidAmountError
		if !errors.As(err, &invalid) {
			t.Fatalf("amount %q: error = %v, want InvalidAmountError", amount, err)
		}
	}
	if f.ledger.Len() != 0 || f.tracker.Len() != 0 {
		t.Fatal("invalid amounts mutated state")
	}
}

func TestInitiateSwapUnsupportedPair(t *testing.T) {
	f := newTestEngine(t, nil)
	eth := chain.MustParse("ethereum")
	usdc, _ := chain.FindToken(eth, "USDC")
	f.clients.client("ethereum").setToken(usdc.Address, testSender, big.NewInt(10_000_000))

	// Same token on the same chain has no rate.
	req := SwapRequest{
		SourceChain: "ethereum",
		SourceToken: "USDC",
		TargetChain: "ethereum",
		TargetToken: "USDC",
		Amount:      "5",
	}
	_, err := f.engine.InitiateSwap(context.Background(), req)
	var unsupported *UnsupportedPairError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v, want UnsupportedPairError", err)
	}
	if unsupported.FromChain != "ethereum" || unsupported.ToToken != "USDC" {
		t.Fatalf("pair fields = %+v", unsupported)
	}
}

func TestInitiateSwapSyncPayout(t *testing.T) {
	f := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.SyncPayout = true
		cfg.Signer = fakeSigner{addr: common.HexToAddress(testEscrow)}
	})
	eth := chain.MustParse("ethereum")
	usdc, _ := chain.FindToken(eth, "USDC")
	dai, _ := chain.FindToken(eth, "DAI")
	f.clients.client("ethereum").setToken(usdc.Address, testSender, big.NewInt(10_000_000))
	f.clients.client("ethereum").setToken(dai.Address, testEscrow, mustBase(t, "100", 18))

	req := SwapRequest{
		SourceChain: "ethereum",
		SourceToken: "USDC",
		TargetChain: "ethereum",
		TargetToken: "DAI",
		Amount:      "5",
		Recipient:   testRecipient,
	}
	res, err := f.engine.InitiateSwap(context.Background(), req)
	if err != nil {
		t.Fatalf("InitiateSwap failed: %v", err)
	}
	if res.Record.Status != StatusCompleted {
		t.Fatalf("Status = %q, want completed", res.Record.Status)
	}
	if res.Record.TargetTxHash != "0xfeedbeef" {
		t.Fatalf("TargetTxHash = %q", res.Record.TargetTxHash)
	}

	transfers := f.clients.client("ethereum").transfers
	if len(transfers) != 1 {
		t.Fatalf("recorded %d transfers, want 1", len(transfers))
	}
	if transfers[0].to != testRecipient {
		t.Fatalf("payout to %q, want recipient", transfers[0].to)
	}
	if want := mustBase(t, "4.975", 18); transfers[0].amount.Cmp(want) != 0 {
		t.Fatalf("payout amount = %s, want %s", transfers[0].amount, want)
	}
}

func TestInitiateSwapSyncPayoutWrongNetwork(t *testing.T) {
	f := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.SyncPayout = true
		cfg.ActiveChain = "base"
		cfg.Signer = fakeSigner{addr: common.HexToAddress(testEscrow)}
	})
	eth := chain.MustParse("ethereum")
	usdc, _ := chain.FindToken(eth, "USDC")
	dai, _ := chain.FindToken(eth, "DAI")
	f.clients.client("ethereum").setToken(usdc.Address, testSender, big.NewInt(10_000_000))
	f.clients.client("ethereum").setToken(dai.Address, testEscrow, mustBase(t, "100", 18))

	req := SwapRequest{
		SourceChain: "ethereum",
		SourceToken: "USDC",
		TargetChain: "ethereum",
		TargetToken: "DAI",
		Amount:      "5",
	}
	_, err := f.engine.InitiateSwap(context.Background(), req)
	var wrongNet *WrongNetworkError
	if !errors.As(err, &wrongNet) {
		t.Fatalf("error = %v, want WrongNetworkError", err)
	}
	if wrongNet.Required != "ethereum" || wrongNet.Active != "base" {
		t.Fatalf("network fields = %+v", wrongNet)
	}
	// Validation failures never leave a pending transfer or ledger record.
	if f.ledger.Len() != 0 || f.tracker.Len() != 0 {
		t.Fatalf("wrong-network failure mutated state: ledger %d, tracker %d", f.ledger.Len(), f.tracker.Len())
	}
	if len(f.clients.client("ethereum").transfers) != 0 {
		t.Fatal("wrong-network failure submitted a payout")
	}
}

func TestInitiateSwapCrossChainStaysAsync(t *testing.T) {
	f := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.SyncPayout = true
		cfg.Signer = fakeSigner{addr: common.HexToAddress(testEscrow)}
	})
	f.fundCrossChainSwap(t)

	res, err := f.engine.InitiateSwap(context.Background(), crossChainRequest())
	if err != nil {
		t.Fatalf("InitiateSwap failed: %v", err)
	}
	if res.Record.Status != StatusPending {
		t.Fatalf("cross-chain swap settled synchronously: status %q", res.Record.Status)
	}
	if len(f.clients.client("base").transfers) != 0 {
		t.Fatal("cross-chain swap submitted a payout")
	}
}

func TestSettle(t *testing.T) {
	f := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.Signer = fakeSigner{addr: common.HexToAddress(testEscrow)}
	})
	f.fundCrossChainSwap(t)

	res, err := f.engine.InitiateSwap(context.Background(), crossChainRequest())
	if err != nil {
		t.Fatalf("InitiateSwap failed: %v", err)
	}

	settled, err := f.engine.Settle(context.Background(), res.SwapID)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if settled.Status != StatusCompleted || settled.TargetTxHash != "0xfeedbeef" {
		t.Fatalf("settled record = %+v", settled)
	}

	transfers := f.clients.client("base").transfers
	if len(transfers) != 1 {
		t.Fatalf("recorded %d transfers on base, want 1", len(transfers))
	}
	if transfers[0].to != testRecipient {
		t.Fatalf("payout to %q", transfers[0].to)
	}
	if want := big.NewInt(4_975_000); transfers[0].amount.Cmp(want) != 0 {
		t.Fatalf("payout amount = %s, want %s", transfers[0].amount, want)
	}

	// A settled swap cannot settle twice.
	if _, err := f.engine.Settle(context.Background(), res.SwapID); err == nil {
		t.Fatal("Settle accepted a completed swap")
	}
}

func TestSettleSubmissionFailureMarksSwapFailed(t *testing.T) {
	f := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.Signer = fakeSigner{addr: common.HexToAddress(testEscrow)}
	})
	f.fundCrossChainSwap(t)

	res, err := f.engine.InitiateSwap(context.Background(), crossChainRequest())
	if err != nil {
		t.Fatalf("InitiateSwap failed: %v", err)
	}

	f.clients.client("base").submitErr = clierr.New(clierr.CodeTxFailed, "rpc rejected")
	_, err = f.engine.Settle(context.Background(), res.SwapID)
	var txFailed *TransactionFailedError
	if !errors.As(err, &txFailed) {
		t.Fatalf("error = %v, want TransactionFailedError", err)
	}
	if txFailed.Chain != "base" {
		t.Fatalf("failure chain = %q", txFailed.Chain)
	}

	record, err := f.ledger.FindByID(res.SwapID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if record.Status != StatusFailed {
		t.Fatalf("record status = %q, want failed", record.Status)
	}
}

func TestSettleRequiresSigner(t *testing.T) {
	f := newTestEngine(t, nil)
	f.fundCrossChainSwap(t)

	res, err := f.engine.InitiateSwap(context.Background(), crossChainRequest())
	if err != nil {
		t.Fatalf("InitiateSwap failed: %v", err)
	}
	if _, err := f.engine.Settle(context.Background(), res.SwapID); err == nil {
		t.Fatal("Settle without a signer should fail")
	}
}

func TestCreateEscrowDeposit(t *testing.T) {
	f := newTestEngine(t, nil)
	f.clients.client("ethereum").setNative(testSender, mustBase(t, "1", 18))

	txID, err := f.engine.CreateEscrowDeposit(context.Background(), DepositRequest{
		Chain: "ethereum", Token: "ETH", Amount: "0.5",
	})
	if err != nil {
		t.Fatalf("CreateEscrowDeposit failed: %v", err)
	}

	tx, err := f.tracker.Get(txID)
	if err != nil {
		t.Fatalf("tracker Get failed: %v", err)
	}
	if !strings.EqualFold(tx.To, testEscrow) {
		t.Fatalf("native deposit target = %q, want escrow", tx.To)
	}
	if tx.Value != "500000000000000000" {
		t.Fatalf("deposit value = %q", tx.Value)
	}
	if tx.Data != "" {
		t.Fatalf("native deposit has calldata %q", tx.Data)
	}
}

func TestCreateEscrowDepositWrongNetwork(t *testing.T) {
	f := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.ActiveChain = "base"
	})

	_, err := f.engine.CreateEscrowDeposit(context.Background(), DepositRequest{
		Chain: "ethereum", Token: "ETH", Amount: "0.5",
	})
	var wrongNet *WrongNetworkError
	if !errors.As(err, &wrongNet) {
		t.Fatalf("error = %v, want WrongNetworkError", err)
	}
	if wrongNet.Required != "ethereum" || wrongNet.Active != "base" {
		t.Fatalf("network fields = %+v", wrongNet)
	}
}

func TestReceipt(t *testing.T) {
	f := newTestEngine(t, nil)
	f.fundCrossChainSwap(t)

	var notFound *NotFoundError
	if _, err := f.engine.Receipt(""); !errors.As(err, &notFound) {
		t.Fatalf("Receipt on empty ledger = %v, want NotFoundError", err)
	}

	first, err := f.engine.InitiateSwap(context.Background(), crossChainRequest())
	if err != nil {
		t.Fatalf("InitiateSwap failed: %v", err)
	}
	second, err := f.engine.InitiateSwap(context.Background(), crossChainRequest())
	if err != nil {
		t.Fatalf("InitiateSwap failed: %v", err)
	}

	got, err := f.engine.Receipt("")
	if err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	if got.SwapID != second.SwapID {
		t.Fatalf("default receipt = %s, want most recent %s", got.SwapID, second.SwapID)
	}

	got, err = f.engine.Receipt(first.SwapID)
	if err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	if got.SwapID != first.SwapID {
		t.Fatalf("receipt by id = %s", got.SwapID)
	}
	if got.Target.Amount != "4.975000" {
		t.Fatalf("receipt target amount = %q", got.Target.Amount)
	}
}

func TestReportTxMirrorsHashIntoLedger(t *testing.T) {
	f := newTestEngine(t, nil)
	f.fundCrossChainSwap(t)

	res, err := f.engine.InitiateSwap(context.Background(), crossChainRequest())
	if err != nil {
		t.Fatalf("InitiateSwap failed: %v", err)
	}

	tx, err := f.engine.ReportTx(res.PendingTxID, TxStatusCompleted, "0xdeadbeef")
	if err != nil {
		t.Fatalf("ReportTx failed: %v", err)
	}
	if tx.Status != TxStatusCompleted || tx.Hash != "0xdeadbeef" {
		t.Fatalf("tracker tx = %+v", tx)
	}

	record, err := f.ledger.FindByID(res.SwapID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if record.SourceTxHash != "0xdeadbeef" {
		t.Fatalf("ledger source hash = %q, want the broadcast hash", record.SourceTxHash)
	}
	// Reporting the source leg never advances the swap itself.
	if record.Status != StatusPending {
		t.Fatalf("record status = %q, want pending", record.Status)
	}
}

func TestNewEngineValidation(t *testing.T) {
	clients := newFakeClients()
	table, _ := rates.Defaults(big.NewRat(1, 2))
	base := EngineConfig{
		EscrowAddress: testEscrow,
		SenderAddress: testSender,
		Rates:         table,
		Ledger:        NewMemoryLedger(),
		Tracker:       NewTracker(chain.MustParse("ethereum"), quietLogger()),
		Verifier:      NewVerifier(clients, quietLogger()),
		Clients:       clients,
	}

	missing := base
	missing.Ledger = nil
	if _, err := NewEngine(missing); err == nil {
		t.Fatal("NewEngine accepted a nil ledger")
	}

	badEscrow := base
	badEscrow.EscrowAddress = "not-an-address"
	if _, err := NewEngine(badEscrow); err == nil {
		t.Fatal("NewEngine accepted a malformed escrow address")
	}
}

func mustBase(t *testing.T, amount string, decimals int) *big.Int {
	t.Helper()
	n, err := chain.ToBaseUnits(amount, decimals)
	if err != nil {
		t.Fatalf("ToBaseUnits(%s, %d) failed: %v", amount, decimals, err)
	}
	return n
}
