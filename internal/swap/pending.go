package swap

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avelasquez/swapdesk/internal/chain"
	clierr "github.com/avelasquez/swapdesk/internal/errors"
)

// Tracker records unsigned transfer intents awaiting external wallet
// signature. It never broadcasts anything itself; the external signer
// reports outcomes through UpdateTxStatus.
type Tracker struct {
	mu           sync.Mutex
	txs          []PendingTransaction
	defaultChain chain.Chain
	log          *logrus.Logger
	now          func() time.Time
}

// CreateTxInput carries the raw transfer intent. Chain is optional; when
// empty the tracker infers it from the destination address.
type CreateTxInput struct {
	To            string
	Value         string
	Data          string
	WalletAddress string
	Chain         string
	Source        TxSource
}

func NewTracker(defaultChain chain.Chain, log *logrus.Logger) *Tracker {
	if log == nil {
		log = logrus.New()
	}
	return &Tracker{defaultChain: defaultChain, log: log, now: time.Now}
}

// Create normalizes and appends a transfer intent in pending status and
// returns its id. The caller gets the id immediately; signing and broadcast
// happen elsewhere.
func (t *Tracker) Create(in CreateTxInput) (string, error) {
	if strings.TrimSpace(in.To) == "" {
		return "", clierr.New(clierr.CodeUsage, "transfer destination is required")
	}
	value, err := normalizeValue(in.Value)
	if err != nil {
		return "", err
	}
	data, dataType := normalizeData(in.Data)

	chainSlug := strings.TrimSpace(in.Chain)
	if chainSlug == "" {
		if inferred, ok := chain.InferChain(in.To); ok {
			chainSlug = inferred.Slug
		} else {
			chainSlug = t.defaultChain.Slug
			t.log.WithFields(logrus.Fields{
				"to":    in.To,
				"chain": chainSlug,
			}).Warn("could not infer chain from destination address, using default")
		}
	}

	source := in.Source
	if source == "" {
		source = TxSourceFrontendWallet
	}

	tx := PendingTransaction{
		ID:     NewTxID(),
		To:     in.To,
		Value:  value,
		Data:   data,
		Status: TxStatusPending,
		Metadata: TxMetadata{
			Source:            source,
			WalletAddress:     in.WalletAddress,
			RequiresSignature: source == TxSourceFrontendWallet,
			DataType:          dataType,
			Chain:             chainSlug,
		},
		CreatedAt: t.now(),
	}

	t.mu.Lock()
	t.txs = append(t.txs, tx)
	t.mu.Unlock()
	return tx.ID, nil
}

// Get returns a pending transaction by id.
func (t *Tracker) Get(id string) (PendingTransaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tx := range t.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return PendingTransaction{}, &NotFoundError{Kind: "pending transaction", ID: id}
}

// UpdateTxStatus is the external signer's report path and the only mutation
// of a tracked transaction. Hash is recorded once the transfer is broadcast.
func (t *Tracker) UpdateTxStatus(id string, status TxStatus, hash string) (PendingTransaction, error) {
	switch status {
	case TxStatusPending, TxStatusSigned, TxStatusRejected, TxStatusCompleted:
	default:
		return PendingTransaction{}, clierr.New(clierr.CodeUsage, "status must be one of pending|signed|rejected|completed")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, tx := range t.txs {
		if tx.ID != id {
			continue
		}
		tx.Status = status
		if strings.TrimSpace(hash) != "" {
			tx.Hash = strings.TrimSpace(hash)
		}
		t.txs[i] = tx
		return tx, nil
	}
	return PendingTransaction{}, &NotFoundError{Kind: "pending transaction", ID: id}
}

// Len reports the number of tracked transactions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.txs)
}

// normalizeValue scales decimal strings to 18-decimal base units for native
// transfers, passes integer strings through unchanged, and leaves
// hex-prefixed values as-is.
func normalizeValue(v string) (string, error) {
	clean := strings.TrimSpace(v)
	if clean == "" {
		return "0", nil
	}
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		return clean, nil
	}
	if strings.Contains(clean, ".") {
		n, err := chain.ToBaseUnits(clean, 18)
		if err != nil {
			return "", err
		}
		return n.String(), nil
	}
	n, ok := new(big.Int).SetString(clean, 10)
	if !ok || n.Sign() < 0 {
		return "", clierr.New(clierr.CodeInvalidAmount, "transfer value must be a non-negative decimal, integer, or hex string")
	}
	return clean, nil
}

func normalizeData(d string) (string, string) {
	clean := strings.TrimSpace(d)
	if clean == "" {
		return "", "native-transfer"
	}
	if !strings.HasPrefix(clean, "0x") {
		clean = "0x" + clean
	}
	return clean, "contract-call"
}
