// Package swap implements the custodial cross-chain swap engine: balance
// verification, pending-transfer tracking, the swap ledger, and the
// orchestrating state machine.
package swap

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusSigned    TxStatus = "signed"
	TxStatusRejected  TxStatus = "rejected"
	TxStatusCompleted TxStatus = "completed"
)

// TxSource records which wallet is expected to sign a pending transfer.
type TxSource string

const (
	TxSourceFrontendWallet TxSource = "frontend-wallet"
	TxSourceBackendWallet  TxSource = "backend-wallet"
)

// Record is one cross-chain swap attempt. Amounts are decimal strings in the
// token's full display precision; TargetAmount is already fee-adjusted.
// SourceTxHash starts out as the pending-transaction id and is replaced by
// the on-chain hash once the external signer reports it.
type Record struct {
	SwapID           string    `json:"swap_id"`
	SourceChain      string    `json:"source_chain"`
	TargetChain      string    `json:"target_chain"`
	SourceToken      string    `json:"source_token"`
	TargetToken      string    `json:"target_token"`
	SourceAmount     string    `json:"source_amount"`
	TargetAmount     string    `json:"target_amount"`
	SenderAddress    string    `json:"sender_address"`
	RecipientAddress string    `json:"recipient_address"`
	SourceTxHash     string    `json:"source_tx_hash"`
	TargetTxHash     string    `json:"target_tx_hash,omitempty"`
	Status           Status    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
}

// PendingTransaction is an unsigned transfer intent awaiting an external
// wallet signature. Value is normalized to integer base units at creation.
type PendingTransaction struct {
	ID        string     `json:"id"`
	To        string     `json:"to"`
	Value     string     `json:"value"`
	Data      string     `json:"data,omitempty"`
	Status    TxStatus   `json:"status"`
	Hash      string     `json:"hash,omitempty"`
	Metadata  TxMetadata `json:"metadata"`
	CreatedAt time.Time  `json:"created_at"`
}

type TxMetadata struct {
	Source            TxSource `json:"source"`
	WalletAddress     string   `json:"wallet_address,omitempty"`
	RequiresSignature bool     `json:"requires_signature"`
	DataType          string   `json:"data_type"`
	Chain             string   `json:"chain"`
}

// NewSwapID generates a process-unique, time-prefixed opaque id.
func NewSwapID() string {
	return newID("swap")
}

// NewTxID generates an id for a pending transaction.
func NewTxID() string {
	return newID("tx")
}

func newID(prefix string) string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), hex.EncodeToString(b))
}
