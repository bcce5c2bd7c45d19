package swap

import (
	"fmt"
	"time"
)

// Receipt is the rendered view of a swap record. Hashes may still be
// pending-transaction ids when the chain hash is not yet known.
type Receipt struct {
	SwapID    string     `json:"swap_id"`
	Status    Status     `json:"status"`
	Message   string     `json:"message"`
	Source    ReceiptLeg `json:"source"`
	Target    ReceiptLeg `json:"target"`
	Timestamp time.Time  `json:"timestamp"`
}

type ReceiptLeg struct {
	Chain   string `json:"chain"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
	Address string `json:"address"`
	TxHash  string `json:"tx_hash,omitempty"`
}

// RenderReceipt turns a ledger record into a receipt. Pure, no I/O.
func RenderReceipt(r Record) Receipt {
	return Receipt{
		SwapID:    r.SwapID,
		Status:    r.Status,
		Message:   statusMessage(r),
		Timestamp: r.Timestamp,
		Source: ReceiptLeg{
			Chain:   r.SourceChain,
			Token:   r.SourceToken,
			Amount:  r.SourceAmount,
			Address: r.SenderAddress,
			TxHash:  r.SourceTxHash,
		},
		Target: ReceiptLeg{
			Chain:   r.TargetChain,
			Token:   r.TargetToken,
			Amount:  r.TargetAmount,
			Address: r.RecipientAddress,
			TxHash:  r.TargetTxHash,
		},
	}
}

func statusMessage(r Record) string {
	switch r.Status {
	case StatusPending:
		return fmt.Sprintf("Swap awaiting confirmation: %s %s on %s will pay out %s %s on %s once the deposit settles.",
			r.SourceAmount, r.SourceToken, r.SourceChain, r.TargetAmount, r.TargetToken, r.TargetChain)
	case StatusCompleted:
		return fmt.Sprintf("Swap completed: %s %s delivered to %s on %s.",
			r.TargetAmount, r.TargetToken, r.RecipientAddress, r.TargetChain)
	default:
		return fmt.Sprintf("Swap failed: %s %s on %s was not completed. Contact the operator with swap id %s.",
			r.SourceAmount, r.SourceToken, r.SourceChain, r.SwapID)
	}
}
