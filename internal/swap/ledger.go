package swap

import (
	"strings"
	"sync"
)

// Ledger is the append-only record store of swap attempts. Records move
// through status updates only; they are never deleted. SwapID uniqueness is
// the id generator's responsibility, not the ledger's.
type Ledger interface {
	Append(r Record) (Record, error)
	FindByID(swapID string) (Record, error)
	MostRecent() (Record, error)
	// UpdateStatus merges the provided fields into the stored record and
	// returns the result. Empty hashes leave the stored values untouched.
	UpdateStatus(swapID string, status Status, sourceTxHash, targetTxHash string) (Record, error)
	List(status Status, limit int) ([]Record, error)
}

// MemoryLedger keeps records in process memory. All mutations hold a mutex
// so concurrent swaps serialize their appends.
type MemoryLedger struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Append(r Record) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
	return r, nil
}

func (l *MemoryLedger) FindByID(swapID string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.SwapID == swapID {
			return r, nil
		}
	}
	return Record{}, &NotFoundError{Kind: "swap", ID: swapID}
}

func (l *MemoryLedger) MostRecent() (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.records) == 0 {
		return Record{}, &NotFoundError{Kind: "swap"}
	}
	return l.records[len(l.records)-1], nil
}

func (l *MemoryLedger) UpdateStatus(swapID string, status Status, sourceTxHash, targetTxHash string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, r := range l.records {
		if r.SwapID != swapID {
			continue
		}
		updated := r
		updated.Status = status
		if strings.TrimSpace(sourceTxHash) != "" {
			updated.SourceTxHash = strings.TrimSpace(sourceTxHash)
		}
		if strings.TrimSpace(targetTxHash) != "" {
			updated.TargetTxHash = strings.TrimSpace(targetTxHash)
		}
		l.records[i] = updated
		return updated, nil
	}
	return Record{}, &NotFoundError{Kind: "swap", ID: swapID}
}

func (l *MemoryLedger) List(status Status, limit int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	out := make([]Record, 0, limit)
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		if status != "" && l.records[i].Status != status {
			continue
		}
		out = append(out, l.records[i])
	}
	return out, nil
}

// Len reports the number of ledger entries.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
