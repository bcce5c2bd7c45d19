package swap

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func sampleRecord(swapID string, status Status) Record {
	return Record{
		SwapID:           swapID,
		SourceChain:      "ethereum",
		TargetChain:      "base",
		SourceToken:      "USDC",
		TargetToken:      "USDC",
		SourceAmount:     "5.000000",
		TargetAmount:     "4.975000",
		SenderAddress:    "0x2222222222222222222222222222222222222222",
		RecipientAddress: "0x3333333333333333333333333333333333333333",
		SourceTxHash:     "tx_1",
		Status:           status,
		Timestamp:        time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemoryLedgerAppendAndFind(t *testing.T) {
	l := NewMemoryLedger()
	want := sampleRecord("swap_1", StatusPending)
	if _, err := l.Append(want); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := l.FindByID("swap_1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got != want {
		t.Fatalf("FindByID = %+v, want %+v", got, want)
	}

	var notFound *NotFoundError
	if _, err := l.FindByID("swap_nope"); !errors.As(err, &notFound) {
		t.Fatalf("FindByID error = %v, want NotFoundError", err)
	}
}

func TestMemoryLedgerMostRecent(t *testing.T) {
	l := NewMemoryLedger()
	var notFound *NotFoundError
	if _, err := l.MostRecent(); !errors.As(err, &notFound) {
		t.Fatalf("MostRecent on empty ledger = %v, want NotFoundError", err)
	}

	_, _ = l.Append(sampleRecord("swap_1", StatusPending))
	_, _ = l.Append(sampleRecord("swap_2", StatusPending))
	got, err := l.MostRecent()
	if err != nil {
		t.Fatalf("MostRecent failed: %v", err)
	}
	if got.SwapID != "swap_2" {
		t.Fatalf("MostRecent = %s, want swap_2", got.SwapID)
	}
}

func TestMemoryLedgerUpdateStatus(t *testing.T) {
	l := NewMemoryLedger()
	_, _ = l.Append(sampleRecord("swap_1", StatusPending))

	updated, err := l.UpdateStatus("swap_1", StatusCompleted, "", "0xtarget")
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if updated.Status != StatusCompleted {
		t.Fatalf("Status = %q", updated.Status)
	}
	if updated.TargetTxHash != "0xtarget" {
		t.Fatalf("TargetTxHash = %q", updated.TargetTxHash)
	}
	// Empty source hash must not clobber the stored one.
	if updated.SourceTxHash != "tx_1" {
		t.Fatalf("SourceTxHash = %q, want tx_1", updated.SourceTxHash)
	}

	stored, _ := l.FindByID("swap_1")
	if stored != updated {
		t.Fatal("UpdateStatus result diverges from stored record")
	}

	var notFound *NotFoundError
	if _, err := l.UpdateStatus("swap_nope", StatusFailed, "", ""); !errors.As(err, &notFound) {
		t.Fatalf("UpdateStatus error = %v, want NotFoundError", err)
	}
}

func TestMemoryLedgerList(t *testing.T) {
	l := NewMemoryLedger()
	for i := 0; i < 5; i++ {
		status := StatusPending
		if i%2 == 1 {
			status = StatusCompleted
		}
		_, _ = l.Append(sampleRecord(fmt.Sprintf("swap_%d", i), status))
	}

	all, err := l.List("", 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("List returned %d records, want 5", len(all))
	}
	if all[0].SwapID != "swap_4" {
		t.Fatalf("List not newest-first: got %s", all[0].SwapID)
	}

	completed, err := l.List(StatusCompleted, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("filtered List returned %d records, want 2", len(completed))
	}
	for _, r := range completed {
		if r.Status != StatusCompleted {
			t.Fatalf("filtered List leaked status %q", r.Status)
		}
	}

	limited, err := l.List("", 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited List returned %d records, want 2", len(limited))
	}
}

func TestNewSwapIDUniqueUnderConcurrentAppends(t *testing.T) {
	const (
		workers      = 10
		idsPerWorker = 50
	)
	l := NewMemoryLedger()

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < idsPerWorker; i++ {
				r := sampleRecord(NewSwapID(), StatusPending)
				if _, err := l.Append(r); err != nil {
					t.Errorf("Append failed: %v", err)
					return
				}
				mu.Lock()
				if seen[r.SwapID] {
					t.Errorf("duplicate swap id %s", r.SwapID)
				}
				seen[r.SwapID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if l.Len() != workers*idsPerWorker {
		t.Fatalf("ledger has %d records, want %d", l.Len(), workers*idsPerWorker)
	}
	if len(seen) != workers*idsPerWorker {
		t.Fatalf("generated %d unique ids, want %d", len(seen), workers*idsPerWorker)
	}
}
