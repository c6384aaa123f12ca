package attestation

import (
	"fmt"
	"sync"
	"time"

	"github.com/sealedreview/reviewpipeline/pkg/canonhash"
)

// GenesisHash seeds the chain: the previous-ledger-hash of the very
// first entry ever appended.
const GenesisHash = "GENESIS"

// Entry is one link in the hash-chained ledger.
type Entry struct {
	ReviewID       string    `json:"review_id"`
	ProofHash      string    `json:"proof_hash"`
	PreviousHash   string    `json:"previous_hash"`
	LedgerHash     string    `json:"ledger_hash"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// computeLedgerHash hashes prev|proof|reviewID|recordedAt, the
// hash-chain convention this package is grounded on.
func computeLedgerHash(prev, proof, reviewID string, recordedAt time.Time) string {
	payload := prev + "|" + proof + "|" + reviewID + "|" + recordedAt.UTC().Format(time.RFC3339Nano)
	return canonhash.HashBytes([]byte(payload))
}

// BrokenChainError reports where hash-chain verification first failed.
type BrokenChainError struct {
	Index    int
	ReviewID string
	Reason   string
}

func (e *BrokenChainError) Error() string {
	return fmt.Sprintf("attestation: ledger broken at index %d (review %s): %s", e.Index, e.ReviewID, e.Reason)
}

// Ledger is the in-process, append-only hash chain of execution
// proofs. It is intentionally append-only and single-writer (guarded
// by a mutex) rather than concurrent: spec.md §4.13 requires every
// entry to be chained strictly to the one before it.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewLedger builds an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append seals proofHash for reviewID onto the chain and returns the
// new entry (including the ledger hash and the previous hash it
// chained against).
func (l *Ledger) Append(reviewID, proofHash string, recordedAt time.Time) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := GenesisHash
	if n := len(l.entries); n > 0 {
		prev = l.entries[n-1].LedgerHash
	}

	entry := Entry{
		ReviewID:     reviewID,
		ProofHash:    proofHash,
		PreviousHash: prev,
		RecordedAt:   recordedAt,
	}
	entry.LedgerHash = computeLedgerHash(prev, proofHash, reviewID, recordedAt)
	l.entries = append(l.entries, entry)
	return entry
}

// Len reports how many entries the ledger holds.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the full chain, oldest first.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// VerifyChain recomputes every ledger hash in order and confirms each
// entry's previous_hash matches its predecessor's ledger_hash,
// fail-closed on the first mismatch found.
func VerifyChain(entries []Entry) error {
	prev := GenesisHash
	for i, e := range entries {
		if e.PreviousHash != prev {
			return &BrokenChainError{Index: i, ReviewID: e.ReviewID, Reason: "previous_hash does not match preceding entry"}
		}
		recomputed := computeLedgerHash(e.PreviousHash, e.ProofHash, e.ReviewID, e.RecordedAt)
		if recomputed != e.LedgerHash {
			return &BrokenChainError{Index: i, ReviewID: e.ReviewID, Reason: "ledger_hash does not match recomputed hash"}
		}
		prev = e.LedgerHash
	}
	return nil
}
