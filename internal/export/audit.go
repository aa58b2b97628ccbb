package export

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// AuditEntry is one line of the export audit trail. Hash covers the entry
// plus the previous entry's hash, so any tampering with the trail breaks
// the chain.
type AuditEntry struct {
	Actor    string    `json:"actor"`
	Action   string    `json:"action"`
	JobID    string    `json:"jobId"`
	Ts       time.Time `json:"timestamp"`
	Hash     string    `json:"hash"`
	PrevHash string    `json:"prevHash"`
}

type AuditRecorder interface {
	Record(actor, action, jobID string)
	Entries() []AuditEntry
}

// MemoryAuditRecorder keeps the hash-chained trail in memory.
type MemoryAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func NewMemoryAuditRecorder() *MemoryAuditRecorder {
	return &MemoryAuditRecorder{}
}

func (r *MemoryAuditRecorder) Record(actor, action, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := ""
	if n := len(r.entries); n > 0 {
		prev = r.entries[n-1].Hash
	}
	entry := AuditEntry{
		Actor:    actor,
		Action:   action,
		JobID:    jobID,
		Ts:       time.Now().UTC(),
		PrevHash: prev,
	}
	entry.Hash = chainHash(entry)
	r.entries = append(r.entries, entry)
}

func (r *MemoryAuditRecorder) Entries() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func chainHash(e AuditEntry) string {
	sum := sha256.Sum256([]byte(e.Actor + "|" + e.Action + "|" + e.JobID + "|" + e.Ts.Format(time.RFC3339Nano) + "|" + e.PrevHash))
	return hex.EncodeToString(sum[:])
}
