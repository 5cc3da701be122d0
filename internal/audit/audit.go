package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is a single append-only audit entry. Every state-changing operation
// emits exactly one record after its unit of work commits.
type Record struct {
	ID           string
	ActorID      string
	Event        string
	ResourceType string
	ResourceID   string
	Payload      map[string]any
	At           time.Time
}

// Recorder appends audit records. Implementations must never mutate or delete
// prior entries.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// New builds a Record with a fresh id and timestamp.
func New(actorID, event, resourceType, resourceID string, payload map[string]any) Record {
	return Record{
		ID:           uuid.NewString(),
		ActorID:      actorID,
		Event:        event,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Payload:      payload,
		At:           time.Now().UTC(),
	}
}

// MemoryRecorder keeps records in a slice. Used in tests and as the fallback
// when no database is configured.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryRecorder builds an in-memory audit trail.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// Records returns a copy of everything recorded so far.
func (r *MemoryRecorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}
