package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry represents an audit log entry.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	MemberID      int64
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// Trail reads back the entries recorded against one member, newest first.
type Trail interface {
	ListByMember(ctx context.Context, memberID int64, limit int) ([]Entry, error)
}

// Store is a Logger that can also read its trail.
type Store interface {
	Logger
	Trail
}

// DefaultTrailLimit caps trail reads without an explicit limit.
const DefaultTrailLimit = 100

func trailLimit(limit int) int {
	if limit <= 0 || limit > DefaultTrailLimit {
		return DefaultTrailLimit
	}
	return limit
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (e *Entry) fill() {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.PayloadDigest == "" {
		e.PayloadDigest = DigestJSON(e.Metadata)
	}
}

var _ Store = (*MemoryLog)(nil)

// MemoryLog keeps entries in process, for demo mode and tests.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLog constructs an empty log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Log appends an entry.
func (l *MemoryLog) Log(_ context.Context, entry Entry) error {
	entry.fill()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of the recorded entries.
func (l *MemoryLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ListByMember returns the newest entries for memberID.
func (l *MemoryLog) ListByMember(_ context.Context, memberID int64, limit int) ([]Entry, error) {
	limit = trailLimit(limit)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.entries[i].MemberID == memberID {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}
