package audit

import (
	"context"
	"database/sql"
	"errors"
)

var _ Store = (*Repository)(nil)

// Repository persists audit entries in audit_logs.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

func (r *Repository) ready() error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	return nil
}

// Log inserts one entry, filling id, timestamp and digest when empty.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if err := r.ready(); err != nil {
		return err
	}
	entry.fill()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_logs (
	id, actor, role, action, resource_type, resource_id, member_id,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, entry.ID, entry.Actor, entry.Role, entry.Action, entry.ResourceType, entry.ResourceID,
		sql.NullInt64{Int64: entry.MemberID, Valid: entry.MemberID != 0},
		nullJSON(entry.Metadata), entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}

// ListByMember returns the newest entries recorded against memberID.
func (r *Repository) ListByMember(ctx context.Context, memberID int64, limit int) ([]Entry, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, actor, role, action, resource_type, resource_id, COALESCE(member_id, 0),
	COALESCE(metadata::text, ''), payload_digest, ip, user_agent, created_at
FROM audit_logs
WHERE member_id = $1
ORDER BY created_at DESC, id
LIMIT $2`, memberID, trailLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			entry    Entry
			metadata string
		)
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Role, &entry.Action, &entry.ResourceType, &entry.ResourceID,
			&entry.MemberID, &metadata, &entry.PayloadDigest, &entry.IP, &entry.UserAgent, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if metadata != "" {
			entry.Metadata = []byte(metadata)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func nullJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
