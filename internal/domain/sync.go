package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SyncRecord pairs a local session snapshot with the last-known remote
// version. Dirty means local changes have not been pushed yet.
type SyncRecord struct {
	SessionID     uuid.UUID  `json:"session_id"`
	LocalVersion  int64      `json:"local_version"`
	RemoteVersion int64      `json:"remote_version"`
	Dirty         bool       `json:"dirty"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
}

// Recovery log reasons.
const (
	RecoveryConflictLocalLost  = "conflict_local_lost"
	RecoveryConflictRemoteLost = "conflict_remote_lost"
)

// RecoveryEntry preserves the losing side of a sync conflict so a user can
// manually recover it. Nothing is ever silently dropped.
type RecoveryEntry struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Reason    string    `json:"reason"`
	Snapshot  *Session  `json:"snapshot"`
	CreatedAt time.Time `json:"created_at"`
}

type RecoveryLogRepository interface {
	Append(ctx context.Context, entry *RecoveryEntry) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*RecoveryEntry, error)
}

// SessionPage is one page of a remote listing.
type SessionPage struct {
	Sessions []*Session `json:"sessions"`
	Total    int64      `json:"total"`
}

// MigrateResult reports the outcome of one item of a bulk migration.
// Already-present ids count as success, not error.
type MigrateResult struct {
	SessionID uuid.UUID `json:"session_id"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
}

// RemoteSessionStore is the centrally persisted copy of sessions. Put
// returns the new canonical version the remote assigned.
type RemoteSessionStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Put(ctx context.Context, s *Session) (int64, error)
	List(ctx context.Context, ownerID uuid.UUID, limit, offset int) (*SessionPage, error)
	Delete(ctx context.Context, id uuid.UUID) error
	BulkMigrate(ctx context.Context, sessions []*Session) ([]MigrateResult, error)
}
