package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votalab/sonda/internal/domain"
)

// RecoveryRepo is append-only: conflict losers are preserved forever so a
// user can inspect or restore them by hand.
type RecoveryRepo struct {
	pool *pgxpool.Pool
}

func NewRecoveryRepo(pool *pgxpool.Pool) *RecoveryRepo {
	return &RecoveryRepo{pool: pool}
}

func (r *RecoveryRepo) Append(ctx context.Context, entry *domain.RecoveryEntry) error {
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("recoveryRepo.Append: marshal snapshot: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO recovery_log (id, session_id, reason, snapshot, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.SessionID, entry.Reason, snapshot, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recoveryRepo.Append: %w", err)
	}

	return nil
}

func (r *RecoveryRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.RecoveryEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, reason, snapshot, created_at
		 FROM recovery_log WHERE session_id = $1
		 ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("recoveryRepo.ListBySession: %w", err)
	}
	defer rows.Close()

	var entries []*domain.RecoveryEntry
	for rows.Next() {
		var entry domain.RecoveryEntry
		var snapshot []byte

		if err := rows.Scan(&entry.ID, &entry.SessionID, &entry.Reason, &snapshot, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("recoveryRepo.ListBySession: scan: %w", err)
		}
		if err := json.Unmarshal(snapshot, &entry.Snapshot); err != nil {
			return nil, fmt.Errorf("recoveryRepo.ListBySession: unmarshal snapshot: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recoveryRepo.ListBySession: rows: %w", err)
	}

	return entries, nil
}
