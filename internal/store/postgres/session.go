package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votalab/sonda/internal/domain"
)

// SessionRepo persists sessions across three tables: the session row, an
// append-only interview_results table keyed by (session, agent, question),
// and a session_sync row tracking the dirty flag for the syncer. Save is
// transactional so a session snapshot and its results land together.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	questions, agentIDs, candidates, err := marshalBatch(s)
	if err != nil {
		return fmt.Errorf("sessionRepo.Create: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO sessions (id, owner_id, title, questions, agent_ids, candidates, status,
		        cancel_reason, error, partial, cost_accumulated, cost_ceiling,
		        input_tokens, output_tokens, version, created_at, updated_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		s.ID, s.OwnerID, s.Title, questions, agentIDs, candidates, s.Status,
		s.CancelReason, s.Error, s.Partial, s.CostAccumulated, s.CostCeiling,
		s.InputTokens, s.OutputTokens, s.Version, s.CreatedAt, s.UpdatedAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("sessionRepo.Create: %w", err)
	}

	return nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	s, err := r.scanSession(r.pool.QueryRow(ctx,
		sessionSelect+` WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", err)
	}

	s.Results, err = r.listResults(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", err)
	}

	return s, nil
}

func (r *SessionRepo) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.Session, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		sessionSelect+` WHERE owner_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.List: %w", err)
	}
	defer rows.Close()

	return r.scanSessions(ctx, rows, "sessionRepo.List")
}

func (r *SessionRepo) ListAll(ctx context.Context) ([]*domain.Session, error) {
	rows, err := r.pool.Query(ctx,
		sessionSelect+` ORDER BY created_at, id LIMIT 1000`,
	)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.ListAll: %w", err)
	}
	defer rows.Close()

	return r.scanSessions(ctx, rows, "sessionRepo.ListAll")
}

// Save upserts the full snapshot, appends any new results, and flags the
// session dirty for the syncer. Results are insert-only: a pair that is
// already recorded is never rewritten.
func (r *SessionRepo) Save(ctx context.Context, s *domain.Session) error {
	questions, agentIDs, candidates, err := marshalBatch(s)
	if err != nil {
		return fmt.Errorf("sessionRepo.Save: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("sessionRepo.Save: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx,
		`INSERT INTO sessions (id, owner_id, title, questions, agent_ids, candidates, status,
		        cancel_reason, error, partial, cost_accumulated, cost_ceiling,
		        input_tokens, output_tokens, version, created_at, updated_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 ON CONFLICT (id) DO UPDATE SET
		        owner_id = EXCLUDED.owner_id, title = EXCLUDED.title,
		        questions = EXCLUDED.questions, agent_ids = EXCLUDED.agent_ids,
		        candidates = EXCLUDED.candidates, status = EXCLUDED.status,
		        cancel_reason = EXCLUDED.cancel_reason, error = EXCLUDED.error,
		        partial = EXCLUDED.partial, cost_accumulated = EXCLUDED.cost_accumulated,
		        cost_ceiling = EXCLUDED.cost_ceiling, input_tokens = EXCLUDED.input_tokens,
		        output_tokens = EXCLUDED.output_tokens, version = EXCLUDED.version,
		        updated_at = EXCLUDED.updated_at, completed_at = EXCLUDED.completed_at`,
		s.ID, s.OwnerID, s.Title, questions, agentIDs, candidates, s.Status,
		s.CancelReason, s.Error, s.Partial, s.CostAccumulated, s.CostCeiling,
		s.InputTokens, s.OutputTokens, s.Version, s.CreatedAt, s.UpdatedAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("sessionRepo.Save: upsert session: %w", err)
	}

	for _, res := range s.Results {
		answer, err := json.Marshal(res.Answer)
		if err != nil {
			return fmt.Errorf("sessionRepo.Save: marshal answer: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO interview_results (id, session_id, agent_id, question_id, raw_text,
			        answer, confidence, input_tokens, output_tokens, latency_ns, cost, failure, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (session_id, agent_id, question_id) DO NOTHING`,
			res.ID, res.SessionID, res.AgentID, res.QuestionID, res.RawText,
			answer, res.Confidence, res.InputTokens, res.OutputTokens,
			int64(res.Latency), res.Cost, res.Failure, res.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sessionRepo.Save: insert result: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO session_sync (session_id, local_version, remote_version, dirty)
		 VALUES ($1, $2, 0, true)
		 ON CONFLICT (session_id) DO UPDATE SET local_version = EXCLUDED.local_version, dirty = true`,
		s.ID, s.Version,
	)
	if err != nil {
		return fmt.Errorf("sessionRepo.Save: mark dirty: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("sessionRepo.Save: commit: %w", err)
	}

	return nil
}

func (r *SessionRepo) GetSyncRecord(ctx context.Context, sessionID uuid.UUID) (*domain.SyncRecord, error) {
	rec := &domain.SyncRecord{SessionID: sessionID}

	err := r.pool.QueryRow(ctx,
		`SELECT local_version, remote_version, dirty, last_synced_at
		 FROM session_sync WHERE session_id = $1`,
		sessionID,
	).Scan(&rec.LocalVersion, &rec.RemoteVersion, &rec.Dirty, &rec.LastSyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Never synchronized: the zero record is the correct answer.
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.GetSyncRecord: %w", err)
	}

	return rec, nil
}

func (r *SessionRepo) SaveSyncRecord(ctx context.Context, rec *domain.SyncRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_sync (session_id, local_version, remote_version, dirty, last_synced_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id) DO UPDATE SET
		        local_version = EXCLUDED.local_version,
		        remote_version = EXCLUDED.remote_version,
		        dirty = EXCLUDED.dirty,
		        last_synced_at = EXCLUDED.last_synced_at`,
		rec.SessionID, rec.LocalVersion, rec.RemoteVersion, rec.Dirty, rec.LastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("sessionRepo.SaveSyncRecord: %w", err)
	}

	return nil
}

const sessionSelect = `SELECT id, owner_id, title, questions, agent_ids, candidates, status,
        cancel_reason, error, partial, cost_accumulated, cost_ceiling,
        input_tokens, output_tokens, version, created_at, updated_at, completed_at
 FROM sessions`

func (r *SessionRepo) scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	var questions, agentIDs, candidates []byte

	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Title, &questions, &agentIDs, &candidates, &s.Status,
		&s.CancelReason, &s.Error, &s.Partial, &s.CostAccumulated, &s.CostCeiling,
		&s.InputTokens, &s.OutputTokens, &s.Version, &s.CreatedAt, &s.UpdatedAt, &s.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(questions, &s.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	if err := json.Unmarshal(agentIDs, &s.AgentIDs); err != nil {
		return nil, fmt.Errorf("unmarshal agent ids: %w", err)
	}
	if len(candidates) > 0 {
		if err := json.Unmarshal(candidates, &s.Candidates); err != nil {
			return nil, fmt.Errorf("unmarshal candidates: %w", err)
		}
	}

	return &s, nil
}

func (r *SessionRepo) scanSessions(ctx context.Context, rows pgx.Rows, caller string) ([]*domain.Session, error) {
	var sessions []*domain.Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	for _, s := range sessions {
		results, err := r.listResults(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", caller, err)
		}
		s.Results = results
	}

	return sessions, nil
}

func (r *SessionRepo) listResults(ctx context.Context, sessionID uuid.UUID) ([]*domain.InterviewResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, agent_id, question_id, raw_text, answer, confidence,
		        input_tokens, output_tokens, latency_ns, cost, failure, created_at
		 FROM interview_results WHERE session_id = $1
		 ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listResults: %w", err)
	}
	defer rows.Close()

	var results []*domain.InterviewResult
	for rows.Next() {
		var res domain.InterviewResult
		var answer []byte
		var latencyNs int64

		err = rows.Scan(
			&res.ID, &res.SessionID, &res.AgentID, &res.QuestionID, &res.RawText,
			&answer, &res.Confidence, &res.InputTokens, &res.OutputTokens,
			&latencyNs, &res.Cost, &res.Failure, &res.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("listResults: scan: %w", err)
		}

		if err := json.Unmarshal(answer, &res.Answer); err != nil {
			return nil, fmt.Errorf("listResults: unmarshal answer: %w", err)
		}
		res.Latency = time.Duration(latencyNs)
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listResults: rows: %w", err)
	}

	return results, nil
}

func marshalBatch(s *domain.Session) (questions, agentIDs, candidates []byte, err error) {
	questions, err = json.Marshal(s.Questions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal questions: %w", err)
	}
	agentIDs, err = json.Marshal(s.AgentIDs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal agent ids: %w", err)
	}
	if len(s.Candidates) > 0 {
		candidates, err = json.Marshal(s.Candidates)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal candidates: %w", err)
		}
	}
	return questions, agentIDs, candidates, nil
}
