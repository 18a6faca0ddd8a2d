// Package syncer reconciles locally persisted sessions with the central
// remote store. Conflict resolution is whole-session last-write-wins; the
// losing snapshot is always preserved in the recovery log, never dropped.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/votalab/sonda/internal/domain"
)

// ErrSessionActive is returned when a session with a live run is synchronized.
var ErrSessionActive = errors.New("syncer: session has an active run") //nolint:gochecknoglobals // sentinel error

// Outcome classifies what one synchronization pass did.
type Outcome string

const (
	OutcomeNoop             Outcome = "noop"
	OutcomePushed           Outcome = "pushed"
	OutcomePulled           Outcome = "pulled"
	OutcomeConflictLocalWon Outcome = "conflict_local_won"
	OutcomeConflictLost     Outcome = "conflict_local_lost"
)

// ActiveChecker reports whether a session currently has a live run. The
// controller is the sole writer of an active session, so the syncer must
// stay away until the run drains.
type ActiveChecker interface {
	IsActive(sessionID uuid.UUID) bool
}

// Summary aggregates a SynchronizeAll pass.
type Summary struct {
	Pushed    int `json:"pushed"`
	Pulled    int `json:"pulled"`
	Conflicts int `json:"conflicts"`
	Noops     int `json:"noops"`
	Skipped   int `json:"skipped"` // active or errored sessions
}

type Syncer struct {
	sessions domain.SessionRepository
	recovery domain.RecoveryLogRepository
	remote   domain.RemoteSessionStore
	active   ActiveChecker
}

func New(
	sessions domain.SessionRepository,
	recovery domain.RecoveryLogRepository,
	remote domain.RemoteSessionStore,
	active ActiveChecker,
) *Syncer {
	return &Syncer{sessions: sessions, recovery: recovery, remote: remote, active: active}
}

// Synchronize reconciles one session with the remote store. Repeating the
// call with no intervening changes performs zero writes.
func (s *Syncer) Synchronize(ctx context.Context, sessionID uuid.UUID) (Outcome, error) {
	if s.active != nil && s.active.IsActive(sessionID) {
		return OutcomeNoop, fmt.Errorf("syncer.Syncer.Synchronize: %w", ErrSessionActive)
	}

	local, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return OutcomeNoop, fmt.Errorf("syncer.Syncer.Synchronize: load local: %w", err)
	}
	rec, err := s.sessions.GetSyncRecord(ctx, sessionID)
	if err != nil {
		return OutcomeNoop, fmt.Errorf("syncer.Syncer.Synchronize: load sync record: %w", err)
	}

	remote, err := s.remote.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return OutcomeNoop, fmt.Errorf("syncer.Syncer.Synchronize: load remote: %w", err)
	}
	var remoteVersion int64
	if remote != nil {
		remoteVersion = remote.Version
	}

	switch {
	case !rec.Dirty && remoteVersion == local.Version:
		return OutcomeNoop, nil

	case remoteVersion > local.Version && !rec.Dirty:
		// Remote advanced, local untouched: adopt the remote snapshot.
		if err := s.adopt(ctx, remote, rec); err != nil {
			return OutcomeNoop, fmt.Errorf("syncer.Syncer.Synchronize: pull: %w", err)
		}
		return OutcomePulled, nil

	case remoteVersion > local.Version && rec.Dirty:
		return s.resolveConflict(ctx, local, remote, rec)

	default:
		// Local is dirty or ahead: publish it.
		if err := s.push(ctx, local, local.Version+1, rec); err != nil {
			return OutcomeNoop, fmt.Errorf("syncer.Syncer.Synchronize: push: %w", err)
		}
		return OutcomePushed, nil
	}
}

// resolveConflict applies last-write-wins by update timestamp. The losing
// snapshot is appended to the recovery log before anything is overwritten.
func (s *Syncer) resolveConflict(ctx context.Context, local, remote *domain.Session, rec *domain.SyncRecord) (Outcome, error) {
	localWins := local.UpdatedAt.After(remote.UpdatedAt)

	log.Warn().
		Str("session_id", local.ID.String()).
		Int64("local_version", local.Version).
		Int64("remote_version", remote.Version).
		Bool("local_wins", localWins).
		Msg("syncer: version conflict")

	if localWins {
		if err := s.logLoser(ctx, remote, domain.RecoveryConflictRemoteLost); err != nil {
			return OutcomeNoop, fmt.Errorf("syncer.Syncer.resolveConflict: %w", err)
		}
		if err := s.push(ctx, local, remote.Version+1, rec); err != nil {
			return OutcomeNoop, fmt.Errorf("syncer.Syncer.resolveConflict: push winner: %w", err)
		}
		return OutcomeConflictLocalWon, nil
	}

	if err := s.logLoser(ctx, local, domain.RecoveryConflictLocalLost); err != nil {
		return OutcomeNoop, fmt.Errorf("syncer.Syncer.resolveConflict: %w", err)
	}
	if err := s.adopt(ctx, remote, rec); err != nil {
		return OutcomeNoop, fmt.Errorf("syncer.Syncer.resolveConflict: adopt winner: %w", err)
	}
	return OutcomeConflictLost, nil
}

// push uploads the local snapshot at the given version and adopts the
// canonical version the remote echoes back.
func (s *Syncer) push(ctx context.Context, local *domain.Session, version int64, rec *domain.SyncRecord) error {
	local.Version = version
	canonical, err := s.remote.Put(ctx, local)
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}
	local.Version = canonical

	if err := s.sessions.Save(ctx, local); err != nil {
		return fmt.Errorf("save local: %w", err)
	}
	return s.markClean(ctx, rec, canonical)
}

// adopt overwrites the local snapshot with the remote one.
func (s *Syncer) adopt(ctx context.Context, remote *domain.Session, rec *domain.SyncRecord) error {
	if err := s.sessions.Save(ctx, remote); err != nil {
		return fmt.Errorf("save local: %w", err)
	}
	return s.markClean(ctx, rec, remote.Version)
}

func (s *Syncer) markClean(ctx context.Context, rec *domain.SyncRecord, version int64) error {
	now := time.Now()
	rec.LocalVersion = version
	rec.RemoteVersion = version
	rec.Dirty = false
	rec.LastSyncedAt = &now
	if err := s.sessions.SaveSyncRecord(ctx, rec); err != nil {
		return fmt.Errorf("save sync record: %w", err)
	}
	return nil
}

func (s *Syncer) logLoser(ctx context.Context, snapshot *domain.Session, reason string) error {
	entry := &domain.RecoveryEntry{
		ID:        uuid.New(),
		SessionID: snapshot.ID,
		Reason:    reason,
		Snapshot:  snapshot,
		CreatedAt: time.Now(),
	}
	if err := s.recovery.Append(ctx, entry); err != nil {
		return fmt.Errorf("append recovery entry: %w", err)
	}
	return nil
}

// SynchronizeAll reconciles every local session, skipping active ones.
func (s *Syncer) SynchronizeAll(ctx context.Context) (*Summary, error) {
	sessions, err := s.sessions.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncer.Syncer.SynchronizeAll: %w", err)
	}

	sum := &Summary{}
	for _, sess := range sessions {
		outcome, err := s.Synchronize(ctx, sess.ID)
		if err != nil {
			if !errors.Is(err, ErrSessionActive) {
				log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("syncer: session sync failed")
			}
			sum.Skipped++
			continue
		}
		switch outcome {
		case OutcomePushed:
			sum.Pushed++
		case OutcomePulled:
			sum.Pulled++
		case OutcomeConflictLocalWon, OutcomeConflictLost:
			sum.Conflicts++
		case OutcomeNoop:
			sum.Noops++
		}
	}
	return sum, nil
}

// Migrate bulk-uploads every local session the remote does not know yet.
// Sessions already present remotely count as migrated, not as errors.
func (s *Syncer) Migrate(ctx context.Context) ([]domain.MigrateResult, error) {
	sessions, err := s.sessions.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncer.Syncer.Migrate: %w", err)
	}

	batch := make([]*domain.Session, 0, len(sessions))
	for _, sess := range sessions {
		if s.active != nil && s.active.IsActive(sess.ID) {
			continue
		}
		batch = append(batch, sess)
	}
	if len(batch) == 0 {
		return nil, nil
	}

	results, err := s.remote.BulkMigrate(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("syncer.Syncer.Migrate: %w", err)
	}

	byID := make(map[uuid.UUID]*domain.Session, len(batch))
	for _, sess := range batch {
		byID[sess.ID] = sess
	}
	for _, res := range results {
		if !res.OK {
			continue
		}
		sess := byID[res.SessionID]
		if sess == nil {
			continue
		}
		rec, err := s.sessions.GetSyncRecord(ctx, res.SessionID)
		if err != nil {
			log.Error().Err(err).Str("session_id", res.SessionID.String()).Msg("syncer: migrate record load failed")
			continue
		}
		if err := s.markClean(ctx, rec, sess.Version); err != nil {
			log.Error().Err(err).Str("session_id", res.SessionID.String()).Msg("syncer: migrate record save failed")
		}
	}
	return results, nil
}
