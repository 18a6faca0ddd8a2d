package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/votalab/sonda/internal/domain"
	"github.com/votalab/sonda/internal/syncer"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Sessions() domain.SessionRepository
	Agents() domain.AgentRepository
	Recovery() domain.RecoveryLogRepository
}

// SessionEngine abstracts the session controller for handler testing.
// *engine.Controller satisfies this interface.
type SessionEngine interface {
	StartSession(ctx context.Context, ownerID uuid.UUID, title string, questions []domain.Question, agentIDs []uuid.UUID, candidates []string, costCeiling float64) (*domain.Session, error)
	Pause(ctx context.Context, sessionID uuid.UUID) error
	Resume(ctx context.Context, sessionID uuid.UUID) error
	Cancel(ctx context.Context, sessionID uuid.UUID) error
	Progress(ctx context.Context, sessionID uuid.UUID) (*domain.Progress, error)
	Results(ctx context.Context, sessionID uuid.UUID) ([]*domain.InterviewResult, error)
}

// Synchronizer abstracts remote reconciliation for handler testing.
// *syncer.Syncer satisfies this interface.
type Synchronizer interface {
	Synchronize(ctx context.Context, sessionID uuid.UUID) (syncer.Outcome, error)
	SynchronizeAll(ctx context.Context) (*syncer.Summary, error)
	Migrate(ctx context.Context) ([]domain.MigrateResult, error)
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}
