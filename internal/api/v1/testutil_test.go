package v1_test

import (
	"context"

	"github.com/google/uuid"

	v1 "github.com/votalab/sonda/internal/api/v1"
	"github.com/votalab/sonda/internal/domain"
	"github.com/votalab/sonda/internal/server/middleware"
	"github.com/votalab/sonda/internal/syncer"
)

// ---------------------------------------------------------------------------
// Context helpers — inject the caller into context for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	return context.WithValue(context.Background(), middleware.ContextKeyUserID, userID)
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	sessions domain.SessionRepository
	agents   domain.AgentRepository
	recovery domain.RecoveryLogRepository
}

var _ v1.DataStore = (*mockDataStore)(nil)

func (m *mockDataStore) Sessions() domain.SessionRepository    { return m.sessions }
func (m *mockDataStore) Agents() domain.AgentRepository        { return m.agents }
func (m *mockDataStore) Recovery() domain.RecoveryLogRepository { return m.recovery }

// ---------------------------------------------------------------------------
// Mock SessionRepository
// ---------------------------------------------------------------------------

type mockSessionRepo struct {
	createFunc         func(ctx context.Context, s *domain.Session) error
	getByIDFunc        func(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	listFunc           func(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.Session, error)
	listAllFunc        func(ctx context.Context) ([]*domain.Session, error)
	saveFunc           func(ctx context.Context, s *domain.Session) error
	getSyncRecordFunc  func(ctx context.Context, sessionID uuid.UUID) (*domain.SyncRecord, error)
	saveSyncRecordFunc func(ctx context.Context, rec *domain.SyncRecord) error
}

var _ domain.SessionRepository = (*mockSessionRepo)(nil)

func (m *mockSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	return m.createFunc(ctx, s)
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockSessionRepo) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.Session, error) {
	return m.listFunc(ctx, ownerID, limit, offset)
}

func (m *mockSessionRepo) ListAll(ctx context.Context) ([]*domain.Session, error) {
	return m.listAllFunc(ctx)
}

func (m *mockSessionRepo) Save(ctx context.Context, s *domain.Session) error {
	return m.saveFunc(ctx, s)
}

func (m *mockSessionRepo) GetSyncRecord(ctx context.Context, sessionID uuid.UUID) (*domain.SyncRecord, error) {
	return m.getSyncRecordFunc(ctx, sessionID)
}

func (m *mockSessionRepo) SaveSyncRecord(ctx context.Context, rec *domain.SyncRecord) error {
	return m.saveSyncRecordFunc(ctx, rec)
}

// ---------------------------------------------------------------------------
// Mock AgentRepository
// ---------------------------------------------------------------------------

type mockAgentRepo struct {
	createFunc  func(ctx context.Context, a *domain.Agent) error
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.Agent, error)
	listFunc    func(ctx context.Context, filter domain.AgentFilter) ([]*domain.Agent, error)
}

var _ domain.AgentRepository = (*mockAgentRepo)(nil)

func (m *mockAgentRepo) Create(ctx context.Context, a *domain.Agent) error {
	return m.createFunc(ctx, a)
}

func (m *mockAgentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockAgentRepo) List(ctx context.Context, filter domain.AgentFilter) ([]*domain.Agent, error) {
	return m.listFunc(ctx, filter)
}

// ---------------------------------------------------------------------------
// Mock RecoveryLogRepository
// ---------------------------------------------------------------------------

type mockRecoveryRepo struct {
	appendFunc        func(ctx context.Context, entry *domain.RecoveryEntry) error
	listBySessionFunc func(ctx context.Context, sessionID uuid.UUID) ([]*domain.RecoveryEntry, error)
}

var _ domain.RecoveryLogRepository = (*mockRecoveryRepo)(nil)

func (m *mockRecoveryRepo) Append(ctx context.Context, entry *domain.RecoveryEntry) error {
	return m.appendFunc(ctx, entry)
}

func (m *mockRecoveryRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.RecoveryEntry, error) {
	return m.listBySessionFunc(ctx, sessionID)
}

// ---------------------------------------------------------------------------
// Mock SessionEngine
// ---------------------------------------------------------------------------

type mockEngine struct {
	startFunc    func(ctx context.Context, ownerID uuid.UUID, title string, questions []domain.Question, agentIDs []uuid.UUID, candidates []string, costCeiling float64) (*domain.Session, error)
	pauseFunc    func(ctx context.Context, sessionID uuid.UUID) error
	resumeFunc   func(ctx context.Context, sessionID uuid.UUID) error
	cancelFunc   func(ctx context.Context, sessionID uuid.UUID) error
	progressFunc func(ctx context.Context, sessionID uuid.UUID) (*domain.Progress, error)
	resultsFunc  func(ctx context.Context, sessionID uuid.UUID) ([]*domain.InterviewResult, error)
}

var _ v1.SessionEngine = (*mockEngine)(nil)

func (m *mockEngine) StartSession(ctx context.Context, ownerID uuid.UUID, title string, questions []domain.Question, agentIDs []uuid.UUID, candidates []string, costCeiling float64) (*domain.Session, error) {
	return m.startFunc(ctx, ownerID, title, questions, agentIDs, candidates, costCeiling)
}

func (m *mockEngine) Pause(ctx context.Context, sessionID uuid.UUID) error {
	return m.pauseFunc(ctx, sessionID)
}

func (m *mockEngine) Resume(ctx context.Context, sessionID uuid.UUID) error {
	return m.resumeFunc(ctx, sessionID)
}

func (m *mockEngine) Cancel(ctx context.Context, sessionID uuid.UUID) error {
	return m.cancelFunc(ctx, sessionID)
}

func (m *mockEngine) Progress(ctx context.Context, sessionID uuid.UUID) (*domain.Progress, error) {
	return m.progressFunc(ctx, sessionID)
}

func (m *mockEngine) Results(ctx context.Context, sessionID uuid.UUID) ([]*domain.InterviewResult, error) {
	return m.resultsFunc(ctx, sessionID)
}

// ---------------------------------------------------------------------------
// Mock Synchronizer
// ---------------------------------------------------------------------------

type mockSyncer struct {
	synchronizeFunc    func(ctx context.Context, sessionID uuid.UUID) (syncer.Outcome, error)
	synchronizeAllFunc func(ctx context.Context) (*syncer.Summary, error)
	migrateFunc        func(ctx context.Context) ([]domain.MigrateResult, error)
}

var _ v1.Synchronizer = (*mockSyncer)(nil)

func (m *mockSyncer) Synchronize(ctx context.Context, sessionID uuid.UUID) (syncer.Outcome, error) {
	return m.synchronizeFunc(ctx, sessionID)
}

func (m *mockSyncer) SynchronizeAll(ctx context.Context) (*syncer.Summary, error) {
	return m.synchronizeAllFunc(ctx)
}

func (m *mockSyncer) Migrate(ctx context.Context) ([]domain.MigrateResult, error) {
	return m.migrateFunc(ctx)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	registerFunc     func(ctx context.Context, email, password, name string) (*domain.User, error)
	loginFunc        func(ctx context.Context, email, password string) (string, string, error)
	refreshTokenFunc func(ctx context.Context, refreshToken string) (string, error)
	getUserFunc      func(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

var _ v1.AuthService = (*mockAuthService)(nil)

func (m *mockAuthService) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	return m.registerFunc(ctx, email, password, name)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return m.refreshTokenFunc(ctx, refreshToken)
}

func (m *mockAuthService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return m.getUserFunc(ctx, userID)
}
