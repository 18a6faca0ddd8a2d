package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votalab/sonda/internal/domain"
)

type Store struct {
	pool     *pgxpool.Pool
	sessions *SessionRepo
	agents   *AgentRepo
	recovery *RecoveryRepo
	users    *UserRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:     pool,
		sessions: NewSessionRepo(pool),
		agents:   NewAgentRepo(pool),
		recovery: NewRecoveryRepo(pool),
		users:    NewUserRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Sessions() domain.SessionRepository    { return s.sessions }
func (s *Store) Agents() domain.AgentRepository        { return s.agents }
func (s *Store) Recovery() domain.RecoveryLogRepository { return s.recovery }
func (s *Store) Users() domain.UserRepository          { return s.users }
