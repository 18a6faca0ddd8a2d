package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votalab/sonda/internal/domain"
)

type AgentRepo struct {
	pool *pgxpool.Pool
}

func NewAgentRepo(pool *pgxpool.Pool) *AgentRepo {
	return &AgentRepo{pool: pool}
}

func (r *AgentRepo) Create(ctx context.Context, a *domain.Agent) error {
	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("agentRepo.Create: marshal tags: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO agents (id, name, profile, tags, complexity, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Name, a.Profile, tags, a.Complexity, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("agentRepo.Create: %w", err)
	}

	return nil
}

func (r *AgentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	var a domain.Agent
	var tags []byte

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, profile, tags, complexity, created_at
		 FROM agents WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Name, &a.Profile, &tags, &a.Complexity, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("agentRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("agentRepo.GetByID: %w", err)
	}

	if err := json.Unmarshal(tags, &a.Tags); err != nil {
		return nil, fmt.Errorf("agentRepo.GetByID: unmarshal tags: %w", err)
	}

	return &a, nil
}

func (r *AgentRepo) List(ctx context.Context, filter domain.AgentFilter) ([]*domain.Agent, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	var rows pgx.Rows
	var err error
	if len(filter.Tags) > 0 {
		// Match agents carrying any of the requested tags.
		rows, err = r.pool.Query(ctx,
			`SELECT id, name, profile, tags, complexity, created_at
			 FROM agents WHERE tags ?| $1
			 ORDER BY name, id LIMIT $2`,
			filter.Tags, limit,
		)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT id, name, profile, tags, complexity, created_at
			 FROM agents ORDER BY name, id LIMIT $1`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("agentRepo.List: %w", err)
	}
	defer rows.Close()

	var agents []*domain.Agent
	for rows.Next() {
		var a domain.Agent
		var tags []byte

		if err := rows.Scan(&a.ID, &a.Name, &a.Profile, &tags, &a.Complexity, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("agentRepo.List: scan: %w", err)
		}
		if err := json.Unmarshal(tags, &a.Tags); err != nil {
			return nil, fmt.Errorf("agentRepo.List: unmarshal tags: %w", err)
		}
		agents = append(agents, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agentRepo.List: rows: %w", err)
	}

	return agents, nil
}
