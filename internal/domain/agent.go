package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AgentComplexity string

const (
	ComplexityLow    AgentComplexity = "low"
	ComplexityMedium AgentComplexity = "medium"
	ComplexityHigh   AgentComplexity = "high"
)

// Agent is a synthetic respondent profile. The orchestration core treats the
// profile text and tags as opaque: they are forwarded to the prompt builder
// and never interpreted here. Agents are immutable once loaded; the catalog
// is the owning collaborator.
type Agent struct {
	ID         uuid.UUID
	Name       string
	Profile    string          // persona description, authored externally
	Tags       []string        // behavioral tags, used only for prompt framing
	Complexity AgentComplexity // drives model-tier selection in the executor
	CreatedAt  time.Time
}

// AgentFilter narrows catalog listings. Zero value matches everything.
type AgentFilter struct {
	Tags  []string // match any
	Limit int
}

// AgentCatalog is the external collaborator that owns respondent profiles.
type AgentCatalog interface {
	List(ctx context.Context, filter AgentFilter) ([]*Agent, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Agent, error)
}

// AgentRepository is a catalog that also accepts new profiles. The
// orchestration core only ever sees the read side.
type AgentRepository interface {
	AgentCatalog
	Create(ctx context.Context, a *Agent) error
}
