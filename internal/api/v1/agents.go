package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/votalab/sonda/internal/domain"
)

type CreateAgentInput struct {
	Body struct {
		Name       string   `json:"name" minLength:"1" maxLength:"255" doc:"Agent display name"`
		Profile    string   `json:"profile" minLength:"1" doc:"Persona description forwarded verbatim to prompts"`
		Tags       []string `json:"tags,omitempty" doc:"Behavioral tags"`
		Complexity string   `json:"complexity,omitempty" enum:"low,medium,high" doc:"Drives model-tier selection"`
	}
}

type CreateAgentOutput struct {
	Body *domain.Agent
}

type GetAgentInput struct {
	ID uuid.UUID `path:"id" doc:"Agent ID"`
}

type GetAgentOutput struct {
	Body *domain.Agent
}

type ListAgentsInput struct {
	Tags  []string `query:"tags" doc:"Match agents carrying any of these tags"`
	Limit int      `query:"limit" minimum:"0" maximum:"500" doc:"Max agents to return"`
}

type ListAgentsOutput struct {
	Body struct {
		Agents []*domain.Agent `json:"agents"`
	}
}

func RegisterAgentRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-agent",
		Method:      http.MethodPost,
		Path:        "/agents",
		Summary:     "Register a respondent profile",
		Tags:        []string{"Agents"},
	}, func(ctx context.Context, input *CreateAgentInput) (*CreateAgentOutput, error) {
		complexity := domain.AgentComplexity(input.Body.Complexity)
		if complexity == "" {
			complexity = domain.ComplexityMedium
		}

		agent := &domain.Agent{
			ID:         uuid.New(),
			Name:       input.Body.Name,
			Profile:    input.Body.Profile,
			Tags:       input.Body.Tags,
			Complexity: complexity,
			CreatedAt:  time.Now(),
		}
		if err := store.Agents().Create(ctx, agent); err != nil {
			return nil, huma.Error500InternalServerError("failed to create agent", err)
		}

		return &CreateAgentOutput{Body: agent}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-agent",
		Method:      http.MethodGet,
		Path:        "/agents/{id}",
		Summary:     "Get a respondent profile",
		Tags:        []string{"Agents"},
	}, func(ctx context.Context, input *GetAgentInput) (*GetAgentOutput, error) {
		agent, err := store.Agents().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("agent not found")
			}
			return nil, huma.Error500InternalServerError("failed to get agent", err)
		}

		return &GetAgentOutput{Body: agent}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-agents",
		Method:      http.MethodGet,
		Path:        "/agents",
		Summary:     "List respondent profiles",
		Tags:        []string{"Agents"},
	}, func(ctx context.Context, input *ListAgentsInput) (*ListAgentsOutput, error) {
		agents, err := store.Agents().List(ctx, domain.AgentFilter{
			Tags:  input.Tags,
			Limit: input.Limit,
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list agents", err)
		}

		out := &ListAgentsOutput{}
		out.Body.Agents = agents
		return out, nil
	})
}
