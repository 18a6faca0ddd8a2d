package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/votalab/sonda/internal/domain"
	"github.com/votalab/sonda/internal/engine"
	"github.com/votalab/sonda/internal/server/middleware"
	"github.com/votalab/sonda/internal/syncer"
)

type questionInput struct {
	Text            string   `json:"text" minLength:"1" doc:"Question text"`
	Kind            string   `json:"kind" enum:"multiple_choice,numeric_scale,boolean,open_text" doc:"Question kind"`
	Options         []string `json:"options,omitempty" doc:"Fixed option set for multiple_choice"`
	ScaleMin        int      `json:"scale_min,omitempty" doc:"Lower bound for numeric_scale"`
	ScaleMax        int      `json:"scale_max,omitempty" doc:"Upper bound for numeric_scale"`
	VotingIntention bool     `json:"voting_intention,omitempty" doc:"Use the session candidate list as the option set"`
}

type StartSessionInput struct {
	Body struct {
		Title       string          `json:"title" minLength:"1" maxLength:"255" doc:"Session title"`
		Questions   []questionInput `json:"questions" minItems:"1" doc:"Question set"`
		AgentIDs    []uuid.UUID     `json:"agent_ids" minItems:"1" doc:"Respondent profiles to interview"`
		Candidates  []string        `json:"candidates,omitempty" doc:"Option set for voting-intention questions"`
		CostCeiling float64         `json:"cost_ceiling" exclusiveMinimum:"0" doc:"Hard USD spend limit"`
	}
}

type StartSessionOutput struct {
	Body *domain.Session
}

type SessionIDInput struct {
	ID uuid.UUID `path:"id" doc:"Session ID"`
}

type GetSessionOutput struct {
	Body *domain.Session
}

type ListSessionsInput struct {
	Limit  int `query:"limit" minimum:"0" maximum:"200" doc:"Max sessions to return"`
	Offset int `query:"offset" minimum:"0" doc:"Listing offset"`
}

type ListSessionsOutput struct {
	Body struct {
		Sessions []*domain.Session `json:"sessions"`
	}
}

type ProgressOutput struct {
	Body *domain.Progress
}

type ResultsOutput struct {
	Body struct {
		Results []*domain.InterviewResult `json:"results"`
	}
}

type SyncSessionOutput struct {
	Body struct {
		Outcome syncer.Outcome `json:"outcome"`
	}
}

type SyncAllOutput struct {
	Body *syncer.Summary
}

type MigrateOutput struct {
	Body struct {
		Results []domain.MigrateResult `json:"results"`
	}
}

type RecoveryLogOutput struct {
	Body struct {
		Entries []*domain.RecoveryEntry `json:"entries"`
	}
}

// ownedSession loads a session and enforces owner scoping. Sessions of
// other users are reported as not found, never as forbidden.
func ownedSession(ctx context.Context, store DataStore, id uuid.UUID) (*domain.Session, error) {
	ownerID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("authentication required")
	}

	session, err := store.Sessions().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("session not found")
		}
		return nil, huma.Error500InternalServerError("failed to load session", err)
	}
	if session.OwnerID != ownerID {
		return nil, huma.Error404NotFound("session not found")
	}

	return session, nil
}

//nolint:gocognit,funlen // route registration is one long declarative block
func RegisterSessionRoutes(api huma.API, store DataStore, eng SessionEngine, sync Synchronizer) {
	huma.Register(api, huma.Operation{
		OperationID: "start-session",
		Method:      http.MethodPost,
		Path:        "/sessions",
		Summary:     "Start an interview session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *StartSessionInput) (*StartSessionOutput, error) {
		ownerID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		questions := make([]domain.Question, 0, len(input.Body.Questions))
		for _, q := range input.Body.Questions {
			questions = append(questions, domain.Question{
				ID:              uuid.New(),
				Text:            q.Text,
				Kind:            domain.QuestionKind(q.Kind),
				Options:         q.Options,
				ScaleMin:        q.ScaleMin,
				ScaleMax:        q.ScaleMax,
				VotingIntention: q.VotingIntention,
			})
		}

		session, err := eng.StartSession(ctx, ownerID, input.Body.Title, questions,
			input.Body.AgentIDs, input.Body.Candidates, input.Body.CostCeiling)
		if err != nil {
			if errors.Is(err, engine.ErrInvalidSessionState) {
				return nil, huma.Error400BadRequest("invalid session request")
			}
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error400BadRequest("unknown agent in agent_ids")
			}
			return nil, huma.Error500InternalServerError("failed to start session", err)
		}

		return &StartSessionOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}",
		Summary:     "Get a session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SessionIDInput) (*GetSessionOutput, error) {
		session, err := ownedSession(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}
		return &GetSessionOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/sessions",
		Summary:     "List the caller's sessions",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *ListSessionsInput) (*ListSessionsOutput, error) {
		ownerID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		sessions, err := store.Sessions().List(ctx, ownerID, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list sessions", err)
		}

		out := &ListSessionsOutput{}
		out.Body.Sessions = sessions
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pause-session",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/pause",
		Summary:     "Pause a running session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SessionIDInput) (*GetSessionOutput, error) {
		session, err := ownedSession(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}

		if err := eng.Pause(ctx, session.ID); err != nil {
			if errors.Is(err, engine.ErrInvalidSessionState) || errors.Is(err, engine.ErrSessionNotFound) {
				return nil, huma.Error409Conflict("session is not running")
			}
			return nil, huma.Error500InternalServerError("failed to pause session", err)
		}

		return &GetSessionOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resume-session",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/resume",
		Summary:     "Resume a paused session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SessionIDInput) (*GetSessionOutput, error) {
		session, err := ownedSession(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}

		if err := eng.Resume(ctx, session.ID); err != nil {
			if errors.Is(err, engine.ErrInvalidSessionState) {
				return nil, huma.Error409Conflict("session is not resumable")
			}
			return nil, huma.Error500InternalServerError("failed to resume session", err)
		}

		return &GetSessionOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-session",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/cancel",
		Summary:     "Cancel a session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SessionIDInput) (*GetSessionOutput, error) {
		session, err := ownedSession(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}

		if err := eng.Cancel(ctx, session.ID); err != nil {
			if errors.Is(err, engine.ErrInvalidSessionState) {
				return nil, huma.Error409Conflict("session already ended")
			}
			return nil, huma.Error500InternalServerError("failed to cancel session", err)
		}

		return &GetSessionOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "session-progress",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}/progress",
		Summary:     "Get session progress",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SessionIDInput) (*ProgressOutput, error) {
		if _, err := ownedSession(ctx, store, input.ID); err != nil {
			return nil, err
		}

		progress, err := eng.Progress(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to compute progress", err)
		}

		return &ProgressOutput{Body: progress}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "session-results",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}/results",
		Summary:     "Get session results in completion order",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SessionIDInput) (*ResultsOutput, error) {
		if _, err := ownedSession(ctx, store, input.ID); err != nil {
			return nil, err
		}

		results, err := eng.Results(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load results", err)
		}

		out := &ResultsOutput{}
		out.Body.Results = results
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sync-session",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/sync",
		Summary:     "Reconcile a session with the remote store",
		Tags:        []string{"Sync"},
	}, func(ctx context.Context, input *SessionIDInput) (*SyncSessionOutput, error) {
		if sync == nil {
			return nil, huma.Error501NotImplemented("remote sync is not configured")
		}
		if _, err := ownedSession(ctx, store, input.ID); err != nil {
			return nil, err
		}

		outcome, err := sync.Synchronize(ctx, input.ID)
		if err != nil {
			if errors.Is(err, syncer.ErrSessionActive) {
				return nil, huma.Error409Conflict("session has an active run")
			}
			return nil, huma.Error500InternalServerError("synchronization failed", err)
		}

		out := &SyncSessionOutput{}
		out.Body.Outcome = outcome
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sync-all-sessions",
		Method:      http.MethodPost,
		Path:        "/sessions/sync",
		Summary:     "Reconcile all local sessions with the remote store",
		Tags:        []string{"Sync"},
	}, func(ctx context.Context, _ *struct{}) (*SyncAllOutput, error) {
		if sync == nil {
			return nil, huma.Error501NotImplemented("remote sync is not configured")
		}
		summary, err := sync.SynchronizeAll(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("synchronization failed", err)
		}

		return &SyncAllOutput{Body: summary}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "migrate-sessions",
		Method:      http.MethodPost,
		Path:        "/sessions/migrate",
		Summary:     "Bulk-upload local sessions to the remote store",
		Tags:        []string{"Sync"},
	}, func(ctx context.Context, _ *struct{}) (*MigrateOutput, error) {
		if sync == nil {
			return nil, huma.Error501NotImplemented("remote sync is not configured")
		}
		results, err := sync.Migrate(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("migration failed", err)
		}

		out := &MigrateOutput{}
		out.Body.Results = results
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "session-recovery-log",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}/recovery",
		Summary:     "List conflict snapshots preserved for a session",
		Tags:        []string{"Sync"},
	}, func(ctx context.Context, input *SessionIDInput) (*RecoveryLogOutput, error) {
		if _, err := ownedSession(ctx, store, input.ID); err != nil {
			return nil, err
		}

		entries, err := store.Recovery().ListBySession(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list recovery entries", err)
		}

		out := &RecoveryLogOutput{}
		out.Body.Entries = entries
		return out, nil
	})
}
