package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionCreated   SessionStatus = "created"
	SessionRunning   SessionStatus = "running"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionFailed    SessionStatus = "failed"
)

// ValidTransition checks if a session state transition is allowed.
// Allowed: created->running, running->paused, paused->running,
// running->completed, running->cancelled, paused->cancelled, and any
// non-terminal state -> failed.
func (s SessionStatus) ValidTransition(to SessionStatus) bool {
	if to == SessionFailed {
		return s != SessionCompleted && s != SessionCancelled
	}
	switch s {
	case SessionCreated:
		return to == SessionRunning
	case SessionRunning:
		return to == SessionPaused || to == SessionCompleted || to == SessionCancelled
	case SessionPaused:
		return to == SessionRunning || to == SessionCancelled
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled || s == SessionFailed
}

// Cancellation reasons recorded on the session.
const (
	CancelReasonUserRequested    = "user_requested"
	CancelReasonCostLimitReached = "cost_limit_reached"
)

var ErrInvalidTransition = errors.New("session: invalid state transition")

type AnswerType string

const (
	AnswerLabel   AnswerType = "label"   // one of a fixed option set
	AnswerScalar  AnswerType = "scalar"  // numeric-scale value
	AnswerBool    AnswerType = "bool"    // yes/no
	AnswerRanking AnswerType = "ranking" // ordered option labels
	AnswerText    AnswerType = "text"    // free text
	AnswerNone    AnswerType = "none"    // nothing extractable
)

// AnswerValue is the typed value extracted from raw model output. Exactly
// the field matching Type is meaningful; the rest stay zero.
type AnswerValue struct {
	Type    AnswerType `json:"type"`
	Label   string     `json:"label,omitempty"`
	Scalar  float64    `json:"scalar,omitempty"`
	Bool    bool       `json:"bool,omitempty"`
	Ranking []string   `json:"ranking,omitempty"`
	Text    string     `json:"text,omitempty"`
}

// Per-pair failure kinds carried on an InterviewResult.
const (
	FailureNone             = ""
	FailureRetriesExhausted = "retries_exhausted"
	FailureFatalInvocation  = "fatal_invocation"
)

// InterviewResult is one agent's answer to one question. Immutable after
// creation; corrections produce a new result, never an edit.
type InterviewResult struct {
	ID           uuid.UUID     `json:"id"`
	SessionID    uuid.UUID     `json:"session_id"`
	AgentID      uuid.UUID     `json:"agent_id"`
	QuestionID   uuid.UUID     `json:"question_id"`
	RawText      string        `json:"raw_text"`
	Answer       AnswerValue   `json:"answer"`
	Confidence   float64       `json:"confidence"` // [0,1]; 0 means "unanswered"
	InputTokens  int64         `json:"input_tokens"`
	OutputTokens int64         `json:"output_tokens"`
	Latency      time.Duration `json:"latency"`
	Cost         float64       `json:"cost"`
	Failure      string        `json:"failure,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Session is one orchestrated batch of agent x question interviews.
// During an active run the controller is the sole writer; after the run
// ends, ownership transfers to the syncer, which alone may touch Version.
type Session struct {
	ID              uuid.UUID          `json:"id"`
	OwnerID         uuid.UUID          `json:"owner_id"`
	Title           string             `json:"title"`
	Questions       []Question         `json:"questions"`
	AgentIDs        []uuid.UUID        `json:"agent_ids"`
	Candidates      []string           `json:"candidates,omitempty"` // option set for voting-intention questions
	Status          SessionStatus      `json:"status"`
	CancelReason    string             `json:"cancel_reason,omitempty"`
	Error           string             `json:"error,omitempty"` // human-readable reason when status is failed
	Partial         bool               `json:"partial"` // truncated by ceiling or abort
	Results         []*InterviewResult `json:"results"` // append order of completion
	CostAccumulated float64            `json:"cost_accumulated"`
	CostCeiling     float64            `json:"cost_ceiling"`
	InputTokens     int64              `json:"input_tokens"`
	OutputTokens    int64              `json:"output_tokens"`
	Version         int64              `json:"version"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
}

// PairCount is the total number of (agent, question) dispatch units.
func (s *Session) PairCount() int {
	return len(s.AgentIDs) * len(s.Questions)
}

// PairKey identifies one (agent, question) unit of dispatch.
func PairKey(agentID, questionID uuid.UUID) string {
	return agentID.String() + "/" + questionID.String()
}

// ProcessedPairs returns the set of pairs that already have a recorded
// result, including failure results. Resume never redoes these.
func (s *Session) ProcessedPairs() map[string]struct{} {
	done := make(map[string]struct{}, len(s.Results))
	for _, r := range s.Results {
		done[PairKey(r.AgentID, r.QuestionID)] = struct{}{}
	}
	return done
}

// AppendResult records a completed result and folds its cost and token
// counts into the session counters. Only the controller's collector
// goroutine may call this during an active run.
func (s *Session) AppendResult(r *InterviewResult) {
	s.Results = append(s.Results, r)
	s.CostAccumulated += r.Cost
	s.InputTokens += r.InputTokens
	s.OutputTokens += r.OutputTokens
	s.UpdatedAt = time.Now()
}

// Progress is the externally visible snapshot of a session's advancement.
type Progress struct {
	Status       SessionStatus `json:"status"`
	Percent      float64       `json:"percent"`
	Completed    int           `json:"completed"`
	Total        int           `json:"total"`
	CostSoFar    float64       `json:"cost_so_far"`
	InputTokens  int64         `json:"input_tokens"`
	OutputTokens int64         `json:"output_tokens"`
}

// SessionRepository is the local session store. Save persists a full
// snapshot and flags the session dirty; the syncer later resets the flag
// through SaveSyncRecord.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Session, error)
	ListAll(ctx context.Context) ([]*Session, error)
	Save(ctx context.Context, s *Session) error
	GetSyncRecord(ctx context.Context, sessionID uuid.UUID) (*SyncRecord, error)
	SaveSyncRecord(ctx context.Context, rec *SyncRecord) error
}
