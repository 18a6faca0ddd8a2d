package interview

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/votalab/sonda/internal/domain"
	"github.com/votalab/sonda/internal/llm"
)

// Executor runs one agent x one question through the full pipeline and
// always produces a structured result. Invocation failures become typed
// failure results; the controller decides what to do with them.
type Executor struct {
	client    llm.Invoker
	prompts   PromptBuilder
	maxTokens int
}

func NewExecutor(client llm.Invoker, prompts PromptBuilder, maxTokens int) *Executor {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Executor{client: client, prompts: prompts, maxTokens: maxTokens}
}

// MaxTokens is the per-call output budget, exposed for worst-case cost
// estimation by the controller.
func (e *Executor) MaxTokens() int { return e.maxTokens }

// TierFor is the policy table for model-tier selection: open text and
// high-complexity personas need the premium tier, everything else runs
// balanced.
func TierFor(c Classification, agent *domain.Agent) llm.Tier {
	if c.Shape == ShapeText || agent.Complexity == domain.ComplexityHigh {
		return llm.TierPremium
	}
	return llm.TierBalanced
}

// Run executes one (agent, question) pair: build prompt, invoke, parse.
// The returned result is complete in either direction: a successful result
// always carries its cost and parsed value; a failure result carries the
// failure kind with zeroed accounting. Run never returns a partial result.
func (e *Executor) Run(ctx context.Context, sessionID uuid.UUID, agent *domain.Agent, q domain.Question, c Classification) *domain.InterviewResult {
	tier := TierFor(c, agent)
	messages := e.prompts.Build(agent, q, c)

	start := time.Now()
	resp, err := e.client.Complete(ctx, llm.Request{
		Messages:  messages,
		Tier:      tier,
		MaxTokens: e.maxTokens,
	})
	latency := time.Since(start)

	if err != nil {
		failure := domain.FailureRetriesExhausted
		if llm.IsFatal(err) {
			failure = domain.FailureFatalInvocation
		}
		log.Warn().
			Err(err).
			Str("session_id", sessionID.String()).
			Str("agent_id", agent.ID.String()).
			Str("question_id", q.ID.String()).
			Str("failure", failure).
			Msg("interview: pair failed")

		return &domain.InterviewResult{
			ID:         uuid.New(),
			SessionID:  sessionID,
			AgentID:    agent.ID,
			QuestionID: q.ID,
			Answer:     domain.AnswerValue{Type: domain.AnswerNone},
			Failure:    failure,
			Latency:    latency,
			CreatedAt:  time.Now(),
		}
	}

	// When the whole response body is one JSON document, treat it as a
	// model-declared structured payload.
	var structured json.RawMessage
	if trimmed := strings.TrimSpace(resp.Text); json.Valid([]byte(trimmed)) {
		structured = json.RawMessage(trimmed)
	}

	answer := Parse(resp.Text, structured, c)

	return &domain.InterviewResult{
		ID:           uuid.New(),
		SessionID:    sessionID,
		AgentID:      agent.ID,
		QuestionID:   q.ID,
		RawText:      resp.Text,
		Answer:       answer.Value,
		Confidence:   answer.Confidence,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Latency:      latency,
		Cost:         resp.Cost,
		CreatedAt:    time.Now(),
	}
}
