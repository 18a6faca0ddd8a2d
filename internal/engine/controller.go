// Package engine owns session orchestration: the lifecycle state machine,
// the bounded worker pool that dispatches (agent, question) pairs, the cost
// ceiling, and incremental persistence.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/votalab/sonda/internal/domain"
	"github.com/votalab/sonda/internal/interview"
	"github.com/votalab/sonda/internal/llm"
	redisstore "github.com/votalab/sonda/internal/store/redis"
)

// Incremental saves tolerate isolated hiccups, but this many consecutive
// failures means the store is down and the run must stop before any more
// model budget is spent on results that cannot be persisted.
const maxConsecutiveSaveFailures = 3

// The terminal snapshot is the durability point for the whole run, so it
// gets a few attempts before the failure is surfaced in the log.
const (
	finalSaveAttempts = 3
	finalSaveBackoff  = 100 * time.Millisecond
)

// ErrSessionNotFound is returned when a session is not found.
var ErrSessionNotFound = errors.New("engine: session not found") //nolint:gochecknoglobals // sentinel error

// ErrInvalidSessionState is returned when an operation is invalid for the current session state.
var ErrInvalidSessionState = errors.New("engine: invalid session state") //nolint:gochecknoglobals // sentinel error

// PairRunner executes one (agent, question) pair to completion.
// *interview.Executor satisfies this interface.
type PairRunner interface {
	Run(ctx context.Context, sessionID uuid.UUID, agent *domain.Agent, q domain.Question, c interview.Classification) *domain.InterviewResult
	MaxTokens() int
}

// Publisher abstracts the Redis pub/sub publish operation.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Notifier is told when a session reaches a terminal state.
type Notifier interface {
	SessionEnded(ctx context.Context, s *domain.Session)
}

// NopNotifier ignores every event.
type NopNotifier struct{}

func (NopNotifier) SessionEnded(context.Context, *domain.Session) {}

// CostEstimator returns the worst-case cost of one pair before dispatch.
// It must never under-estimate, or the ceiling could be crossed mid-call.
type CostEstimator func(agent *domain.Agent, c interview.Classification) float64

// Config bounds the worker pool and the failure tolerance.
type Config struct {
	Workers          int
	FailureRatio     float64 // fraction of failed pairs that fails the session
	MaxInputTokens   int64   // worst-case prompt size for budget reservation
	MinFailureSample int     // failures below this never trip the ratio
}

func DefaultConfig() Config {
	return Config{
		Workers:          4,
		FailureRatio:     0.5,
		MaxInputTokens:   4096,
		MinFailureSample: 3,
	}
}

// Controller coordinates the full session lifecycle:
// enumerate pairs -> bounded-parallel execution -> incremental persistence
// -> terminal transition. During an active run the controller is the
// session's sole writer.
type Controller struct {
	sessions  domain.SessionRepository
	catalog   domain.AgentCatalog
	runner    PairRunner
	pubsub    Publisher
	notifier  Notifier
	estimator CostEstimator
	cfg       Config

	runs map[uuid.UUID]*run
	mu   sync.RWMutex

	done chan struct{}
}

// run tracks one active execution. pause and cancel stop dispatch
// cooperatively: in-flight workers always finish their current pair.
type run struct {
	stop         chan struct{}
	stopOnce     sync.Once
	finished     chan struct{}
	pauseWanted  bool
	cancelWanted bool
	cancelReason string
	signalMu     sync.Mutex
}

func (r *run) requestStop(pause bool, reason string) {
	r.signalMu.Lock()
	if pause {
		r.pauseWanted = true
	} else {
		r.cancelWanted = true
		r.cancelReason = reason
	}
	r.signalMu.Unlock()
	r.stopOnce.Do(func() { close(r.stop) })
}

func NewController(
	sessions domain.SessionRepository,
	catalog domain.AgentCatalog,
	runner PairRunner,
	pubsub Publisher,
	notifier Notifier,
	cfg Config,
) *Controller {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	c := &Controller{
		sessions: sessions,
		catalog:  catalog,
		runner:   runner,
		pubsub:   pubsub,
		notifier: notifier,
		cfg:      cfg,
		runs:     make(map[uuid.UUID]*run),
		done:     make(chan struct{}),
	}
	c.estimator = c.worstPairCost
	return c
}

// SetCostEstimator overrides the worst-case pair estimator.
func (c *Controller) SetCostEstimator(e CostEstimator) {
	if e != nil {
		c.estimator = e
	}
}

// worstPairCost bounds one pair by the configured prompt-size ceiling and
// the executor's output budget at the tier the pair would run on.
func (c *Controller) worstPairCost(agent *domain.Agent, cls interview.Classification) float64 {
	tier := interview.TierFor(cls, agent)
	return llm.MaxCost(tier, c.cfg.MaxInputTokens, int64(c.runner.MaxTokens()))
}

// Shutdown stops dispatch on every active run and waits for the pools to
// drain. In-flight pairs finish; sessions are left paused-equivalent in
// their last persisted state.
func (c *Controller) Shutdown() {
	close(c.done)

	c.mu.RLock()
	active := make([]*run, 0, len(c.runs))
	for _, r := range c.runs {
		active = append(active, r)
	}
	c.mu.RUnlock()

	for _, r := range active {
		r.requestStop(true, "")
		<-r.finished
	}
}

// StartSession creates a session for the given batch and starts executing
// it. The cost ceiling is enforced before dispatch of every pair.
func (c *Controller) StartSession(
	ctx context.Context,
	ownerID uuid.UUID,
	title string,
	questions []domain.Question,
	agentIDs []uuid.UUID,
	candidates []string,
	costCeiling float64,
) (*domain.Session, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("engine.Controller.StartSession: no questions: %w", ErrInvalidSessionState)
	}
	if len(agentIDs) == 0 {
		return nil, fmt.Errorf("engine.Controller.StartSession: no agents: %w", ErrInvalidSessionState)
	}
	if costCeiling <= 0 {
		return nil, fmt.Errorf("engine.Controller.StartSession: cost ceiling must be positive: %w", ErrInvalidSessionState)
	}

	agents, err := c.loadAgents(ctx, agentIDs)
	if err != nil {
		return nil, fmt.Errorf("engine.Controller.StartSession: %w", err)
	}

	now := time.Now()
	session := &domain.Session{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       title,
		Questions:   questions,
		AgentIDs:    agentIDs,
		Candidates:  candidates,
		Status:      domain.SessionCreated,
		CostCeiling: costCeiling,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := c.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("engine.Controller.StartSession: create session: %w", err)
	}

	session.Status = domain.SessionRunning
	if err := c.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("engine.Controller.StartSession: save running: %w", err)
	}

	c.launch(session, agents)

	return session, nil
}

// Pause stops new dispatch for a running session. In-flight interviews
// finish; the session transitions to paused once the pool drains.
func (c *Controller) Pause(ctx context.Context, sessionID uuid.UUID) error {
	session, err := c.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("engine.Controller.Pause: %w", err)
	}
	if session.Status != domain.SessionRunning {
		return fmt.Errorf("engine.Controller.Pause: session status %q: %w", session.Status, ErrInvalidSessionState)
	}

	r, ok := c.activeRun(sessionID)
	if !ok {
		return fmt.Errorf("engine.Controller.Pause: %w", ErrSessionNotFound)
	}
	r.requestStop(true, "")

	return nil
}

// Resume continues a paused session from the next unprocessed pair.
// Already-recorded results are never redone.
func (c *Controller) Resume(ctx context.Context, sessionID uuid.UUID) error {
	if _, active := c.activeRun(sessionID); active {
		return fmt.Errorf("engine.Controller.Resume: session still draining: %w", ErrInvalidSessionState)
	}

	session, err := c.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("engine.Controller.Resume: %w", err)
	}
	if !session.Status.ValidTransition(domain.SessionRunning) {
		return fmt.Errorf("engine.Controller.Resume: session status %q: %w", session.Status, ErrInvalidSessionState)
	}

	agents, err := c.loadAgents(ctx, session.AgentIDs)
	if err != nil {
		return fmt.Errorf("engine.Controller.Resume: %w", err)
	}

	session.Status = domain.SessionRunning
	session.UpdatedAt = time.Now()
	if err := c.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("engine.Controller.Resume: save running: %w", err)
	}

	c.launch(session, agents)

	return nil
}

// Cancel aborts a session. Partial results are retained and the session is
// flagged incomplete.
func (c *Controller) Cancel(ctx context.Context, sessionID uuid.UUID) error {
	if r, ok := c.activeRun(sessionID); ok {
		r.requestStop(false, domain.CancelReasonUserRequested)
		return nil
	}

	// No active run: a paused or created session is cancelled directly.
	session, err := c.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("engine.Controller.Cancel: %w", err)
	}
	if !session.Status.ValidTransition(domain.SessionCancelled) {
		return fmt.Errorf("engine.Controller.Cancel: session status %q: %w", session.Status, ErrInvalidSessionState)
	}

	session.Status = domain.SessionCancelled
	session.CancelReason = domain.CancelReasonUserRequested
	session.Partial = len(session.Results) < session.PairCount()
	session.UpdatedAt = time.Now()
	if err := c.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("engine.Controller.Cancel: save: %w", err)
	}

	c.notifier.SessionEnded(ctx, session)

	return nil
}

// Progress reports the externally visible advancement of a session.
func (c *Controller) Progress(ctx context.Context, sessionID uuid.UUID) (*domain.Progress, error) {
	session, err := c.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("engine.Controller.Progress: %w", err)
	}

	total := session.PairCount()
	completed := len(session.Results)
	percent := 0.0
	if total > 0 {
		percent = float64(completed) / float64(total) * 100
	}

	return &domain.Progress{
		Status:       session.Status,
		Percent:      percent,
		Completed:    completed,
		Total:        total,
		CostSoFar:    session.CostAccumulated,
		InputTokens:  session.InputTokens,
		OutputTokens: session.OutputTokens,
	}, nil
}

// Results returns the recorded results in append order of completion.
// Consumers must group by agent or question themselves.
func (c *Controller) Results(ctx context.Context, sessionID uuid.UUID) ([]*domain.InterviewResult, error) {
	session, err := c.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("engine.Controller.Results: %w", err)
	}
	return session.Results, nil
}

// IsActive reports whether a session has a live run. The syncer refuses
// to touch active sessions.
func (c *Controller) IsActive(sessionID uuid.UUID) bool {
	_, ok := c.activeRun(sessionID)
	return ok
}

func (c *Controller) activeRun(sessionID uuid.UUID) (*run, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.runs[sessionID]
	return r, ok
}

func (c *Controller) loadAgents(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Agent, error) {
	agents := make(map[uuid.UUID]*domain.Agent, len(ids))
	for _, id := range ids {
		agent, err := c.catalog.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load agent %s: %w", id, err)
		}
		agents[id] = agent
	}
	return agents, nil
}

func (c *Controller) launch(session *domain.Session, agents map[uuid.UUID]*domain.Agent) {
	r := &run{
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	c.mu.Lock()
	c.runs[session.ID] = r
	c.mu.Unlock()

	go c.execute(session, agents, r)
}

// pair is one unit of dispatch with its pre-reserved cost estimate.
type pair struct {
	agent    *domain.Agent
	question domain.Question
	class    interview.Classification
	estimate float64
}

type pairOutcome struct {
	result   *domain.InterviewResult
	estimate float64
}

// execute drives one run to a terminal or paused state. It is the single
// goroutine that mutates the session; workers only hand results back over
// a channel, so counter updates and appends are serialized here.
func (c *Controller) execute(session *domain.Session, agents map[uuid.UUID]*domain.Agent, r *run) {
	defer close(r.finished)
	defer func() {
		c.mu.Lock()
		delete(c.runs, session.ID)
		c.mu.Unlock()
	}()

	ctx := context.Background()

	// Classifications are computed once per question per session.
	classes := make(map[uuid.UUID]interview.Classification, len(session.Questions))
	for _, q := range session.Questions {
		classes[q.ID] = interview.Classify(q, session.Candidates)
	}

	// Enumerate pending pairs: everything without a recorded result.
	processed := session.ProcessedPairs()
	var pending []pair
	for _, agentID := range session.AgentIDs {
		agent := agents[agentID]
		for _, q := range session.Questions {
			if _, done := processed[domain.PairKey(agentID, q.ID)]; done {
				continue
			}
			cls := classes[q.ID]
			pending = append(pending, pair{
				agent:    agent,
				question: q,
				class:    cls,
				estimate: c.estimator(agent, cls),
			})
		}
	}

	jobs := make(chan pair)
	outcomes := make(chan pairOutcome)

	var wg sync.WaitGroup
	for range c.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				// A pair handed over concurrently with a stop signal is
				// skipped atomically: nothing runs, nothing is recorded.
				select {
				case <-r.stop:
					outcomes <- pairOutcome{estimate: p.estimate}
					continue
				default:
				}
				res := c.runner.Run(ctx, session.ID, p.agent, p.question, p.class)
				outcomes <- pairOutcome{result: res, estimate: p.estimate}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// Dispatcher: reserves budget before handing out each pair, so the
	// ceiling is guaranteed before the call is made, not checked after.
	reserved := make(chan float64, 1)
	reserved <- 0.0
	ceilingHit := false

	go func() {
		defer close(jobs)
		for _, p := range pending {
			select {
			case <-r.stop:
				return
			default:
			}

			res := <-reserved
			if session.CostAccumulated+res+p.estimate > session.CostCeiling {
				// This pair would exceed the ceiling: do not execute it.
				ceilingHit = true
				reserved <- res
				return
			}
			reserved <- res + p.estimate

			select {
			case <-r.stop:
				// Undo the reservation; the pair never ran.
				res = <-reserved
				reserved <- res - p.estimate
				return
			case jobs <- p:
			}
		}
	}()

	// Collector: the single serialized accumulation point. Results land in
	// append order of completion, not dispatch order.
	failures := 0
	saveFailures := 0
	fatal := false
	storageDown := false
	for out := range outcomes {
		// The reservation token doubles as the lock on the session's cost
		// counters, which the dispatcher reads against the ceiling.
		res := <-reserved
		if out.result != nil {
			session.AppendResult(out.result)
		}
		reserved <- res - out.estimate

		if out.result == nil {
			continue // pair was skipped by a stop signal
		}

		if out.result.Failure != "" {
			failures++
			if out.result.Failure == domain.FailureFatalInvocation {
				fatal = true
				r.requestStop(false, "")
			} else if failures >= c.cfg.MinFailureSample &&
				float64(failures) > c.cfg.FailureRatio*float64(session.PairCount()) {
				fatal = true
				session.Error = "failure ratio exceeded"
				r.requestStop(false, "")
			}
		}

		if err := c.sessions.Save(ctx, session); err != nil {
			saveFailures++
			log.Error().Err(err).Str("session_id", session.ID.String()).Msg("engine: incremental save failed")
			// A persistent store outage fails the session: keeping the
			// workers going would spend model budget on results that can
			// never be recorded.
			if !storageDown && saveFailures >= maxConsecutiveSaveFailures {
				storageDown = true
				r.requestStop(false, "")
			}
		} else {
			saveFailures = 0
		}
		c.publishProgress(session)
	}

	c.finish(ctx, session, r, ceilingHit, fatal, storageDown)
}

// finish applies the terminal (or paused) transition once the pool has
// drained and persists the final snapshot.
func (c *Controller) finish(ctx context.Context, session *domain.Session, r *run, ceilingHit, fatal, storageDown bool) {
	r.signalMu.Lock()
	pauseWanted := r.pauseWanted
	cancelWanted := r.cancelWanted
	cancelReason := r.cancelReason
	r.signalMu.Unlock()

	complete := len(session.ProcessedPairs()) == session.PairCount()
	now := time.Now()

	switch {
	case storageDown:
		session.Status = domain.SessionFailed
		session.Error = "session store unavailable"
		session.Partial = !complete
	case fatal:
		session.Status = domain.SessionFailed
		if session.Error == "" {
			session.Error = "fatal invocation error"
		}
		session.Partial = !complete
	case ceilingHit:
		session.Status = domain.SessionCancelled
		session.CancelReason = domain.CancelReasonCostLimitReached
		session.Partial = true
	case cancelWanted:
		session.Status = domain.SessionCancelled
		if cancelReason == "" {
			cancelReason = domain.CancelReasonUserRequested
		}
		session.CancelReason = cancelReason
		session.Partial = !complete
	case complete:
		session.Status = domain.SessionCompleted
		session.CompletedAt = &now
	case pauseWanted:
		session.Status = domain.SessionPaused
	default:
		// Shutdown without an explicit signal: leave the session paused so
		// a later resume picks up the remaining pairs.
		session.Status = domain.SessionPaused
	}

	session.UpdatedAt = now
	var saveErr error
	for attempt := range finalSaveAttempts {
		if saveErr = c.sessions.Save(ctx, session); saveErr == nil {
			break
		}
		time.Sleep(time.Duration(attempt+1) * finalSaveBackoff)
	}
	if saveErr != nil {
		log.Error().Err(saveErr).Str("session_id", session.ID.String()).Msg("engine: final save failed")
	}

	c.publishProgress(session)

	if session.Status.Terminal() {
		c.publishSessionEnded(session)
		c.notifier.SessionEnded(ctx, session)
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("status", string(session.Status)).
		Int("results", len(session.Results)).
		Float64("cost", session.CostAccumulated).
		Msg("engine: run finished")
}

// publishProgress pushes a best-effort progress event to the session's
// channel. Decoupled from any caller deadline.
func (c *Controller) publishProgress(session *domain.Session) {
	if c.pubsub == nil {
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	total := session.PairCount()
	percent := 0.0
	if total > 0 {
		percent = float64(len(session.Results)) / float64(total) * 100
	}

	evt := map[string]any{
		"type":       "session_progress",
		"session_id": session.ID.String(),
		"status":     string(session.Status),
		"percent":    percent,
		"completed":  len(session.Results),
		"total":      total,
		"cost":       session.CostAccumulated,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if pubErr := c.pubsub.Publish(pubCtx, redisstore.SessionChannel(session.ID), payload); pubErr != nil {
		log.Debug().Err(pubErr).Str("session_id", session.ID.String()).Msg("engine: progress publish failed")
	}
}

// publishSessionEnded pushes a terminal event to the owner's channel, so a
// single subscription covers completions across all of a user's sessions.
func (c *Controller) publishSessionEnded(session *domain.Session) {
	if c.pubsub == nil {
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	evt := map[string]any{
		"type":       "session_ended",
		"session_id": session.ID.String(),
		"status":     string(session.Status),
		"results":    len(session.Results),
		"cost":       session.CostAccumulated,
	}
	if session.CancelReason != "" {
		evt["cancel_reason"] = session.CancelReason
	}
	if session.Error != "" {
		evt["error"] = session.Error
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if pubErr := c.pubsub.Publish(pubCtx, redisstore.OwnerChannel(session.OwnerID), payload); pubErr != nil {
		log.Debug().Err(pubErr).Str("session_id", session.ID.String()).Msg("engine: owner event publish failed")
	}
}
