// Package llm is the model invocation layer: tier selection, retry with
// exponential backoff, token and cost accounting.
package llm

import (
	"context"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged turn of the prompt.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Tier is a named quality/cost level of model invocation.
type Tier string

const (
	TierEconomic Tier = "economic"
	TierBalanced Tier = "balanced"
	TierPremium  Tier = "premium"
)

// tierPrice is USD per million tokens.
type tierPrice struct {
	In  float64
	Out float64
}

// Static per-tier price table. Cost accounting and the controller's
// worst-case budget reservation both read from here.
var prices = map[Tier]tierPrice{
	TierEconomic: {In: 0.15, Out: 0.60},
	TierBalanced: {In: 2.50, Out: 10.00},
	TierPremium:  {In: 15.00, Out: 75.00},
}

// Cost computes the monetary cost of one invocation at the given tier.
func Cost(tier Tier, inputTokens, outputTokens int64) float64 {
	p, ok := prices[tier]
	if !ok {
		p = prices[TierBalanced]
	}
	return float64(inputTokens)/1e6*p.In + float64(outputTokens)/1e6*p.Out
}

// MaxCost is the worst-case cost of a call bounded by maxInputTokens and
// maxOutputTokens. The session controller uses it to reserve budget before
// dispatch so the cost ceiling is never exceeded mid-call.
func MaxCost(tier Tier, maxInputTokens, maxOutputTokens int64) float64 {
	return Cost(tier, maxInputTokens, maxOutputTokens)
}

// Request is one completion call.
type Request struct {
	Messages  []Message
	Tier      Tier
	MaxTokens int // output token budget
}

// Response carries the generated text with its accounting.
type Response struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// Invoker performs a single completion attempt. Implementations do not
// retry; Client layers the retry policy on top.
type Invoker interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
