package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

// defaultModels maps tiers to concrete model names. Overridable per
// provider for OpenAI-compatible gateways.
var defaultModels = map[Tier]string{
	TierEconomic: "gpt-4o-mini",
	TierBalanced: "gpt-4o",
	TierPremium:  "o1",
}

type OpenAIOption func(*OpenAIProvider)

// OpenAIProvider speaks the OpenAI-compatible chat-completions protocol.
// It performs exactly one attempt per Complete call; retries live in Client.
type OpenAIProvider struct {
	apiKey   string
	endpoint string
	models   map[Tier]string
	client   *http.Client
}

var _ Invoker = (*OpenAIProvider)(nil)

func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: defaultEndpoint,
		models:   defaultModels,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func WithEndpoint(endpoint string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			p.endpoint = trimmed
		}
	}
}

func WithModels(models map[Tier]string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if len(models) > 0 {
			p.models = models
		}
	}
}

func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		if client != nil {
			p.client = client
		}
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type apiErrorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if p.apiKey == "" {
		return Response{}, Fatal(errors.New("api key is required"))
	}
	if len(req.Messages) == 0 {
		return Response{}, Fatal(errors.New("at least one message is required"))
	}
	if req.MaxTokens <= 0 {
		return Response{}, Fatal(errors.New("max tokens must be greater than zero"))
	}

	model, ok := p.models[req.Tier]
	if !ok {
		return Response{}, Fatal(fmt.Errorf("no model configured for tier %q", req.Tier))
	}

	messages := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return Response{}, Fatal(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, Fatal(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		// Network-level failures (including client timeout) are retryable.
		return Response{}, Transient(fmt.Errorf("call model api: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, classifyStatus(resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return Response{}, Transient(fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return Response{}, Transient(errors.New("response contained no choices"))
	}

	return Response{
		Text:         parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		Cost:         Cost(req.Tier, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens),
	}, nil
}

// classifyStatus maps an HTTP error status to the invocation taxonomy:
// 429 and 5xx are transient, everything else (bad request, auth) is fatal.
func classifyStatus(resp *http.Response) *InvocationError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	message := strings.TrimSpace(string(body))
	if len(body) > 0 {
		var parsed apiErrorEnvelope
		if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Error.Message) != "" {
			message = parsed.Error.Message
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	err := fmt.Errorf("api status %d: %s", resp.StatusCode, message)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Transient(err)
	}
	return Fatal(err)
}
