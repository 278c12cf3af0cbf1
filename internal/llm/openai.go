package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/koustreak/nlsql/internal/errs"
	"github.com/koustreak/nlsql/internal/logger"
)

const (
	DefaultBaseURL       = "https://api.openai.com"
	DefaultPrimaryModel  = "gpt-4"
	DefaultFallbackModel = "gpt-3.5-turbo"
	DefaultMaxTokens     = 300
	DefaultTimeout       = 30 * time.Second
)

// OpenAIConfig configures an OpenAI-compatible chat completions client.
type OpenAIConfig struct {
	BaseURL       string
	APIKey        string
	PrimaryModel  string
	FallbackModel string // empty disables the fallback attempt
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	Logger        *logger.Logger
}

// OpenAIGenerator calls /v1/chat/completions. When the primary model fails
// for any reason it makes exactly one attempt with the fallback model.
type OpenAIGenerator struct {
	baseURL       string
	apiKey        string
	primaryModel  string
	fallbackModel string
	temperature   float64
	maxTokens     int
	client        *http.Client
	log           *logger.Logger
}

var _ Generator = (*OpenAIGenerator)(nil)

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "llm api key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	primary := strings.TrimSpace(cfg.PrimaryModel)
	if primary == "" {
		primary = DefaultPrimaryModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &OpenAIGenerator{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        strings.TrimSpace(cfg.APIKey),
		primaryModel:  primary,
		fallbackModel: strings.TrimSpace(cfg.FallbackModel),
		temperature:   cfg.Temperature,
		maxTokens:     maxTokens,
		client:        &http.Client{Timeout: timeout},
		log:           log.Component("llm"),
	}, nil
}

func (g *OpenAIGenerator) GenerateSQL(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Result{}, errs.New(errs.ErrKindInvalidInput, "question is required")
	}

	messages := []chatMessage{
		{Role: "system", Content: SystemPrompt(req.Schema, req.Dialect)},
		{Role: "user", Content: UserPrompt(strings.TrimSpace(req.Question))},
	}

	sql, err := g.complete(ctx, g.primaryModel, messages)
	if err == nil {
		return Result{SQL: sql, Provider: "openai-compatible", Model: g.primaryModel}, nil
	}
	if g.fallbackModel == "" || ctx.Err() != nil {
		return Result{}, wrapGenerationError(ctx, err)
	}

	g.log.WarnWith("primary model failed, trying fallback", err, map[string]any{
		"primary":  g.primaryModel,
		"fallback": g.fallbackModel,
	})

	sql, err = g.complete(ctx, g.fallbackModel, messages)
	if err != nil {
		return Result{}, wrapGenerationError(ctx, err)
	}
	return Result{SQL: sql, Provider: "openai-compatible", Model: g.fallbackModel}, nil
}

func wrapGenerationError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errs.Wrap(errs.ErrKindTimeout, "llm request cancelled", err)
	}
	return errs.Wrap(errs.ErrKindGenerationFailed, "llm service error", err)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *OpenAIGenerator) complete(ctx context.Context, model string, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat completion failed model=%s status=%d body=%s", model, resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}

	sql := StripMarkdownSQL(parsed.Choices[0].Message.Content)
	if sql == "" {
		return "", fmt.Errorf("model %s returned empty SQL", model)
	}
	return sql, nil
}
