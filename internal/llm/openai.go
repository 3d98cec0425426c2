package llm

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/metrics"
	"github.com/trustbites/backend/pkg/logger"
)

// ChatCompleter is the part of the go-openai client the invoker uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIInvoker targets OpenAI-compatible chat endpoints, including
// self-hosted llama.cpp and vLLM servers.
type OpenAIInvoker struct {
	client      ChatCompleter
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func NewOpenAIInvoker(client ChatCompleter, temperature float32, maxTokens int, timeout time.Duration) *OpenAIInvoker {
	logger.Info("OpenAI-compatible invoker initialized",
		zap.Float32("temperature", temperature),
		zap.Int("max_tokens", maxTokens),
	)

	return &OpenAIInvoker{
		client:      client,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
	}
}

func (o *OpenAIInvoker) Invoke(ctx context.Context, prompt, modelID string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	elapsed := time.Since(start)

	if err != nil {
		metrics.ModelInvocationDuration.WithLabelValues(modelID, "error").Observe(elapsed.Seconds())
		return "", invocationError(modelID, err)
	}
	if len(resp.Choices) == 0 {
		metrics.ModelInvocationDuration.WithLabelValues(modelID, "empty").Observe(elapsed.Seconds())
		return "", invocationError(modelID, ErrEmptyResponse)
	}

	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		metrics.ModelInvocationDuration.WithLabelValues(modelID, "malformed").Observe(elapsed.Seconds())
		return "", invocationError(modelID, ErrMissingText)
	}

	metrics.ModelInvocationDuration.WithLabelValues(modelID, "ok").Observe(elapsed.Seconds())
	logger.Debug("Chat completion received",
		zap.String("model_id", modelID),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return text, nil
}
