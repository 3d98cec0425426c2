package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/metrics"
	"github.com/trustbites/backend/pkg/logger"
)

// BedrockAPI is the slice of the Bedrock runtime client the invoker needs.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type BedrockInvoker struct {
	api      BedrockAPI
	registry *Registry
	timeout  time.Duration
}

func NewBedrockClient(ctx context.Context, region string) (*bedrockruntime.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return bedrockruntime.NewFromConfig(cfg), nil
}

func NewBedrockInvoker(api BedrockAPI, registry *Registry, timeout time.Duration) *BedrockInvoker {
	logger.Info("Bedrock invoker initialized",
		zap.Strings("models", registry.Models()),
		zap.Duration("timeout", timeout),
	)

	return &BedrockInvoker{
		api:      api,
		registry: registry,
		timeout:  timeout,
	}
}

func (b *BedrockInvoker) Invoke(ctx context.Context, prompt, modelID string) (string, error) {
	envelope, ok := b.registry.Lookup(modelID)
	if !ok {
		return "", invocationError(modelID, ErrUnknownModel)
	}

	body, err := envelope.BuildRequest(prompt)
	if err != nil {
		return "", invocationError(modelID, fmt.Errorf("build request: %w", err))
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := b.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	elapsed := time.Since(start)

	if err != nil {
		metrics.ModelInvocationDuration.WithLabelValues(modelID, "error").Observe(elapsed.Seconds())
		return "", invocationError(modelID, err)
	}
	if out == nil || len(out.Body) == 0 {
		metrics.ModelInvocationDuration.WithLabelValues(modelID, "empty").Observe(elapsed.Seconds())
		return "", invocationError(modelID, ErrEmptyResponse)
	}

	text, err := envelope.ExtractText(out.Body)
	if err != nil {
		metrics.ModelInvocationDuration.WithLabelValues(modelID, "malformed").Observe(elapsed.Seconds())
		return "", invocationError(modelID, err)
	}

	metrics.ModelInvocationDuration.WithLabelValues(modelID, "ok").Observe(elapsed.Seconds())
	logger.Debug("Bedrock generation received",
		zap.String("model_id", modelID),
		zap.String("family", envelope.Family()),
		zap.Int("length", len(text)),
		zap.Duration("latency", elapsed),
	)

	return text, nil
}
