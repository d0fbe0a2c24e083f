package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/lueurxax/filmosphere/internal/config"
)

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 1 * time.Minute

	rateLimiterBurst = 5
)

var errCircuitOpen = errors.New("llm circuit breaker is open")

type openaiClient struct {
	cfg         *config.Config
	client      *openai.Client
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter

	// Circuit breaker state
	consecutiveFailures int
	circuitOpenUntil    time.Time
	mu                  sync.Mutex
}

func newOpenAI(cfg *config.Config, logger *zerolog.Logger) Client {
	clientConfig := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		clientConfig.BaseURL = cfg.LLMBaseURL
	}

	return &openaiClient{
		cfg:         cfg,
		client:      openai.NewClientWithConfig(clientConfig),
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.LLMRateLimitRPS)), rateLimiterBurst),
	}
}

func (c *openaiClient) Configured() bool {
	return true
}

func (c *openaiClient) Chat(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	if err := c.checkCircuit(); err != nil {
		return "", err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.LLMModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		c.recordFailure()

		return "", fmt.Errorf("openai chat completion error: %w", err)
	}

	c.recordSuccess()

	if len(resp.Choices) == 0 {
		return "", errEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug().Str("model", c.cfg.LLMModel).Int("len", len(content)).Msg("LLM response")

	return content, nil
}

var errEmptyResponse = errors.New("llm returned no choices")

func (c *openaiClient) checkCircuit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().Before(c.circuitOpenUntil) {
		return fmt.Errorf("%w until %v", errCircuitOpen, c.circuitOpenUntil)
	}

	return nil
}

func (c *openaiClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveFailures = 0
}

func (c *openaiClient) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveFailures++

	if c.consecutiveFailures >= circuitBreakerThreshold {
		c.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
		c.logger.Warn().
			Int("consecutive_failures", c.consecutiveFailures).
			Time("open_until", c.circuitOpenUntil).
			Msg("Circuit breaker opened")
	}
}

// HTTPStatus extracts the upstream HTTP status code from a chat completion
// error, when the provider rejected the request at the HTTP level.
func HTTPStatus(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 {
		return apiErr.HTTPStatusCode, true
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode >= 400 {
		return reqErr.HTTPStatusCode, true
	}

	return 0, false
}
