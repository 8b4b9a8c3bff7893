package explain

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/miradorstack/covers-forecast/internal/models"
)

// AnthropicConfig configures the Anthropic-backed text generator.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration
	// RequestsPerSecond bounds outbound calls; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// AnthropicGenerator implements TextGenerator with the Messages API.
type AnthropicGenerator struct {
	client  sdk.Client
	cfg     AnthropicConfig
	limiter *rate.Limiter
}

// NewAnthropicGenerator builds a generator. Extra request options are passed
// to the SDK client (base URL, retries).
func NewAnthropicGenerator(cfg AnthropicConfig, opts ...option.RequestOption) *AnthropicGenerator {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-20241022"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	clientOpts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	return &AnthropicGenerator{
		client:  sdk.NewClient(clientOpts...),
		cfg:     cfg,
		limiter: limiter,
	}
}

// Generate sends prompt as a single user message and returns the text blocks joined.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: text generation rate limit: %v", models.ErrExternalService, err)
		}
	}

	msg, err := g.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(g.cfg.Model),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: sdk.Float(g.cfg.Temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: anthropic create message: %v", models.ErrExternalService, err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: anthropic returned no text", models.ErrExternalService)
	}
	return strings.Join(parts, "\n"), nil
}
