package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Sentinel errors for oracle failures. Callers fall back to local defaults
// on either; the distinction exists for logs, not control flow.
var (
	// ErrUnavailable wraps timeouts, transport failures and server errors.
	ErrUnavailable = errors.New("oracle unavailable")

	// ErrRateLimited wraps HTTP 429 responses from the provider.
	ErrRateLimited = errors.New("oracle rate limited")
)

// ReasoningEffort controls the amount of reasoning for supported models.
type ReasoningEffort string

const (
	ReasoningEffortLow    ReasoningEffort = "low"
	ReasoningEffortMedium ReasoningEffort = "medium"
	ReasoningEffortHigh   ReasoningEffort = "high"
)

// Config holds LLM client configuration.
type Config struct {
	Provider        string          // "openai" or "anthropic"
	APIKey          string          // Required: API key for the provider
	BaseURL         string          // Optional: custom API endpoint
	Model           string          // Model name (e.g., "gpt-4o-mini", "claude-sonnet-4-5-20250514")
	ReasoningEffort ReasoningEffort // Optional: for models that support reasoning
}

// Client is the language-oracle boundary: one prompt in, raw text out.
// No structure is guaranteed on the response; callers that expect JSON are
// responsible for extracting and validating it themselves.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Model() string
}

// Request contains the prompts for a single completion.
type Request struct {
	System      string   // Optional system prompt
	Prompt      string   // User prompt
	MaxTokens   int      // 0 = provider default
	Temperature *float64 // nil = model default, explicit 0 = deterministic
}

// Response contains the oracle's raw completion.
type Response struct {
	Text             string
	FinishReason     string // "stop", "length"
	PromptTokens     int
	CompletionTokens int
}

// NewClient creates a Client for the configured provider.
// Defaults to OpenAI if no provider is specified.
func NewClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIClient(cfg)
	case ProviderAnthropic:
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// GenerateSchema generates a JSON schema for T, suitable for rendering into
// a prompt so the oracle sees the exact shape it must answer with.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// Temp returns a pointer to a temperature value for Request.Temperature.
func Temp(t float64) *float64 {
	return &t
}

// classifyError wraps provider errors with the package sentinels so callers
// can errors.Is against ErrRateLimited / ErrUnavailable without knowing
// which SDK produced the failure.
func classifyError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		if openaiErr.StatusCode == 429 {
			slog.WarnContext(ctx, "oracle rate limited", "status_code", openaiErr.StatusCode)
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		if openaiErr.StatusCode >= 500 {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		if anthropicErr.StatusCode == 429 {
			slog.WarnContext(ctx, "oracle rate limited", "status_code", anthropicErr.StatusCode)
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		if anthropicErr.StatusCode >= 500 {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}

	// No API response at all: network-level failure
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
