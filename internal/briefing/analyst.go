package briefing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/folioiq/folioiq/internal/llm"
	"github.com/folioiq/folioiq/pkg/models"
)

// AnalysisRequest carries everything the analyst sees: the positions
// and the market snapshot rendered into its prompt.
type AnalysisRequest struct {
	Holdings []models.Holding
	Snapshot *models.MarketSnapshot
}

// AnalysisResult is the analyst's raw output before validation. The
// compiler repairs it against the portfolio, so entries may be missing,
// extraneous, or carry unknown sentiments.
type AnalysisResult struct {
	HoldingsAnalyses []models.HoldingAnalysis `json:"holdings_analyses"`
	PortfolioSummary string                   `json:"portfolio_summary"`
	RiskAlerts       []string                 `json:"risk_alerts"`
}

// Analyst produces a portfolio analysis from a request. Implementations
// make exactly one backend call per request.
type Analyst interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}

// LLMAnalyst runs the analysis through a chat LLM provider.
type LLMAnalyst struct {
	provider    llm.Provider
	temperature float64
	maxTokens   int
	timeout     time.Duration
	log         zerolog.Logger
}

// LLMAnalystOption configures the analyst.
type LLMAnalystOption func(*LLMAnalyst)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) LLMAnalystOption {
	return func(a *LLMAnalyst) { a.temperature = t }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) LLMAnalystOption {
	return func(a *LLMAnalyst) { a.maxTokens = n }
}

// WithTimeout bounds the analysis call.
func WithTimeout(d time.Duration) LLMAnalystOption {
	return func(a *LLMAnalyst) { a.timeout = d }
}

// WithAnalystLogger sets the analyst logger.
func WithAnalystLogger(log zerolog.Logger) LLMAnalystOption {
	return func(a *LLMAnalyst) { a.log = log }
}

// NewLLMAnalyst creates an analyst over the given provider.
func NewLLMAnalyst(provider llm.Provider, opts ...LLMAnalystOption) *LLMAnalyst {
	a := &LLMAnalyst{
		provider:    provider,
		temperature: 0.7,
		maxTokens:   8096,
		timeout:     120 * time.Second,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze sends the portfolio to the model and parses its JSON reply.
// A deadline overrun maps to ErrAnalysisTimeout, any other backend
// failure to ErrAnalysisUnavailable, and unparseable output to
// ErrMalformedOutput.
func (a *LLMAnalyst) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	messages := []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(buildUserMessage(req.Holdings, req.Snapshot)),
	}

	resp, err := a.provider.Chat(cctx, messages, &llm.ChatOptions{
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || cctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", ErrAnalysisTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}

	a.log.Debug().
		Str("provider", resp.Provider).
		Str("model", resp.Model).
		Int("total_tokens", resp.Usage.TotalTokens).
		Dur("latency", resp.Latency).
		Msg("analysis completed")

	var result AnalysisResult
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &result); err != nil {
		a.log.Error().Err(err).Str("raw", truncate(resp.Content, 500)).Msg("unparseable analysis output")
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	return &result, nil
}

// extractJSON strips a Markdown code fence when the model wraps its
// JSON in one despite instructions.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if _, rest, ok := strings.Cut(text, "\n"); ok {
		text = rest
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
