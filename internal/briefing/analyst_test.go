package briefing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/folioiq/folioiq/internal/llm"
	"github.com/folioiq/folioiq/pkg/models"
)

type fakeProvider struct {
	response *llm.Response
	err      error
	delay    time.Duration
	lastMsgs []llm.Message
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Chat(ctx context.Context, messages []llm.Message, _ *llm.ChatOptions) (*llm.Response, error) {
	f.lastMsgs = messages
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.response, f.err
}

func (f *fakeProvider) Ping(context.Context) error { return nil }

func analysisJSON() string {
	return `{
		"holdings_analyses": [
			{"symbol": "AAPL", "thesis": null, "analysis": "the take", "sentiment": "bullish"}
		],
		"portfolio_summary": "macro view",
		"risk_alerts": ["alert"]
	}`
}

func testRequest() AnalysisRequest {
	p := testPortfolio()
	return AnalysisRequest{Holdings: p.Holdings, Snapshot: testSnapshot()}
}

func TestLLMAnalystAnalyze(t *testing.T) {
	provider := &fakeProvider{response: &llm.Response{Content: analysisJSON()}}
	a := NewLLMAnalyst(provider)

	result, err := a.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(result.HoldingsAnalyses) != 1 {
		t.Fatalf("got %d analyses", len(result.HoldingsAnalyses))
	}
	if result.HoldingsAnalyses[0].Sentiment != models.SentimentBullish {
		t.Errorf("Sentiment = %q", result.HoldingsAnalyses[0].Sentiment)
	}
	if result.PortfolioSummary != "macro view" {
		t.Errorf("PortfolioSummary = %q", result.PortfolioSummary)
	}

	if len(provider.lastMsgs) != 2 {
		t.Fatalf("sent %d messages, want system + user", len(provider.lastMsgs))
	}
	if provider.lastMsgs[0].Role != llm.RoleSystem {
		t.Error("first message should be the system prompt")
	}
}

func TestLLMAnalystCodeFencedOutput(t *testing.T) {
	provider := &fakeProvider{response: &llm.Response{
		Content: "```json\n" + analysisJSON() + "\n```",
	}}
	a := NewLLMAnalyst(provider)

	result, err := a.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(result.HoldingsAnalyses) != 1 {
		t.Errorf("got %d analyses", len(result.HoldingsAnalyses))
	}
}

func TestLLMAnalystTimeout(t *testing.T) {
	provider := &fakeProvider{
		response: &llm.Response{Content: analysisJSON()},
		delay:    time.Second,
	}
	a := NewLLMAnalyst(provider, WithTimeout(10*time.Millisecond))

	_, err := a.Analyze(context.Background(), testRequest())
	if !errors.Is(err, ErrAnalysisTimeout) {
		t.Errorf("err = %v, want ErrAnalysisTimeout", err)
	}
}

func TestLLMAnalystProviderDown(t *testing.T) {
	provider := &fakeProvider{err: llm.ErrProviderDown}
	a := NewLLMAnalyst(provider)

	_, err := a.Analyze(context.Background(), testRequest())
	if !errors.Is(err, ErrAnalysisUnavailable) {
		t.Errorf("err = %v, want ErrAnalysisUnavailable", err)
	}
}

func TestLLMAnalystMalformedOutput(t *testing.T) {
	provider := &fakeProvider{response: &llm.Response{Content: "I think AAPL is great!"}}
	a := NewLLMAnalyst(provider)

	_, err := a.Analyze(context.Background(), testRequest())
	if !errors.Is(err, ErrMalformedOutput) {
		t.Errorf("err = %v, want ErrMalformedOutput", err)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.in); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
