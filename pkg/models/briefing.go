package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentiment is the analyst's directional read on a holding. The set below
// is the recognized vocabulary, but the field is deliberately open-ended:
// values outside it are carried through unchanged so that new categories
// never break older clients. Label renders the fallback form.
type Sentiment string

const (
	SentimentBullish             Sentiment = "bullish"
	SentimentBearish             Sentiment = "bearish"
	SentimentNeutral             Sentiment = "neutral"
	SentimentHighConvictionLong  Sentiment = "high-conviction-long"
	SentimentHighConvictionShort Sentiment = "high-conviction-short"
)

// sentimentLabels maps recognized sentiments to their display labels.
var sentimentLabels = map[Sentiment]string{
	SentimentBullish:             "Bullish",
	SentimentBearish:             "Bearish",
	SentimentNeutral:             "Neutral",
	SentimentHighConvictionLong:  "High Conviction Long",
	SentimentHighConvictionShort: "High Conviction Short",
}

// Known reports whether the sentiment is in the recognized set.
func (s Sentiment) Known() bool {
	_, ok := sentimentLabels[s]
	return ok
}

// Label returns a display label: the canonical label for recognized
// sentiments, or the raw value uppercased for anything else.
func (s Sentiment) Label() string {
	if label, ok := sentimentLabels[s]; ok {
		return label
	}
	return strings.ToUpper(string(s))
}

// HoldingAnalysis is the analyst's narrative on one holding.
type HoldingAnalysis struct {
	Symbol    string    `json:"symbol"`
	Thesis    *string   `json:"thesis"`
	Analysis  string    `json:"analysis"`
	Sentiment Sentiment `json:"sentiment"`
}

// BriefingResponse is the full intelligence briefing for one portfolio.
// HoldingsAnalyses contains exactly one entry per holding in the portfolio
// at request time, in holdings order. MarketSnapshot is structurally
// present even when degraded; consumers check Empty before rendering an
// as-of banner.
type BriefingResponse struct {
	PortfolioID      uuid.UUID         `json:"portfolio_id"`
	GeneratedAt      time.Time         `json:"generated_at"`
	HoldingsAnalyses []HoldingAnalysis `json:"holdings_analyses"`
	PortfolioSummary string            `json:"portfolio_summary"`
	RiskAlerts       []string          `json:"risk_alerts"`
	MarketSnapshot   *MarketSnapshot   `json:"market_snapshot"`
}
