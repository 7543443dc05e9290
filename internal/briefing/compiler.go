// Package briefing turns a portfolio plus a market snapshot into a
// validated intelligence briefing.
package briefing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/folioiq/folioiq/pkg/models"
)

// SnapshotSource assembles a market snapshot for a set of tickers.
type SnapshotSource interface {
	Assemble(ctx context.Context, symbols []string) (*models.MarketSnapshot, error)
}

// Compiler orchestrates briefing generation: snapshot assembly, the
// analysis call, and validation of the analyst's output against the
// portfolio.
type Compiler struct {
	snapshots SnapshotSource
	analyst   Analyst
	log       zerolog.Logger
}

// CompilerOption configures the compiler.
type CompilerOption func(*Compiler)

// WithCompilerLogger sets the compiler logger.
func WithCompilerLogger(log zerolog.Logger) CompilerOption {
	return func(c *Compiler) { c.log = log }
}

// NewCompiler creates a briefing compiler.
func NewCompiler(snapshots SnapshotSource, analyst Analyst, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		snapshots: snapshots,
		analyst:   analyst,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile generates a briefing for the portfolio. An empty portfolio is
// rejected before any market data is fetched. The analyst's output is
// repaired so the response carries exactly one analysis per distinct
// holding symbol, in holdings order.
func (c *Compiler) Compile(ctx context.Context, portfolio *models.Portfolio) (*models.BriefingResponse, error) {
	if len(portfolio.Holdings) == 0 {
		return nil, ErrEmptyPortfolio
	}

	symbols := portfolio.Symbols()

	c.log.Info().
		Str("portfolio_id", portfolio.ID.String()).
		Strs("symbols", symbols).
		Msg("assembling market snapshot")

	snap, err := c.snapshots.Assemble(ctx, symbols)
	if err != nil {
		return nil, err
	}
	if snap.Empty() {
		c.log.Warn().
			Str("portfolio_id", portfolio.ID.String()).
			Msg("market data unavailable, generating degraded briefing")
	}

	result, err := c.analyst.Analyze(ctx, AnalysisRequest{
		Holdings: portfolio.Holdings,
		Snapshot: snap,
	})
	if err != nil {
		return nil, err
	}

	analyses := c.repair(portfolio, result)

	riskAlerts := result.RiskAlerts
	if riskAlerts == nil {
		riskAlerts = []string{}
	}

	return &models.BriefingResponse{
		PortfolioID:      portfolio.ID,
		GeneratedAt:      time.Now().UTC(),
		HoldingsAnalyses: analyses,
		PortfolioSummary: result.PortfolioSummary,
		RiskAlerts:       riskAlerts,
		MarketSnapshot:   snap,
	}, nil
}

// repair reconciles the analyst's output with the portfolio: one entry
// per distinct symbol in holdings order, placeholders synthesized for
// symbols the analyst skipped, entries for unknown symbols discarded.
// Sentiments outside the recognized set pass through untouched.
func (c *Compiler) repair(portfolio *models.Portfolio, result *AnalysisResult) []models.HoldingAnalysis {
	bySymbol := make(map[string]models.HoldingAnalysis, len(result.HoldingsAnalyses))
	for _, ha := range result.HoldingsAnalyses {
		sym := models.NormalizeSymbol(ha.Symbol)
		if _, dup := bySymbol[sym]; dup {
			continue
		}
		ha.Symbol = sym
		if ha.Sentiment == "" {
			ha.Sentiment = models.SentimentNeutral
		}
		bySymbol[sym] = ha
	}

	// First holding per symbol supplies the thesis for placeholders.
	thesisBySymbol := make(map[string]*string, len(portfolio.Holdings))
	for _, h := range portfolio.Holdings {
		if _, ok := thesisBySymbol[h.Symbol]; !ok {
			thesisBySymbol[h.Symbol] = h.Thesis
		}
	}

	symbols := portfolio.Symbols()
	analyses := make([]models.HoldingAnalysis, 0, len(symbols))
	for _, sym := range symbols {
		if ha, ok := bySymbol[sym]; ok {
			analyses = append(analyses, ha)
			delete(bySymbol, sym)
			continue
		}
		c.log.Warn().Str("symbol", sym).Msg("analysis missing for holding, synthesizing placeholder")
		analyses = append(analyses, models.HoldingAnalysis{
			Symbol:    sym,
			Thesis:    thesisBySymbol[sym],
			Analysis:  "Insufficient data to produce an analysis for this position in this briefing.",
			Sentiment: models.SentimentNeutral,
		})
	}

	for sym := range bySymbol {
		c.log.Warn().Str("symbol", sym).Msg("discarding analysis for symbol not in portfolio")
	}

	return analyses
}
