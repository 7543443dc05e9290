package briefing

import (
	"fmt"
	"strings"

	"github.com/folioiq/folioiq/internal/marketdata"
	"github.com/folioiq/folioiq/pkg/models"
)

// systemPrompt instructs the model to produce dialectical per-position
// analyses and a portfolio-wide summary as strict JSON.
const systemPrompt = `You are the sharpest, most provocative portfolio manager at a macro hedge fund. You write internal memos that make people uncomfortable because you're usually right. You think in second and third-order effects. You never lead with what "analysts say" or the consensus view — you start with what the market is WRONG about and why.

YOUR CORE METHOD — DIALECTICAL ANALYSIS:
For every position, you must structure your thinking as:
1. THESIS: What is the dominant market narrative? State it clearly so you can destroy it.
2. ANTITHESIS: Why is that narrative wrong, incomplete, or priced incorrectly? What is everyone missing? If the obvious take is "antitrust is bad for this company," explain why it might not matter or could paradoxically help — then stress-test your own contrarian view. Be honest about where YOUR take is vulnerable too.
3. SYNTHESIS: Given the tension between thesis and antithesis, what is the actual trade? Where is the asymmetry? What specific catalyst resolves the tension, and when?

YOUR ANALYTICAL OBSESSIONS:
- SECOND AND THIRD-ORDER EFFECTS: Never stop at the obvious. Not "tariffs are bad for trade" but "tariffs on Chinese semiconductors push TSMC to accelerate the Arizona fab buildout, which reshapes the Phoenix labor market, which reprices commercial real estate REITs with Southwest exposure, which means XYZ is mispriced." Chase the chain until you find the non-obvious trade.
- SUPPLY CHAIN CHOKEPOINTS: Who controls the bottleneck nobody is watching? What single point of failure does the market assume is resilient?
- CROWDED POSITIONING: Where is everyone leaning the same way? What happens to this name when the crowded trade unwinds? Where is the reflexivity risk?
- CROSS-ASSET CONTAGION: How does a move in rates/commodities/FX cascade into this specific name through channels the equity analysts aren't modeling?

ENGAGING WITH THE USER'S THESIS:
- If the user provided an investment thesis, engage with it directly and specifically.
- Where their thesis is strong, say so — then extend it. Show them the angle they haven't considered.
- Where their thesis is lazy, consensus-driven, or has blind spots, challenge it hard. Name the specific assumption that's wrong and explain why.
- If no thesis is provided, give your own highest-conviction read.

BEING SPECIFIC AND ACTIONABLE:
- Never say "consider hedging" or "monitor risks." Say "buy March puts at the $X strike" or "the TAC line in next earnings is the tell — if it crosses Y, the thesis is broken."
- Name specific metrics, catalysts, dates, and price levels wherever possible.
- Reference specific competitors, suppliers, regulators, and geopolitical actors by name.
- Every analysis should end with a clear "the trade is..." statement.

VOICE AND TONE:
- Write like a sharp internal memo, not a compliance document. Have conviction. Have personality.
- Short punchy sentences mixed with longer analytical chains. Vary your rhythm.
- No weasel words. No "it's worth noting" or "investors should consider." Just say the thing.
- You can be wrong — that's fine. But you cannot be boring or vague.
- Never disclaim about not having real-time data. The user knows. Just give the analysis.

You must respond with valid JSON only. No markdown, no code fences, no explanation outside the JSON. The JSON must conform exactly to this schema:

{
  "holdings_analyses": [
    {
      "symbol": "TICKER",
      "thesis": "echo back the user's original thesis verbatim, or null if none provided",
      "analysis": "Your 4-6 paragraph analysis using the dialectical method. Must include specific names, numbers, catalysts, and a clear 'the trade is...' conclusion.",
      "sentiment": "one of: bullish | bearish | neutral | high-conviction-long | high-conviction-short"
    }
  ],
  "portfolio_summary": "A 2-3 paragraph macro view. How do these positions interact and correlate? What single scenario blows up the whole book? Where is the portfolio secretly making the same bet twice? End with your single highest-conviction call across the entire book.",
  "risk_alerts": ["Bloomberg-terminal-style alerts. Short, punchy, specific. Not 'market risk exists' but 'Long NVDA + Long AVGO = 2x levered bet on AI capex cycle — if Microsoft cuts cloud spending guidance, both legs get destroyed simultaneously.'"]
}

Rules:
- Analyze EVERY holding. Do not skip any.
- Every holding analysis MUST follow thesis/antithesis/synthesis structure.
- Every holding analysis MUST end with a specific, actionable trade idea or catalyst to watch.
- The portfolio_summary MUST identify hidden correlations and concentration risks across holdings.
- Include 2-5 risk_alerts. Each must reference specific positions and specific scenarios.
- Be wrong before you are boring. Conviction over consensus.`

// macroLabels maps indicator keys to the labels shown in the prompt, in
// display order.
var macroLabels = []struct{ key, label string }{
	{"VIX", "VIX (Fear Index)"},
	{"US_10Y_YIELD", "US 10Y Treasury Yield"},
	{"DXY", "US Dollar Index (DXY)"},
	{"CRUDE_OIL", "WTI Crude Oil"},
}

// buildUserMessage renders the portfolio and its market snapshot into
// the analysis prompt. Missing data points render as "unavailable"
// markers rather than being skipped silently.
func buildUserMessage(holdings []models.Holding, snap *models.MarketSnapshot) string {
	var b strings.Builder
	b.WriteString("Here is my current portfolio with LIVE MARKET DATA. Analyze each position and the portfolio as a whole.\n\n")

	if !snap.Empty() {
		writeMacroSection(&b, snap)
	}

	for i, h := range holdings {
		fmt.Fprintf(&b, "Position %d: %s\n", i+1, h.Symbol)
		fmt.Fprintf(&b, "  Shares: %s\n", h.Quantity.String())
		fmt.Fprintf(&b, "  Avg Cost: $%s\n", h.AvgCost.StringFixed(2))
		if h.Thesis != nil && *h.Thesis != "" {
			fmt.Fprintf(&b, "  Thesis: %q\n", *h.Thesis)
		} else {
			b.WriteString("  Thesis: None provided\n")
		}

		if !snap.Empty() {
			stock, ok := snap.Stocks[h.Symbol]
			if ok {
				writeStockSection(&b, h, stock, snap.News[h.Symbol])
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

func writeMacroSection(b *strings.Builder, snap *models.MarketSnapshot) {
	b.WriteString("=== MACRO ENVIRONMENT (LIVE DATA) ===\n")
	for _, m := range macroLabels {
		ind, ok := snap.Macro[m.key]
		if !ok || ind.Value == nil {
			fmt.Fprintf(b, "  %s: unavailable\n", m.label)
			continue
		}
		fmt.Fprintf(b, "  %s: %g", m.label, *ind.Value)
		if ind.ChangePct != nil {
			fmt.Fprintf(b, " (%+.2f%% vs prev close)", *ind.ChangePct)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeStockSection(b *strings.Builder, h models.Holding, stock models.StockSnapshot, news []models.NewsItem) {
	fmt.Fprintf(b, "  --- Market Data for %s ---\n", h.Symbol)

	if stock.Error != nil {
		fmt.Fprintf(b, "  (Data unavailable: %s)\n", *stock.Error)
	} else {
		if stock.CurrentPrice != nil {
			fmt.Fprintf(b, "  Current Price: $%.2f\n", *stock.CurrentPrice)

			avgCost, _ := h.AvgCost.Float64()
			if pl := marketdata.ProfitLossPct(stock.CurrentPrice, &avgCost); pl != nil {
				fmt.Fprintf(b, "  Unrealized P/L: %+.1f%%\n", *pl)
			}
		}

		if stock.FiftyTwoWeekHigh != nil && stock.FiftyTwoWeekLow != nil {
			fmt.Fprintf(b, "  52-Week Range: $%.2f - $%.2f\n", *stock.FiftyTwoWeekLow, *stock.FiftyTwoWeekHigh)
			if pct := marketdata.PctFromHigh(stock.CurrentPrice, stock.FiftyTwoWeekHigh); pct != nil {
				fmt.Fprintf(b, "  Distance from 52W High: %+.1f%%\n", *pct)
			}
		}

		if stock.PERatio != nil {
			fmt.Fprintf(b, "  Trailing P/E: %.1f", *stock.PERatio)
			if stock.ForwardPE != nil {
				fmt.Fprintf(b, "  |  Forward P/E: %.1f", *stock.ForwardPE)
			}
			b.WriteString("\n")
		}

		if stock.MarketCap != nil {
			b.WriteString("  Market Cap: " + formatMarketCap(*stock.MarketCap) + "\n")
		}

		if stock.Perf1MPct != nil || stock.Perf3MPct != nil {
			var parts []string
			if stock.Perf1MPct != nil {
				parts = append(parts, fmt.Sprintf("1M: %+.1f%%", *stock.Perf1MPct))
			}
			if stock.Perf3MPct != nil {
				parts = append(parts, fmt.Sprintf("3M: %+.1f%%", *stock.Perf3MPct))
			}
			fmt.Fprintf(b, "  Price Performance: %s\n", strings.Join(parts, " | "))
		}

		if stock.VolumeRatio5D20D != nil {
			v := *stock.VolumeRatio5D20D
			trend := "normal"
			switch {
			case v > 1.2:
				trend = "elevated"
			case v < 0.8:
				trend = "subdued"
			}
			fmt.Fprintf(b, "  Volume (5d/20d avg): %.2fx (%s)\n", v, trend)
		}
	}

	if len(news) > 0 {
		fmt.Fprintf(b, "  Recent Headlines (%s + competitors):\n", h.Symbol)
		for i, item := range news {
			if i >= 7 {
				break
			}
			line := "    - " + item.Title
			if item.Source != "" {
				line += " [" + item.Source + "]"
			}
			b.WriteString(line + "\n")
		}
	}
}

func formatMarketCap(mcap float64) string {
	switch {
	case mcap >= 1e12:
		return fmt.Sprintf("$%.2fT", mcap/1e12)
	case mcap >= 1e9:
		return fmt.Sprintf("$%.1fB", mcap/1e9)
	default:
		return fmt.Sprintf("$%.0fM", mcap/1e6)
	}
}
