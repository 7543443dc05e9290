package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/folioiq/folioiq/pkg/models"
)

// Yahoo fetches stock snapshots and macro indicator reads from the Yahoo
// Finance v7 quote and v8 chart APIs.
type Yahoo struct {
	quoteURL string
	chartURL string
	cache    *Cache
	limiter  *RateLimiter
}

// YahooOption configures the Yahoo client.
type YahooOption func(*Yahoo)

// WithYahooQuoteURL overrides the quote endpoint (used in tests).
func WithYahooQuoteURL(u string) YahooOption {
	return func(y *Yahoo) { y.quoteURL = strings.TrimRight(u, "/") }
}

// WithYahooChartURL overrides the chart endpoint (used in tests).
func WithYahooChartURL(u string) YahooOption {
	return func(y *Yahoo) { y.chartURL = strings.TrimRight(u, "/") }
}

// NewYahoo creates a new Yahoo Finance client.
func NewYahoo(opts ...YahooOption) *Yahoo {
	y := &Yahoo{
		quoteURL: "https://query1.finance.yahoo.com/v7/finance/quote",
		chartURL: "https://query1.finance.yahoo.com/v8/finance/chart",
		cache:    NewCache(2 * time.Minute),
		limiter:  NewRateLimiter(5, time.Second), // 5 req/s
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// --- Yahoo Finance API types ---
//
// Optional numeric fields are pointers so that an absent field stays nil
// instead of collapsing to zero; the snapshot contract depends on the
// difference.

type yhQuoteResponse struct {
	QuoteResponse struct {
		Result []yhQuoteResult `json:"result"`
		Error  *yhError        `json:"error"`
	} `json:"quoteResponse"`
}

type yhQuoteResult struct {
	Symbol                     string   `json:"symbol"`
	RegularMarketPrice         *float64 `json:"regularMarketPrice"`
	RegularMarketPreviousClose *float64 `json:"regularMarketPreviousClose"`
	FiftyTwoWeekHigh           *float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow            *float64 `json:"fiftyTwoWeekLow"`
	TrailingPE                 *float64 `json:"trailingPE"`
	ForwardPE                  *float64 `json:"forwardPE"`
	MarketCap                  *float64 `json:"marketCap"`
}

type yhChartResponse struct {
	Chart struct {
		Result []yhChartResult `json:"result"`
		Error  *yhError        `json:"error"`
	} `json:"chart"`
}

type yhChartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []yhOHLCV `json:"quote"`
	} `json:"indicators"`
}

type yhOHLCV struct {
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yhError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// StockSnapshot fetches a point-in-time snapshot for one symbol: the live
// quote plus three months of daily candles for the derived performance
// windows and volume ratio. The chart call is best-effort; a quote
// without derived metrics is still a usable snapshot.
func (y *Yahoo) StockSnapshot(ctx context.Context, symbol string) (*models.StockSnapshot, error) {
	cacheKey := "stock:" + symbol
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.(*models.StockSnapshot), nil
	}

	quote, err := y.fetchQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	snap := &models.StockSnapshot{
		Symbol:           symbol,
		CurrentPrice:     quote.RegularMarketPrice,
		FiftyTwoWeekHigh: quote.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:  quote.FiftyTwoWeekLow,
		PERatio:          quote.TrailingPE,
		ForwardPE:        quote.ForwardPE,
		MarketCap:        quote.MarketCap,
	}

	if closes, volumes, err := y.fetchDailyHistory(ctx, symbol, 3); err == nil {
		snap.Perf1MPct, snap.Perf3MPct = PerformanceWindows(closes)
		snap.VolumeRatio5D20D = VolumeRatio(volumes)
	}

	y.cache.Set(cacheKey, snap)
	return snap, nil
}

// MacroIndicator fetches a macro series read (value, previous close,
// derived change percentage) for a provider symbol such as ^VIX or CL=F.
func (y *Yahoo) MacroIndicator(ctx context.Context, symbol string) (*models.MacroIndicator, error) {
	cacheKey := "macro:" + symbol
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.(*models.MacroIndicator), nil
	}

	quote, err := y.fetchQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	ind := &models.MacroIndicator{
		Value:         quote.RegularMarketPrice,
		PreviousClose: quote.RegularMarketPreviousClose,
		ChangePct:     ChangePct(quote.RegularMarketPrice, quote.RegularMarketPreviousClose),
	}

	y.cache.Set(cacheKey, ind)
	return ind, nil
}

// fetchQuote retrieves one symbol's quote from the v7 quote API.
func (y *Yahoo) fetchQuote(ctx context.Context, symbol string) (*yhQuoteResult, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s?symbols=%s", y.quoteURL, url.QueryEscape(symbol))
	body, _, err := doGet(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp yhQuoteResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse yahoo quote: %w", err)
	}

	if resp.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("yahoo API error: %s", resp.QuoteResponse.Error.Description)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	return &resp.QuoteResponse.Result[0], nil
}

// fetchDailyHistory retrieves daily closes and volumes for the trailing
// number of months from the v8 chart API, ordered oldest-first. Bars with
// a missing close are skipped.
func (y *Yahoo) fetchDailyHistory(ctx context.Context, symbol string, months int) (closes []float64, volumes []int64, err error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	to := time.Now()
	from := to.AddDate(0, -months, 0)
	u := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=1d",
		y.chartURL, url.PathEscape(symbol), from.Unix(), to.Unix())

	body, _, err := doGet(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	var resp yhChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, nil, fmt.Errorf("parse yahoo chart: %w", err)
	}

	if resp.Chart.Error != nil {
		return nil, nil, fmt.Errorf("yahoo chart error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	bars := resp.Chart.Result[0].Indicators.Quote[0]
	for i, c := range bars.Close {
		if c == nil {
			continue
		}
		closes = append(closes, *c)
		var vol int64
		if i < len(bars.Volume) && bars.Volume[i] != nil {
			vol = *bars.Volume[i]
		}
		volumes = append(volumes, vol)
	}

	return closes, volumes, nil
}
