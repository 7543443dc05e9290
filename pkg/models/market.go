package models

import "time"

// StockSnapshot is a point-in-time read of one symbol's market data.
// Every numeric field is nullable: nil means the value was unavailable
// from the provider, never zero. Error is set when the fetch for this
// symbol failed; the other symbols in the snapshot are unaffected.
type StockSnapshot struct {
	Symbol           string    `json:"symbol"`
	CurrentPrice     *float64  `json:"current_price"`
	FiftyTwoWeekHigh *float64  `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  *float64  `json:"fifty_two_week_low"`
	PERatio          *float64  `json:"pe_ratio"`
	ForwardPE        *float64  `json:"forward_pe"`
	MarketCap        *float64  `json:"market_cap"`
	Perf1MPct        *float64  `json:"perf_1m_pct"`
	Perf3MPct        *float64  `json:"perf_3m_pct"`
	VolumeRatio5D20D *float64  `json:"volume_ratio_5d_20d"`
	Error            *string   `json:"error"`
	FetchedAt        time.Time `json:"fetched_at"`
}

// MacroIndicator is a point-in-time read of one macro series
// (volatility index, treasury yield, dollar index, crude oil).
type MacroIndicator struct {
	Value         *float64 `json:"value"`
	PreviousClose *float64 `json:"previous_close"`
	ChangePct     *float64 `json:"change_pct"`
	Error         *string  `json:"error"`
}

// NewsItem is a single headline associated with a symbol.
type NewsItem struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// MarketSnapshot is one coherent point-in-time view of the market for a
// set of symbols and indicators. All entries share the single FetchedAt
// stamp taken when assembly started. A snapshot is immutable once built
// and safe to share read-only across concurrent briefing requests.
type MarketSnapshot struct {
	Stocks    map[string]StockSnapshot  `json:"stocks"`
	Macro     map[string]MacroIndicator `json:"macro"`
	News      map[string][]NewsItem     `json:"news"`
	FetchedAt time.Time                 `json:"fetched_at"`
}

// Empty reports whether the snapshot carries no market data at all,
// which happens when every upstream fetch failed. Callers use this to
// suppress the "market data as-of" banner.
func (s *MarketSnapshot) Empty() bool {
	if s == nil {
		return true
	}
	return len(s.Stocks) == 0 && len(s.Macro) == 0 && len(s.News) == 0
}
