package marketdata

// Pure derivation helpers for market metrics. No I/O, fully deterministic.
// All inputs and outputs use *float64 where nil means "unavailable"; a
// derived value is nil whenever any required input is nil or the
// denominator is not strictly positive.

// Lookback windows for performance and volume derivations, in trading days.
const (
	oneMonthTradingDays = 21
	volumeShortWindow   = 5
	volumeLongWindow    = 20
)

// ChangePct returns (value - previousClose) / previousClose * 100, or nil
// unless both inputs are present and previousClose > 0.
func ChangePct(value, previousClose *float64) *float64 {
	if value == nil || previousClose == nil || *previousClose <= 0 {
		return nil
	}
	pct := (*value - *previousClose) / *previousClose * 100
	return &pct
}

// ProfitLossPct returns (currentPrice - avgCost) / avgCost * 100, or nil
// unless both inputs are present and avgCost > 0.
func ProfitLossPct(currentPrice, avgCost *float64) *float64 {
	if currentPrice == nil || avgCost == nil || *avgCost <= 0 {
		return nil
	}
	pct := (*currentPrice - *avgCost) / *avgCost * 100
	return &pct
}

// PctFromHigh returns the percentage distance of price from high
// (negative when below), or nil unless both are present and high > 0.
func PctFromHigh(price, high *float64) *float64 {
	if price == nil || high == nil || *high <= 0 {
		return nil
	}
	pct := (*price - *high) / *high * 100
	return &pct
}

// PerformanceWindows derives 1-month and 3-month price performance from a
// series of daily closes ordered oldest-first. The series is expected to
// cover roughly three months of trading days. The 3-month figure compares
// the last close to the first; the 1-month figure compares the last close
// to the close 21 trading days back (clamped to the series start). Either
// figure is nil when the series has fewer than two closes or the baseline
// close is not strictly positive.
func PerformanceWindows(closes []float64) (perf1M, perf3M *float64) {
	if len(closes) < 2 {
		return nil, nil
	}

	last := closes[len(closes)-1]

	if base := closes[0]; base > 0 {
		pct := (last - base) / base * 100
		perf3M = &pct
	}

	idx := len(closes) - 1 - oneMonthTradingDays
	if idx < 0 {
		idx = 0
	}
	if base := closes[idx]; base > 0 {
		pct := (last - base) / base * 100
		perf1M = &pct
	}

	return perf1M, perf3M
}

// VolumeRatio derives the 5-day vs 20-day average volume ratio from a
// series of daily volumes ordered oldest-first. Returns nil when fewer
// than 20 volumes are available or the 20-day average is zero.
func VolumeRatio(volumes []int64) *float64 {
	if len(volumes) < volumeLongWindow {
		return nil
	}

	short := mean(volumes[len(volumes)-volumeShortWindow:])
	long := mean(volumes[len(volumes)-volumeLongWindow:])
	if long <= 0 {
		return nil
	}

	ratio := short / long
	return &ratio
}

func mean(vs []int64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum int64
	for _, v := range vs {
		sum += v
	}
	return float64(sum) / float64(len(vs))
}
