package briefing

import "errors"

// Errors surfaced by briefing generation. The API layer maps these onto
// HTTP status codes.
var (
	// ErrEmptyPortfolio is returned when briefing generation is
	// requested for a portfolio with no holdings. No market data is
	// fetched and no analysis call is made.
	ErrEmptyPortfolio = errors.New("briefing: portfolio has no holdings to analyze")

	// ErrAnalysisTimeout is returned when the analysis call exceeds its
	// deadline. Market data may already have been fetched.
	ErrAnalysisTimeout = errors.New("briefing: analysis timed out")

	// ErrAnalysisUnavailable is returned when the analysis backend is
	// unreachable or rejects the request.
	ErrAnalysisUnavailable = errors.New("briefing: analysis service unavailable")

	// ErrMalformedOutput is returned when the analysis backend responds
	// with output that cannot be parsed into a briefing.
	ErrMalformedOutput = errors.New("briefing: analysis service returned malformed output")
)
