package marketdata

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/folioiq/folioiq/pkg/models"
)

// StockProvider fetches a point-in-time snapshot for one ticker.
type StockProvider interface {
	StockSnapshot(ctx context.Context, symbol string) (*models.StockSnapshot, error)
}

// MacroProvider fetches a macro indicator read for a provider symbol.
type MacroProvider interface {
	MacroIndicator(ctx context.Context, symbol string) (*models.MacroIndicator, error)
}

// NewsProvider fetches recent headlines for one ticker.
type NewsProvider interface {
	SymbolNews(ctx context.Context, symbol string) ([]models.NewsItem, error)
}

// Assembler fans out to the stock, macro, and news providers concurrently
// and merges the results into one coherent MarketSnapshot. A failed fetch
// never fails the snapshot: the failing entry carries its error message
// and every other entry is unaffected.
type Assembler struct {
	stocks     StockProvider
	macro      MacroProvider
	news       NewsProvider
	indicators map[string]string
	timeout    time.Duration
	cache      *Cache
	log        zerolog.Logger
}

// AssemblerOption configures the assembler.
type AssemblerOption func(*Assembler)

// WithIndicators replaces the macro indicator set. Keys are indicator
// names, values are provider symbols.
func WithIndicators(indicators map[string]string) AssemblerOption {
	return func(a *Assembler) { a.indicators = indicators }
}

// WithFetchTimeout bounds each individual provider call.
func WithFetchTimeout(d time.Duration) AssemblerOption {
	return func(a *Assembler) { a.timeout = d }
}

// WithSnapshotTTL sets how long an assembled snapshot is reused before
// the providers are hit again.
func WithSnapshotTTL(ttl time.Duration) AssemblerOption {
	return func(a *Assembler) { a.cache = NewCache(ttl) }
}

// WithLogger sets the assembler logger.
func WithLogger(log zerolog.Logger) AssemblerOption {
	return func(a *Assembler) { a.log = log }
}

// DefaultIndicators is the macro set assembled into every snapshot.
var DefaultIndicators = map[string]string{
	"VIX":          "^VIX",
	"US_10Y_YIELD": "^TNX",
	"DXY":          "DX-Y.NYB",
	"CRUDE_OIL":    "CL=F",
}

// NewAssembler creates a snapshot assembler over the given providers.
func NewAssembler(stocks StockProvider, macro MacroProvider, news NewsProvider, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		stocks:     stocks,
		macro:      macro,
		news:       news,
		indicators: DefaultIndicators,
		timeout:    15 * time.Second,
		cache:      NewCache(2 * time.Minute),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds a market snapshot for the given tickers. Every entry
// shares the FetchedAt stamp taken when assembly started. When all
// fetches fail the snapshot comes back with empty maps rather than an
// error, so a briefing can still be produced in degraded form.
func (a *Assembler) Assemble(ctx context.Context, symbols []string) (*models.MarketSnapshot, error) {
	cacheKey := a.snapshotKey(symbols)
	if cached, ok := a.cache.Get(cacheKey); ok {
		return cached.(*models.MarketSnapshot), nil
	}

	snap := &models.MarketSnapshot{
		Stocks:    make(map[string]models.StockSnapshot, len(symbols)),
		Macro:     make(map[string]models.MacroIndicator, len(a.indicators)),
		News:      make(map[string][]models.NewsItem, len(symbols)),
		FetchedAt: time.Now().UTC(),
	}

	var mu sync.Mutex
	var succeeded int

	g, gctx := errgroup.WithContext(ctx)

	for _, symbol := range symbols {
		symbol := symbol

		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, a.timeout)
			defer cancel()

			stock, err := a.stocks.StockSnapshot(fctx, symbol)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.log.Warn().Str("symbol", symbol).Err(err).Msg("stock fetch failed")
				msg := err.Error()
				snap.Stocks[symbol] = models.StockSnapshot{
					Symbol:    symbol,
					Error:     &msg,
					FetchedAt: snap.FetchedAt,
				}
				return nil
			}
			entry := *stock
			entry.FetchedAt = snap.FetchedAt
			snap.Stocks[symbol] = entry
			succeeded++
			return nil
		})

		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, a.timeout)
			defer cancel()

			items, err := a.news.SymbolNews(fctx, symbol)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.log.Warn().Str("symbol", symbol).Err(err).Msg("news fetch failed")
				snap.News[symbol] = []models.NewsItem{}
				return nil
			}
			if items == nil {
				items = []models.NewsItem{}
			}
			snap.News[symbol] = items
			succeeded++
			return nil
		})
	}

	for name, providerSymbol := range a.indicators {
		name, providerSymbol := name, providerSymbol

		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, a.timeout)
			defer cancel()

			ind, err := a.macro.MacroIndicator(fctx, providerSymbol)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.log.Warn().Str("indicator", name).Err(err).Msg("macro fetch failed")
				msg := err.Error()
				snap.Macro[name] = models.MacroIndicator{Error: &msg}
				return nil
			}
			snap.Macro[name] = *ind
			succeeded++
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Nothing at all came back; hand out an empty snapshot so the caller
	// can see there is no market data rather than a wall of error entries.
	if succeeded == 0 {
		return &models.MarketSnapshot{
			Stocks:    map[string]models.StockSnapshot{},
			Macro:     map[string]models.MacroIndicator{},
			News:      map[string][]models.NewsItem{},
			FetchedAt: snap.FetchedAt,
		}, nil
	}

	a.cache.Set(cacheKey, snap)
	return snap, nil
}

// snapshotKey builds a cache key covering the symbol set and indicator
// set, order-insensitive.
func (a *Assembler) snapshotKey(symbols []string) string {
	syms := make([]string, len(symbols))
	copy(syms, symbols)
	sort.Strings(syms)

	inds := make([]string, 0, len(a.indicators))
	for name := range a.indicators {
		inds = append(inds, name)
	}
	sort.Strings(inds)

	return "snapshot:" + strings.Join(syms, ",") + "|" + strings.Join(inds, ",")
}
