package marketdata

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/folioiq/folioiq/pkg/models"
)

type fakeStocks struct {
	calls atomic.Int64
	fn    func(symbol string) (*models.StockSnapshot, error)
}

func (f *fakeStocks) StockSnapshot(_ context.Context, symbol string) (*models.StockSnapshot, error) {
	f.calls.Add(1)
	return f.fn(symbol)
}

type fakeMacro struct {
	calls atomic.Int64
	fn    func(symbol string) (*models.MacroIndicator, error)
}

func (f *fakeMacro) MacroIndicator(_ context.Context, symbol string) (*models.MacroIndicator, error) {
	f.calls.Add(1)
	return f.fn(symbol)
}

type fakeNews struct {
	calls atomic.Int64
	fn    func(symbol string) ([]models.NewsItem, error)
}

func (f *fakeNews) SymbolNews(_ context.Context, symbol string) ([]models.NewsItem, error) {
	f.calls.Add(1)
	return f.fn(symbol)
}

func healthyProviders() (*fakeStocks, *fakeMacro, *fakeNews) {
	stocks := &fakeStocks{fn: func(symbol string) (*models.StockSnapshot, error) {
		return &models.StockSnapshot{Symbol: symbol, CurrentPrice: fp(100)}, nil
	}}
	macro := &fakeMacro{fn: func(string) (*models.MacroIndicator, error) {
		return &models.MacroIndicator{Value: fp(18), PreviousClose: fp(16), ChangePct: fp(12.5)}, nil
	}}
	news := &fakeNews{fn: func(string) ([]models.NewsItem, error) {
		return []models.NewsItem{{Title: "headline", PublishedAt: time.Now()}}, nil
	}}
	return stocks, macro, news
}

func TestAssembleMergesAllProviders(t *testing.T) {
	stocks, macro, news := healthyProviders()
	a := NewAssembler(stocks, macro, news)

	snap, err := a.Assemble(context.Background(), []string{"AAPL", "TSLA"})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(snap.Stocks) != 2 {
		t.Errorf("Stocks entries = %d, want 2", len(snap.Stocks))
	}
	if len(snap.Macro) != len(DefaultIndicators) {
		t.Errorf("Macro entries = %d, want %d", len(snap.Macro), len(DefaultIndicators))
	}
	if len(snap.News) != 2 {
		t.Errorf("News entries = %d, want 2", len(snap.News))
	}
	if snap.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
	for sym, stock := range snap.Stocks {
		if !stock.FetchedAt.Equal(snap.FetchedAt) {
			t.Errorf("stock %s FetchedAt = %v, want shared stamp %v", sym, stock.FetchedAt, snap.FetchedAt)
		}
	}
}

func TestAssemblePartialFailureIsolated(t *testing.T) {
	stocks, macro, news := healthyProviders()
	stocks.fn = func(symbol string) (*models.StockSnapshot, error) {
		if symbol == "TSLA" {
			return nil, errors.New("upstream 502")
		}
		return &models.StockSnapshot{Symbol: symbol, CurrentPrice: fp(180)}, nil
	}
	a := NewAssembler(stocks, macro, news)

	snap, err := a.Assemble(context.Background(), []string{"AAPL", "TSLA"})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	aapl := snap.Stocks["AAPL"]
	if aapl.Error != nil || aapl.CurrentPrice == nil {
		t.Errorf("AAPL should be healthy: %+v", aapl)
	}
	tsla := snap.Stocks["TSLA"]
	if tsla.Error == nil {
		t.Fatal("TSLA should carry an error entry")
	}
	if tsla.CurrentPrice != nil {
		t.Error("failed entry should have nil numeric fields")
	}
	if !tsla.FetchedAt.Equal(snap.FetchedAt) {
		t.Error("failed entry should still carry the shared FetchedAt")
	}
}

func TestAssembleAllFailedReturnsEmptySnapshot(t *testing.T) {
	stocks := &fakeStocks{fn: func(string) (*models.StockSnapshot, error) {
		return nil, errors.New("down")
	}}
	macro := &fakeMacro{fn: func(string) (*models.MacroIndicator, error) {
		return nil, errors.New("down")
	}}
	news := &fakeNews{fn: func(string) ([]models.NewsItem, error) {
		return nil, errors.New("down")
	}}
	a := NewAssembler(stocks, macro, news)

	snap, err := a.Assemble(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !snap.Empty() {
		t.Errorf("snapshot should be empty when every fetch fails: %+v", snap)
	}
	if snap.Stocks == nil || snap.Macro == nil || snap.News == nil {
		t.Error("maps must be empty, not nil")
	}
	if snap.FetchedAt.IsZero() {
		t.Error("FetchedAt must be set even on an empty snapshot")
	}
}

func TestAssembleNewsFailureGivesEmptySlice(t *testing.T) {
	stocks, macro, news := healthyProviders()
	news.fn = func(string) ([]models.NewsItem, error) {
		return nil, errors.New("feed down")
	}
	a := NewAssembler(stocks, macro, news)

	snap, err := a.Assemble(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	items, ok := snap.News["AAPL"]
	if !ok {
		t.Fatal("news map should have an entry for AAPL")
	}
	if items == nil || len(items) != 0 {
		t.Errorf("news for failed symbol = %v, want empty slice", items)
	}
}

// slowStocks stalls for the given symbol until the call context expires.
type slowStocks struct {
	slowSymbol string
	observed   atomic.Int64
}

func (s *slowStocks) StockSnapshot(ctx context.Context, symbol string) (*models.StockSnapshot, error) {
	if symbol == s.slowSymbol || s.slowSymbol == "" {
		<-ctx.Done()
		s.observed.Add(1)
		return nil, ctx.Err()
	}
	return &models.StockSnapshot{Symbol: symbol, CurrentPrice: fp(100)}, nil
}

func TestAssembleSlowProviderHitsFetchTimeout(t *testing.T) {
	_, macro, news := healthyProviders()
	stocks := &slowStocks{slowSymbol: "SLOW"}
	a := NewAssembler(stocks, macro, news, WithFetchTimeout(20*time.Millisecond))

	snap, err := a.Assemble(context.Background(), []string{"AAPL", "SLOW"})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	slow := snap.Stocks["SLOW"]
	if slow.Error == nil {
		t.Fatal("timed-out fetch should produce an error entry")
	}
	if !strings.Contains(*slow.Error, context.DeadlineExceeded.Error()) {
		t.Errorf("error = %q, want deadline exceeded", *slow.Error)
	}
	if !slow.FetchedAt.Equal(snap.FetchedAt) {
		t.Error("timed-out entry should still carry the shared FetchedAt")
	}
	if aapl := snap.Stocks["AAPL"]; aapl.Error != nil || aapl.CurrentPrice == nil {
		t.Errorf("fast symbol should be unaffected: %+v", aapl)
	}
	if got := stocks.observed.Load(); got != 1 {
		t.Errorf("providers observing expiry = %d, want 1", got)
	}
}

func TestAssembleObservesCallerCancellation(t *testing.T) {
	_, macro, news := healthyProviders()
	stocks := &slowStocks{}
	a := NewAssembler(stocks, macro, news, WithFetchTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	snap, err := a.Assemble(ctx, []string{"AAPL"})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Assemble blocked %v after cancellation", elapsed)
	}

	entry := snap.Stocks["AAPL"]
	if entry.Error == nil {
		t.Fatal("cancelled fetch should produce an error entry")
	}
	if !strings.Contains(*entry.Error, context.Canceled.Error()) {
		t.Errorf("error = %q, want canceled", *entry.Error)
	}
	if got := stocks.observed.Load(); got != 1 {
		t.Errorf("providers observing cancellation = %d, want 1", got)
	}
}

func TestAssembleCachesFreshSnapshot(t *testing.T) {
	stocks, macro, news := healthyProviders()
	a := NewAssembler(stocks, macro, news)

	for i := 0; i < 3; i++ {
		if _, err := a.Assemble(context.Background(), []string{"AAPL"}); err != nil {
			t.Fatalf("Assemble: %v", err)
		}
	}
	if got := stocks.calls.Load(); got != 1 {
		t.Errorf("stock provider calls = %d, want 1 (cached)", got)
	}
	if got := macro.calls.Load(); got != int64(len(DefaultIndicators)) {
		t.Errorf("macro provider calls = %d, want %d", got, len(DefaultIndicators))
	}
}

func TestAssembleDoesNotCacheEmptySnapshot(t *testing.T) {
	stocks := &fakeStocks{fn: func(string) (*models.StockSnapshot, error) {
		return nil, errors.New("down")
	}}
	macro := &fakeMacro{fn: func(string) (*models.MacroIndicator, error) {
		return nil, errors.New("down")
	}}
	news := &fakeNews{fn: func(string) ([]models.NewsItem, error) {
		return nil, errors.New("down")
	}}
	a := NewAssembler(stocks, macro, news)

	if _, err := a.Assemble(context.Background(), []string{"AAPL"}); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	// Providers recover; the next call must hit them again.
	stocks.fn = func(symbol string) (*models.StockSnapshot, error) {
		return &models.StockSnapshot{Symbol: symbol, CurrentPrice: fp(100)}, nil
	}
	snap, err := a.Assemble(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if snap.Empty() {
		t.Error("recovered snapshot should not be empty")
	}
}
