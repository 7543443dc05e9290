package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func rssFeed(items ...[2]string) string {
	body := `<?xml version="1.0"?><rss version="2.0"><channel><title>test</title>`
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i, it := range items {
		pub := base.Add(-time.Duration(i) * time.Hour)
		body += fmt.Sprintf(`<item><title>%s</title><link>%s</link><pubDate>%s</pubDate></item>`,
			it[0], it[1], pub.Format(time.RFC1123Z))
	}
	return body + `</channel></rss>`
}

func TestNewsSymbolNewsFiltersByCompetitors(t *testing.T) {
	symbolSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed([2]string{"Apple ships new iPhone", "https://example.com/a1"}))
	}))
	defer symbolSrv.Close()

	marketSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(
			[2]string{"MSFT beats earnings estimates", "https://example.com/m1"},
			[2]string{"Crude inventories build again", "https://example.com/m2"},
		))
	}))
	defer marketSrv.Close()

	n := NewNews(
		WithSymbolFeed(symbolSrv.URL+"?s=%s"),
		WithFeeds([]FeedSource{{Name: "Market Wire", RSSURL: marketSrv.URL}}),
	)

	items, err := n.SymbolNews(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("SymbolNews: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (direct + competitor match): %+v", len(items), items)
	}
	// MSFT is an AAPL competitor; the crude-oil headline must be filtered out.
	for _, item := range items {
		if item.Title == "Crude inventories build again" {
			t.Error("unrelated headline passed the filter")
		}
	}
}

func TestNewsSortedNewestFirst(t *testing.T) {
	marketSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(
			[2]string{"NVDA older story", "https://example.com/1"},
			[2]string{"NVDA newer story", "https://example.com/2"},
		))
	}))
	defer marketSrv.Close()

	n := NewNews(
		WithSymbolFeed(""),
		WithFeeds([]FeedSource{{Name: "Market Wire", RSSURL: marketSrv.URL}}),
	)

	items, err := n.SymbolNews(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("SymbolNews: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].PublishedAt.Before(items[1].PublishedAt) {
		t.Errorf("items not newest-first: %v then %v", items[0].PublishedAt, items[1].PublishedAt)
	}
}

func TestNewsNoCoverageReturnsEmptySlice(t *testing.T) {
	marketSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed([2]string{"Nothing relevant here", "https://example.com/x"}))
	}))
	defer marketSrv.Close()

	n := NewNews(
		WithSymbolFeed(""),
		WithFeeds([]FeedSource{{Name: "Market Wire", RSSURL: marketSrv.URL}}),
	)

	items, err := n.SymbolNews(context.Background(), "ZZZZ")
	if err != nil {
		t.Fatalf("SymbolNews: %v", err)
	}
	if items == nil {
		t.Fatal("items = nil, want empty slice")
	}
	if len(items) != 0 {
		t.Errorf("got %d items, want 0", len(items))
	}
}

func TestNewsLimit(t *testing.T) {
	var feedItems [][2]string
	for i := 0; i < 10; i++ {
		feedItems = append(feedItems, [2]string{
			fmt.Sprintf("TSLA headline %d", i),
			fmt.Sprintf("https://example.com/%d", i),
		})
	}
	marketSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(feedItems...))
	}))
	defer marketSrv.Close()

	n := NewNews(
		WithSymbolFeed(""),
		WithFeeds([]FeedSource{{Name: "Market Wire", RSSURL: marketSrv.URL}}),
		WithNewsLimit(3),
	)

	items, err := n.SymbolNews(context.Background(), "TSLA")
	if err != nil {
		t.Fatalf("SymbolNews: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("got %d items, want 3", len(items))
	}
}

func TestCleanHTML(t *testing.T) {
	got := cleanHTML(`<p>Fed holds <b>rates</b> steady</p>`)
	if got != "Fed holds rates steady" {
		t.Errorf("cleanHTML = %q", got)
	}
	if cleanHTML("") != "" {
		t.Error("cleanHTML(empty) should be empty")
	}
}
