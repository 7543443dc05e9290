package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/folioiq/folioiq/pkg/models"
)

// FeedSource is one market-wide financial news RSS feed.
type FeedSource struct {
	Name   string
	RSSURL string
}

// DefaultFeeds lists the market-wide feeds polled for headlines.
var DefaultFeeds = []FeedSource{
	{Name: "Yahoo Finance", RSSURL: "https://finance.yahoo.com/news/rssindex"},
	{Name: "CNBC Markets", RSSURL: "https://search.cnbc.com/rs/search/combinedcms/view.xml?partnerId=wrss01&id=20910258"},
	{Name: "MarketWatch", RSSURL: "https://feeds.content.dowjones.io/public/rss/mw_topstories"},
}

// defaultSymbolFeed is the per-symbol headline feed, %s is the ticker.
const defaultSymbolFeed = "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US"

// News fetches recent headlines for a ticker: the symbol's own feed plus
// the market-wide feeds filtered down to headlines mentioning the ticker
// or one of its competitors.
type News struct {
	feeds      []FeedSource
	symbolFeed string
	limit      int
	cache      *Cache
	limiter    *RateLimiter
	parser     *gofeed.Parser
}

// NewsOption configures the news source.
type NewsOption func(*News)

// WithFeeds replaces the market-wide feed list.
func WithFeeds(feeds []FeedSource) NewsOption {
	return func(n *News) { n.feeds = feeds }
}

// WithSymbolFeed replaces the per-symbol feed URL template.
func WithSymbolFeed(template string) NewsOption {
	return func(n *News) { n.symbolFeed = template }
}

// WithNewsLimit caps the number of headlines returned per symbol.
func WithNewsLimit(limit int) NewsOption {
	return func(n *News) { n.limit = limit }
}

// NewNews creates a news source with the default feeds.
func NewNews(opts ...NewsOption) *News {
	n := &News{
		feeds:      DefaultFeeds,
		symbolFeed: defaultSymbolFeed,
		limit:      7,
		cache:      NewCache(10 * time.Minute),
		limiter:    NewRateLimiter(2, time.Second), // conservative: 2 req/s
		parser:     gofeed.NewParser(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SymbolNews returns recent headlines for one ticker, newest first. The
// returned slice is never nil: a symbol with no coverage gets an empty
// slice, not an error.
func (n *News) SymbolNews(ctx context.Context, symbol string) ([]models.NewsItem, error) {
	symbol = models.NormalizeSymbol(symbol)

	cacheKey := "news:" + symbol
	if cached, ok := n.cache.Get(cacheKey); ok {
		return cached.([]models.NewsItem), nil
	}

	items := []models.NewsItem{}

	if n.symbolFeed != "" {
		direct, err := n.fetchFeed(ctx, "Yahoo Finance", fmt.Sprintf(n.symbolFeed, symbol))
		if err == nil {
			items = append(items, direct...)
		}
	}

	keywords := symbolKeywords(symbol)
	market, err := n.marketNews(ctx)
	if err != nil && len(items) == 0 {
		return nil, err
	}
	for _, item := range market {
		if matchesAny(item.Title, keywords) {
			items = append(items, item)
		}
	}

	sortItemsByDate(items)
	items = dedupeByURL(items)
	if n.limit > 0 && len(items) > n.limit {
		items = items[:n.limit]
	}

	n.cache.Set(cacheKey, items)
	return items, nil
}

// marketNews returns headlines from every market-wide feed. Failed
// sources are skipped; an error is returned only when all of them fail.
func (n *News) marketNews(ctx context.Context) ([]models.NewsItem, error) {
	cacheKey := "news:market"
	if cached, ok := n.cache.Get(cacheKey); ok {
		return cached.([]models.NewsItem), nil
	}

	var all []models.NewsItem
	var lastErr error
	for _, src := range n.feeds {
		items, err := n.fetchFeed(ctx, src.Name, src.RSSURL)
		if err != nil {
			lastErr = err
			continue
		}
		all = append(all, items...)
	}
	if len(all) == 0 && lastErr != nil {
		return nil, lastErr
	}

	n.cache.Set(cacheKey, all)
	return all, nil
}

// fetchFeed parses one RSS feed into news items.
func (n *News) fetchFeed(ctx context.Context, sourceName, feedURL string) ([]models.NewsItem, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := n.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", sourceName, err)
	}

	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Title == "" {
			continue
		}
		ni := models.NewsItem{
			Title:  cleanHTML(item.Title),
			URL:    item.Link,
			Source: sourceName,
		}
		if item.PublishedParsed != nil {
			ni.PublishedAt = *item.PublishedParsed
		}
		items = append(items, ni)
	}

	return items, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// symbolKeywords returns the match terms for a ticker: the ticker itself
// plus its mapped competitors. A headline about a direct competitor is
// signal for the holding too.
func symbolKeywords(symbol string) []string {
	keywords := []string{strings.ToLower(symbol)}
	for _, c := range Competitors(symbol) {
		keywords = append(keywords, strings.ToLower(c))
	}
	return keywords
}

// matchesAny checks if text contains any of the keywords (case-insensitive).
func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// sortItemsByDate sorts items by published date, newest first.
// Simple insertion sort, fine for small slices.
func sortItemsByDate(items []models.NewsItem) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && items[j].PublishedAt.Before(key.PublishedAt) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}

// dedupeByURL drops repeated links, keeping the first (newest) copy.
func dedupeByURL(items []models.NewsItem) []models.NewsItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if item.URL != "" {
			if _, ok := seen[item.URL]; ok {
				continue
			}
			seen[item.URL] = struct{}{}
		}
		out = append(out, item)
	}
	return out
}
