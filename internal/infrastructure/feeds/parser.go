package feeds

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

const (
	DefaultLimit     = 50
	summaryMaxRunes  = 500
	unknownFeedTitle = "Unknown Feed"
)

// Parser reads RSS and Atom feeds into trigger candidates.
type Parser struct {
	httpClient *http.Client
}

var _ ports.FeedParser = (*Parser)(nil)

func NewParser(httpClient *http.Client) *Parser {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Parser{httpClient: httpClient}
}

func (p *Parser) ParseURL(ctx context.Context, feedURL string, limit int) (ports.Feed, error) {
	if ctx == nil {
		return ports.Feed{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.Feed{}, errs.Wrap(err, "check context")
	}
	urls, err := article.NormalizeURLs([]string{feedURL})
	if err != nil {
		return ports.Feed{}, err
	}
	if len(urls) == 0 {
		return ports.Feed{}, article.Validationf("feed url is required")
	}
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}

	parser := gofeed.NewParser()
	parser.Client = p.httpClient
	parser.UserAgent = "newsroom/feeds"

	feed, err := parser.ParseURLWithContext(urls[0], ctx)
	if err != nil {
		return ports.Feed{}, classify(ctx, err, urls[0])
	}
	return convert(feed, limit), nil
}

func convert(feed *gofeed.Feed, limit int) ports.Feed {
	title := strings.TrimSpace(feed.Title)
	if title == "" {
		title = unknownFeedTitle
	}

	items := make([]ports.FeedItem, 0, min(limit, len(feed.Items)))
	for _, item := range feed.Items {
		if len(items) == limit {
			break
		}
		if item == nil {
			continue
		}
		summary := item.Description
		if strings.TrimSpace(summary) == "" {
			summary = item.Content
		}
		items = append(items, ports.FeedItem{
			Title:     strings.TrimSpace(item.Title),
			Link:      strings.TrimSpace(item.Link),
			Summary:   truncate(strings.TrimSpace(summary), summaryMaxRunes),
			Published: published(item),
		})
	}
	return ports.Feed{Title: title, Items: items}
}

func published(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	return strings.TrimSpace(item.Published)
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}

// classify separates bad feed documents (validation) from fetch failures (provider).
func classify(ctx context.Context, err error, feedURL string) error {
	if ctx.Err() != nil {
		return errs.Wrap(ctx.Err(), "fetch feed")
	}
	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return article.Validationf("%s is not an RSS or Atom feed", feedURL)
	}
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		return article.Providerf("fetch feed %s: status %d", feedURL, httpErr.StatusCode)
	}
	if strings.Contains(err.Error(), "XML syntax error") {
		return article.Validationf("parse feed %s: %v", feedURL, err)
	}
	return article.Providerf("fetch feed %s: %v", feedURL, err)
}
