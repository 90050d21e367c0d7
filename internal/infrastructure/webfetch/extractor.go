package webfetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

const (
	maxPageBytes = 4 << 20
	maxTextRunes = 12000
)

// Extractor downloads a page and reduces it to its readable article text.
type Extractor struct {
	httpClient *http.Client
}

var _ ports.PageExtractor = (*Extractor)(nil)

func NewExtractor(httpClient *http.Client) *Extractor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Extractor{httpClient: httpClient}
}

func (e *Extractor) Extract(ctx context.Context, rawURL string) (ports.Page, error) {
	if ctx == nil {
		return ports.Page{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.Page{}, errs.Wrap(err, "check context")
	}
	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || pageURL.Host == "" || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return ports.Page{}, article.Validationf("invalid url %q", rawURL)
	}

	raw, err := e.fetch(ctx, pageURL.String())
	if err != nil {
		return ports.Page{}, err
	}

	page := ports.Page{URL: pageURL.String()}
	parsed, err := readability.FromReader(bytes.NewReader(raw), pageURL)
	if err == nil && strings.TrimSpace(parsed.TextContent) != "" {
		page.Title = strings.TrimSpace(parsed.Title)
		page.Text = collapse(parsed.TextContent)
	} else {
		logCtx := logging.WithAttrs(ctx, slog.String("component", "webfetch"), slog.String("url", page.URL))
		logging.Debug(logCtx, "readability found no article, falling back to paragraphs", slog.Any("err", errs.Loggable(err)))
		page.Title, page.Text, err = fallback(raw)
		if err != nil {
			return ports.Page{}, article.Providerf("parse %s: %v", page.URL, err)
		}
	}

	if page.Text == "" {
		return ports.Page{}, article.Providerf("no readable text at %s", page.URL)
	}
	page.Text = truncate(page.Text, maxTextRunes)
	return page, nil
}

func (e *Extractor) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errs.Wrap(err, "build page request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; newsroom/webfetch)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(ctx.Err(), "fetch page")
		}
		return nil, article.Providerf("fetch %s: %v", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, article.Providerf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, article.Providerf("read %s: %v", pageURL, err)
	}
	return raw, nil
}

// fallback keeps the paragraphs of the main content area.
func fallback(raw []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", "", err
	}
	doc.Find("script, style, nav, header, footer, aside").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	paragraphs := make([]string, 0)
	root.Find("p, h1, h2, h3, li").Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.TrimSpace(doc.Find("title").First().Text()), strings.Join(paragraphs, "\n"), nil
}

func collapse(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}
