package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newsroom/internal/domain/article"
)

func rssDocument(title string, items int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel>`)
	fmt.Fprintf(&b, "<title>%s</title>", title)
	for i := 0; i < items; i++ {
		fmt.Fprintf(&b, "<item><title>Meldung %d</title><link>https://example.com/%d</link><description>%s</description><pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate></item>", i, i, strings.Repeat("x", 600))
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func TestParseURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		switch r.URL.Path {
		case "/big.xml":
			_, _ = w.Write([]byte(rssDocument("Tagesschau", 60)))
		case "/untitled.xml":
			_, _ = w.Write([]byte(rssDocument("", 2)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tests := []struct {
		name      string
		path      string
		limit     int
		wantTitle string
		wantItems int
	}{
		{name: "default limit", path: "/big.xml", limit: 0, wantTitle: "Tagesschau", wantItems: DefaultLimit},
		{name: "explicit limit", path: "/big.xml", limit: 5, wantTitle: "Tagesschau", wantItems: 5},
		{name: "fallback title", path: "/untitled.xml", limit: 10, wantTitle: "Unknown Feed", wantItems: 2},
	}

	parser := NewParser(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed, err := parser.ParseURL(context.Background(), server.URL+tt.path, tt.limit)
			if err != nil {
				t.Fatalf("ParseURL() error = %v", err)
			}
			if feed.Title != tt.wantTitle || len(feed.Items) != tt.wantItems {
				t.Fatalf("ParseURL() title=%q items=%d", feed.Title, len(feed.Items))
			}
			first := feed.Items[0]
			if first.Title != "Meldung 0" || first.Link != "https://example.com/0" {
				t.Fatalf("first item = %+v", first)
			}
			if len(first.Summary) != summaryMaxRunes {
				t.Fatalf("summary length = %d", len(first.Summary))
			}
			if first.Published != "2006-01-02T15:04:05Z" {
				t.Fatalf("published = %q", first.Published)
			}
		})
	}
}

func TestParseURLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page.html":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("just some text"))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	tests := []struct {
		name string
		url  string
		want error
	}{
		{name: "not a feed", url: server.URL + "/page.html", want: article.ErrValidation},
		{name: "upstream error", url: server.URL + "/down.xml", want: article.ErrProvider},
		{name: "invalid url", url: "ftp://example.com/feed", want: article.ErrValidation},
	}

	parser := NewParser(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseURL(context.Background(), tt.url, 10)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ParseURL() error = %v, want %v", err, tt.want)
			}
		})
	}
}
