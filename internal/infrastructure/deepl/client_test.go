package deepl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"newsroom/internal/bootstrap/config"
	"newsroom/internal/domain/article"
	"newsroom/internal/ports"
)

func newTestClient(baseURL string) *Client {
	client := NewClient(config.DeepLConfig{BaseURL: baseURL, APIKey: "secret"}, nil)
	client.retryWait = time.Millisecond
	client.retryMax = time.Second
	return client
}

func TestTranslate(t *testing.T) {
	var htmlRequests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "DeepL-Auth-Key secret" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if r.Form.Get("target_lang") != "EN-US" || r.Form.Get("source_lang") != "DE" {
			t.Errorf("form = %v", r.Form)
		}
		if r.Form.Get("tag_handling") == "html" {
			htmlRequests.Add(1)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"translations": []map[string]string{{"text": "EN:" + r.Form.Get("text")}},
		})
	}))
	defer server.Close()

	got, err := newTestClient(server.URL).Translate(context.Background(), ports.TranslationRequest{
		SourceLanguage: "de",
		TargetLanguage: "en",
		Content:        ports.TranslatedContent{Title: "Titel", Lead: "", Body: "<p>Text</p>"},
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got.Title != "EN:Titel" || got.Lead != "" || got.Body != "EN:<p>Text</p>" {
		t.Fatalf("Translate() = %+v", got)
	}
	if htmlRequests.Load() != 1 {
		t.Fatalf("html requests = %d, want 1", htmlRequests.Load())
	}
}

func TestTranslateRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"translations":[{"text":"Bonjour"}]}`))
	}))
	defer server.Close()

	got, err := newTestClient(server.URL).Translate(context.Background(), ports.TranslationRequest{
		TargetLanguage: "fr",
		Content:        ports.TranslatedContent{Title: "Hallo"},
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got.Title != "Bonjour" || calls.Load() != 2 {
		t.Fatalf("Translate() = %+v after %d calls", got, calls.Load())
	}
}

func TestTranslateErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Wrong endpoint"}`))
	}))
	defer server.Close()

	tests := []struct {
		name   string
		client *Client
		lang   string
		want   error
	}{
		{name: "forbidden", client: newTestClient(server.URL), lang: "en", want: article.ErrProvider},
		{name: "unsupported language", client: newTestClient(server.URL), lang: "it", want: article.ErrValidation},
		{name: "no key", client: NewClient(config.DeepLConfig{BaseURL: server.URL}, nil), lang: "en", want: article.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.client.Translate(context.Background(), ports.TranslationRequest{
				TargetLanguage: tt.lang,
				Content:        ports.TranslatedContent{Title: "Titel"},
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Translate() error = %v, want %v", err, tt.want)
			}
			if tt.name == "forbidden" && !strings.Contains(err.Error(), "403") {
				t.Fatalf("Translate() error = %v, want status code", err)
			}
		})
	}
}
