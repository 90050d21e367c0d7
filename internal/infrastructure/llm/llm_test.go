package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newsroom/internal/bootstrap/config"
	"newsroom/internal/domain/article"
	"newsroom/internal/infrastructure/prompts"
	"newsroom/internal/ports"
)

func chatServer(t *testing.T, answer any, seen *map[string]any) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, seen)
		}
		content, _ := json.Marshal(answer)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "mistral-large-latest",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": string(content)},
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	profile, err := prompts.Load("")
	if err != nil {
		t.Fatalf("prompts.Load() error = %v", err)
	}
	return NewClient(config.LLMConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		Model:          "mistral-large-latest",
		EmbeddingModel: "mistral-embed",
	}, profile)
}

func TestGeneratorGenerate(t *testing.T) {
	var seen map[string]any
	server := chatServer(t, map[string]any{
		"title":           "Wahl in Berlin",
		"lead":            "Der Senat steht.",
		"body":            "<p>Text</p>",
		"sources":         []map[string]string{{"title": "dpa", "url": ""}, {"title": " ", "url": ""}},
		"seo_title":       "Wahl Berlin",
		"seo_description": "Alles zur Wahl",
		"image_prompt":    "Berlin parliament",
		"image_alt_text":  "Abgeordnetenhaus",
	}, &seen)

	generator := NewGenerator(newTestClient(t, server.URL))
	got, err := generator.Generate(context.Background(), ports.GenerationRequest{
		ArticleID:   1,
		TriggerType: article.TriggerPrompt,
		Text:        "Wahl in Berlin",
		Category:    "politik",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Title != "Wahl in Berlin" || got.Body != "<p>Text</p>" {
		t.Fatalf("Generate() = %+v", got)
	}
	if len(got.Sources) != 1 || !got.Sources[0].Auto {
		t.Fatalf("Generate() sources = %+v", got.Sources)
	}
	if seen["model"] != "mistral-large-latest" {
		t.Fatalf("request model = %v", seen["model"])
	}
	if _, ok := seen["response_format"]; !ok {
		t.Fatalf("request has no response_format")
	}
}

func TestGeneratorRejectsEmptyBody(t *testing.T) {
	server := chatServer(t, map[string]any{"title": "x", "body": ""}, nil)

	_, err := NewGenerator(newTestClient(t, server.URL)).Generate(context.Background(), ports.GenerationRequest{Text: "x"})
	if !errors.Is(err, article.ErrProvider) {
		t.Fatalf("Generate() error = %v, want provider error", err)
	}
}

func TestEvaluatorEvaluate(t *testing.T) {
	server := chatServer(t, map[string]any{
		"score":          120,
		"recommendation": "freigeben",
		"reasoning":      "solide",
		"tonality_tags":  []string{"Sachlich", "sachlich", "präzise"},
		"details":        map[string]int{"content": 20, "language": 22, "tonality": 21, "seo_structure": 19},
		"improvements":   []string{"Quelle ergänzen"},
	}, nil)

	got, err := NewEvaluator(newTestClient(t, server.URL)).Evaluate(context.Background(), ports.EvaluationRequest{
		Title: "Wahl",
		Body:  "<p>Text</p>",
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got.Score != 100 || got.Recommendation != article.DecisionApprove {
		t.Fatalf("Evaluate() = %+v", got)
	}
	if len(got.TonalityTags) != 2 || got.Details["seo_structure"] != 19 {
		t.Fatalf("Evaluate() tags=%v details=%v", got.TonalityTags, got.Details)
	}
}

func TestEvaluatorUnknownRecommendation(t *testing.T) {
	server := chatServer(t, map[string]any{"score": 50, "recommendation": "vielleicht"}, nil)

	_, err := NewEvaluator(newTestClient(t, server.URL)).Evaluate(context.Background(), ports.EvaluationRequest{Title: "x"})
	if !errors.Is(err, article.ErrProvider) {
		t.Fatalf("Evaluate() error = %v, want provider error", err)
	}
}

func TestReviewerKeepsDraftForEmptyFields(t *testing.T) {
	server := chatServer(t, map[string]any{"title": "Election in Berlin", "lead": "", "body": "<p>Better</p>"}, nil)

	got, err := NewReviewer(newTestClient(t, server.URL)).ReviewTranslation(context.Background(), ports.TranslationReview{
		TargetLanguage: "en",
		Draft:          ports.TranslatedContent{Title: "Vote in Berlin", Lead: "The senate stands.", Body: "<p>Text</p>"},
	})
	if err != nil {
		t.Fatalf("ReviewTranslation() error = %v", err)
	}
	if got.Title != "Election in Berlin" || got.Lead != "The senate stands." || got.Body != "<p>Better</p>" {
		t.Fatalf("ReviewTranslation() = %+v", got)
	}
}

func TestSocialWriterSkipsEmptyPlatforms(t *testing.T) {
	server := chatServer(t, map[string]any{
		"twitter":  map[string]any{"text": "Neu: Wahl", "hashtags": []string{"#Berlin"}},
		"linkedin": map[string]any{"text": "Analyse zur Wahl", "hashtags": []string{}},
		"facebook": map[string]any{"text": ""},
	}, nil)

	got, err := NewSocialWriter(newTestClient(t, server.URL)).WriteSnippets(context.Background(), ports.SocialRequest{Title: "Wahl"})
	if err != nil {
		t.Fatalf("WriteSnippets() error = %v", err)
	}
	if len(got) != 2 || got[0].Platform != "twitter" || got[1].Platform != "linkedin" {
		t.Fatalf("WriteSnippets() = %+v", got)
	}
}

func TestEmbedderEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","model":"mistral-embed","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25]}],"usage":{"prompt_tokens":3,"total_tokens":3}}`)
	}))
	t.Cleanup(server.Close)

	got, err := NewEmbedder(newTestClient(t, server.URL)).Embed(context.Background(), "Wahl in Berlin")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(got) != 2 || got[0] != 0.5 {
		t.Fatalf("Embed() = %v", got)
	}
}

func TestClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad request","type":"invalid_request_error"}}`)
	}))
	t.Cleanup(server.Close)

	_, err := NewGenerator(newTestClient(t, server.URL)).Generate(context.Background(), ports.GenerationRequest{Text: "x"})
	if !errors.Is(err, article.ErrProvider) {
		t.Fatalf("Generate() error = %v, want provider error", err)
	}

	unconfigured := NewClient(config.LLMConfig{BaseURL: server.URL}, nil)
	_, err = NewEmbedder(unconfigured).Embed(context.Background(), "x")
	if !errors.Is(err, article.ErrUnavailable) {
		t.Fatalf("Embed() error = %v, want unavailable", err)
	}
}

func TestStripFence(t *testing.T) {
	tests := map[string]string{
		"{\"a\":1}":                 "{\"a\":1}",
		"```json\n{\"a\":1}\n```":   "{\"a\":1}",
		"```\n{\"a\":1}\n```":       "{\"a\":1}",
	}
	for in, want := range tests {
		if got := stripFence(in); got != want {
			t.Fatalf("stripFence(%q) = %q, want %q", in, got, want)
		}
	}
}
