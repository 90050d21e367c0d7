package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"newsroom/internal/domain/article"
	"newsroom/internal/infrastructure/cache"
	"newsroom/internal/infrastructure/n8n"
	"newsroom/internal/infrastructure/notify"
	"newsroom/internal/infrastructure/persistence/sqlite/model"
	"newsroom/internal/infrastructure/persistence/sqlite/repository"
	"newsroom/internal/infrastructure/persistence/sqlite/uow"
	"newsroom/internal/ports"
	"newsroom/internal/usecase/lifecycle"
)

const testWebhookToken = "s3cret"

type echoTranslator struct{}

func (echoTranslator) Translate(_ context.Context, req ports.TranslationRequest) (ports.TranslatedContent, error) {
	return ports.TranslatedContent{
		Title: req.TargetLanguage + ": " + req.Content.Title,
		Lead:  req.Content.Lead,
		Body:  req.Content.Body,
	}, nil
}

func setupServer(t *testing.T, features map[string]bool) http.Handler {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "newsroom.sqlite") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	if features == nil {
		features = map[string]bool{lifecycle.FeatureTranslation: true, lifecycle.FeatureImage: true}
	}
	broker := notify.NewBroker(8)
	t.Cleanup(broker.Close)

	supervisor := repository.NewSupervisorRepository(db)
	svc := lifecycle.NewService(lifecycle.Dependencies{
		Articles:   repository.NewArticleRepository(db),
		Tonality:   supervisor,
		ReadModel:  supervisor,
		UnitOfWork: uow.NewUnitOfWork(db),
		Cache:      cache.NewSQLiteCache(db),
		Notifier:   broker,
		Translator: echoTranslator{},
	}, lifecycle.Options{Features: features})

	return NewServer(svc, broker, Options{
		Version:        "test",
		AllowedOrigins: []string{"http://localhost:5173"},
		WebhookToken:   testWebhookToken,
	}).Routes()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func createArticle(t *testing.T, handler http.Handler, languages map[string]bool) articleResponse {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/articles", createArticleRequest{
		TriggerType: "prompt",
		Text:        "Wahl in Berlin",
		Category:    "politik",
		Languages:   languages,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/articles status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decodeBody[articleResponse](t, rec)
}

func deliverDraft(t *testing.T, handler http.Handler, articleID uint64) *httptest.ResponseRecorder {
	t.Helper()

	return doJSON(t, handler, http.MethodPost, "/api/webhook/n8n", n8n.Callback{
		ArticleID: articleID,
		Title:     "Wahl in Berlin: Die Ergebnisse",
		Lead:      "Berlin hat gewählt.",
		Body:      "<p>Die Wahlbeteiligung lag bei 70 Prozent.</p>",
	}, map[string]string{n8n.TokenHeader: testWebhookToken})
}

func TestCreateAndReadArticle(t *testing.T) {
	handler := setupServer(t, nil)

	created := createArticle(t, handler, map[string]bool{"de": true, "en": true})
	if created.ID == 0 {
		t.Fatalf("created article has no id")
	}
	if created.Status != string(article.StatusGenerating) {
		t.Fatalf("created status = %q, want generating", created.Status)
	}

	rec := doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/articles/%d", created.ID), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET article status = %d, body = %s", rec.Code, rec.Body.String())
	}
	detail := decodeBody[articleDetailResponse](t, rec)
	if detail.ID != created.ID || detail.Evaluation != nil {
		t.Fatalf("detail = %+v", detail)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/articles?status=generating", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET list status = %d", rec.Code)
	}
	if items := decodeBody[[]articleResponse](t, rec); len(items) != 1 {
		t.Fatalf("list len = %d, want 1", len(items))
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/articles?status=review", nil, nil)
	if items := decodeBody[[]articleResponse](t, rec); len(items) != 0 {
		t.Fatalf("review list len = %d, want 0", len(items))
	}
}

func TestCreateArticleValidation(t *testing.T) {
	handler := setupServer(t, nil)

	tests := []struct {
		name string
		body any
	}{
		{name: "url trigger without urls", body: createArticleRequest{TriggerType: "url"}},
		{name: "unknown trigger", body: createArticleRequest{TriggerType: "telegram", Text: "x"}},
		{name: "unknown field", body: map[string]any{"trigger": "prompt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/articles", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
			}
			if decodeBody[errorResponse](t, rec).Error == "" {
				t.Fatalf("error message is empty")
			}
		})
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/articles", nil, nil)
	if items := decodeBody[[]articleResponse](t, rec); len(items) != 0 {
		t.Fatalf("articles after rejected creates = %d, want 0", len(items))
	}
}

func TestArticleCommands(t *testing.T) {
	handler := setupServer(t, nil)
	created := createArticle(t, handler, map[string]bool{"de": true})

	tests := []struct {
		name       string
		path       string
		wantCode   int
		wantStatus string
	}{
		{name: "approve while generating", path: fmt.Sprintf("/api/articles/%d/approve", created.ID), wantCode: http.StatusBadRequest},
		{name: "approve unknown", path: "/api/articles/999/approve", wantCode: http.StatusNotFound},
		{name: "invalid id", path: "/api/articles/abc/approve", wantCode: http.StatusBadRequest},
		{name: "pause", path: fmt.Sprintf("/api/articles/%d/pause", created.ID), wantCode: http.StatusOK, wantStatus: "paused"},
		{name: "cancel", path: fmt.Sprintf("/api/articles/%d/cancel", created.ID), wantCode: http.StatusOK, wantStatus: "cancelled"},
		{name: "cancel again", path: fmt.Sprintf("/api/articles/%d/cancel", created.ID), wantCode: http.StatusOK, wantStatus: "cancelled"},
		{name: "retry", path: fmt.Sprintf("/api/articles/%d/retry", created.ID), wantCode: http.StatusOK, wantStatus: "generating"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPatch, tt.path, feedbackRequest{}, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("PATCH %s status = %d, want %d, body = %s", tt.path, rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantStatus == "" {
				return
			}
			if got := decodeBody[articleResponse](t, rec).Status; got != tt.wantStatus {
				t.Fatalf("article status = %q, want %q", got, tt.wantStatus)
			}
		})
	}
}

func TestWebhookCallback(t *testing.T) {
	handler := setupServer(t, nil)
	created := createArticle(t, handler, map[string]bool{"de": true, "en": true})

	rec := doJSON(t, handler, http.MethodPost, "/api/webhook/n8n", n8n.Callback{ArticleID: created.ID, Title: "x", Body: "y"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("callback without token status = %d, want 401", rec.Code)
	}

	rec = deliverDraft(t, handler, created.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[webhookResponse](t, rec).Article; got != string(article.StatusTranslating) {
		t.Fatalf("article status after callback = %q, want translating", got)
	}

	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/articles/%d/translations", created.ID), nil, nil)
	translations := decodeBody[[]translationResponse](t, rec)
	if len(translations) != 1 || translations[0].Language != "en" || translations[0].Status != string(article.TranslationPending) {
		t.Fatalf("translations = %+v", translations)
	}
}

func TestWebhookCallbackAfterCancel(t *testing.T) {
	handler := setupServer(t, nil)
	created := createArticle(t, handler, map[string]bool{"de": true})

	rec := doJSON(t, handler, http.MethodPatch, fmt.Sprintf("/api/articles/%d/cancel", created.ID), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rec.Code)
	}

	rec = deliverDraft(t, handler, created.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("late callback status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[webhookResponse](t, rec).Article; got != string(article.StatusCancelled) {
		t.Fatalf("article status after late callback = %q, want cancelled", got)
	}

	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/articles/%d", created.ID), nil, nil)
	if detail := decodeBody[articleDetailResponse](t, rec); detail.Body != "" {
		t.Fatalf("late callback patched body %q", detail.Body)
	}
}

func TestReviewFlow(t *testing.T) {
	handler := setupServer(t, nil)
	created := createArticle(t, handler, map[string]bool{"de": true})

	if rec := deliverDraft(t, handler, created.ID); rec.Code != http.StatusOK {
		t.Fatalf("callback status = %d", rec.Code)
	}

	rec := doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/articles/%d/translations/trigger", created.ID), translationTriggerRequest{}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("translation trigger status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[noopResponse](t, rec).Status; got != "noop" {
		t.Fatalf("translation trigger status = %q, want noop", got)
	}

	title := "Neue Überschrift"
	rec = doJSON(t, handler, http.MethodPatch, fmt.Sprintf("/api/articles/%d", created.ID), editArticleRequest{Title: &title}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[articleResponse](t, rec).Title; got != title {
		t.Fatalf("edited title = %q", got)
	}

	for i := 0; i < 2; i++ {
		rec = doJSON(t, handler, http.MethodPatch, fmt.Sprintf("/api/articles/%d/approve", created.ID), feedbackRequest{}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("approve #%d status = %d, body = %s", i+1, rec.Code, rec.Body.String())
		}
		if got := decodeBody[articleResponse](t, rec).Status; got != string(article.StatusPublished) {
			t.Fatalf("approve #%d status = %q, want published", i+1, got)
		}
	}

	rec = doJSON(t, handler, http.MethodPatch, fmt.Sprintf("/api/articles/%d/revise", created.ID), feedbackRequest{Feedback: "kürzer"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("revise on published status = %d, want 400", rec.Code)
	}
}

func TestFeatureGatedRoutes(t *testing.T) {
	handler := setupServer(t, map[string]bool{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{name: "rss parse", method: http.MethodPost, path: "/api/rss/parse", body: rssParseRequest{URL: "https://example.org/feed"}},
		{name: "related", method: http.MethodGet, path: "/api/articles/1/related"},
		{name: "social", method: http.MethodPost, path: "/api/articles/1/social/generate"},
		{name: "bulk", method: http.MethodPost, path: "/api/articles/bulk", body: bulkCreateRequest{Topics: []string{"a"}}},
		{name: "image", method: http.MethodPost, path: "/api/articles/1/image/trigger", body: imageTriggerRequest{Prompt: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, tt.method, tt.path, tt.body, nil)
			if rec.Code != http.StatusNotFound {
				t.Fatalf("%s %s status = %d, want 404, body = %s", tt.method, tt.path, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHealthAndStats(t *testing.T) {
	handler := setupServer(t, nil)
	createArticle(t, handler, map[string]bool{"de": true})

	rec := doJSON(t, handler, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d", rec.Code)
	}
	health := decodeBody[healthResponse](t, rec)
	if health.Version != "test" || health.Connections != 0 {
		t.Fatalf("health = %+v", health)
	}
	if !health.Features[lifecycle.FeatureTranslation] || health.Features[lifecycle.FeatureRSS] {
		t.Fatalf("health features = %v", health.Features)
	}
	if health.Queue.Queued != 1 {
		t.Fatalf("queued = %d, want 1", health.Queue.Queued)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/articles/stats", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET stats status = %d", rec.Code)
	}
	stats := decodeBody[statsResponse](t, rec)
	if stats.Total != 1 || stats.ByStatus[string(article.StatusGenerating)] != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	for _, status := range article.Statuses {
		if _, ok := stats.ByStatus[string(status)]; !ok {
			t.Fatalf("stats missing status %q", status)
		}
	}
}

func TestSupervisorRoutes(t *testing.T) {
	handler := setupServer(t, nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/supervisor/tonality", tonalityRequest{Trait: "stil", Value: "sachlich", Weight: 0.8}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save tonality status = %d, body = %s", rec.Code, rec.Body.String())
	}
	entry := decodeBody[tonalityResponse](t, rec)

	rec = doJSON(t, handler, http.MethodPost, "/api/supervisor/tonality", tonalityRequest{Trait: "stil", Value: "x", Weight: 2}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid weight status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/supervisor/dashboard", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d, body = %s", rec.Code, rec.Body.String())
	}
	dashboard := decodeBody[dashboardResponse](t, rec)
	if len(dashboard.Tonality) != 1 || dashboard.Deviations.DeviationRate != 0 {
		t.Fatalf("dashboard = %+v", dashboard)
	}

	rec = doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/supervisor/tonality/%d", entry.ID), nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete tonality status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/supervisor/evaluate", evaluateRequest{ArticleID: 1}, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("evaluate without evaluator status = %d, want 503", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := setupServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/articles", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/articles", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin allowed: %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: article.Validationf("bad"), want: http.StatusBadRequest},
		{name: "invalid state", err: article.InvalidStatef("nope"), want: http.StatusBadRequest},
		{name: "not found", err: ports.ErrArticleNotFound, want: http.StatusNotFound},
		{name: "feature disabled", err: article.ErrFeatureDisabled, want: http.StatusNotFound},
		{name: "conflict", err: ports.ErrTransitionConflict, want: http.StatusConflict},
		{name: "provider", err: article.Providerf("down"), want: http.StatusBadGateway},
		{name: "timeout", err: article.ErrTimeout, want: http.StatusGatewayTimeout},
		{name: "unavailable", err: article.Unavailablef("none"), want: http.StatusServiceUnavailable},
		{name: "queue full", err: fmt.Errorf("enqueue: %w", lifecycle.ErrQueueFull), want: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
