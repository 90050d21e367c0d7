package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"newsroom/internal/domain/article"
	"newsroom/internal/infrastructure/cache"
	"newsroom/internal/infrastructure/persistence/sqlite/model"
	"newsroom/internal/infrastructure/persistence/sqlite/repository"
	"newsroom/internal/infrastructure/persistence/sqlite/uow"
	"newsroom/internal/ports"
)

type harness struct {
	mu    sync.Mutex
	tasks []Task

	articles   *repository.ArticleRepository
	supervisor *repository.SupervisorRepository
	notifier   *recordingNotifier
	generator  *fakeGenerator
	translator *fakeTranslator
	evaluator  *fakeEvaluator
	backend    *fakeImageBackend
	images     *memoryImageStore
	publisher  *fakePublisher
}

func (h *harness) capture(task Task) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks = append(h.tasks, task)
	return nil
}

// next pops the oldest captured task, optionally the oldest of one kind.
func (h *harness) next(kinds ...TaskKind) (Task, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, task := range h.tasks {
		if !matchesKind(task.Kind, kinds) {
			continue
		}
		h.tasks = append(h.tasks[:i], h.tasks[i+1:]...)
		return task, true
	}
	return Task{}, false
}

func (h *harness) pending(kind TaskKind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	count := 0
	for _, task := range h.tasks {
		if task.Kind == kind {
			count++
		}
	}
	return count
}

func (h *harness) runNext(t *testing.T, kind TaskKind) error {
	t.Helper()
	task, ok := h.next(kind)
	if !ok {
		t.Fatalf("no %s task queued", kind)
	}
	return task.Run(context.Background())
}

// drain runs captured tasks, including the ones they enqueue, until none is left.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	for i := 0; i < 100; i++ {
		task, ok := h.next()
		if !ok {
			return
		}
		_ = task.Run(context.Background())
	}
	t.Fatalf("task queue did not drain")
}

func setupService(t *testing.T, opts Options) (*Service, *harness) {
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

	h := &harness{
		articles:   repository.NewArticleRepository(db),
		supervisor: repository.NewSupervisorRepository(db),
		notifier:   &recordingNotifier{},
		generator: &fakeGenerator{content: ports.GeneratedContent{
			Title:          "Wahl in Berlin: Die Ergebnisse",
			Lead:           "Berlin hat gewählt.",
			Body:           "<p>Die Wahlbeteiligung lag bei 70 Prozent.</p>",
			SEOTitle:       "Wahl Berlin",
			SEODescription: "Alle Ergebnisse der Wahl",
			Sources:        []article.Source{{Title: "Landeswahlleiter", URL: "https://example.org/wahl"}},
		}},
		translator: &fakeTranslator{failures: map[string]error{}},
		evaluator: &fakeEvaluator{result: ports.EvaluationResult{
			Score:          82,
			Recommendation: article.DecisionApprove,
			Reasoning:      "Sachlich und gut belegt.",
			TonalityTags:   []string{"sachlich", "präzise"},
		}},
		backend:   &fakeImageBackend{available: true, data: []byte("png")},
		images:    &memoryImageStore{files: map[string][]byte{}},
		publisher: &fakePublisher{connected: true},
	}

	if opts.Features == nil {
		opts.Features = map[string]bool{FeatureTranslation: true, FeatureImage: true}
	}
	svc := NewService(Dependencies{
		Articles:      h.articles,
		Tonality:      h.supervisor,
		ReadModel:     h.supervisor,
		UnitOfWork:    uow.NewUnitOfWork(db),
		Cache:         cache.NewSQLiteCache(db),
		Notifier:      h.notifier,
		Generator:     h.generator,
		Translator:    h.translator,
		Evaluator:     h.evaluator,
		ImageBackends: []ports.ImageBackend{h.backend},
		Images:        h.images,
		Publisher:     h.publisher,
	}, opts)
	svc.enqueue = h.capture
	return svc, h
}

func createPrompt(t *testing.T, svc *Service, text string, languages map[string]bool) ports.Article {
	t.Helper()
	created, err := svc.Create(context.Background(), CreateInput{
		TriggerType: "prompt",
		Text:        text,
		Category:    "politik",
		Languages:   languages,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return created
}

func mustGet(t *testing.T, svc *Service, articleID uint64) ports.Article {
	t.Helper()
	item, err := svc.Get(context.Background(), articleID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return item
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []ports.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event ports.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) count(name string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, event := range n.events {
		if event.Name == name {
			total++
		}
	}
	return total
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, event := range n.events {
		out = append(out, event.Name)
	}
	return out
}

type fakeGenerator struct {
	mu       sync.Mutex
	content  ports.GeneratedContent
	err      error
	requests []ports.GenerationRequest
}

func (g *fakeGenerator) Generate(_ context.Context, req ports.GenerationRequest) (ports.GeneratedContent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return ports.GeneratedContent{}, g.err
	}
	return g.content, nil
}

type fakeTranslator struct {
	mu       sync.Mutex
	failures map[string]error
}

func (f *fakeTranslator) Translate(_ context.Context, req ports.TranslationRequest) (ports.TranslatedContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[req.TargetLanguage]; err != nil {
		return ports.TranslatedContent{}, err
	}
	return ports.TranslatedContent{
		Title: "[" + req.TargetLanguage + "] " + req.Content.Title,
		Lead:  "[" + req.TargetLanguage + "] " + req.Content.Lead,
		Body:  "[" + req.TargetLanguage + "] " + req.Content.Body,
	}, nil
}

type fakeEvaluator struct {
	result ports.EvaluationResult
	err    error
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ ports.EvaluationRequest) (ports.EvaluationResult, error) {
	return f.result, f.err
}

type fakeImageBackend struct {
	mu        sync.Mutex
	available bool
	data      []byte
	err       error
	calls     int
}

func (f *fakeImageBackend) Name() string {
	return "fake"
}

func (f *fakeImageBackend) Available(_ context.Context) bool {
	return f.available
}

func (f *fakeImageBackend) Generate(_ context.Context, _ ports.ImageRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.data, f.err
}

func (f *fakeImageBackend) generateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memoryImageStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memoryImageStore) Save(_ context.Context, articleID uint64, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url := fmt.Sprintf("/static/images/%d_%d.png", articleID, len(m.files))
	m.files[url] = data
	return url, nil
}

func (m *memoryImageStore) Load(_ context.Context, url string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[url]
	if !ok {
		return nil, "", errors.New("missing image")
	}
	return data, filepath.Base(url), nil
}

type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	posts     []ports.PostInput
	uploads   int
	failLang  string
}

func (f *fakePublisher) Check(_ context.Context) (ports.PublisherStatus, error) {
	return ports.PublisherStatus{Connected: f.connected, URL: "https://wp.example.org"}, nil
}

func (f *fakePublisher) UploadMedia(_ context.Context, _ string, _ []byte, _ string) (ports.MediaRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return ports.MediaRef{ID: 77}, nil
}

func (f *fakePublisher) CreatePost(_ context.Context, input ports.PostInput) (ports.PostRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if input.Language == f.failLang {
		return ports.PostRef{}, article.Providerf("wordpress rejected %s", input.Language)
	}
	f.posts = append(f.posts, input)
	id := int64(100 + len(f.posts))
	return ports.PostRef{ID: id, URL: "https://wp.example.org/?p=" + input.Language}, nil
}
