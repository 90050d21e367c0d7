package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"newsroom/internal/domain/article"
	"newsroom/internal/infrastructure/persistence/sqlite/model"
	"newsroom/internal/ports"
)

var testBase = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *gorm.DB {
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
	return db
}

func setupArticleRepository(t *testing.T) *ArticleRepository {
	t.Helper()
	return NewArticleRepository(setupDB(t))
}

func stamp(offset int) string {
	return article.FormatTime(testBase.Add(time.Duration(offset) * time.Second))
}

func createTestArticle(t *testing.T, repo *ArticleRepository, category string, offset int) ports.Article {
	t.Helper()

	created, err := repo.CreateArticle(context.Background(), ports.Article{
		Status:      article.StatusGenerating,
		TriggerType: article.TriggerPrompt,
		Category:    category,
		Languages:   map[string]bool{"de": true, "en": true},
		TriggerText: "Wahl in Berlin",
		ContentHash: article.ContentHash(article.TriggerPrompt, category, nil),
		Title:       "Wahl in Berlin",
		CreatedAt:   stamp(offset),
		UpdatedAt:   stamp(offset),
	})
	if err != nil {
		t.Fatalf("CreateArticle() error = %v", err)
	}
	return created
}

func strPtr(s string) *string {
	return &s
}

func TestCreateArticleDefaults(t *testing.T) {
	repo := setupArticleRepository(t)
	created := createTestArticle(t, repo, "politik", 0)

	if created.ArticleID == 0 {
		t.Fatalf("CreateArticle() id = 0")
	}
	if created.GenerationRound != 1 {
		t.Fatalf("CreateArticle() generation_round = %d, want 1", created.GenerationRound)
	}

	got, err := repo.GetArticle(context.Background(), created.ArticleID)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if got.Status != article.StatusGenerating {
		t.Fatalf("GetArticle() status = %q", got.Status)
	}
	if !got.Languages["de"] || !got.Languages["en"] {
		t.Fatalf("GetArticle() languages = %v", got.Languages)
	}
}

func TestGetArticleNotFound(t *testing.T) {
	repo := setupArticleRepository(t)

	_, err := repo.GetArticle(context.Background(), 42)
	if !errors.Is(err, article.ErrNotFound) {
		t.Fatalf("GetArticle() error = %v, want not found", err)
	}
}

func TestTransitionCompareAndSet(t *testing.T) {
	repo := setupArticleRepository(t)
	ctx := context.Background()
	created := createTestArticle(t, repo, "politik", 0)

	updated, err := repo.Transition(ctx, ports.TransitionInput{
		ArticleID: created.ArticleID,
		From:      article.StatusGenerating,
		To:        article.StatusCancelled,
		UpdatedAt: stamp(1),
	})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if updated.Status != article.StatusCancelled {
		t.Fatalf("Transition() status = %q", updated.Status)
	}

	_, err = repo.Transition(ctx, ports.TransitionInput{
		ArticleID: created.ArticleID,
		From:      article.StatusGenerating,
		To:        article.StatusTranslating,
		Patch: ports.ArticlePatch{
			ContentPatch: ports.ContentPatch{Title: strPtr("late result")},
		},
		UpdatedAt: stamp(2),
	})
	if !errors.Is(err, ports.ErrTransitionConflict) {
		t.Fatalf("Transition() error = %v, want conflict", err)
	}

	got, err := repo.GetArticle(ctx, created.ArticleID)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if got.Status != article.StatusCancelled || got.Title != "Wahl in Berlin" {
		t.Fatalf("stale patch applied: status=%q title=%q", got.Status, got.Title)
	}
}

func TestTransitionConcurrentExactlyOneWins(t *testing.T) {
	repo := setupArticleRepository(t)
	ctx := context.Background()
	created := createTestArticle(t, repo, "politik", 0)

	targets := []article.Status{article.StatusCancelled, article.StatusReview}
	results := make([]error, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target article.Status) {
			defer wg.Done()
			_, results[i] = repo.Transition(ctx, ports.TransitionInput{
				ArticleID: created.ArticleID,
				From:      article.StatusGenerating,
				To:        target,
				UpdatedAt: stamp(1),
			})
		}(i, target)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ports.ErrTransitionConflict):
		default:
			t.Fatalf("Transition() unexpected error = %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("Transition() winners = %d, want 1", wins)
	}
}

func TestTransitionRejectsUnknownEdge(t *testing.T) {
	repo := setupArticleRepository(t)
	created := createTestArticle(t, repo, "politik", 0)

	_, err := repo.Transition(context.Background(), ports.TransitionInput{
		ArticleID: created.ArticleID,
		From:      article.StatusGenerating,
		To:        article.StatusPublished,
		UpdatedAt: stamp(1),
	})
	if !errors.Is(err, article.ErrInvalidState) {
		t.Fatalf("Transition() error = %v, want invalid state", err)
	}
}

func TestTransitionGenerationRoundGuard(t *testing.T) {
	repo := setupArticleRepository(t)
	ctx := context.Background()
	created := createTestArticle(t, repo, "politik", 0)

	staleRound := created.GenerationRound
	if _, err := repo.Transition(ctx, ports.TransitionInput{
		ArticleID: created.ArticleID,
		From:      article.StatusGenerating,
		To:        article.StatusFailed,
		Patch:     ports.ArticlePatch{LastError: strPtr("boom"), FailureCause: strPtr("provider_error")},
		UpdatedAt: stamp(1),
	}); err != nil {
		t.Fatalf("Transition(fail) error = %v", err)
	}
	retried, err := repo.Transition(ctx, ports.TransitionInput{
		ArticleID: created.ArticleID,
		From:      article.StatusFailed,
		To:        article.StatusGenerating,
		Patch: ports.ArticlePatch{
			LastError:                strPtr(""),
			IncrementGenerationRound: true,
			IncrementRetryCount:      true,
			ClearDispatch:            true,
		},
		UpdatedAt: stamp(2),
	})
	if err != nil {
		t.Fatalf("Transition(retry) error = %v", err)
	}
	if retried.GenerationRound != staleRound+1 || retried.RetryCount != 1 {
		t.Fatalf("Transition(retry) round=%d retry=%d", retried.GenerationRound, retried.RetryCount)
	}

	_, err = repo.Transition(ctx, ports.TransitionInput{
		ArticleID:       created.ArticleID,
		From:            article.StatusGenerating,
		To:              article.StatusReview,
		GenerationRound: &staleRound,
		UpdatedAt:       stamp(3),
	})
	if !errors.Is(err, ports.ErrTransitionConflict) {
		t.Fatalf("Transition(stale round) error = %v, want conflict", err)
	}
}

func TestTransitionMissingArticle(t *testing.T) {
	repo := setupArticleRepository(t)

	_, err := repo.Transition(context.Background(), ports.TransitionInput{
		ArticleID: 7,
		From:      article.StatusGenerating,
		To:        article.StatusCancelled,
		UpdatedAt: stamp(1),
	})
	if !errors.Is(err, article.ErrNotFound) {
		t.Fatalf("Transition() error = %v, want not found", err)
	}
}

func TestListArticlesOrderAndFilter(t *testing.T) {
	repo := setupArticleRepository(t)
	ctx := context.Background()

	first := createTestArticle(t, repo, "politik", 0)
	second := createTestArticle(t, repo, "sport", 1)
	if _, err := repo.Transition(ctx, ports.TransitionInput{
		ArticleID: first.ArticleID,
		From:      article.StatusGenerating,
		To:        article.StatusReview,
		UpdatedAt: stamp(5),
	}); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	items, err := repo.ListArticles(ctx, ports.ArticleFilter{})
	if err != nil {
		t.Fatalf("ListArticles() error = %v", err)
	}
	if len(items) != 2 || items[0].ArticleID != first.ArticleID || items[1].ArticleID != second.ArticleID {
		t.Fatalf("ListArticles() order = %+v", items)
	}

	items, err = repo.ListArticles(ctx, ports.ArticleFilter{Status: article.StatusGenerating})
	if err != nil {
		t.Fatalf("ListArticles(status) error = %v", err)
	}
	if len(items) != 1 || items[0].ArticleID != second.ArticleID {
		t.Fatalf("ListArticles(status) = %+v", items)
	}
}

func TestClaimDispatchOnlyOnce(t *testing.T) {
	repo := setupArticleRepository(t)
	ctx := context.Background()
	created := createTestArticle(t, repo, "politik", 0)

	pending, err := repo.ListDispatchable(ctx, 10)
	if err != nil {
		t.Fatalf("ListDispatchable() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("ListDispatchable() len = %d", len(pending))
	}

	ok, err := repo.ClaimDispatch(ctx, created.ArticleID, 1, stamp(1), stamp(601))
	if err != nil || !ok {
		t.Fatalf("ClaimDispatch() = %v, %v", ok, err)
	}
	ok, err = repo.ClaimDispatch(ctx, created.ArticleID, 1, stamp(2), stamp(602))
	if err != nil || ok {
		t.Fatalf("ClaimDispatch(second) = %v, %v", ok, err)
	}

	expired, err := repo.ListExpired(ctx, stamp(700), 10)
	if err != nil {
		t.Fatalf("ListExpired() error = %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("ListExpired() len = %d", len(expired))
	}

	if err := repo.ReleaseDispatch(ctx, created.ArticleID, 1); err != nil {
		t.Fatalf("ReleaseDispatch() error = %v", err)
	}
	pending, err = repo.ListDispatchable(ctx, 10)
	if err != nil {
		t.Fatalf("ListDispatchable() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("ListDispatchable() after release len = %d", len(pending))
	}
}

func TestFinishImageJobIgnoresSupersededJob(t *testing.T) {
	repo := setupArticleRepository(t)
	ctx := context.Background()
	created := createTestArticle(t, repo, "politik", 0)

	for _, jobID := range []string{"job-1", "job-2"} {
		if err := repo.StartImageJob(ctx, ports.ImageJobStart{
			ArticleID: created.ArticleID,
			JobID:     jobID,
			Type:      article.ImagePhoto,
			Prompt:    "Brandenburger Tor",
			UpdatedAt: stamp(1),
		}); err != nil {
			t.Fatalf("StartImageJob(%s) error = %v", jobID, err)
		}
	}

	ok, err := repo.FinishImageJob(ctx, ports.ImageJobResult{
		ArticleID: created.ArticleID,
		JobID:     "job-1",
		Status:    article.ImageReady,
		URL:       "/static/images/old.png",
		UpdatedAt: stamp(2),
	})
	if err != nil || ok {
		t.Fatalf("FinishImageJob(stale) = %v, %v", ok, err)
	}

	ok, err = repo.FinishImageJob(ctx, ports.ImageJobResult{
		ArticleID: created.ArticleID,
		JobID:     "job-2",
		Status:    article.ImageReady,
		URL:       "/static/images/new.png",
		UpdatedAt: stamp(3),
	})
	if err != nil || !ok {
		t.Fatalf("FinishImageJob(current) = %v, %v", ok, err)
	}

	got, err := repo.GetArticle(ctx, created.ArticleID)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if got.Image.Status != article.ImageReady || got.Image.URL != "/static/images/new.png" {
		t.Fatalf("GetArticle() image = %+v", got.Image)
	}
}

func TestFinishImageJobIgnoresCancelledArticle(t *testing.T) {
	repo := setupArticleRepository(t)
	ctx := context.Background()
	created := createTestArticle(t, repo, "politik", 0)

	if err := repo.StartImageJob(ctx, ports.ImageJobStart{
		ArticleID: created.ArticleID,
		JobID:     "job-1",
		Type:      article.ImagePhoto,
		Prompt:    "Brandenburger Tor",
		UpdatedAt: stamp(1),
	}); err != nil {
		t.Fatalf("StartImageJob() error = %v", err)
	}
	if _, err := repo.Transition(ctx, ports.TransitionInput{
		ArticleID: created.ArticleID,
		From:      article.StatusGenerating,
		To:        article.StatusCancelled,
		UpdatedAt: stamp(2),
	}); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	ok, err := repo.FinishImageJob(ctx, ports.ImageJobResult{
		ArticleID: created.ArticleID,
		JobID:     "job-1",
		Status:    article.ImageReady,
		URL:       "/static/images/late.png",
		UpdatedAt: stamp(3),
	})
	if err != nil || ok {
		t.Fatalf("FinishImageJob(cancelled) = %v, %v", ok, err)
	}

	got, err := repo.GetArticle(ctx, created.ArticleID)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if got.Image.URL != "" {
		t.Fatalf("GetArticle() image url = %q, want empty", got.Image.URL)
	}
}

func TestListExpiredIncludesTranslatingDeadline(t *testing.T) {
	repo := setupArticleRepository(t)
	ctx := context.Background()
	created := createTestArticle(t, repo, "politik", 0)

	if ok, err := repo.ClaimDispatch(ctx, created.ArticleID, 1, stamp(1), stamp(601)); err != nil || !ok {
		t.Fatalf("ClaimDispatch() = %v, %v", ok, err)
	}
	moved, err := repo.Transition(ctx, ports.TransitionInput{
		ArticleID: created.ArticleID,
		From:      article.StatusGenerating,
		To:        article.StatusTranslating,
		Patch: ports.ArticlePatch{
			ClearDispatch: true,
			TimeoutAt:     strPtr(stamp(1200)),
		},
		UpdatedAt: stamp(10),
	})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if moved.DispatchedAt != nil || moved.TimeoutAt == nil || *moved.TimeoutAt != stamp(1200) {
		t.Fatalf("Transition() dispatch=%v timeout=%v", moved.DispatchedAt, moved.TimeoutAt)
	}

	tests := []struct {
		name string
		now  string
		want int
	}{
		{name: "before deadline", now: stamp(700), want: 0},
		{name: "after deadline", now: stamp(1300), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expired, err := repo.ListExpired(ctx, tt.now, 10)
			if err != nil {
				t.Fatalf("ListExpired() error = %v", err)
			}
			if len(expired) != tt.want {
				t.Fatalf("ListExpired() len = %d, want %d", len(expired), tt.want)
			}
			if tt.want > 0 && expired[0].Status != article.StatusTranslating {
				t.Fatalf("ListExpired() status = %s", expired[0].Status)
			}
		})
	}
}

func TestUpsertTranslation(t *testing.T) {
	repo := setupArticleRepository(t)
	ctx := context.Background()
	created := createTestArticle(t, repo, "politik", 0)

	if _, err := repo.UpsertTranslation(ctx, ports.Translation{
		ArticleID: created.ArticleID,
		Language:  "en",
		Status:    article.TranslationPending,
		UpdatedAt: stamp(1),
	}); err != nil {
		t.Fatalf("UpsertTranslation(pending) error = %v", err)
	}
	got, err := repo.UpsertTranslation(ctx, ports.Translation{
		ArticleID: created.ArticleID,
		Language:  "en",
		Title:     "Election in Berlin",
		Status:    article.TranslationDeepLDone,
		UpdatedAt: stamp(2),
	})
	if err != nil {
		t.Fatalf("UpsertTranslation(done) error = %v", err)
	}
	if got.Status != article.TranslationDeepLDone || got.Title != "Election in Berlin" || got.CreatedAt != stamp(1) {
		t.Fatalf("UpsertTranslation() = %+v", got)
	}

	if _, err := repo.UpsertTranslation(ctx, ports.Translation{
		ArticleID: created.ArticleID,
		Language:  "de",
		Status:    article.TranslationPending,
		UpdatedAt: stamp(3),
	}); !errors.Is(err, article.ErrValidation) {
		t.Fatalf("UpsertTranslation(de) error = %v, want validation", err)
	}
}

func TestSaveEvaluationOnePerReviewRound(t *testing.T) {
	repo := setupArticleRepository(t)
	ctx := context.Background()
	created := createTestArticle(t, repo, "politik", 0)

	first, err := repo.SaveEvaluation(ctx, ports.Evaluation{
		ArticleID:      created.ArticleID,
		ReviewRound:    1,
		Score:          140,
		Recommendation: article.DecisionApprove,
		TonalityTags:   []string{"sachlich"},
		Details:        map[string]int{"accuracy": 90},
		CreatedAt:      stamp(1),
	})
	if err != nil {
		t.Fatalf("SaveEvaluation() error = %v", err)
	}
	if first.Score != 100 {
		t.Fatalf("SaveEvaluation() score = %d, want clamped 100", first.Score)
	}

	again, err := repo.SaveEvaluation(ctx, ports.Evaluation{
		ArticleID:      created.ArticleID,
		ReviewRound:    1,
		Score:          60,
		Recommendation: article.DecisionRevise,
		CreatedAt:      stamp(2),
	})
	if err != nil {
		t.Fatalf("SaveEvaluation(again) error = %v", err)
	}
	if again.EvaluationID != first.EvaluationID || again.Recommendation != article.DecisionRevise {
		t.Fatalf("SaveEvaluation(again) = %+v", again)
	}

	if err := repo.RecordDecision(ctx, ports.DecisionRecord{
		EvaluationID: again.EvaluationID,
		Decision:     article.DecisionApprove,
		Deviation:    true,
		DecidedAt:    stamp(3),
	}); err != nil {
		t.Fatalf("RecordDecision() error = %v", err)
	}

	decisions, err := repo.ListDecisions(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListDecisions() error = %v", err)
	}
	if len(decisions) != 1 || decisions[0].EditorDecision != article.DecisionApprove || !decisions[0].Deviation {
		t.Fatalf("ListDecisions() = %+v", decisions)
	}
}

func TestEmbeddings(t *testing.T) {
	repo := setupArticleRepository(t)
	ctx := context.Background()
	first := createTestArticle(t, repo, "politik", 0)
	second := createTestArticle(t, repo, "sport", 1)

	if err := repo.SetEmbedding(ctx, first.ArticleID, []float64{1, 0}); err != nil {
		t.Fatalf("SetEmbedding() error = %v", err)
	}
	if err := repo.SetEmbedding(ctx, second.ArticleID, []float64{0, 1}); err != nil {
		t.Fatalf("SetEmbedding() error = %v", err)
	}

	vector, err := repo.GetEmbedding(ctx, first.ArticleID)
	if err != nil {
		t.Fatalf("GetEmbedding() error = %v", err)
	}
	if len(vector) != 2 || vector[0] != 1 {
		t.Fatalf("GetEmbedding() = %v", vector)
	}

	others, err := repo.ListEmbeddings(ctx, first.ArticleID)
	if err != nil {
		t.Fatalf("ListEmbeddings() error = %v", err)
	}
	if len(others) != 1 || others[0].ArticleID != second.ArticleID {
		t.Fatalf("ListEmbeddings() = %+v", others)
	}
}
