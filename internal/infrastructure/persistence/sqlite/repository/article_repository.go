package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/infrastructure/persistence/sqlite/model"
	"newsroom/internal/ports"
)

type ArticleRepository struct {
	db *gorm.DB
}

func NewArticleRepository(db *gorm.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

func (r *ArticleRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	return dbFromContext(ctx, r.db)
}

func dbFromContext(ctx context.Context, base *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return base.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *ArticleRepository) GetArticle(ctx context.Context, articleID uint64) (ports.Article, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Article{}, err
	}
	return getArticleByID(db, articleID)
}

func (r *ArticleRepository) ListArticles(ctx context.Context, filter ports.ArticleFilter) ([]ports.Article, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Article{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []model.Article
	if err := query.Order("updated_at desc").Order("article_id desc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query articles")
	}
	return mapArticles(rows)
}

func (r *ArticleRepository) FindActiveByContentHash(ctx context.Context, hash string) (ports.Article, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Article{}, false, err
	}

	hash = strings.TrimSpace(hash)
	if hash == "" {
		return ports.Article{}, false, nil
	}

	var rows []model.Article
	if err := db.
		Where("content_hash = ? AND status IN ?", hash, activeStatuses()).
		Order("article_id desc").
		Limit(1).
		Find(&rows).Error; err != nil {
		return ports.Article{}, false, errs.Wrap(err, "query article by content hash")
	}
	if len(rows) == 0 {
		return ports.Article{}, false, nil
	}
	item, err := mapArticle(rows[0])
	if err != nil {
		return ports.Article{}, false, err
	}
	return item, true, nil
}

func (r *ArticleRepository) ListDispatchable(ctx context.Context, limit int) ([]ports.Article, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.
		Where("status = ? AND dispatched_at IS NULL", string(article.StatusGenerating)).
		Order("article_id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.Article
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query dispatchable articles")
	}
	return mapArticles(rows)
}

func (r *ArticleRepository) ListExpired(ctx context.Context, now string, limit int) ([]ports.Article, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.
		Where("status IN ? AND timeout_at IS NOT NULL AND timeout_at < ?",
			[]string{string(article.StatusGenerating), string(article.StatusTranslating)}, now).
		Order("timeout_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.Article
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query expired articles")
	}
	return mapArticles(rows)
}

func (r *ArticleRepository) CreateArticle(ctx context.Context, input ports.Article) (ports.Article, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Article{}, err
	}

	row, err := toArticleRow(input)
	if err != nil {
		return ports.Article{}, err
	}
	if row.Status == "" {
		row.Status = string(article.StatusGenerating)
	}
	if row.GenerationRound == 0 {
		row.GenerationRound = 1
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Article{}, errs.Wrap(err, "insert article")
	}
	return mapArticle(row)
}

// Transition applies input.Patch only when the row still has the expected
// status (and generation round when given).
func (r *ArticleRepository) Transition(ctx context.Context, input ports.TransitionInput) (ports.Article, error) {
	if err := article.ValidateTransition(input.From, input.To); err != nil {
		return ports.Article{}, err
	}

	if ports.TxFromContext(ctx) != nil {
		db, err := r.dbFromContext(ctx)
		if err != nil {
			return ports.Article{}, err
		}

		updates, err := articlePatchUpdates(input.Patch)
		if err != nil {
			return ports.Article{}, err
		}
		updates["status"] = string(input.To)
		updates["updated_at"] = input.UpdatedAt

		query := db.Model(&model.Article{}).
			Where("article_id = ? AND status = ?", input.ArticleID, string(input.From))
		if input.GenerationRound != nil {
			query = query.Where("generation_round = ?", *input.GenerationRound)
		}
		result := query.Updates(updates)
		if result.Error != nil {
			return ports.Article{}, errs.Wrap(result.Error, "transition article")
		}
		if result.RowsAffected == 0 {
			if _, err := getArticleByID(db, input.ArticleID); err != nil {
				return ports.Article{}, err
			}
			return ports.Article{}, ports.ErrTransitionConflict
		}
		return getArticleByID(db, input.ArticleID)
	}

	var updated ports.Article
	if err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := ports.WithTxContext(ctx, tx)
		item, err := r.Transition(txCtx, input)
		if err != nil {
			return err
		}
		updated = item
		return nil
	}); err != nil {
		return ports.Article{}, err
	}
	return updated, nil
}

func (r *ArticleRepository) UpdateContent(ctx context.Context, articleID uint64, expected article.Status, patch ports.ContentPatch, updatedAt string) (ports.Article, error) {
	if ports.TxFromContext(ctx) != nil {
		db, err := r.dbFromContext(ctx)
		if err != nil {
			return ports.Article{}, err
		}

		updates, err := contentPatchUpdates(patch)
		if err != nil {
			return ports.Article{}, err
		}
		updates["updated_at"] = updatedAt

		result := db.Model(&model.Article{}).
			Where("article_id = ? AND status = ?", articleID, string(expected)).
			Updates(updates)
		if result.Error != nil {
			return ports.Article{}, errs.Wrap(result.Error, "update article content")
		}
		if result.RowsAffected == 0 {
			if _, err := getArticleByID(db, articleID); err != nil {
				return ports.Article{}, err
			}
			return ports.Article{}, ports.ErrTransitionConflict
		}
		return getArticleByID(db, articleID)
	}

	var updated ports.Article
	if err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := ports.WithTxContext(ctx, tx)
		item, err := r.UpdateContent(txCtx, articleID, expected, patch, updatedAt)
		if err != nil {
			return err
		}
		updated = item
		return nil
	}); err != nil {
		return ports.Article{}, err
	}
	return updated, nil
}

func (r *ArticleRepository) ClaimDispatch(ctx context.Context, articleID uint64, round uint64, dispatchedAt string, timeoutAt string) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	result := db.Model(&model.Article{}).
		Where("article_id = ? AND status = ? AND generation_round = ? AND dispatched_at IS NULL",
			articleID, string(article.StatusGenerating), round).
		Updates(map[string]any{
			"dispatched_at": dispatchedAt,
			"timeout_at":    timeoutAt,
		})
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "claim article dispatch")
	}
	return result.RowsAffected > 0, nil
}

func (r *ArticleRepository) ReleaseDispatch(ctx context.Context, articleID uint64, round uint64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Article{}).
		Where("article_id = ? AND status = ? AND generation_round = ?",
			articleID, string(article.StatusGenerating), round).
		Updates(map[string]any{
			"dispatched_at": nil,
			"timeout_at":    nil,
		}).Error; err != nil {
		return errs.Wrap(err, "release article dispatch")
	}
	return nil
}

func (r *ArticleRepository) StartImageJob(ctx context.Context, input ports.ImageJobStart) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"image_job_id": input.JobID,
		"image_status": string(article.ImageGenerating),
		"image_error":  "",
		"updated_at":   input.UpdatedAt,
	}
	if input.Type != "" {
		updates["image_type"] = string(input.Type)
	}
	if prompt := strings.TrimSpace(input.Prompt); prompt != "" {
		updates["image_prompt"] = prompt
	}

	result := db.Model(&model.Article{}).Where("article_id = ?", input.ArticleID).Updates(updates)
	if result.Error != nil {
		return errs.Wrap(result.Error, "start image job")
	}
	if result.RowsAffected == 0 {
		return ports.ErrArticleNotFound
	}
	return nil
}

// FinishImageJob stores the result only if jobID is still the active job of a live article.
func (r *ArticleRepository) FinishImageJob(ctx context.Context, input ports.ImageJobResult) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	updates := map[string]any{
		"image_status": string(input.Status),
		"image_error":  input.Error,
		"updated_at":   input.UpdatedAt,
	}
	if input.Status == article.ImageReady {
		updates["image_url"] = input.URL
		if alt := strings.TrimSpace(input.AltText); alt != "" {
			updates["image_alt_text"] = alt
		}
	}

	result := db.Model(&model.Article{}).
		Where("article_id = ? AND image_job_id = ? AND image_status = ? AND status NOT IN ?",
			input.ArticleID, input.JobID, string(article.ImageGenerating),
			[]string{string(article.StatusCancelled), string(article.StatusRejected)}).
		Updates(updates)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "finish image job")
	}
	return result.RowsAffected > 0, nil
}

func (r *ArticleRepository) ListTranslations(ctx context.Context, articleID uint64) ([]ports.Translation, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Translation
	if err := db.
		Where("article_id = ?", articleID).
		Order("language asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query translations")
	}

	items := make([]ports.Translation, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapTranslation(row))
	}
	return items, nil
}

func (r *ArticleRepository) GetTranslation(ctx context.Context, articleID uint64, language string) (ports.Translation, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Translation{}, err
	}

	var row model.Translation
	if err := db.Where("article_id = ? AND language = ?", articleID, language).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Translation{}, ports.ErrTranslationNotFound
		}
		return ports.Translation{}, errs.Wrap(err, "query translation")
	}
	return mapTranslation(row), nil
}

func (r *ArticleRepository) UpsertTranslation(ctx context.Context, input ports.Translation) (ports.Translation, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Translation{}, err
	}

	if input.Language == article.MasterLanguage {
		return ports.Translation{}, article.Validationf("the master language %q has no translation record", input.Language)
	}
	createdAt := input.CreatedAt
	if createdAt == "" {
		createdAt = input.UpdatedAt
	}

	row := model.Translation{
		ArticleID: input.ArticleID,
		Language:  input.Language,
		Title:     input.Title,
		Lead:      input.Lead,
		Body:      input.Body,
		Status:    string(input.Status),
		CreatedAt: createdAt,
		UpdatedAt: input.UpdatedAt,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "article_id"}, {Name: "language"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "lead", "body", "status", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return ports.Translation{}, errs.Wrap(err, "upsert translation")
	}

	var stored model.Translation
	if err := db.Where("article_id = ? AND language = ?", input.ArticleID, input.Language).Take(&stored).Error; err != nil {
		return ports.Translation{}, errs.Wrap(err, "reload translation")
	}
	return mapTranslation(stored), nil
}

func (r *ArticleRepository) LatestEvaluation(ctx context.Context, articleID uint64) (ports.Evaluation, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Evaluation{}, err
	}

	var row model.SupervisorEvaluation
	if err := db.
		Where("article_id = ?", articleID).
		Order("review_round desc").
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Evaluation{}, ports.ErrEvaluationNotFound
		}
		return ports.Evaluation{}, errs.Wrap(err, "query supervisor evaluation")
	}
	return mapEvaluation(row)
}

// SaveEvaluation stores one evaluation per review round. Re-running the
// supervisor for the same round replaces the scores but keeps any decision.
func (r *ArticleRepository) SaveEvaluation(ctx context.Context, input ports.Evaluation) (ports.Evaluation, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Evaluation{}, err
	}

	tags, err := encodeJSON(input.TonalityTags)
	if err != nil {
		return ports.Evaluation{}, err
	}
	details, err := encodeJSON(input.Details)
	if err != nil {
		return ports.Evaluation{}, err
	}
	improvements, err := encodeJSON(input.Improvements)
	if err != nil {
		return ports.Evaluation{}, err
	}

	row := model.SupervisorEvaluation{
		ArticleID:      input.ArticleID,
		ReviewRound:    input.ReviewRound,
		Score:          article.ClampScore(input.Score),
		Recommendation: string(input.Recommendation),
		Reasoning:      input.Reasoning,
		TonalityTags:   tags,
		Details:        details,
		Improvements:   improvements,
		CreatedAt:      input.CreatedAt,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "article_id"}, {Name: "review_round"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"score", "recommendation", "reasoning", "tonality_tags", "details", "improvements", "created_at",
		}),
	}).Create(&row).Error; err != nil {
		return ports.Evaluation{}, errs.Wrap(err, "upsert supervisor evaluation")
	}

	var stored model.SupervisorEvaluation
	if err := db.
		Where("article_id = ? AND review_round = ?", input.ArticleID, input.ReviewRound).
		Take(&stored).Error; err != nil {
		return ports.Evaluation{}, errs.Wrap(err, "reload supervisor evaluation")
	}
	return mapEvaluation(stored)
}

func (r *ArticleRepository) RecordDecision(ctx context.Context, input ports.DecisionRecord) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.SupervisorEvaluation{}).
		Where("evaluation_id = ?", input.EvaluationID).
		Updates(map[string]any{
			"editor_decision": string(input.Decision),
			"editor_feedback": input.Feedback,
			"deviation":       input.Deviation,
			"decided_at":      input.DecidedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "record editor decision")
	}
	if result.RowsAffected == 0 {
		return ports.ErrEvaluationNotFound
	}
	return nil
}

func (r *ArticleRepository) ListDecisions(ctx context.Context, limit int, offset int) ([]ports.Evaluation, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.
		Where("editor_decision IS NOT NULL").
		Order("decided_at desc").
		Order("evaluation_id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []model.SupervisorEvaluation
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query editor decisions")
	}

	items := make([]ports.Evaluation, 0, len(rows))
	for _, row := range rows {
		item, err := mapEvaluation(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *ArticleRepository) ListPublications(ctx context.Context, articleID uint64) ([]ports.Publication, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Publication
	if err := db.
		Where("article_id = ?", articleID).
		Order("language asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query publications")
	}

	items := make([]ports.Publication, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.Publication{
			ArticleID:   row.ArticleID,
			Language:    row.Language,
			WPPostID:    row.WPPostID,
			URL:         row.URL,
			WPStatus:    row.WPStatus,
			State:       row.State,
			Error:       row.Error,
			PublishedAt: row.PublishedAt,
		})
	}
	return items, nil
}

func (r *ArticleRepository) UpsertPublication(ctx context.Context, input ports.Publication) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Publication{
		ArticleID:   input.ArticleID,
		Language:    input.Language,
		WPPostID:    input.WPPostID,
		URL:         input.URL,
		WPStatus:    input.WPStatus,
		State:       input.State,
		Error:       input.Error,
		PublishedAt: input.PublishedAt,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "article_id"}, {Name: "language"}},
		DoUpdates: clause.AssignmentColumns([]string{"wp_post_id", "url", "wp_status", "state", "error", "published_at"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert publication")
	}
	return nil
}

func (r *ArticleRepository) ListSocialSnippets(ctx context.Context, articleID uint64) ([]ports.SocialSnippet, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.SocialSnippet
	if err := db.
		Where("article_id = ?", articleID).
		Order("snippet_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query social snippets")
	}

	items := make([]ports.SocialSnippet, 0, len(rows))
	for _, row := range rows {
		var hashtags []string
		if err := decodeJSON(row.Hashtags, &hashtags); err != nil {
			return nil, err
		}
		items = append(items, ports.SocialSnippet{
			ArticleID: row.ArticleID,
			Platform:  row.Platform,
			Text:      row.Text,
			Hashtags:  hashtags,
			CreatedAt: row.CreatedAt,
		})
	}
	return items, nil
}

func (r *ArticleRepository) ReplaceSocialSnippets(ctx context.Context, articleID uint64, snippets []ports.SocialSnippet) error {
	if ports.TxFromContext(ctx) != nil {
		db, err := r.dbFromContext(ctx)
		if err != nil {
			return err
		}

		if err := db.Where("article_id = ?", articleID).Delete(&model.SocialSnippet{}).Error; err != nil {
			return errs.Wrap(err, "delete old social snippets")
		}
		if len(snippets) == 0 {
			return nil
		}

		rows := make([]model.SocialSnippet, 0, len(snippets))
		for _, snippet := range snippets {
			hashtags, err := encodeJSON(snippet.Hashtags)
			if err != nil {
				return err
			}
			rows = append(rows, model.SocialSnippet{
				ArticleID: articleID,
				Platform:  snippet.Platform,
				Text:      snippet.Text,
				Hashtags:  hashtags,
				CreatedAt: snippet.CreatedAt,
			})
		}
		if err := db.Create(&rows).Error; err != nil {
			return errs.Wrap(err, "insert social snippets")
		}
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := ports.WithTxContext(ctx, tx)
		return r.ReplaceSocialSnippets(txCtx, articleID, snippets)
	})
}

func (r *ArticleRepository) SetEmbedding(ctx context.Context, articleID uint64, vector []float64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	raw, err := encodeJSON(vector)
	if err != nil {
		return err
	}
	result := db.Model(&model.Article{}).Where("article_id = ?", articleID).Update("embedding", raw)
	if result.Error != nil {
		return errs.Wrap(result.Error, "store article embedding")
	}
	if result.RowsAffected == 0 {
		return ports.ErrArticleNotFound
	}
	return nil
}

func (r *ArticleRepository) GetEmbedding(ctx context.Context, articleID uint64) ([]float64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var row model.Article
	if err := db.Select("article_id", "embedding").Where("article_id = ?", articleID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrArticleNotFound
		}
		return nil, errs.Wrap(err, "query article embedding")
	}

	var vector []float64
	if err := decodeJSON(row.Embedding, &vector); err != nil {
		return nil, err
	}
	return vector, nil
}

func (r *ArticleRepository) ListEmbeddings(ctx context.Context, excludeID uint64) ([]ports.ArticleEmbedding, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Article
	if err := db.
		Select("article_id", "title", "embedding").
		Where("article_id <> ? AND embedding IS NOT NULL", excludeID).
		Order("article_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query article embeddings")
	}

	items := make([]ports.ArticleEmbedding, 0, len(rows))
	for _, row := range rows {
		var vector []float64
		if err := decodeJSON(row.Embedding, &vector); err != nil {
			return nil, err
		}
		if len(vector) == 0 {
			continue
		}
		items = append(items, ports.ArticleEmbedding{
			ArticleID: row.ArticleID,
			Title:     row.Title,
			Vector:    vector,
		})
	}
	return items, nil
}

func getArticleByID(db *gorm.DB, articleID uint64) (ports.Article, error) {
	var row model.Article
	if err := db.Where("article_id = ?", articleID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Article{}, ports.ErrArticleNotFound
		}
		return ports.Article{}, errs.Wrap(err, "query article")
	}
	return mapArticle(row)
}

func activeStatuses() []string {
	out := make([]string, 0, len(article.Statuses))
	for _, status := range article.Statuses {
		if status.IsActive() {
			out = append(out, string(status))
		}
	}
	return out
}

func contentPatchUpdates(patch ports.ContentPatch) (map[string]any, error) {
	updates := make(map[string]any)
	setString := func(column string, value *string) {
		if value != nil {
			updates[column] = *value
		}
	}
	setString("title", patch.Title)
	setString("lead", patch.Lead)
	setString("body", patch.Body)
	setString("category", patch.Category)
	setString("seo_title", patch.SEOTitle)
	setString("seo_description", patch.SEODescription)
	setString("image_prompt", patch.ImagePrompt)
	setString("image_alt_text", patch.ImageAltText)
	if patch.Sources != nil {
		raw, err := encodeJSON(*patch.Sources)
		if err != nil {
			return nil, err
		}
		updates["sources"] = raw
	}
	return updates, nil
}

func articlePatchUpdates(patch ports.ArticlePatch) (map[string]any, error) {
	updates, err := contentPatchUpdates(patch.ContentPatch)
	if err != nil {
		return nil, err
	}
	if patch.Feedback != nil {
		updates["feedback"] = *patch.Feedback
	}
	if patch.LastError != nil {
		updates["last_error"] = *patch.LastError
	}
	if patch.FailureCause != nil {
		updates["failure_cause"] = *patch.FailureCause
	}
	if patch.ClearDispatch {
		updates["dispatched_at"] = nil
		updates["timeout_at"] = nil
	}
	if patch.TimeoutAt != nil {
		updates["timeout_at"] = *patch.TimeoutAt
	}
	if patch.IncrementGenerationRound {
		updates["generation_round"] = gorm.Expr("generation_round + 1")
	}
	if patch.IncrementReviewRound {
		updates["review_round"] = gorm.Expr("review_round + 1")
	}
	if patch.IncrementRetryCount {
		updates["retry_count"] = gorm.Expr("retry_count + 1")
	}
	return updates, nil
}

func toArticleRow(input ports.Article) (model.Article, error) {
	languages, err := encodeJSON(input.Languages)
	if err != nil {
		return model.Article{}, err
	}
	urls, err := encodeJSON(input.TriggerURLs)
	if err != nil {
		return model.Article{}, err
	}
	sources, err := encodeJSON(input.Sources)
	if err != nil {
		return model.Article{}, err
	}

	return model.Article{
		Status:          string(input.Status),
		TriggerType:     string(input.TriggerType),
		Category:        input.Category,
		Languages:       languages,
		TriggerText:     input.TriggerText,
		TriggerURLs:     urls,
		ContentHash:     input.ContentHash,
		Title:           input.Title,
		Lead:            input.Lead,
		Body:            input.Body,
		Sources:         sources,
		SEOTitle:        input.SEOTitle,
		SEODescription:  input.SEODescription,
		ImageType:       string(input.Image.Type),
		ImagePrompt:     input.Image.Prompt,
		ImageURL:        input.Image.URL,
		ImageAltText:    input.Image.AltText,
		ImageStatus:     string(input.Image.Status),
		ImageJobID:      input.Image.JobID,
		ImageError:      input.Image.Error,
		Feedback:        input.Feedback,
		LastError:       input.LastError,
		FailureCause:    input.FailureCause,
		GenerationRound: input.GenerationRound,
		ReviewRound:     input.ReviewRound,
		RetryCount:      input.RetryCount,
		DispatchedAt:    input.DispatchedAt,
		TimeoutAt:       input.TimeoutAt,
		CreatedAt:       input.CreatedAt,
		UpdatedAt:       input.UpdatedAt,
	}, nil
}

func mapArticles(rows []model.Article) ([]ports.Article, error) {
	items := make([]ports.Article, 0, len(rows))
	for _, row := range rows {
		item, err := mapArticle(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func mapArticle(row model.Article) (ports.Article, error) {
	languages := make(map[string]bool)
	if err := decodeJSON(row.Languages, &languages); err != nil {
		return ports.Article{}, err
	}
	var urls []string
	if err := decodeJSON(row.TriggerURLs, &urls); err != nil {
		return ports.Article{}, err
	}
	var sources []article.Source
	if err := decodeJSON(row.Sources, &sources); err != nil {
		return ports.Article{}, err
	}

	return ports.Article{
		ArticleID:      row.ArticleID,
		Status:         article.Status(row.Status),
		TriggerType:    article.TriggerType(row.TriggerType),
		Category:       row.Category,
		Languages:      languages,
		TriggerText:    row.TriggerText,
		TriggerURLs:    urls,
		ContentHash:    row.ContentHash,
		Title:          row.Title,
		Lead:           row.Lead,
		Body:           row.Body,
		Sources:        sources,
		SEOTitle:       row.SEOTitle,
		SEODescription: row.SEODescription,
		Image: ports.Image{
			Type:    article.ImageType(row.ImageType),
			Prompt:  row.ImagePrompt,
			URL:     row.ImageURL,
			AltText: row.ImageAltText,
			Status:  article.ResolveImageStatus(article.ImageStatus(row.ImageStatus), row.ImagePrompt, row.ImageURL),
			JobID:   row.ImageJobID,
			Error:   row.ImageError,
		},
		Feedback:        row.Feedback,
		LastError:       row.LastError,
		FailureCause:    row.FailureCause,
		GenerationRound: row.GenerationRound,
		ReviewRound:     row.ReviewRound,
		RetryCount:      row.RetryCount,
		DispatchedAt:    row.DispatchedAt,
		TimeoutAt:       row.TimeoutAt,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func mapTranslation(row model.Translation) ports.Translation {
	return ports.Translation{
		ArticleID: row.ArticleID,
		Language:  row.Language,
		Title:     row.Title,
		Lead:      row.Lead,
		Body:      row.Body,
		Status:    article.TranslationStatus(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func mapEvaluation(row model.SupervisorEvaluation) (ports.Evaluation, error) {
	var tags []string
	if err := decodeJSON(row.TonalityTags, &tags); err != nil {
		return ports.Evaluation{}, err
	}
	details := make(map[string]int)
	if err := decodeJSON(row.Details, &details); err != nil {
		return ports.Evaluation{}, err
	}
	var improvements []string
	if err := decodeJSON(row.Improvements, &improvements); err != nil {
		return ports.Evaluation{}, err
	}

	item := ports.Evaluation{
		EvaluationID:   row.EvaluationID,
		ArticleID:      row.ArticleID,
		ReviewRound:    row.ReviewRound,
		Score:          row.Score,
		Recommendation: article.Decision(row.Recommendation),
		Reasoning:      row.Reasoning,
		TonalityTags:   tags,
		Details:        details,
		Improvements:   improvements,
		EditorFeedback: row.EditorFeedback,
		Deviation:      row.Deviation,
		CreatedAt:      row.CreatedAt,
		DecidedAt:      row.DecidedAt,
	}
	if row.EditorDecision != nil {
		item.EditorDecision = article.Decision(*row.EditorDecision)
	}
	return item, nil
}

func encodeJSON(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(err, "encode json column")
	}
	return datatypes.JSON(raw), nil
}

func decodeJSON(raw datatypes.JSON, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Wrap(err, "decode json column")
	}
	return nil
}
