package repository

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/infrastructure/persistence/sqlite/model"
	"newsroom/internal/ports"
)

// SupervisorRepository owns the tonality profile and the aggregate read models.
type SupervisorRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var (
	_ ports.TonalityRepository = (*SupervisorRepository)(nil)
	_ ports.ReadModel          = (*SupervisorRepository)(nil)
)

func NewSupervisorRepository(db *gorm.DB) *SupervisorRepository {
	return &SupervisorRepository{db: db, now: time.Now}
}

func (r *SupervisorRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	return dbFromContext(ctx, r.db)
}

func (r *SupervisorRepository) ListTonality(ctx context.Context) ([]article.TonalityEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.TonalityEntry
	if err := db.Order("weight desc").Order("trait asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query tonality entries")
	}

	items := make([]article.TonalityEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapTonality(row))
	}
	return items, nil
}

func (r *SupervisorRepository) UpsertTonality(ctx context.Context, entry article.TonalityEntry) (article.TonalityEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return article.TonalityEntry{}, err
	}

	trait := strings.ToLower(strings.TrimSpace(entry.Trait))
	if trait == "" {
		return article.TonalityEntry{}, article.Validationf("trait is required")
	}
	if err := article.ValidateWeight(entry.Weight); err != nil {
		return article.TonalityEntry{}, err
	}

	row := model.TonalityEntry{
		Trait:         trait,
		Value:         strings.TrimSpace(entry.Value),
		Weight:        entry.Weight,
		EvidenceCount: entry.EvidenceCount,
		UpdatedAt:     article.FormatTime(r.now()),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trait"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "weight", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return article.TonalityEntry{}, errs.Wrap(err, "upsert tonality entry")
	}

	var stored model.TonalityEntry
	if err := db.Where("trait = ?", trait).Take(&stored).Error; err != nil {
		return article.TonalityEntry{}, errs.Wrap(err, "reload tonality entry")
	}
	return mapTonality(stored), nil
}

// SaveTonality writes the result of a learning pass. Entries with an ID are
// updated in place, new traits are inserted.
func (r *SupervisorRepository) SaveTonality(ctx context.Context, entries []article.TonalityEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if ports.TxFromContext(ctx) != nil {
		db, err := r.dbFromContext(ctx)
		if err != nil {
			return err
		}

		now := article.FormatTime(r.now())
		for _, entry := range entries {
			if entry.ID != 0 {
				if err := db.Model(&model.TonalityEntry{}).
					Where("entry_id = ?", entry.ID).
					Updates(map[string]any{
						"weight":         entry.Weight,
						"evidence_count": entry.EvidenceCount,
						"updated_at":     now,
					}).Error; err != nil {
					return errs.Wrapf(err, "update tonality entry %d", entry.ID)
				}
				continue
			}

			row := model.TonalityEntry{
				Trait:         strings.ToLower(strings.TrimSpace(entry.Trait)),
				Value:         entry.Value,
				Weight:        entry.Weight,
				EvidenceCount: entry.EvidenceCount,
				UpdatedAt:     now,
			}
			if err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "trait"}},
				DoUpdates: clause.AssignmentColumns([]string{"weight", "evidence_count", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return errs.Wrapf(err, "insert tonality entry %q", row.Trait)
			}
		}
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := ports.WithTxContext(ctx, tx)
		return r.SaveTonality(txCtx, entries)
	})
}

func (r *SupervisorRepository) DeleteTonality(ctx context.Context, entryID uint64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Where("entry_id = ?", entryID).Delete(&model.TonalityEntry{})
	if result.Error != nil {
		return errs.Wrap(result.Error, "delete tonality entry")
	}
	if result.RowsAffected == 0 {
		return ports.ErrTonalityNotFound
	}
	return nil
}

type statusCountRow struct {
	Status string `gorm:"column:status"`
	Total  int64  `gorm:"column:total"`
}

func (r *SupervisorRepository) CountByStatus(ctx context.Context) (map[article.Status]int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("status", "COUNT(*) AS total").
		From(model.Article{}.TableName()).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, errs.Wrap(err, "build status count query")
	}

	var rows []statusCountRow
	if err := db.Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "count articles by status")
	}

	counts := make(map[article.Status]int64, len(article.Statuses))
	for _, status := range article.Statuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[article.Status(row.Status)] = row.Total
	}
	return counts, nil
}

type topicRow struct {
	Category      string  `gorm:"column:category"`
	ArticleCount  int64   `gorm:"column:article_count"`
	LastArticleAt *string `gorm:"column:last_article_at"`
	Approved      int64   `gorm:"column:approved"`
	Decisions     int64   `gorm:"column:decisions"`
}

func (r *SupervisorRepository) TopicRanking(ctx context.Context, limit int) ([]ports.TopicRank, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	builder := sq.Select(
		"a.category AS category",
		"COUNT(DISTINCT a.article_id) AS article_count",
		"MAX(a.created_at) AS last_article_at",
	).
		Column(sq.Expr("COALESCE(SUM(CASE WHEN e.editor_decision = ? THEN 1 ELSE 0 END), 0) AS approved", string(article.DecisionApprove))).
		Column("COUNT(e.evaluation_id) AS decisions").
		From("articles a").
		LeftJoin("supervisor_evaluations e ON e.article_id = a.article_id AND e.editor_decision IS NOT NULL").
		GroupBy("a.category").
		OrderBy("article_count DESC", "last_article_at DESC", "category ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errs.Wrap(err, "build topic ranking query")
	}

	var rows []topicRow
	if err := db.Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query topic ranking")
	}

	items := make([]ports.TopicRank, 0, len(rows))
	for _, row := range rows {
		item := ports.TopicRank{
			Topic:         row.Category,
			Category:      row.Category,
			ArticleCount:  row.ArticleCount,
			LastArticleAt: row.LastArticleAt,
		}
		if row.Decisions > 0 {
			rate := float64(row.Approved) / float64(row.Decisions)
			item.ApprovalRate = &rate
		}
		items = append(items, item)
	}
	return items, nil
}

type deviationRow struct {
	Total      int64 `gorm:"column:total"`
	Deviations int64 `gorm:"column:deviations"`
}

// DeviationStats counts decided evaluations where the editor overruled the supervisor.
func (r *SupervisorRepository) DeviationStats(ctx context.Context) (ports.DeviationStats, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.DeviationStats{}, err
	}

	query, args, err := sq.Select("COUNT(*) AS total").
		Column("COALESCE(SUM(CASE WHEN editor_decision <> recommendation THEN 1 ELSE 0 END), 0) AS deviations").
		From(model.SupervisorEvaluation{}.TableName()).
		Where(sq.NotEq{"editor_decision": nil}).
		ToSql()
	if err != nil {
		return ports.DeviationStats{}, errs.Wrap(err, "build deviation query")
	}

	var row deviationRow
	if err := db.Raw(query, args...).Scan(&row).Error; err != nil {
		return ports.DeviationStats{}, errs.Wrap(err, "query deviation stats")
	}
	return ports.DeviationStats{
		TotalDecisions: row.Total,
		Deviations:     row.Deviations,
		DeviationRate:  article.DeviationRate(row.Total, row.Deviations),
	}, nil
}

func mapTonality(row model.TonalityEntry) article.TonalityEntry {
	return article.TonalityEntry{
		ID:            row.EntryID,
		Trait:         row.Trait,
		Value:         row.Value,
		Weight:        row.Weight,
		EvidenceCount: row.EvidenceCount,
	}
}
