package ports

import (
	"context"

	"newsroom/internal/domain/article"
)

type TopicRank struct {
	Topic         string
	Category      string
	ArticleCount  int64
	ApprovalRate  *float64
	LastArticleAt *string
}

type DeviationStats struct {
	TotalDecisions int64
	Deviations     int64
	DeviationRate  float64
}

// ReadModel answers aggregate questions recomputed from the job store on every call.
type ReadModel interface {
	CountByStatus(ctx context.Context) (map[article.Status]int64, error)
	TopicRanking(ctx context.Context, limit int) ([]TopicRank, error)
	DeviationStats(ctx context.Context) (DeviationStats, error)
}

type TonalityRepository interface {
	ListTonality(ctx context.Context) ([]article.TonalityEntry, error)
	UpsertTonality(ctx context.Context, entry article.TonalityEntry) (article.TonalityEntry, error)
	SaveTonality(ctx context.Context, entries []article.TonalityEntry) error
	DeleteTonality(ctx context.Context, entryID uint64) error
}
