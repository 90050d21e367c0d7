package lifecycle

import (
	"context"
	"errors"

	"newsroom/internal/domain/article"
	"newsroom/internal/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	feedItemLimit    = 50
)

// ArticleDetail is an article with everything recorded about it.
type ArticleDetail struct {
	Article      ports.Article
	Translations []ports.Translation
	Evaluation   *ports.Evaluation
	Publications []ports.Publication
}

type Stats struct {
	Total    int64
	ByStatus map[article.Status]int64
}

func (s *Service) Get(ctx context.Context, articleID uint64) (ports.Article, error) {
	if err := s.check(ctx); err != nil {
		return ports.Article{}, err
	}
	return s.deps.Articles.GetArticle(ctx, articleID)
}

func (s *Service) Detail(ctx context.Context, articleID uint64) (ArticleDetail, error) {
	if err := s.check(ctx); err != nil {
		return ArticleDetail{}, err
	}

	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return ArticleDetail{}, err
	}
	translations, err := s.deps.Articles.ListTranslations(ctx, articleID)
	if err != nil {
		return ArticleDetail{}, err
	}
	publications, err := s.deps.Articles.ListPublications(ctx, articleID)
	if err != nil {
		return ArticleDetail{}, err
	}

	detail := ArticleDetail{Article: item, Translations: translations, Publications: publications}
	evaluation, err := s.deps.Articles.LatestEvaluation(ctx, articleID)
	switch {
	case err == nil:
		detail.Evaluation = &evaluation
	case errors.Is(err, ports.ErrEvaluationNotFound):
	default:
		return ArticleDetail{}, err
	}
	return detail, nil
}

func (s *Service) List(ctx context.Context, filter ports.ArticleFilter) ([]ports.Article, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if filter.Status != "" {
		if err := article.ValidateStatus(filter.Status); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		return nil, article.Validationf("offset must not be negative")
	}
	return s.deps.Articles.ListArticles(ctx, filter)
}

// Stats counts articles per status; every status is present, zero included.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if err := s.checkSupervisorStore(ctx); err != nil {
		return Stats{}, err
	}
	counts, err := s.deps.ReadModel.CountByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{ByStatus: make(map[article.Status]int64, len(article.Statuses))}
	for _, status := range article.Statuses {
		stats.ByStatus[status] = counts[status]
		stats.Total += counts[status]
	}
	return stats, nil
}

// ParseFeed previews a feed for the rss trigger.
func (s *Service) ParseFeed(ctx context.Context, url string) (ports.Feed, error) {
	if err := s.check(ctx); err != nil {
		return ports.Feed{}, err
	}
	if err := s.requireFeature(FeatureRSS); err != nil {
		return ports.Feed{}, err
	}
	if s.deps.Feeds == nil {
		return ports.Feed{}, article.Unavailablef("no feed parser configured")
	}
	return s.deps.Feeds.ParseURL(ctx, url, feedItemLimit)
}
