package lifecycle

import (
	"context"
	"log/slog"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/ports"
)

// GenerateSocial schedules platform snippets for an article with content.
func (s *Service) GenerateSocial(ctx context.Context, articleID uint64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := s.requireFeature(FeatureSocial); err != nil {
		return err
	}
	if s.deps.Social == nil {
		return article.Unavailablef("no social writer configured")
	}

	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return err
	}
	if item.Body == "" {
		return errNoContent
	}

	if !s.enqueueStage(ctx, TaskSocial, articleID, s.opts.SupervisorTimeout, func(taskCtx context.Context) error {
		return s.runSocial(taskCtx, articleID)
	}) {
		return ErrQueueFull
	}
	return nil
}

func (s *Service) runSocial(ctx context.Context, articleID uint64) error {
	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return err
	}

	url := ""
	if publications, err := s.deps.Articles.ListPublications(ctx, articleID); err == nil {
		for _, publication := range publications {
			if publication.Language == article.MasterLanguage && publication.URL != "" {
				url = publication.URL
			}
		}
	}

	snippets, err := s.deps.Social.WriteSnippets(ctx, ports.SocialRequest{
		Title: item.Title,
		Lead:  item.Lead,
		Body:  item.Body,
		URL:   url,
	})
	if err != nil {
		return err
	}

	now := s.timestamp()
	for i := range snippets {
		snippets[i].ArticleID = articleID
		snippets[i].CreatedAt = now
	}
	if err := s.deps.Articles.ReplaceSocialSnippets(context.WithoutCancel(ctx), articleID, snippets); err != nil {
		return err
	}
	logging.Info(s.logger(ctx, "social", articleID), "social snippets stored", slog.Int("count", len(snippets)))
	return nil
}

func (s *Service) ListSocial(ctx context.Context, articleID uint64) ([]ports.SocialSnippet, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if err := s.requireFeature(FeatureSocial); err != nil {
		return nil, err
	}
	if _, err := s.deps.Articles.GetArticle(ctx, articleID); err != nil {
		return nil, err
	}
	return s.deps.Articles.ListSocialSnippets(ctx, articleID)
}
