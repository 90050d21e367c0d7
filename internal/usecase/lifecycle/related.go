package lifecycle

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/ports"
)

const (
	relatedThreshold = 0.3
	relatedLimit     = 5
	embeddingBody    = 2000
)

type RelatedArticle struct {
	ArticleID  uint64
	Title      string
	Similarity float64
}

func (s *Service) enqueueEmbedding(ctx context.Context, articleID uint64) bool {
	return s.enqueueStage(ctx, TaskEmbedding, articleID, s.opts.SupervisorTimeout, func(taskCtx context.Context) error {
		return s.runEmbedding(taskCtx, articleID)
	})
}

func (s *Service) runEmbedding(ctx context.Context, articleID uint64) error {
	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return err
	}
	vector, err := s.deps.Embedder.Embed(ctx, embeddingText(item))
	if err != nil {
		return err
	}
	if err := s.deps.Articles.SetEmbedding(context.WithoutCancel(ctx), articleID, vector); err != nil {
		return err
	}
	logging.Debug(s.logger(ctx, "embedding", articleID), "embedding stored", slog.Int("dimensions", len(vector)))
	return nil
}

func embeddingText(item ports.Article) string {
	body := []rune(item.Body)
	if len(body) > embeddingBody {
		body = body[:embeddingBody]
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{item.Title, item.Lead, string(body)} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Related ranks other articles by cosine similarity of their stored embeddings.
func (s *Service) Related(ctx context.Context, articleID uint64) ([]RelatedArticle, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if err := s.requireFeature(FeatureCrosslinking); err != nil {
		return nil, err
	}

	vector, err := s.deps.Articles.GetEmbedding(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, article.Validationf("article %d has no embedding yet", articleID)
	}

	candidates, err := s.deps.Articles.ListEmbeddings(ctx, articleID)
	if err != nil {
		return nil, err
	}
	return rankRelated(vector, candidates), nil
}

func rankRelated(vector []float64, candidates []ports.ArticleEmbedding) []RelatedArticle {
	out := make([]RelatedArticle, 0, relatedLimit)
	for _, candidate := range candidates {
		similarity := cosineSimilarity(vector, candidate.Vector)
		if similarity < relatedThreshold {
			continue
		}
		out = append(out, RelatedArticle{
			ArticleID:  candidate.ArticleID,
			Title:      candidate.Title,
			Similarity: math.Round(similarity*1000) / 1000,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > relatedLimit {
		out = out[:relatedLimit]
	}
	return out
}

// cosineSimilarity is 0 for mismatched or zero vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
