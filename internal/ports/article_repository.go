package ports

import (
	"context"
	"fmt"

	"newsroom/internal/domain/article"
)

var (
	ErrArticleNotFound     = fmt.Errorf("article %w", article.ErrNotFound)
	ErrTranslationNotFound = fmt.Errorf("translation %w", article.ErrNotFound)
	ErrEvaluationNotFound  = fmt.Errorf("supervisor evaluation %w", article.ErrNotFound)
	ErrTonalityNotFound    = fmt.Errorf("tonality entry %w", article.ErrNotFound)

	// ErrTransitionConflict is returned when the compare-and-set guard did not match.
	ErrTransitionConflict = fmt.Errorf("%w: article changed concurrently", article.ErrConflict)
)

type Article struct {
	ArticleID       uint64
	Status          article.Status
	TriggerType     article.TriggerType
	Category        string
	Languages       map[string]bool
	TriggerText     string
	TriggerURLs     []string
	ContentHash     string
	Title           string
	Lead            string
	Body            string
	Sources         []article.Source
	SEOTitle        string
	SEODescription  string
	Image           Image
	Feedback        string
	LastError       string
	FailureCause    string
	GenerationRound uint64
	ReviewRound     uint64
	RetryCount      int
	DispatchedAt    *string
	TimeoutAt       *string
	CreatedAt       string
	UpdatedAt       string
}

type Image struct {
	Type    article.ImageType
	Prompt  string
	URL     string
	AltText string
	Status  article.ImageStatus
	JobID   string
	Error   string
}

type ArticleFilter struct {
	Status article.Status
	Limit  int
	Offset int
}

// ContentPatch carries editable content; nil fields are left untouched.
type ContentPatch struct {
	Title          *string
	Lead           *string
	Body           *string
	Category       *string
	SEOTitle       *string
	SEODescription *string
	Sources        *[]article.Source
	ImagePrompt    *string
	ImageAltText   *string
}

type ArticlePatch struct {
	ContentPatch
	Feedback     *string
	LastError    *string
	FailureCause *string

	// TimeoutAt sets the stage deadline; applied after ClearDispatch.
	TimeoutAt *string

	ClearDispatch            bool
	IncrementGenerationRound bool
	IncrementReviewRound     bool
	IncrementRetryCount      bool
}

// TransitionInput is a compare-and-set on status (and optionally the generation round).
type TransitionInput struct {
	ArticleID       uint64
	From            article.Status
	To              article.Status
	GenerationRound *uint64
	Patch           ArticlePatch
	UpdatedAt       string
}

type ImageJobStart struct {
	ArticleID uint64
	JobID     string
	Type      article.ImageType
	Prompt    string
	UpdatedAt string
}

type ImageJobResult struct {
	ArticleID uint64
	JobID     string
	Status    article.ImageStatus
	URL       string
	AltText   string
	Error     string
	UpdatedAt string
}

type Translation struct {
	ArticleID uint64
	Language  string
	Title     string
	Lead      string
	Body      string
	Status    article.TranslationStatus
	CreatedAt string
	UpdatedAt string
}

type Evaluation struct {
	EvaluationID   uint64
	ArticleID      uint64
	ReviewRound    uint64
	Score          int
	Recommendation article.Decision
	Reasoning      string
	TonalityTags   []string
	Details        map[string]int
	Improvements   []string
	EditorDecision article.Decision
	EditorFeedback string
	Deviation      bool
	CreatedAt      string
	DecidedAt      *string
}

type DecisionRecord struct {
	EvaluationID uint64
	Decision     article.Decision
	Feedback     string
	Deviation    bool
	DecidedAt    string
}

type Publication struct {
	ArticleID   uint64
	Language    string
	WPPostID    int64
	URL         string
	WPStatus    string
	State       string
	Error       string
	PublishedAt string
}

type SocialSnippet struct {
	ArticleID uint64
	Platform  string
	Text      string
	Hashtags  []string
	CreatedAt string
}

type ArticleEmbedding struct {
	ArticleID uint64
	Title     string
	Vector    []float64
}

type ArticleReadRepository interface {
	GetArticle(ctx context.Context, articleID uint64) (Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]Article, error)
	FindActiveByContentHash(ctx context.Context, hash string) (Article, bool, error)
	ListDispatchable(ctx context.Context, limit int) ([]Article, error)
	ListExpired(ctx context.Context, now string, limit int) ([]Article, error)
	ListTranslations(ctx context.Context, articleID uint64) ([]Translation, error)
	GetTranslation(ctx context.Context, articleID uint64, language string) (Translation, error)
	LatestEvaluation(ctx context.Context, articleID uint64) (Evaluation, error)
	ListDecisions(ctx context.Context, limit int, offset int) ([]Evaluation, error)
	ListPublications(ctx context.Context, articleID uint64) ([]Publication, error)
	ListSocialSnippets(ctx context.Context, articleID uint64) ([]SocialSnippet, error)
	ListEmbeddings(ctx context.Context, excludeID uint64) ([]ArticleEmbedding, error)
	GetEmbedding(ctx context.Context, articleID uint64) ([]float64, error)
}

type ArticleRepository interface {
	ArticleReadRepository
	CreateArticle(ctx context.Context, input Article) (Article, error)
	Transition(ctx context.Context, input TransitionInput) (Article, error)
	UpdateContent(ctx context.Context, articleID uint64, expected article.Status, patch ContentPatch, updatedAt string) (Article, error)
	ClaimDispatch(ctx context.Context, articleID uint64, round uint64, dispatchedAt string, timeoutAt string) (bool, error)
	ReleaseDispatch(ctx context.Context, articleID uint64, round uint64) error
	StartImageJob(ctx context.Context, input ImageJobStart) error
	FinishImageJob(ctx context.Context, input ImageJobResult) (bool, error)
	UpsertTranslation(ctx context.Context, input Translation) (Translation, error)
	SaveEvaluation(ctx context.Context, input Evaluation) (Evaluation, error)
	RecordDecision(ctx context.Context, input DecisionRecord) error
	UpsertPublication(ctx context.Context, input Publication) error
	ReplaceSocialSnippets(ctx context.Context, articleID uint64, snippets []SocialSnippet) error
	SetEmbedding(ctx context.Context, articleID uint64, vector []float64) error
}
