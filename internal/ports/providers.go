package ports

import (
	"context"
	"errors"

	"newsroom/internal/domain/article"
)

// ErrGenerationDeferred means the generator accepted the job and the result arrives by callback.
var ErrGenerationDeferred = errors.New("generation result deferred to callback")

type ContextDocument struct {
	Title string
	URL   string
	Text  string
}

type GenerationRequest struct {
	ArticleID    uint64
	Round        uint64
	TriggerType  article.TriggerType
	Text         string
	URLs         []string
	Category     string
	Feedback     string
	PreviousBody string
	Context      []ContextDocument
}

type GeneratedContent struct {
	Title          string
	Lead           string
	Body           string
	Sources        []article.Source
	SEOTitle       string
	SEODescription string
	ImagePrompt    string
	ImageAltText   string
}

type ContentGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (GeneratedContent, error)
}

type TranslatedContent struct {
	Title string
	Lead  string
	Body  string
}

type TranslationRequest struct {
	SourceLanguage string
	TargetLanguage string
	Content        TranslatedContent
}

type Translator interface {
	Translate(ctx context.Context, req TranslationRequest) (TranslatedContent, error)
}

type TranslationReview struct {
	TargetLanguage string
	Source         TranslatedContent
	Draft          TranslatedContent
}

type TranslationReviewer interface {
	ReviewTranslation(ctx context.Context, req TranslationReview) (TranslatedContent, error)
}

type EvaluationRequest struct {
	ArticleID uint64
	Title     string
	Lead      string
	Body      string
	Category  string
	Tonality  string
}

type EvaluationResult struct {
	Score          int
	Recommendation article.Decision
	Reasoning      string
	TonalityTags   []string
	Details        map[string]int
	Improvements   []string
}

type SupervisorEvaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (EvaluationResult, error)
}

type ImageRequest struct {
	ArticleID uint64
	Prompt    string
	Type      article.ImageType
}

type ImageBackend interface {
	Name() string
	Available(ctx context.Context) bool
	Generate(ctx context.Context, req ImageRequest) ([]byte, error)
}

type ImageStore interface {
	Save(ctx context.Context, articleID uint64, data []byte) (url string, err error)
	Load(ctx context.Context, url string) (data []byte, filename string, err error)
}

type PublisherCategory struct {
	ID   int64
	Name string
}

type PublisherStatus struct {
	Connected  bool
	URL        string
	Categories []PublisherCategory
}

type PostInput struct {
	Title           string
	Content         string
	Excerpt         string
	Status          string
	Language        string
	FeaturedMediaID int64
	Meta            map[string]string
}

type PostRef struct {
	ID  int64
	URL string
}

type MediaRef struct {
	ID  int64
	URL string
}

type Publisher interface {
	Check(ctx context.Context) (PublisherStatus, error)
	UploadMedia(ctx context.Context, filename string, data []byte, altText string) (MediaRef, error)
	CreatePost(ctx context.Context, input PostInput) (PostRef, error)
}

type FeedItem struct {
	Title     string
	Link      string
	Summary   string
	Published string
}

type Feed struct {
	Title string
	Items []FeedItem
}

type FeedParser interface {
	ParseURL(ctx context.Context, url string, limit int) (Feed, error)
}

type Page struct {
	URL   string
	Title string
	Text  string
}

type PageExtractor interface {
	Extract(ctx context.Context, url string) (Page, error)
}

type SocialRequest struct {
	Title string
	Lead  string
	Body  string
	URL   string
}

type SocialWriter interface {
	WriteSnippets(ctx context.Context, req SocialRequest) ([]SocialSnippet, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
