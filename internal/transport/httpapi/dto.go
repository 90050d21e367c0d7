package httpapi

import (
	"newsroom/internal/domain/article"
	"newsroom/internal/ports"
	"newsroom/internal/usecase/lifecycle"
)

type createArticleRequest struct {
	TriggerType string          `json:"trigger_type"`
	Text        string          `json:"text"`
	Category    string          `json:"category"`
	Languages   map[string]bool `json:"languages"`
	URLs        []string        `json:"urls"`
	ImageType   string          `json:"image_type"`
}

type bulkCreateRequest struct {
	Topics    []string        `json:"topics"`
	Category  string          `json:"category"`
	Languages map[string]bool `json:"languages"`
	ImageType string          `json:"image_type"`
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

type editArticleRequest struct {
	Title          *string           `json:"title"`
	Lead           *string           `json:"lead"`
	Body           *string           `json:"body"`
	Category       *string           `json:"category"`
	SEOTitle       *string           `json:"seo_title"`
	SEODescription *string           `json:"seo_description"`
	Sources        *[]article.Source `json:"sources"`
	ImagePrompt    *string           `json:"image_prompt"`
	ImageAltText   *string           `json:"image_alt_text"`
}

func (r editArticleRequest) patch() lifecycle.ArticleEdit {
	return lifecycle.ArticleEdit{
		Title:          r.Title,
		Lead:           r.Lead,
		Body:           r.Body,
		Category:       r.Category,
		SEOTitle:       r.SEOTitle,
		SEODescription: r.SEODescription,
		Sources:        r.Sources,
		ImagePrompt:    r.ImagePrompt,
		ImageAltText:   r.ImageAltText,
	}
}

type translationTriggerRequest struct {
	Languages []string `json:"languages"`
}

type translationEditRequest struct {
	Title *string `json:"title"`
	Lead  *string `json:"lead"`
	Body  *string `json:"body"`
}

type imageTriggerRequest struct {
	Prompt    string `json:"prompt"`
	ImageType string `json:"image_type"`
}

type publishRequest struct {
	WPStatus    string   `json:"wp_status"`
	Languages   []string `json:"languages"`
	UploadImage *bool    `json:"upload_image"`
}

type tonalityRequest struct {
	Trait  string  `json:"trait"`
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

type evaluateRequest struct {
	ArticleID uint64 `json:"article_id"`
}

type rssParseRequest struct {
	URL string `json:"url"`
}

type imageResponse struct {
	Type    string `json:"type"`
	Prompt  string `json:"prompt,omitempty"`
	URL     string `json:"url,omitempty"`
	AltText string `json:"alt_text,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type articleResponse struct {
	ID              uint64           `json:"id"`
	Status          string           `json:"status"`
	TriggerType     string           `json:"trigger_type"`
	Category        string           `json:"category"`
	Languages       map[string]bool  `json:"languages"`
	TriggerText     string           `json:"trigger_text,omitempty"`
	URLs            []string         `json:"urls,omitempty"`
	Title           string           `json:"title"`
	Lead            string           `json:"lead,omitempty"`
	Body            string           `json:"body,omitempty"`
	Sources         []article.Source `json:"sources"`
	SEOTitle        string           `json:"seo_title,omitempty"`
	SEODescription  string           `json:"seo_description,omitempty"`
	Image           imageResponse    `json:"image"`
	Feedback        string           `json:"feedback,omitempty"`
	LastError       string           `json:"last_error,omitempty"`
	FailureCause    string           `json:"failure_cause,omitempty"`
	GenerationRound uint64           `json:"generation_round"`
	ReviewRound     uint64           `json:"review_round"`
	RetryCount      int              `json:"retry_count"`
	TimeoutAt       *string          `json:"timeout_at,omitempty"`
	CreatedAt       string           `json:"created_at"`
	UpdatedAt       string           `json:"updated_at"`
}

func toArticleResponse(item ports.Article) articleResponse {
	sources := item.Sources
	if sources == nil {
		sources = []article.Source{}
	}
	return articleResponse{
		ID:          item.ArticleID,
		Status:      string(item.Status),
		TriggerType: string(item.TriggerType),
		Category:    item.Category,
		Languages:   item.Languages,
		TriggerText: item.TriggerText,
		URLs:        item.TriggerURLs,
		Title:       item.Title,
		Lead:        item.Lead,
		Body:        item.Body,
		Sources:     sources,
		SEOTitle:    item.SEOTitle,
		Image: imageResponse{
			Type:    string(item.Image.Type),
			Prompt:  item.Image.Prompt,
			URL:     item.Image.URL,
			AltText: item.Image.AltText,
			Status:  string(article.ResolveImageStatus(item.Image.Status, item.Image.Prompt, item.Image.URL)),
			Error:   item.Image.Error,
		},
		SEODescription:  item.SEODescription,
		Feedback:        item.Feedback,
		LastError:       item.LastError,
		FailureCause:    item.FailureCause,
		GenerationRound: item.GenerationRound,
		ReviewRound:     item.ReviewRound,
		RetryCount:      item.RetryCount,
		TimeoutAt:       item.TimeoutAt,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
}

func toArticleResponses(items []ports.Article) []articleResponse {
	out := make([]articleResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toArticleResponse(item))
	}
	return out
}

type translationResponse struct {
	ArticleID uint64 `json:"article_id"`
	Language  string `json:"language"`
	Title     string `json:"title"`
	Lead      string `json:"lead"`
	Body      string `json:"body"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toTranslationResponse(t ports.Translation) translationResponse {
	return translationResponse{
		ArticleID: t.ArticleID,
		Language:  t.Language,
		Title:     t.Title,
		Lead:      t.Lead,
		Body:      t.Body,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toTranslationResponses(items []ports.Translation) []translationResponse {
	out := make([]translationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toTranslationResponse(item))
	}
	return out
}

type evaluationResponse struct {
	ID             uint64         `json:"id"`
	ArticleID      uint64         `json:"article_id"`
	ReviewRound    uint64         `json:"review_round"`
	Score          int            `json:"score"`
	Recommendation string         `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
	TonalityTags   []string       `json:"tonality_tags"`
	Details        map[string]int `json:"details,omitempty"`
	Improvements   []string       `json:"improvements,omitempty"`
	EditorDecision string         `json:"editor_decision,omitempty"`
	EditorFeedback string         `json:"editor_feedback,omitempty"`
	Deviation      bool           `json:"deviation"`
	CreatedAt      string         `json:"created_at"`
	DecidedAt      *string        `json:"decided_at,omitempty"`
}

func toEvaluationResponse(e ports.Evaluation) evaluationResponse {
	tags := e.TonalityTags
	if tags == nil {
		tags = []string{}
	}
	return evaluationResponse{
		ID:             e.EvaluationID,
		ArticleID:      e.ArticleID,
		ReviewRound:    e.ReviewRound,
		Score:          e.Score,
		Recommendation: string(e.Recommendation),
		Reasoning:      e.Reasoning,
		TonalityTags:   tags,
		Details:        e.Details,
		Improvements:   e.Improvements,
		EditorDecision: string(e.EditorDecision),
		EditorFeedback: e.EditorFeedback,
		Deviation:      e.Deviation,
		CreatedAt:      e.CreatedAt,
		DecidedAt:      e.DecidedAt,
	}
}

func toEvaluationResponses(items []ports.Evaluation) []evaluationResponse {
	out := make([]evaluationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toEvaluationResponse(item))
	}
	return out
}

type publicationResponse struct {
	Language    string `json:"language"`
	WPPostID    int64  `json:"wp_post_id,omitempty"`
	URL         string `json:"url,omitempty"`
	WPStatus    string `json:"wp_status"`
	State       string `json:"state"`
	Error       string `json:"error,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

func toPublicationResponses(items []ports.Publication) []publicationResponse {
	out := make([]publicationResponse, 0, len(items))
	for _, p := range items {
		out = append(out, publicationResponse{
			Language:    p.Language,
			WPPostID:    p.WPPostID,
			URL:         p.URL,
			WPStatus:    p.WPStatus,
			State:       p.State,
			Error:       p.Error,
			PublishedAt: p.PublishedAt,
		})
	}
	return out
}

type articleDetailResponse struct {
	articleResponse
	Translations []translationResponse `json:"translations"`
	Evaluation   *evaluationResponse   `json:"supervisor"`
	Publications []publicationResponse `json:"publications"`
}

func toDetailResponse(detail lifecycle.ArticleDetail) articleDetailResponse {
	out := articleDetailResponse{
		articleResponse: toArticleResponse(detail.Article),
		Translations:    toTranslationResponses(detail.Translations),
		Publications:    toPublicationResponses(detail.Publications),
	}
	if detail.Evaluation != nil {
		evaluation := toEvaluationResponse(*detail.Evaluation)
		out.Evaluation = &evaluation
	}
	return out
}

type statsResponse struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
	Queue    queueResponse    `json:"queue"`
}

type queueResponse struct {
	Queued  int `json:"queued"`
	Running int `json:"running"`
}

type bulkSkipResponse struct {
	Topic     string `json:"topic"`
	ArticleID uint64 `json:"article_id,omitempty"`
	Reason    string `json:"reason"`
}

type bulkCreateResponse struct {
	Created []articleResponse  `json:"created"`
	Skipped []bulkSkipResponse `json:"skipped"`
}

type tonalityResponse struct {
	ID            uint64  `json:"id"`
	Trait         string  `json:"trait"`
	Value         string  `json:"value"`
	Weight        float64 `json:"weight"`
	EvidenceCount int     `json:"evidence_count"`
}

func toTonalityResponses(entries []article.TonalityEntry) []tonalityResponse {
	out := make([]tonalityResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, tonalityResponse(entry))
	}
	return out
}

type topicResponse struct {
	Topic         string   `json:"topic"`
	Category      string   `json:"category"`
	ArticleCount  int64    `json:"article_count"`
	ApprovalRate  *float64 `json:"approval_rate"`
	LastArticleAt *string  `json:"last_article_at"`
}

func toTopicResponses(items []ports.TopicRank) []topicResponse {
	out := make([]topicResponse, 0, len(items))
	for _, item := range items {
		out = append(out, topicResponse(item))
	}
	return out
}

type deviationResponse struct {
	TotalDecisions int64   `json:"total_decisions"`
	Deviations     int64   `json:"deviations"`
	DeviationRate  float64 `json:"deviation_rate"`
}

type dashboardResponse struct {
	Tonality        []tonalityResponse   `json:"tonality"`
	Topics          []topicResponse      `json:"topics"`
	RecentDecisions []evaluationResponse `json:"recent_decisions"`
	Deviations      deviationResponse    `json:"deviations"`
}

type feedItemResponse struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Summary   string `json:"summary,omitempty"`
	Published string `json:"published,omitempty"`
}

type feedResponse struct {
	Title string             `json:"title"`
	Items []feedItemResponse `json:"items"`
}

type socialResponse struct {
	Platform  string   `json:"platform"`
	Text      string   `json:"text"`
	Hashtags  []string `json:"hashtags"`
	CreatedAt string   `json:"created_at"`
}

type relatedResponse struct {
	ID         uint64  `json:"id"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

type healthResponse struct {
	Status      string          `json:"status"`
	Version     string          `json:"version"`
	Connections int             `json:"connections"`
	Features    map[string]bool `json:"features"`
	Queue       queueResponse   `json:"queue"`
}
