package llm

import (
	"context"
	"strings"

	"newsroom/internal/ports"
)

var languageNames = map[string]string{
	"en": "Englisch",
	"es": "Spanisch",
	"fr": "Französisch",
}

type reviewAnswer struct {
	Title        string   `json:"title"`
	Lead         string   `json:"lead"`
	Body         string   `json:"body"`
	Changes      []string `json:"changes"`
	QualityScore int      `json:"quality_score" jsonschema:"minimum=0,maximum=100"`
}

type reviewPrompt struct {
	Language string
	Source   ports.TranslatedContent
	Draft    ports.TranslatedContent
}

// Reviewer polishes a machine translation for idiomatic phrasing.
type Reviewer struct {
	client *Client
}

var _ ports.TranslationReviewer = (*Reviewer)(nil)

func NewReviewer(client *Client) *Reviewer {
	return &Reviewer{client: client}
}

func (r *Reviewer) ReviewTranslation(ctx context.Context, req ports.TranslationReview) (ports.TranslatedContent, error) {
	language, ok := languageNames[req.TargetLanguage]
	if !ok {
		language = req.TargetLanguage
	}

	var answer reviewAnswer
	if err := r.client.completeJSON(ctx, "translation_review", reviewPrompt{
		Language: language,
		Source:   req.Source,
		Draft:    req.Draft,
	}, "translation_review", &answer); err != nil {
		return ports.TranslatedContent{}, err
	}

	return ports.TranslatedContent{
		Title: keepDraft(answer.Title, req.Draft.Title),
		Lead:  keepDraft(answer.Lead, req.Draft.Lead),
		Body:  keepDraft(answer.Body, req.Draft.Body),
	}, nil
}

func keepDraft(improved, draft string) string {
	if strings.TrimSpace(improved) == "" {
		return draft
	}
	return strings.TrimSpace(improved)
}
