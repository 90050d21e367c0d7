package llm

import (
	"context"
	"strings"

	"newsroom/internal/domain/article"
	"newsroom/internal/ports"
)

type generatedSource struct {
	Title string `json:"title" jsonschema_description:"Name der Quelle"`
	URL   string `json:"url" jsonschema_description:"URL der Quelle oder leer"`
}

type generationAnswer struct {
	Title          string            `json:"title"`
	Lead           string            `json:"lead"`
	Body           string            `json:"body" jsonschema_description:"HTML body"`
	Sources        []generatedSource `json:"sources"`
	SEOTitle       string            `json:"seo_title"`
	SEODescription string            `json:"seo_description"`
	ImagePrompt    string            `json:"image_prompt" jsonschema_description:"English prompt for an editorial image"`
	ImageAltText   string            `json:"image_alt_text"`
}

type generationPrompt struct {
	TriggerType  string
	Category     string
	Text         string
	URLs         []string
	Context      []ports.ContextDocument
	Feedback     string
	PreviousBody string
}

// Generator writes the master-language draft.
type Generator struct {
	client *Client
}

var _ ports.ContentGenerator = (*Generator)(nil)

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, req ports.GenerationRequest) (ports.GeneratedContent, error) {
	var answer generationAnswer
	if err := g.client.completeJSON(ctx, "generation", generationPrompt{
		TriggerType:  string(req.TriggerType),
		Category:     req.Category,
		Text:         req.Text,
		URLs:         req.URLs,
		Context:      req.Context,
		Feedback:     req.Feedback,
		PreviousBody: req.PreviousBody,
	}, "article_draft", &answer); err != nil {
		return ports.GeneratedContent{}, err
	}

	if strings.TrimSpace(answer.Title) == "" || strings.TrimSpace(answer.Body) == "" {
		return ports.GeneratedContent{}, article.Providerf("generation returned an empty title or body")
	}

	sources := make([]article.Source, 0, len(answer.Sources))
	for _, source := range answer.Sources {
		title := strings.TrimSpace(source.Title)
		if title == "" {
			continue
		}
		sources = append(sources, article.Source{Title: title, URL: strings.TrimSpace(source.URL), Auto: true})
	}

	return ports.GeneratedContent{
		Title:          strings.TrimSpace(answer.Title),
		Lead:           strings.TrimSpace(answer.Lead),
		Body:           strings.TrimSpace(answer.Body),
		Sources:        sources,
		SEOTitle:       strings.TrimSpace(answer.SEOTitle),
		SEODescription: strings.TrimSpace(answer.SEODescription),
		ImagePrompt:    strings.TrimSpace(answer.ImagePrompt),
		ImageAltText:   strings.TrimSpace(answer.ImageAltText),
	}, nil
}
