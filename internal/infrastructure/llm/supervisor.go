package llm

import (
	"context"
	"strings"

	"newsroom/internal/domain/article"
	"newsroom/internal/ports"
)

type evaluationDetails struct {
	Content      int `json:"content" jsonschema:"minimum=0,maximum=25"`
	Language     int `json:"language" jsonschema:"minimum=0,maximum=25"`
	Tonality     int `json:"tonality" jsonschema:"minimum=0,maximum=25"`
	SEOStructure int `json:"seo_structure" jsonschema:"minimum=0,maximum=25"`
}

type evaluationAnswer struct {
	Score          int               `json:"score" jsonschema:"minimum=0,maximum=100"`
	Recommendation string            `json:"recommendation" jsonschema:"enum=approve,enum=revise,enum=reject"`
	Reasoning      string            `json:"reasoning"`
	TonalityTags   []string          `json:"tonality_tags"`
	Details        evaluationDetails `json:"details"`
	Improvements   []string          `json:"improvements"`
}

type evaluationPrompt struct {
	Title    string
	Lead     string
	Body     string
	Category string
	Tonality string
}

// Evaluator scores a draft against the editorial tonality profile.
type Evaluator struct {
	client *Client
}

var _ ports.SupervisorEvaluator = (*Evaluator)(nil)

func NewEvaluator(client *Client) *Evaluator {
	return &Evaluator{client: client}
}

func (e *Evaluator) Evaluate(ctx context.Context, req ports.EvaluationRequest) (ports.EvaluationResult, error) {
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = article.DefaultCategory
	}

	var answer evaluationAnswer
	if err := e.client.completeJSON(ctx, "supervisor", evaluationPrompt{
		Title:    req.Title,
		Lead:     req.Lead,
		Body:     req.Body,
		Category: category,
		Tonality: req.Tonality,
	}, "supervisor_evaluation", &answer); err != nil {
		return ports.EvaluationResult{}, err
	}

	recommendation, err := article.ParseDecision(answer.Recommendation)
	if err != nil {
		return ports.EvaluationResult{}, article.Providerf("supervisor answered with %q", answer.Recommendation)
	}

	return ports.EvaluationResult{
		Score:          article.ClampScore(answer.Score),
		Recommendation: recommendation,
		Reasoning:      strings.TrimSpace(answer.Reasoning),
		TonalityTags:   article.NormalizeTags(answer.TonalityTags),
		Details: map[string]int{
			"content":       answer.Details.Content,
			"language":      answer.Details.Language,
			"tonality":      answer.Details.Tonality,
			"seo_structure": answer.Details.SEOStructure,
		},
		Improvements: answer.Improvements,
	}, nil
}
