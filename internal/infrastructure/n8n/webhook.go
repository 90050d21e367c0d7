package n8n

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"newsroom/internal/bootstrap/config"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

// TokenHeader carries the shared secret on both directions of the webhook.
const TokenHeader = "X-Webhook-Token"

type generatePayload struct {
	ArticleID   uint64   `json:"article_id"`
	Round       uint64   `json:"generation_round"`
	TriggerType string   `json:"trigger_type"`
	Text        string   `json:"text"`
	Category    string   `json:"category"`
	URLs        []string `json:"urls"`
	Feedback    string   `json:"feedback,omitempty"`
	CallbackURL string   `json:"callback_url"`
}

// Generator hands generation to an n8n workflow; the draft comes back on the callback route.
type Generator struct {
	generateURL string
	callbackURL string
	token       string
	httpClient  *http.Client
}

var _ ports.ContentGenerator = (*Generator)(nil)

func NewGenerator(cfg config.WebhookConfig, httpClient *http.Client) *Generator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Generator{
		generateURL: strings.TrimSpace(cfg.GenerateURL),
		callbackURL: strings.TrimSpace(cfg.CallbackURL),
		token:       cfg.Token,
		httpClient:  httpClient,
	}
}

func (g *Generator) Generate(ctx context.Context, req ports.GenerationRequest) (ports.GeneratedContent, error) {
	if ctx == nil {
		return ports.GeneratedContent{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.GeneratedContent{}, errs.Wrap(err, "check context")
	}
	if g.generateURL == "" {
		return ports.GeneratedContent{}, article.Unavailablef("webhook.generate_url is not configured")
	}

	payload, err := json.Marshal(generatePayload{
		ArticleID:   req.ArticleID,
		Round:       req.Round,
		TriggerType: string(req.TriggerType),
		Text:        req.Text,
		Category:    req.Category,
		URLs:        req.URLs,
		Feedback:    req.Feedback,
		CallbackURL: g.callbackURL,
	})
	if err != nil {
		return ports.GeneratedContent{}, errs.Wrap(err, "encode webhook payload")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.generateURL, bytes.NewReader(payload))
	if err != nil {
		return ports.GeneratedContent{}, errs.Wrap(err, "build webhook request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		httpReq.Header.Set(TokenHeader, g.token)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ports.GeneratedContent{}, errs.Wrap(ctx.Err(), "trigger webhook")
		}
		return ports.GeneratedContent{}, article.Providerf("trigger webhook: %v", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return ports.GeneratedContent{}, article.Providerf("trigger webhook: status %d", resp.StatusCode)
	}
	return ports.GeneratedContent{}, ports.ErrGenerationDeferred
}

// VerifyToken accepts any request when no token is configured.
func VerifyToken(expected, got string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// Callback is the result document a workflow posts back.
type Callback struct {
	ArticleID       uint64           `json:"article_id"`
	GenerationRound uint64           `json:"generation_round"`
	Status          string           `json:"status"`
	Title           string           `json:"title"`
	Lead            string           `json:"lead"`
	Body            string           `json:"body"`
	Sources         []article.Source `json:"sources"`
	SEOTitle        string           `json:"seo_title"`
	SEODescription  string           `json:"seo_description"`
	ImagePrompt     string           `json:"image_prompt"`
	ImageAltText    string           `json:"image_alt_text"`
	Error           string           `json:"error"`
}

// Failed reports whether the workflow signalled a failure instead of a draft.
func (c Callback) Failed() bool {
	return strings.TrimSpace(c.Error) != "" || strings.EqualFold(strings.TrimSpace(c.Status), string(article.StatusFailed))
}

// Content converts a successful callback into generated content.
func (c Callback) Content() (ports.GeneratedContent, error) {
	if strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.Body) == "" {
		return ports.GeneratedContent{}, article.Validationf("callback for article %d has no title or body", c.ArticleID)
	}
	sources := make([]article.Source, 0, len(c.Sources))
	for _, source := range c.Sources {
		if strings.TrimSpace(source.Title) == "" {
			continue
		}
		source.Auto = true
		sources = append(sources, source)
	}
	return ports.GeneratedContent{
		Title:          strings.TrimSpace(c.Title),
		Lead:           strings.TrimSpace(c.Lead),
		Body:           strings.TrimSpace(c.Body),
		Sources:        sources,
		SEOTitle:       strings.TrimSpace(c.SEOTitle),
		SEODescription: strings.TrimSpace(c.SEODescription),
		ImagePrompt:    strings.TrimSpace(c.ImagePrompt),
		ImageAltText:   strings.TrimSpace(c.ImageAltText),
	}, nil
}

func DecodeCallback(r io.Reader) (Callback, error) {
	var cb Callback
	decoder := json.NewDecoder(io.LimitReader(r, 4<<20))
	if err := decoder.Decode(&cb); err != nil {
		return Callback{}, article.Validationf("decode callback: %v", err)
	}
	if cb.ArticleID == 0 {
		return Callback{}, article.Validationf("callback article_id is required")
	}
	return cb, nil
}
