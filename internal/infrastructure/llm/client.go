package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"newsroom/internal/bootstrap/config"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/infrastructure/prompts"
)

// Prompts renders a named prompt template.
type Prompts interface {
	Render(name string, data any) (prompts.Rendered, error)
}

// Client talks to an OpenAI-compatible chat endpoint (Mistral by default).
type Client struct {
	api            openai.Client
	model          string
	embeddingModel string
	prompts        Prompts
	configured     bool
}

func NewClient(cfg config.LLMConfig, profile Prompts) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(1)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}

	return &Client{
		api:            openai.NewClient(opts...),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		prompts:        profile,
		configured:     strings.TrimSpace(cfg.APIKey) != "",
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.configured
}

func (c *Client) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if !c.Configured() {
		return article.Unavailablef("llm api key is not configured")
	}
	return nil
}

// completeJSON renders the named prompt and decodes the structured answer into out.
func (c *Client) completeJSON(ctx context.Context, promptName string, data any, schemaName string, out any) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if c.prompts == nil {
		return errors.New("prompt profile is required")
	}

	prompt, err := c.prompts.Render(promptName, data)
	if err != nil {
		return err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.User))

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(prompt.Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: schemaFor(out),
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return providerError(err, "chat completion "+promptName)
	}
	if len(resp.Choices) == 0 {
		return article.Providerf("%s: empty completion", promptName)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(stripFence(content)), out); err != nil {
		return article.Providerf("%s: decode structured answer: %v", promptName, err)
	}
	return nil
}

func schemaFor(v any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}

// stripFence removes a ```json fence some models wrap around their answer.
func stripFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// providerError keeps deadline errors intact so they classify as timeouts.
func providerError(err error, action string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(err, action)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return article.Providerf("%s: status %d: %s", action, apiErr.StatusCode, apiErr.Message)
	}
	return article.Providerf("%s: %v", action, err)
}
