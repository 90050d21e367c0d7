package deepl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"newsroom/internal/bootstrap/config"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

// targetCodes maps article languages to DeepL target codes.
var targetCodes = map[string]string{
	"en": "EN-US",
	"es": "ES",
	"fr": "FR",
}

const (
	retryInterval = 2 * time.Second
	retryMaxTime  = 30 * time.Second
)

type translateResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

// Client is a DeepL REST client; each content field is sent as its own request.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retryWait  time.Duration
	retryMax   time.Duration
}

var _ ports.Translator = (*Client)(nil)

func NewClient(cfg config.DeepLConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
		retryWait:  retryInterval,
		retryMax:   retryMaxTime,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) Translate(ctx context.Context, req ports.TranslationRequest) (ports.TranslatedContent, error) {
	if ctx == nil {
		return ports.TranslatedContent{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.TranslatedContent{}, errs.Wrap(err, "check context")
	}
	if !c.Configured() {
		return ports.TranslatedContent{}, article.Unavailablef("deepl api key is not configured")
	}

	target, ok := targetCodes[strings.ToLower(req.TargetLanguage)]
	if !ok {
		return ports.TranslatedContent{}, article.Validationf("deepl: unsupported target language %q", req.TargetLanguage)
	}
	source := strings.ToUpper(strings.TrimSpace(req.SourceLanguage))
	if source == "" {
		source = strings.ToUpper(article.MasterLanguage)
	}

	title, err := c.translateText(ctx, req.Content.Title, source, target, false)
	if err != nil {
		return ports.TranslatedContent{}, errs.Wrap(err, "translate title")
	}
	lead, err := c.translateText(ctx, req.Content.Lead, source, target, false)
	if err != nil {
		return ports.TranslatedContent{}, errs.Wrap(err, "translate lead")
	}
	body, err := c.translateText(ctx, req.Content.Body, source, target, true)
	if err != nil {
		return ports.TranslatedContent{}, errs.Wrap(err, "translate body")
	}

	return ports.TranslatedContent{Title: title, Lead: lead, Body: body}, nil
}

func (c *Client) translateText(ctx context.Context, text, source, target string, html bool) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("source_lang", source)
	form.Set("target_lang", target)
	form.Set("split_sentences", "nonewlines")
	if html {
		form.Set("tag_handling", "html")
	}

	return backoff.Retry(ctx, func() (string, error) {
		return c.post(ctx, form)
	}, backoff.WithBackOff(backoff.NewConstantBackOff(c.retryWait)), backoff.WithMaxElapsedTime(c.retryMax))
}

// post returns retryable errors for 429 and 5xx; everything else is permanent.
func (c *Client) post(ctx context.Context, form url.Values) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", backoff.Permanent(errs.Wrap(err, "build deepl request"))
	}
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", backoff.Permanent(errs.Wrap(ctx.Err(), "deepl request"))
		}
		return "", article.Providerf("deepl request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", article.Providerf("read deepl response: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", article.Providerf("deepl status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", backoff.Permanent(article.Providerf("deepl status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var decoded translateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", backoff.Permanent(article.Providerf("decode deepl response: %v", err))
	}
	if len(decoded.Translations) == 0 {
		return "", backoff.Permanent(fmt.Errorf("%w: deepl returned no translations", article.ErrProvider))
	}
	return decoded.Translations[0].Text, nil
}
