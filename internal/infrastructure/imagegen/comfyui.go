package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"newsroom/internal/bootstrap/config"
	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

var errNotReady = errors.New("image job not ready")

// ComfyUI drives a local ComfyUI server through its prompt/history API.
type ComfyUI struct {
	baseURL      string
	checkpoint   string
	clientID     string
	pollInterval time.Duration
	timeout      time.Duration
	httpClient   *http.Client
	seed         func() int64
}

var _ ports.ImageBackend = (*ComfyUI)(nil)

func NewComfyUI(cfg config.ComfyUIConfig, httpClient *http.Client) *ComfyUI {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ComfyUI{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		checkpoint:   cfg.Checkpoint,
		clientID:     uuid.NewString(),
		pollInterval: positiveOr(cfg.PollInterval, 2*time.Second),
		timeout:      positiveOr(cfg.Timeout, 300*time.Second),
		httpClient:   httpClient,
		seed:         func() int64 { return rand.Int64N(1 << 32) },
	}
}

func (c *ComfyUI) Name() string { return "comfyui" }

func (c *ComfyUI) Available(ctx context.Context) bool {
	if c.baseURL == "" || ctx == nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/system_stats", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *ComfyUI) Generate(ctx context.Context, req ports.ImageRequest) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, article.Validationf("image prompt is empty")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "imagegen.comfyui"), slog.Uint64("article_id", req.ArticleID))

	promptID, err := c.queuePrompt(ctx, BuildWorkflow(c.checkpoint, req.Type, req.Prompt, c.seed()))
	if err != nil {
		return nil, err
	}
	logging.Info(logCtx, "comfyui prompt queued", slog.String("prompt_id", promptID))

	image, err := backoff.Retry(ctx, func() (gjson.Result, error) {
		return c.pollHistory(ctx, promptID)
	}, backoff.WithBackOff(backoff.NewConstantBackOff(c.pollInterval)), backoff.WithMaxElapsedTime(c.timeout))
	if err != nil {
		if errors.Is(err, errNotReady) {
			return nil, fmt.Errorf("%w: comfyui prompt %s not finished after %s", article.ErrTimeout, promptID, c.timeout)
		}
		return nil, err
	}

	query := url.Values{}
	query.Set("filename", image.Get("filename").String())
	query.Set("subfolder", image.Get("subfolder").String())
	query.Set("type", image.Get("type").String())
	return c.get(ctx, "/view?"+query.Encode())
}

func (c *ComfyUI) queuePrompt(ctx context.Context, workflow map[string]node) (string, error) {
	payload, err := json.Marshal(map[string]any{"prompt": workflow, "client_id": c.clientID})
	if err != nil {
		return "", errs.Wrap(err, "encode comfyui workflow")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(payload))
	if err != nil {
		return "", errs.Wrap(err, "build comfyui request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	raw, err := doRequest(ctx, c.httpClient, httpReq, "comfyui queue prompt")
	if err != nil {
		return "", err
	}
	promptID := gjson.GetBytes(raw, "prompt_id").String()
	if promptID == "" {
		return "", article.Providerf("comfyui returned no prompt_id")
	}
	return promptID, nil
}

// pollHistory returns the first output image once the prompt completed.
func (c *ComfyUI) pollHistory(ctx context.Context, promptID string) (gjson.Result, error) {
	raw, err := c.get(ctx, "/history/"+url.PathEscape(promptID))
	if err != nil {
		return gjson.Result{}, backoff.Permanent(err)
	}

	entry := gjson.GetBytes(raw, gjson.Escape(promptID))
	if !entry.Exists() {
		return gjson.Result{}, errNotReady
	}
	if entry.Get("status.status_str").String() == "error" {
		return gjson.Result{}, backoff.Permanent(article.Providerf("comfyui prompt %s failed", promptID))
	}
	if !entry.Get("status.completed").Bool() {
		return gjson.Result{}, errNotReady
	}

	var image gjson.Result
	entry.Get("outputs").ForEach(func(_, output gjson.Result) bool {
		first := output.Get("images.0")
		if first.Exists() {
			image = first
			return false
		}
		return true
	})
	if !image.Exists() {
		return gjson.Result{}, backoff.Permanent(article.Providerf("comfyui prompt %s produced no image", promptID))
	}
	return image, nil
}

func (c *ComfyUI) get(ctx context.Context, path string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errs.Wrap(err, "build comfyui request")
	}
	return doRequest(ctx, c.httpClient, httpReq, "comfyui "+strings.SplitN(path, "?", 2)[0])
}

// doRequest executes req and returns the body of a 2xx response.
func doRequest(ctx context.Context, client *http.Client, req *http.Request, action string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(ctx.Err(), action)
		}
		return nil, article.Providerf("%s: %v", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, article.Providerf("%s: read body: %v", action, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, article.Providerf("%s: status %d", action, resp.StatusCode)
	}
	return raw, nil
}

func positiveOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
