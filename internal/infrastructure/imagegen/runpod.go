package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"

	"newsroom/internal/bootstrap/config"
	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

// RunPod submits the same workflow to a serverless ComfyUI worker.
type RunPod struct {
	baseURL      string
	apiKey       string
	endpointID   string
	checkpoint   string
	pollInterval time.Duration
	timeout      time.Duration
	httpClient   *http.Client
	seed         func() int64
}

var _ ports.ImageBackend = (*RunPod)(nil)

func NewRunPod(cfg config.RunPodConfig, checkpoint string, httpClient *http.Client) *RunPod {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &RunPod{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		endpointID:   strings.TrimSpace(cfg.EndpointID),
		checkpoint:   checkpoint,
		pollInterval: positiveOr(cfg.PollInterval, 5*time.Second),
		timeout:      positiveOr(cfg.Timeout, 600*time.Second),
		httpClient:   httpClient,
		seed:         func() int64 { return rand.Int64N(1 << 32) },
	}
}

func (r *RunPod) Name() string { return "runpod" }

func (r *RunPod) Available(ctx context.Context) bool {
	return ctx != nil && r.apiKey != "" && r.endpointID != ""
}

func (r *RunPod) Generate(ctx context.Context, req ports.ImageRequest) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	if !r.Available(ctx) {
		return nil, article.Unavailablef("runpod is not configured")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, article.Validationf("image prompt is empty")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "imagegen.runpod"), slog.Uint64("article_id", req.ArticleID))

	payload, err := json.Marshal(map[string]any{
		"input": map[string]any{"workflow": BuildWorkflow(r.checkpoint, req.Type, req.Prompt, r.seed())},
	})
	if err != nil {
		return nil, errs.Wrap(err, "encode runpod input")
	}
	raw, err := r.call(ctx, http.MethodPost, "/run", payload)
	if err != nil {
		return nil, err
	}
	jobID := gjson.GetBytes(raw, "id").String()
	if jobID == "" {
		return nil, article.Providerf("runpod returned no job id")
	}
	logging.Info(logCtx, "runpod job submitted", slog.String("job_id", jobID))

	output, err := backoff.Retry(ctx, func() (gjson.Result, error) {
		return r.pollStatus(ctx, jobID)
	}, backoff.WithBackOff(backoff.NewConstantBackOff(r.pollInterval)), backoff.WithMaxElapsedTime(r.timeout))
	if err != nil {
		if errors.Is(err, errNotReady) {
			return nil, fmt.Errorf("%w: runpod job %s not finished after %s", article.ErrTimeout, jobID, r.timeout)
		}
		return nil, err
	}
	return r.decodeOutput(ctx, output)
}

func (r *RunPod) pollStatus(ctx context.Context, jobID string) (gjson.Result, error) {
	raw, err := r.call(ctx, http.MethodGet, "/status/"+jobID, nil)
	if err != nil {
		return gjson.Result{}, backoff.Permanent(err)
	}

	status := gjson.GetBytes(raw, "status").String()
	switch status {
	case "COMPLETED":
		return gjson.GetBytes(raw, "output"), nil
	case "FAILED", "CANCELLED":
		return gjson.Result{}, backoff.Permanent(article.Providerf("runpod job %s %s: %s", jobID, strings.ToLower(status), gjson.GetBytes(raw, "error").String()))
	default:
		return gjson.Result{}, errNotReady
	}
}

// decodeOutput accepts an object or a list of objects carrying either a URL or base64 data.
func (r *RunPod) decodeOutput(ctx context.Context, output gjson.Result) ([]byte, error) {
	if output.IsArray() {
		output = output.Get("0")
	}
	if encoded := firstString(output, "image_base64", "base64"); encoded != "" {
		if idx := strings.Index(encoded, ","); strings.HasPrefix(encoded, "data:") && idx > 0 {
			encoded = encoded[idx+1:]
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, article.Providerf("decode runpod image: %v", err)
		}
		return data, nil
	}
	if imageURL := firstString(output, "image_url", "url"); imageURL != "" {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
		if err != nil {
			return nil, errs.Wrap(err, "build runpod image request")
		}
		return doRequest(ctx, r.httpClient, httpReq, "runpod download image")
	}
	return nil, article.Providerf("runpod output contains no image")
}

func (r *RunPod) call(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, r.baseURL+"/"+r.endpointID+path, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(err, "build runpod request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	return doRequest(ctx, r.httpClient, httpReq, "runpod "+strings.ToLower(method)+" "+path)
}

func firstString(result gjson.Result, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(result.Get(key).String()); value != "" {
			return value
		}
	}
	return ""
}
