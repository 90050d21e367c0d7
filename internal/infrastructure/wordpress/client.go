package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"newsroom/internal/bootstrap/config"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

// Client publishes through the WordPress REST API (wp/v2) with an application password.
type Client struct {
	baseURL     string
	user        string
	appPassword string
	httpClient  *http.Client
}

var _ ports.Publisher = (*Client)(nil)

func NewClient(cfg config.WordPressConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		user:        strings.TrimSpace(cfg.User),
		appPassword: strings.TrimSpace(cfg.AppPassword),
		httpClient:  httpClient,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.user != "" && c.appPassword != ""
}

// Check verifies the credentials and lists categories; an unconfigured client reports disconnected.
func (c *Client) Check(ctx context.Context) (ports.PublisherStatus, error) {
	if err := checkContext(ctx); err != nil {
		return ports.PublisherStatus{}, err
	}
	if !c.Configured() {
		return ports.PublisherStatus{Connected: false}, nil
	}

	if _, err := c.do(ctx, http.MethodGet, "/users/me", nil, nil); err != nil {
		return ports.PublisherStatus{Connected: false, URL: c.baseURL}, err
	}

	raw, err := c.do(ctx, http.MethodGet, "/categories?per_page=100", nil, nil)
	if err != nil {
		return ports.PublisherStatus{Connected: true, URL: c.baseURL}, err
	}
	categories := make([]ports.PublisherCategory, 0)
	gjson.ParseBytes(raw).ForEach(func(_, item gjson.Result) bool {
		categories = append(categories, ports.PublisherCategory{
			ID:   item.Get("id").Int(),
			Name: item.Get("name").String(),
		})
		return true
	})
	return ports.PublisherStatus{Connected: true, URL: c.baseURL, Categories: categories}, nil
}

func (c *Client) UploadMedia(ctx context.Context, filename string, data []byte, altText string) (ports.MediaRef, error) {
	if err := checkContext(ctx); err != nil {
		return ports.MediaRef{}, err
	}
	if !c.Configured() {
		return ports.MediaRef{}, article.Unavailablef("wordpress is not configured")
	}

	headers := map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": filename}),
		"Content-Type":        "image/png",
	}
	raw, err := c.do(ctx, http.MethodPost, "/media", data, headers)
	if err != nil {
		return ports.MediaRef{}, errs.Wrap(err, "upload media")
	}
	media := ports.MediaRef{
		ID:  gjson.GetBytes(raw, "id").Int(),
		URL: gjson.GetBytes(raw, "source_url").String(),
	}
	if media.ID == 0 {
		return ports.MediaRef{}, article.Providerf("wordpress media upload returned no id")
	}

	if strings.TrimSpace(altText) != "" {
		payload, err := json.Marshal(map[string]string{"alt_text": altText})
		if err != nil {
			return ports.MediaRef{}, errs.Wrap(err, "encode alt text")
		}
		if _, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/media/%d", media.ID), payload, jsonHeaders); err != nil {
			return ports.MediaRef{}, errs.Wrap(err, "set media alt text")
		}
	}
	return media, nil
}

type postPayload struct {
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Excerpt       string            `json:"excerpt"`
	Status        string            `json:"status"`
	FeaturedMedia int64             `json:"featured_media,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
	Lang          string            `json:"lang,omitempty"`
}

func (c *Client) CreatePost(ctx context.Context, input ports.PostInput) (ports.PostRef, error) {
	if err := checkContext(ctx); err != nil {
		return ports.PostRef{}, err
	}
	if !c.Configured() {
		return ports.PostRef{}, article.Unavailablef("wordpress is not configured")
	}

	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = "draft"
	}
	payload, err := json.Marshal(postPayload{
		Title:         input.Title,
		Content:       input.Content,
		Excerpt:       input.Excerpt,
		Status:        status,
		FeaturedMedia: input.FeaturedMediaID,
		Meta:          input.Meta,
		Lang:          input.Language,
	})
	if err != nil {
		return ports.PostRef{}, errs.Wrap(err, "encode post")
	}

	raw, err := c.do(ctx, http.MethodPost, "/posts", payload, jsonHeaders)
	if err != nil {
		return ports.PostRef{}, errs.Wrap(err, "create post")
	}
	post := ports.PostRef{
		ID:  gjson.GetBytes(raw, "id").Int(),
		URL: gjson.GetBytes(raw, "link").String(),
	}
	if post.ID == 0 {
		return ports.PostRef{}, article.Providerf("wordpress post creation returned no id")
	}
	return post, nil
}

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(err, "build wordpress request")
	}
	req.SetBasicAuth(c.user, c.appPassword)
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(ctx.Err(), "wordpress "+path)
		}
		return nil, article.Providerf("wordpress %s: %v", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, article.Providerf("wordpress %s: read body: %v", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := gjson.GetBytes(raw, "message").String()
		return nil, article.Providerf("wordpress %s %s: status %d: %s", method, path, resp.StatusCode, message)
	}
	return raw, nil
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	return errs.Wrap(ctx.Err(), "check context")
}
