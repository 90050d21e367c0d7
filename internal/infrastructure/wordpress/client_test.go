package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newsroom/internal/bootstrap/config"
	"newsroom/internal/domain/article"
	"newsroom/internal/ports"
)

func newWordPressServer(t *testing.T, posts *[]map[string]any) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "editor" || pass != "app pass" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"rest_not_logged_in","message":"not logged in"}`))
			return
		}

		switch {
		case r.URL.Path == "/users/me":
			_, _ = w.Write([]byte(`{"id":1,"name":"editor"}`))
		case r.URL.Path == "/categories":
			if r.URL.Query().Get("per_page") != "100" {
				t.Errorf("categories query = %v", r.URL.Query())
			}
			_, _ = w.Write([]byte(`[{"id":3,"name":"Politik"},{"id":4,"name":"Sport"}]`))
		case r.URL.Path == "/media" && r.Method == http.MethodPost:
			if !strings.Contains(r.Header.Get("Content-Disposition"), "1_abc.png") {
				t.Errorf("Content-Disposition = %q", r.Header.Get("Content-Disposition"))
			}
			_, _ = w.Write([]byte(`{"id":77,"source_url":"https://wp.example/1_abc.png"}`))
		case r.URL.Path == "/media/77":
			raw, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(raw), "Rathaus") {
				t.Errorf("alt text payload = %s", raw)
			}
			_, _ = w.Write([]byte(`{"id":77}`))
		case r.URL.Path == "/posts":
			var payload map[string]any
			_ = json.NewDecoder(r.Body).Decode(&payload)
			*posts = append(*posts, payload)
			_, _ = w.Write([]byte(`{"id":501,"link":"https://wp.example/?p=501"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClientPublishFlow(t *testing.T) {
	var posts []map[string]any
	server := newWordPressServer(t, &posts)
	client := NewClient(config.WordPressConfig{URL: server.URL + "/", User: "editor", AppPassword: "app pass"}, nil)
	ctx := context.Background()

	status, err := client.Check(ctx)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !status.Connected || len(status.Categories) != 2 || status.Categories[0].Name != "Politik" {
		t.Fatalf("Check() = %+v", status)
	}

	media, err := client.UploadMedia(ctx, "1_abc.png", []byte("PNGDATA"), "Rathaus")
	if err != nil {
		t.Fatalf("UploadMedia() error = %v", err)
	}
	if media.ID != 77 {
		t.Fatalf("UploadMedia() = %+v", media)
	}

	post, err := client.CreatePost(ctx, ports.PostInput{
		Title:           "Wahl",
		Content:         "<p>Text</p>",
		Language:        "de",
		FeaturedMediaID: media.ID,
	})
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if post.ID != 501 || post.URL != "https://wp.example/?p=501" {
		t.Fatalf("CreatePost() = %+v", post)
	}
	if len(posts) != 1 || posts[0]["status"] != "draft" || posts[0]["featured_media"] != float64(77) {
		t.Fatalf("post payload = %v", posts)
	}
}

func TestClientFailures(t *testing.T) {
	var posts []map[string]any
	server := newWordPressServer(t, &posts)
	ctx := context.Background()

	wrongPassword := NewClient(config.WordPressConfig{URL: server.URL, User: "editor", AppPassword: "nope"}, nil)
	status, err := wrongPassword.Check(ctx)
	if !errors.Is(err, article.ErrProvider) || status.Connected {
		t.Fatalf("Check() = %+v, %v", status, err)
	}

	unconfigured := NewClient(config.WordPressConfig{}, nil)
	status, err = unconfigured.Check(ctx)
	if err != nil || status.Connected {
		t.Fatalf("Check() unconfigured = %+v, %v", status, err)
	}
	if _, err := unconfigured.CreatePost(ctx, ports.PostInput{Title: "x"}); !errors.Is(err, article.ErrUnavailable) {
		t.Fatalf("CreatePost() error = %v, want unavailable", err)
	}
}
