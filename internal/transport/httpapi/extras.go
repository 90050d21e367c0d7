package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/infrastructure/n8n"
	"newsroom/internal/usecase/lifecycle"
)

type webhookResponse struct {
	Status    string `json:"status"`
	ArticleID uint64 `json:"article_id"`
	Article   string `json:"article_status"`
}

type socialAcceptedResponse struct {
	Status    string `json:"status"`
	ArticleID uint64 `json:"article_id"`
}

func (s *Server) parseFeed(w http.ResponseWriter, r *http.Request) {
	var req rssParseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeServiceError(w, r, article.Validationf("url is required"))
		return
	}

	feed, err := s.svc.ParseFeed(r.Context(), url)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	items := make([]feedItemResponse, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, feedItemResponse(item))
	}
	writeJSON(w, http.StatusOK, feedResponse{Title: feed.Title, Items: items})
}

// webhookCallback accepts drafts from the external workflow and feeds them into generation completion.
func (s *Server) webhookCallback(w http.ResponseWriter, r *http.Request) {
	if !n8n.VerifyToken(s.opts.WebhookToken, r.Header.Get(n8n.TokenHeader)) {
		writeError(w, http.StatusUnauthorized, "invalid webhook token")
		return
	}

	callback, err := n8n.DecodeCallback(r.Body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	input := lifecycle.GenerationCallback{
		ArticleID: callback.ArticleID,
		Round:     callback.GenerationRound,
		Failed:    callback.Failed(),
		Error:     callback.Error,
	}
	if !input.Failed {
		if input.Content, err = callback.Content(); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	updated, err := s.svc.HandleCallback(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	ctx := logging.WithAttrs(r.Context(), slog.String("component", "httpapi.webhook"))
	logging.Info(
		ctx,
		"generation callback handled",
		slog.Uint64("article_id", updated.ArticleID),
		slog.Bool("failed", input.Failed),
		slog.String("status", string(updated.Status)),
	)
	writeJSON(w, http.StatusOK, webhookResponse{
		Status:    "ok",
		ArticleID: updated.ArticleID,
		Article:   string(updated.Status),
	})
}

func (s *Server) generateSocial(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.svc.GenerateSocial(r.Context(), articleID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, socialAcceptedResponse{Status: "generating", ArticleID: articleID})
}

func (s *Server) listSocial(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	snippets, err := s.svc.ListSocial(r.Context(), articleID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]socialResponse, 0, len(snippets))
	for _, snippet := range snippets {
		hashtags := snippet.Hashtags
		if hashtags == nil {
			hashtags = []string{}
		}
		out = append(out, socialResponse{
			Platform:  snippet.Platform,
			Text:      snippet.Text,
			Hashtags:  hashtags,
			CreatedAt: snippet.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) relatedArticles(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	related, err := s.svc.Related(r.Context(), articleID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]relatedResponse, 0, len(related))
	for _, item := range related {
		out = append(out, relatedResponse{ID: item.ArticleID, Title: item.Title, Similarity: item.Similarity})
	}
	writeJSON(w, http.StatusOK, out)
}
