package httpapi

import (
	"context"
	"net/http"
	"strings"

	"newsroom/internal/domain/article"
	"newsroom/internal/ports"
	"newsroom/internal/usecase/lifecycle"
)

func (s *Server) createArticle(w http.ResponseWriter, r *http.Request) {
	var req createArticleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	created, err := s.svc.Create(r.Context(), lifecycle.CreateInput{
		TriggerType: req.TriggerType,
		Text:        req.Text,
		Category:    req.Category,
		Languages:   req.Languages,
		URLs:        req.URLs,
		ImageType:   req.ImageType,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toArticleResponse(created))
}

func (s *Server) bulkCreate(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := s.svc.BulkCreate(r.Context(), lifecycle.BulkInput{
		Topics:    req.Topics,
		Category:  req.Category,
		Languages: req.Languages,
		ImageType: req.ImageType,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	skipped := make([]bulkSkipResponse, 0, len(result.Skipped))
	for _, skip := range result.Skipped {
		skipped = append(skipped, bulkSkipResponse(skip))
	}
	writeJSON(w, http.StatusCreated, bulkCreateResponse{
		Created: toArticleResponses(result.Created),
		Skipped: skipped,
	})
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	var filter ports.ArticleFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := article.ParseStatus(raw)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		filter.Status = status
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		writeServiceError(w, r, err)
		return
	}

	items, err := s.svc.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleResponses(items))
}

func (s *Server) articleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	byStatus := make(map[string]int64, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}
	queue := s.svc.QueueStats()
	writeJSON(w, http.StatusOK, statsResponse{
		Total:    stats.Total,
		ByStatus: byStatus,
		Queue:    queueResponse{Queued: queue.Queued, Running: queue.Running},
	})
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	detail, err := s.svc.Detail(r.Context(), articleID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

func (s *Server) editArticle(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req editArticleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := s.svc.Edit(r.Context(), articleID, req.patch())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleResponse(updated))
}

type feedbackCommand func(ctx context.Context, articleID uint64, feedback string) (ports.Article, error)

type plainCommand func(ctx context.Context, articleID uint64) (ports.Article, error)

func (s *Server) approveArticle(w http.ResponseWriter, r *http.Request) {
	s.runFeedbackCommand(w, r, s.svc.Approve)
}

func (s *Server) reviseArticle(w http.ResponseWriter, r *http.Request) {
	s.runFeedbackCommand(w, r, s.svc.Revise)
}

func (s *Server) rejectArticle(w http.ResponseWriter, r *http.Request) {
	s.runFeedbackCommand(w, r, s.svc.Reject)
}

func (s *Server) cancelArticle(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, s.svc.Cancel)
}

func (s *Server) retryArticle(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, s.svc.Retry)
}

func (s *Server) pauseArticle(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, s.svc.Pause)
}

func (s *Server) resumeArticle(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, s.svc.Resume)
}

func (s *Server) runFeedbackCommand(w http.ResponseWriter, r *http.Request, fn feedbackCommand) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := fn(r.Context(), articleID, req.Feedback)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleResponse(updated))
}

func (s *Server) runCommand(w http.ResponseWriter, r *http.Request, fn plainCommand) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := fn(r.Context(), articleID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleResponse(updated))
}
