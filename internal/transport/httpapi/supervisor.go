package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"newsroom/internal/domain/article"
	"newsroom/internal/usecase/lifecycle"
)

const defaultTopicLimit = 20

type evaluateResponse struct {
	Status    string `json:"status"`
	ArticleID uint64 `json:"article_id"`
}

func (s *Server) supervisorDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.svc.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		Tonality:        toTonalityResponses(dashboard.Tonality),
		Topics:          toTopicResponses(dashboard.Topics),
		RecentDecisions: toEvaluationResponses(dashboard.RecentDecisions),
		Deviations:      deviationResponse(dashboard.Deviations),
	})
}

func (s *Server) listDecisions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	items, err := s.svc.ListDecisions(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvaluationResponses(items))
}

func (s *Server) evaluateArticle(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.ArticleID == 0 {
		writeServiceError(w, r, article.Validationf("article_id is required"))
		return
	}

	if err := s.svc.TriggerEvaluation(r.Context(), req.ArticleID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, evaluateResponse{Status: "evaluating", ArticleID: req.ArticleID})
}

func (s *Server) listTonality(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.ListTonality(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTonalityResponses(entries))
}

func (s *Server) saveTonality(w http.ResponseWriter, r *http.Request) {
	var req tonalityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	entry, err := s.svc.SaveTonalityEntry(r.Context(), lifecycle.TonalityInput(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tonalityResponse(entry))
}

func (s *Server) deleteTonality(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(chi.URLParam(r, "entryID"))
	entryID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || entryID == 0 {
		writeServiceError(w, r, article.Validationf("invalid tonality entry id %q", raw))
		return
	}

	if err := s.svc.DeleteTonalityEntry(r.Context(), entryID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) topicRanking(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultTopicLimit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	topics, err := s.svc.TopicRanking(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTopicResponses(topics))
}

func (s *Server) deviationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.DeviationStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deviationResponse(stats))
}
