package httpapi

import (
	"net/http"

	"newsroom/internal/usecase/lifecycle"
)

type imageJobResponse struct {
	Status    string `json:"status"`
	ArticleID uint64 `json:"article_id"`
	JobID     string `json:"job_id"`
	Backend   string `json:"backend"`
	ImageType string `json:"image_type"`
}

type imageStatusResponse struct {
	ArticleID uint64 `json:"article_id"`
	Status    string `json:"status"`
	ImageType string `json:"image_type"`
	Prompt    string `json:"prompt,omitempty"`
	URL       string `json:"url,omitempty"`
	AltText   string `json:"alt_text,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) triggerImage(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req imageTriggerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	job, err := s.svc.TriggerImage(r.Context(), articleID, lifecycle.ImageTrigger(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, imageJobResponse{
		Status:    "generating",
		ArticleID: job.ArticleID,
		JobID:     job.JobID,
		Backend:   job.Backend,
		ImageType: string(job.Type),
	})
}

func (s *Server) imageStatus(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	state, err := s.svc.ImageStatus(r.Context(), articleID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imageStatusResponse{
		ArticleID: state.ArticleID,
		Status:    string(state.Status),
		ImageType: string(state.Type),
		Prompt:    state.Prompt,
		URL:       state.URL,
		AltText:   state.AltText,
		Error:     state.Error,
	})
}

// imageBackends is mounted below an article for client compatibility; availability is global.
func (s *Server) imageBackends(w http.ResponseWriter, r *http.Request) {
	backends, err := s.svc.ImageBackends(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, backends)
}
