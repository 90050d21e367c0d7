package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"newsroom/internal/usecase/lifecycle"
)

type translationTriggerResponse struct {
	Status    string   `json:"status"`
	Languages []string `json:"languages"`
}

func (s *Server) triggerTranslation(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req translationTriggerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	languages, err := s.svc.TriggerTranslation(r.Context(), articleID, req.Languages)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, translationTriggerResponse{Status: "translating", Languages: languages})
}

func (s *Server) listTranslations(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items, err := s.svc.ListTranslations(r.Context(), articleID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTranslationResponses(items))
}

func (s *Server) getTranslation(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	item, err := s.svc.GetTranslation(r.Context(), articleID, chi.URLParam(r, "lang"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTranslationResponse(item))
}

func (s *Server) editTranslation(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req translationEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	item, err := s.svc.EditTranslation(r.Context(), articleID, chi.URLParam(r, "lang"), lifecycle.TranslationEdit(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTranslationResponse(item))
}

func (s *Server) approveTranslation(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	item, err := s.svc.ApproveTranslation(r.Context(), articleID, chi.URLParam(r, "lang"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTranslationResponse(item))
}
