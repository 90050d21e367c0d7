package httpapi

import (
	"net/http"

	"newsroom/internal/usecase/lifecycle"
)

type publishAcceptedResponse struct {
	Status    string   `json:"status"`
	ArticleID uint64   `json:"article_id"`
	WPStatus  string   `json:"wp_status"`
	Languages []string `json:"languages"`
}

type publishStatusResponse struct {
	ArticleID    uint64                `json:"article_id"`
	Published    bool                  `json:"published"`
	Publications []publicationResponse `json:"publications"`
}

type wpCategoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type wpCheckResponse struct {
	Connected  bool                 `json:"connected"`
	URL        string               `json:"url"`
	Categories []wpCategoryResponse `json:"categories"`
}

func (s *Server) publishArticle(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req publishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	uploadImage := true
	if req.UploadImage != nil {
		uploadImage = *req.UploadImage
	}
	options, err := s.svc.Publish(r.Context(), articleID, lifecycle.PublishOptions{
		Status:      req.WPStatus,
		Languages:   req.Languages,
		UploadImage: uploadImage,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	languages := options.Languages
	if languages == nil {
		languages = []string{}
	}
	writeJSON(w, http.StatusAccepted, publishAcceptedResponse{
		Status:    "publishing",
		ArticleID: articleID,
		WPStatus:  options.Status,
		Languages: languages,
	})
}

func (s *Server) publishStatus(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	status, err := s.svc.PublishStatus(r.Context(), articleID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, publishStatusResponse{
		ArticleID:    status.ArticleID,
		Published:    status.Published,
		Publications: toPublicationResponses(status.Publications),
	})
}

func (s *Server) wpCheck(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.WPCheck(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	categories := make([]wpCategoryResponse, 0, len(status.Categories))
	for _, category := range status.Categories {
		categories = append(categories, wpCategoryResponse(category))
	}
	writeJSON(w, http.StatusOK, wpCheckResponse{
		Connected:  status.Connected,
		URL:        status.URL,
		Categories: categories,
	})
}
