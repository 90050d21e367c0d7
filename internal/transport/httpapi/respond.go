package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/usecase/lifecycle"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type noopResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, article.ErrValidation), errors.Is(err, article.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, article.ErrNotFound), errors.Is(err, article.ErrFeatureDisabled):
		return http.StatusNotFound
	case errors.Is(err, article.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, article.ErrProvider):
		return http.StatusBadGateway
	case errors.Is(err, article.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, article.ErrUnavailable), errors.Is(err, lifecycle.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError answers with the mapped status. A no-op is not an error for the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, article.ErrNoOp) {
		writeJSON(w, http.StatusOK, noopResponse{Status: "noop", Reason: err.Error()})
		return
	}

	status := statusFor(err)
	ctx := logging.WithAttrs(r.Context(), slog.String("component", "httpapi"), slog.String("path", r.URL.Path))
	if status >= http.StatusInternalServerError {
		logging.Error(ctx, "request failed", slog.Int("status", status), slog.Any("err", errs.Loggable(err)))
	} else {
		logging.Debug(ctx, "request rejected", slog.Int("status", status), slog.String("err_message", err.Error()))
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeError(w, status, message)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return article.Validationf("invalid request body: %v", err)
	}
	return nil
}

func articleIDParam(r *http.Request) (uint64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "articleID"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, article.Validationf("invalid article id %q", raw)
	}
	return id, nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, article.Validationf("invalid %s %q", key, raw)
	}
	return value, nil
}
