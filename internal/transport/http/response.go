package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/live-quiz/internal/domain"
)

type ErrorBody struct {
	Code    domain.Code    `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

// writeError отдаёт структурированную ошибку; статус берётся из кода.
func writeError(w http.ResponseWriter, err error) {
	status := domain.HTTPStatus(err)
	e := domain.AsError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http handler failed", slog.Any("err", err))
	}
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: e.Code, Message: e.Message, Details: e.Details}})
}
