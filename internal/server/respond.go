package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rickgao/emission-engine/internal/api"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body api.ErrorBody) {
	writeJSON(w, status, api.ErrorResponse{Error: body})
}

func errorBody(code, message string) api.ErrorBody {
	return api.ErrorBody{Code: code, Message: message}
}

func slogLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}
