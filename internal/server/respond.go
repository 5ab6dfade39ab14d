package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, code, message string) {
	logger.Warn("Request failed",
		zap.Int("status", status),
		zap.String("code", code),
		zap.String("message", message),
	)
	writeJSON(logger, w, status, errorResponse{Code: code, Message: message})
}
