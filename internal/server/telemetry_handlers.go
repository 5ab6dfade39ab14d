package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultTelemetryLimit = 100

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The CORS middleware already gates browser access.
		return true
	},
}

func (s *Server) telemetryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(s.logger, w, http.StatusMethodNotAllowed, "method_not_allowed", "GET only")
		return
	}
	if s.recorder == nil {
		writeError(s.logger, w, http.StatusNotFound, "telemetry_disabled", "telemetry recording is disabled")
		return
	}

	limit := defaultTelemetryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(s.logger, w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"samples": s.recorder.Recent(limit),
	})
}

// telemetryStreamHandler pushes one JSON sample per scheduler tick over a
// websocket until the client disconnects.
func (s *Server) telemetryStreamHandler(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeError(s.logger, w, http.StatusNotFound, "telemetry_disabled", "telemetry recording is disabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	samples, cancel := s.recorder.Subscribe()
	defer cancel()

	// Reader goroutine: we never expect client messages, but reading is
	// required to observe close frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			if err := conn.WriteJSON(sample); err != nil {
				s.logger.Debug("Telemetry stream closed", zap.Error(err))
				return
			}
		}
	}
}
