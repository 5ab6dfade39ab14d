package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/biovisor/biovisor/internal/domain"
)

// VMHandler handles VM lifecycle requests.
type VMHandler struct {
	srv *Server
}

// NewVMHandler creates a new VM handler.
func NewVMHandler(srv *Server) *VMHandler {
	return &VMHandler{srv: srv}
}

type createVMRequest struct {
	ID       string `json:"id,omitempty"`
	Priority int    `json:"priority,omitempty"`
	Demand   demand `json:"demand"`
}

type demand struct {
	Ribosomes     int64   `json:"ribosomes"`
	EnergyPercent float64 `json:"energy_percent"`
	MemoryUnits   int64   `json:"memory_units"`
}

func (h *VMHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/vms")
	path = strings.Trim(path, "/")

	switch {
	case path == "":
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			writeError(h.srv.logger, w, http.StatusMethodNotAllowed, "method_not_allowed", "GET or POST only")
		}
		return
	default:
		parts := strings.Split(path, "/")
		id := parts[0]
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			h.get(w, r, id)
		case len(parts) == 1 && r.Method == http.MethodDelete:
			h.destroy(w, r, id)
		case len(parts) == 2 && r.Method == http.MethodPost:
			h.action(w, r, id, parts[1])
		default:
			writeError(h.srv.logger, w, http.StatusNotFound, "not_found", "unknown route")
		}
	}
}

func (h *VMHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createVMRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.srv.logger, w, http.StatusBadRequest, "invalid_body", "malformed JSON body")
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	dem := domain.ResourceDemand{
		Ribosomes:     req.Demand.Ribosomes,
		EnergyPercent: req.Demand.EnergyPercent,
		MemoryUnits:   req.Demand.MemoryUnits,
	}

	if err := h.srv.hv.CreateVM(id, dem, req.Priority); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.srv.logger.Info("VM created",
		zap.String("vm_id", id),
		zap.Int64("ribosomes", dem.Ribosomes),
	)

	view, err := h.srv.hv.GetVMStatus(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(h.srv.logger, w, http.StatusCreated, view)
}

func (h *VMHandler) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(h.srv.logger, w, http.StatusOK, map[string]any{
		"vms": h.srv.hv.ListVMs(),
	})
}

func (h *VMHandler) get(w http.ResponseWriter, _ *http.Request, id string) {
	view, err := h.srv.hv.GetVMStatus(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(h.srv.logger, w, http.StatusOK, view)
}

func (h *VMHandler) destroy(w http.ResponseWriter, _ *http.Request, id string) {
	if err := h.srv.hv.DestroyVM(id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.srv.logger.Info("VM destroyed", zap.String("vm_id", id))
	w.WriteHeader(http.StatusNoContent)
}

type faultRequest struct {
	Reason string `json:"reason"`
}

func (h *VMHandler) action(w http.ResponseWriter, r *http.Request, id, action string) {
	var err error
	switch action {
	case "start":
		err = h.srv.hv.StartVM(id)
	case "pause":
		err = h.srv.hv.PauseVM(id)
	case "resume":
		err = h.srv.hv.ResumeVM(id)
	case "fault":
		var req faultRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		if req.Reason == "" {
			req.Reason = "fault injected by operator"
		}
		err = h.srv.hv.InjectFault(id, req.Reason)
	default:
		writeError(h.srv.logger, w, http.StatusNotFound, "not_found", "unknown action: "+action)
		return
	}

	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	view, err := h.srv.hv.GetVMStatus(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(h.srv.logger, w, http.StatusOK, view)
}

// writeDomainError maps core errors onto HTTP statuses.
func (h *VMHandler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		invalidArg   *domain.InvalidArgumentError
		insufficient *domain.InsufficientResourcesError
		transition   *domain.InvalidTransitionError
	)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(h.srv.logger, w, http.StatusNotFound, "vm_not_found", err.Error())
	case errors.Is(err, domain.ErrDuplicateID):
		writeError(h.srv.logger, w, http.StatusConflict, "duplicate_id", err.Error())
	case errors.Is(err, domain.ErrChassisLimit):
		writeError(h.srv.logger, w, http.StatusConflict, "chassis_limit", err.Error())
	case errors.As(err, &insufficient):
		writeError(h.srv.logger, w, http.StatusConflict, "insufficient_resources", err.Error())
	case errors.As(err, &transition):
		writeError(h.srv.logger, w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.As(err, &invalidArg):
		writeError(h.srv.logger, w, http.StatusBadRequest, "invalid_argument", err.Error())
	default:
		writeError(h.srv.logger, w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
