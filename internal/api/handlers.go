package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/swarmlink/orchestrate-go/internal/domain"
	"github.com/swarmlink/orchestrate-go/internal/orchestrator"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.registry.List()

	if phase := r.URL.Query().Get("phase"); phase != "" {
		filtered := runs[:0]
		for _, run := range runs {
			if string(run.Phase) == phase {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Command  string `json:"command"`
		UserID   string `json:"user_id,omitempty"`
		TenantID string `json:"tenant_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Command == "" {
		writeError(w, http.StatusBadRequest, "'command' field is required")
		return
	}

	// Verified token claims win over body-supplied identity; the body
	// fields only serve deployments with auth disabled.
	id := identityFromContext(r.Context())
	if id.UserID == "" {
		id.UserID = body.UserID
	}
	if id.TenantID == "" {
		id.TenantID = body.TenantID
	}
	if id.UserID == "" {
		writeError(w, http.StatusBadRequest, "user identity required")
		return
	}

	status, err := s.registry.StartRun(r.Context(), body.Command, id)
	if err != nil {
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	status, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleGetRunGraph(w http.ResponseWriter, r *http.Request) {
	status, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	if status.Graph == nil {
		writeJSON(w, http.StatusOK, domain.AgentGraph{
			Nodes:       []domain.AgentNode{},
			Connections: []domain.Connection{},
		})
		return
	}
	writeJSON(w, http.StatusOK, status.Graph)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id required")
		return
	}
	if err := s.registry.Cancel(id); err != nil {
		if errors.Is(err, orchestrator.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "cancelled"})
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (domain.RunStatus, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id required")
		return domain.RunStatus{}, false
	}
	status, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, orchestrator.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return domain.RunStatus{}, false
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return domain.RunStatus{}, false
	}
	return status, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
