package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/roach88/handyrules/internal/history"
	"github.com/roach88/handyrules/internal/rule"
	"github.com/roach88/handyrules/internal/rulestore"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		Version:        s.version,
		RulesLoaded:    snap.Len(),
		RulesEnabled:   snap.EnabledCount(),
		RuleSetVersion: snap.Version,
	})
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.logger.Warn("invalid completion request", "error", err)
		s.writeError(w, http.StatusBadRequest, "invalid_request_error", "request body is not valid JSON")
		return
	}

	input, ok := req.Content()
	if !ok {
		s.logger.Warn("no user content found in request")
		s.writeError(w, http.StatusBadRequest, "invalid_request_error",
			"no user content: send a user message or a prompt, input or text field")
		return
	}

	requestID := s.ids.Generate()
	snap := s.store.Snapshot()
	output, trace := s.engine.ApplySnapshot(r.Context(), input, snap)

	s.logger.Debug("transformed",
		"request_id", requestID,
		"ruleset_version", trace.Version,
		"matched", trace.Matched(),
		"duration", trace.Duration,
	)
	for _, f := range trace.Failed() {
		s.logger.Warn("rule failed", "request_id", requestID, "rule", f.RuleID, "error", f.Error)
	}

	if s.history != nil {
		if err := s.history.Append(r.Context(), history.FromTrace(requestID, trace)); err != nil {
			s.logger.Warn("transformation log write failed", "request_id", requestID, "error", err)
		}
	}

	s.writeJSON(w, http.StatusOK, NewChatResponse(input, output, s.now()))
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, ModelsResponse{
		Object: "list",
		Data:   []ModelInfo{{ID: ModelID, Object: "model", OwnedBy: "local"}},
	})
}

func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	rules := snap.Rules()
	resp := RulesResponse{
		Rules:   make([]RuleInfo, 0, len(rules)),
		Count:   len(rules),
		Version: snap.Version,
	}
	for _, r := range rules {
		resp.Rules = append(resp.Rules, NewRuleInfo(r))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req ToggleRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err == nil && len(body) > 0 {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request_error", "request body is not valid JSON")
		return
	}

	var updated rule.Rule
	if req.Enabled != nil {
		updated, err = s.store.Toggle(id, *req.Enabled)
	} else {
		updated, err = s.store.Flip(id)
	}
	if errors.Is(err, rulestore.ErrRuleNotFound) {
		s.writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("rule %q not found", id))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	enabled := updated.Enabled
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	s.writeJSON(w, http.StatusOK, ToggleResponse{
		ID:      id,
		Enabled: enabled,
		Message: fmt.Sprintf("Rule '%s' is now %s", id, state),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusOK, LogsResponse{Logs: []history.Entry{}})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("read transformation log", "error", err)
		s.writeError(w, http.StatusInternalServerError, "server_error", "could not read transformation log")
		return
	}
	s.writeJSON(w, http.StatusOK, LogsResponse{Logs: entries, Count: len(entries)})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if s.history != nil {
		n, err := s.history.Clear(r.Context())
		if err != nil {
			s.logger.Error("clear transformation log", "error", err)
			s.writeError(w, http.StatusInternalServerError, "server_error", "could not clear transformation log")
			return
		}
		s.logger.Info("transformation log cleared", "entries", n)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: ErrorBody{Message: msg, Type: kind}})
}
