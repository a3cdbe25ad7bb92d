package http

import (
	"net/http"
	"strings"

	"pisopatrol/internal/core"
	applog "pisopatrol/internal/log"
)

type goalJSON struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Cents  int64  `json:"target_cents"`
	Emoji  string `json:"emoji,omitempty"`
}

func toGoalJSON(g core.Goal) goalJSON {
	return goalJSON{Name: g.Name, Target: g.Target.Decimal(), Cents: g.Target.Cents, Emoji: g.Emoji}
}

type goalRequest struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Emoji  string `json:"emoji,omitempty"`
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		goals := s.session.Goals()
		out := make([]goalJSON, len(goals))
		for i, g := range goals {
			out[i] = toGoalJSON(g)
		}
		writeJSON(w, http.StatusOK, map[string]any{"goals": out})
	case http.MethodPost:
		g, ok := s.decodeGoal(w, r)
		if !ok {
			return
		}
		if err := s.session.CreateGoal(g); err != nil {
			writeSessionError(w, err)
			return
		}
		s.saveGoal(r, g)
		writeJSON(w, http.StatusCreated, toGoalJSON(g))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleGoalByName routes PUT and DELETE /goals/{name}.
func (s *Server) handleGoalByName(w http.ResponseWriter, r *http.Request) {
	// r.URL.Path arrives already unescaped.
	name := strings.TrimPrefix(r.URL.Path, "/goals/")
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		g, ok := s.session.Goal(name)
		if !ok {
			writeError(w, http.StatusNotFound, core.ErrUnknownGoal.Error())
			return
		}
		writeJSON(w, http.StatusOK, toGoalJSON(g))
	case http.MethodPut:
		g, ok := s.decodeGoal(w, r)
		if !ok {
			return
		}
		g.Name = name
		if err := s.session.UpdateGoal(g); err != nil {
			writeSessionError(w, err)
			return
		}
		s.saveGoal(r, g)
		writeJSON(w, http.StatusOK, toGoalJSON(g))
	case http.MethodDelete:
		if err := s.session.DeleteGoal(name); err != nil {
			writeSessionError(w, err)
			return
		}
		if s.store != nil {
			if err := s.store.DeleteGoal(r.Context(), name); err != nil {
				s.logger.ErrorContext(r.Context(), "delete stored goal failed",
					applog.FieldError, err, applog.FieldGoal, name)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) decodeGoal(w http.ResponseWriter, r *http.Request) (core.Goal, bool) {
	var req goalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return core.Goal{}, false
	}
	if strings.TrimSpace(req.Name) == "" && r.Method == http.MethodPost {
		writeError(w, http.StatusBadRequest, "goal name is required")
		return core.Goal{}, false
	}
	cents, negative, err := core.ParseAmount(req.Target)
	if err != nil || negative || cents <= 0 {
		writeError(w, http.StatusBadRequest, "invalid target: must be a positive amount")
		return core.Goal{}, false
	}
	return core.Goal{
		Name:   strings.TrimSpace(req.Name),
		Target: core.Money{Cents: cents},
		Emoji:  strings.TrimSpace(req.Emoji),
	}, true
}

func (s *Server) saveGoal(r *http.Request, g core.Goal) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveGoal(r.Context(), g); err != nil {
		s.logger.ErrorContext(r.Context(), "persist goal failed",
			applog.FieldError, err, applog.FieldGoal, g.Name)
	}
}
