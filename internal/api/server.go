// Package api provides the HTTP surface over the behavior pipeline.
// GET endpoints are public (read-only observation).
// POST /reset requires a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/talgya/petmind/internal/pet"
	"github.com/talgya/petmind/internal/pipeline"
	"github.com/talgya/petmind/internal/traits"
)

// Server serves pet state and reactions over HTTP.
type Server struct {
	Orch     *pipeline.Orchestrator
	Engine   *traits.Engine
	Repo     pet.Repository
	Limiter  *RateLimiter // throttles generation-consuming endpoints; nil disables
	Port     int
	AdminKey string // Bearer token for admin endpoints. Empty = disabled.
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/pets/", s.handlePetRoutes)
	return mux
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	handler := s.Handler()
	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// handlePetRoutes dispatches /api/v1/pets/{id}[/react|/history|/reset|/evolve].
func (s *Server) handlePetRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/pets/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		http.Error(w, "pet id required", http.StatusBadRequest)
		return
	}

	switch action {
	case "":
		s.handleGetPet(w, r, id)
	case "react":
		s.handleReact(w, r, id)
	case "history":
		s.handleHistory(w, r, id)
	case "evolve":
		s.handleEvolve(w, r, id)
	case "reset":
		s.adminOnly(func(w http.ResponseWriter, r *http.Request) {
			s.handleReset(w, r, id)
		})(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGetPet(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st, err := s.Repo.GetPet(id)
	if err != nil {
		http.Error(w, "load failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, st)
}

type reactRequest struct {
	Situation    string            `json:"situation"`
	PlayerChoice string            `json:"player_choice"`
	Environment  map[string]string `json:"environment,omitempty"`
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req reactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if req.Situation == "" {
		http.Error(w, "situation required", http.StatusBadRequest)
		return
	}
	if !s.Limiter.limit(w, id) {
		return
	}

	reaction := s.Orch.ProcessReaction(r.Context(), id, req.Situation, req.PlayerChoice, req.Environment)
	writeJSON(w, reaction)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	records, err := s.Repo.PetHistory(id, 50)
	if err != nil {
		http.Error(w, "load failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"pet_id": id, "records": records})
}

type evolveRequest struct {
	Template traits.EvolutionTemplate `json:"template"`
}

func (s *Server) handleEvolve(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req evolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if !s.Limiter.limit(w, id) {
		return
	}

	st, err := s.Repo.GetPet(id)
	if err != nil {
		http.Error(w, "load failed", http.StatusInternalServerError)
		return
	}

	solidified := s.Engine.Solidify(r.Context(), req.Template, st)
	for _, t := range solidified {
		if err := s.Repo.AppendTrait(t); err != nil {
			slog.Warn("trait persist failed", "pet", id, "trait", t.Name, "error", err)
		}
	}
	writeJSON(w, map[string]any{"pet_id": id, "traits": solidified})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st, err := s.Repo.GetPet(id)
	if err != nil {
		http.Error(w, "load failed", http.StatusInternalServerError)
		return
	}
	st.Reset()
	if err := s.Repo.SavePet(st); err != nil {
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	slog.Info("pet reset", "pet", id)
	writeJSON(w, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no PETMIND_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ") == s.AdminKey && auth != ""
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
