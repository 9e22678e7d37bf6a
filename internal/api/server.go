package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/pathcurate/internal/curator"
	"github.com/ajitpratap0/pathcurate/internal/flux"
	"github.com/ajitpratap0/pathcurate/internal/merge"
	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/internal/parser"
	"github.com/ajitpratap0/pathcurate/internal/retrieval"
	"github.com/ajitpratap0/pathcurate/internal/store"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

// Server is an HTTP API server that exposes curation operations.
type Server struct {
	curator      *curator.Curator
	workspace    *curator.Workspace
	logger       *slog.Logger
	defaultModel string
	authToken    string // empty = no auth required
}

// NewServer creates a new Server with the given dependencies.
func NewServer(c *curator.Curator, ws *curator.Workspace, defaultModel string, logger *slog.Logger, authToken string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		curator:      c,
		workspace:    ws,
		logger:       logger,
		defaultModel: defaultModel,
		authToken:    authToken,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check, no auth required.
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /v1/pathways", s.auth(s.handleAddPathway))
	mux.HandleFunc("POST /v1/reactions", s.auth(s.handleAddReactions))
	mux.HandleFunc("POST /v1/flux-test", s.auth(s.handleFluxTest))
	mux.HandleFunc("GET /v1/stats", s.auth(s.handleStats))
	mux.HandleFunc("GET /v1/models", s.auth(s.handleListModels))
	mux.Handle("GET /debug/vars", s.auth(expvar.Handler().ServeHTTP))

	return s.requestID(mux)
}

// --- middleware ---

// requestID tags every request with an identifier echoed in X-Request-ID.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served", "id", id, "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathwayRequest is the body accepted by POST /v1/pathways.
type pathwayRequest struct {
	Model string `json:"model"`
	curator.PathwayRequest
}

func (s *Server) handleAddPathway(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req pathwayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	var res *curator.Result
	err := s.workspace.Update(r.Context(), s.model(req.Model), true, func(m *models.Model) error {
		var err error
		res, err = s.curator.AddPathway(r.Context(), m, req.PathwayRequest)
		return err
	})
	if err != nil {
		s.writeCurationError(w, "add pathway", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// reactionsRequest is the body accepted by POST /v1/reactions. Entries use
// the custom line syntax, one entry per element.
type reactionsRequest struct {
	Model           string            `json:"model"`
	Entries         []string          `json:"entries"`
	Database        string            `json:"database"`
	Compartment     string            `json:"compartment"`
	PathwayID       string            `json:"pathway_id"`
	PathwayName     string            `json:"pathway_name"`
	IgnoreFlux      []string          `json:"ignore_flux"`
	Replacements    map[string]string `json:"replacements"`
	MetabolitesOnly bool              `json:"metabolites_only"`
}

func (s *Server) handleAddReactions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req reactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Entries) == 0 {
		s.writeError(w, http.StatusBadRequest, "entries are required")
		return
	}
	entries, err := parser.ParseEntries(strings.NewReader(strings.Join(req.Entries, "\n")))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	creq := curator.EntriesRequest{
		Entries:      entries,
		Database:     req.Database,
		Compartment:  req.Compartment,
		PathwayID:    req.PathwayID,
		PathwayName:  req.PathwayName,
		IgnoreFlux:   req.IgnoreFlux,
		Replacements: req.Replacements,
	}
	var res *curator.Result
	err = s.workspace.Update(r.Context(), s.model(req.Model), true, func(m *models.Model) error {
		var err error
		if req.MetabolitesOnly {
			res, err = s.curator.AddMetabolites(r.Context(), m, creq)
		} else {
			res, err = s.curator.AddReactions(r.Context(), m, creq)
		}
		return err
	})
	if err != nil {
		s.writeCurationError(w, "add reactions", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// fluxTestRequest is the body accepted by POST /v1/flux-test. An empty
// reaction list tests every reaction.
type fluxTestRequest struct {
	Model     string   `json:"model"`
	Reactions []string `json:"reactions"`
}

// fluxTestResponse is returned by POST /v1/flux-test.
type fluxTestResponse struct {
	Results []curator.FluxResult `json:"results"`
	Blocked int                  `json:"blocked"`
}

func (s *Server) handleFluxTest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req fluxTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var resp fluxTestResponse
	err := s.workspace.View(r.Context(), s.model(req.Model), func(m *models.Model) error {
		results, err := s.curator.FluxTest(r.Context(), m, req.Reactions)
		if err != nil {
			return err
		}
		resp.Results = results
		for _, res := range results {
			if !res.CanCarry {
				resp.Blocked++
			}
		}
		return nil
	})
	if err != nil {
		s.writeCurationError(w, "flux test", err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var stats curator.Stats
	err := s.workspace.View(r.Context(), s.model(r.URL.Query().Get("model")), func(m *models.Model) error {
		stats = curator.StatsOf(m)
		return nil
	})
	if err != nil {
		s.writeCurationError(w, "stats", err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	infos, err := s.workspace.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list models", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list models")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"models": infos})
}

// --- helpers ---

func (s *Server) model(id string) string {
	if id != "" {
		return id
	}
	return s.defaultModel
}

// writeCurationError maps curation failures to status codes. Input problems
// are 4xx, everything else is logged and reported as 500.
func (s *Server) writeCurationError(w http.ResponseWriter, op string, err error) {
	var (
		pe *parser.ParseError
		fe *merge.FatalError
	)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, retrieval.ErrNotFound),
		errors.Is(err, curator.ErrUnknownPathway), errors.Is(err, flux.ErrUnknownReaction):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &pe), errors.Is(err, curator.ErrUnexpectedKind):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &fe), errors.Is(err, curator.ErrUnbalanced):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, retrieval.ErrVersionMismatch):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "op", op, "error", err)
		s.writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
