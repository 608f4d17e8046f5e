// Package service exposes the extraction pipeline and the template/content
// stores over HTTP (chi) and MCP. Handlers are thin: decode, call a store,
// map sentinel errors to status codes.
package service

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eduforma/silabo/content"
	"github.com/eduforma/silabo/lookup"
	"github.com/eduforma/silabo/normalize"
	"github.com/eduforma/silabo/score"
	"github.com/eduforma/silabo/segment"
	"github.com/eduforma/silabo/session"
	"github.com/eduforma/silabo/template"
)

// Config configures the service.
type Config struct {
	// MaxUploadBytes caps the multipart upload size. Default: 20 MiB.
	MaxUploadBytes int64

	// Score overrides the title scoring weights.
	Score score.Config

	// Rules overrides the section segmentation rule table.
	// Default: segment.DefaultRules().
	Rules []segment.Rule

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 20 << 20
	}
	if c.Rules == nil {
		c.Rules = segment.DefaultRules()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service wires the pipeline and the stores behind HTTP and MCP.
type Service struct {
	sessions  *session.Store
	templates *template.Store
	contents  *content.Store
	lookups   *lookup.Store

	normalizer *normalize.Normalizer
	engine     *score.Engine
	rules      []segment.Rule

	maxUpload int64
	logger    *slog.Logger
}

// New builds a Service over one shared database (all schemas applied).
func New(db *sql.DB, cfg Config) *Service {
	cfg.defaults()
	return &Service{
		sessions:   session.NewStore(db),
		templates:  template.NewStore(db),
		contents:   content.NewStore(db),
		lookups:    lookup.NewStore(db),
		normalizer: normalize.New(normalize.Config{MaxFileSize: cfg.MaxUploadBytes, Logger: cfg.Logger}),
		engine:     score.New(cfg.Score),
		rules:      cfg.Rules,
		maxUpload:  cfg.MaxUploadBytes,
		logger:     cfg.Logger,
	}
}

// RegisterHTTP mounts all routes on the given chi router.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/extractions", s.handleExtract)

		r.Get("/sessions", s.handleListSessions)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteSession)
			r.Get("/titles", s.handleSessionTitles)
			r.Get("/groupings", s.handleListGroupings)
			r.Post("/groupings", s.handleCreateGrouping)
			r.Post("/materialize", s.handleMaterialize)
		})
		r.Put("/groupings/{groupingID}", s.handleUpdateGrouping)
		r.Delete("/groupings/{groupingID}", s.handleDeleteGrouping)

		r.Get("/templates", s.handleListTemplates)
		r.Get("/templates/{templateID}", s.handleGetTemplate)

		r.Post("/instances", s.handleCreateInstance)
		r.Route("/instances/{instanceID}", func(r chi.Router) {
			r.Post("/assignments", s.handleAssign)
			r.Get("/assignments", s.handleListAssignments)
			r.Get("/content", s.handleReadContent)
			r.Put("/sections/{sectionID}/text", s.handlePutText)
			r.Put("/sections/{sectionID}/rows/{order}", s.handlePutRow)
		})
		r.Put("/assignments/{assignmentID}/state", s.handleSetState)

		r.Get("/lookups/{catalog}", s.handleLookup)
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, normalize.ErrUnsupportedFormat),
		errors.Is(err, normalize.ErrEmptyDocument),
		errors.Is(err, template.ErrNoGroupings),
		errors.Is(err, template.ErrInvalidState),
		errors.Is(err, content.ErrUnknownField),
		errors.Is(err, content.ErrKindMismatch),
		errors.Is(err, lookup.ErrUnknownCatalog),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, template.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, template.ErrAlreadyMaterialized),
		errors.Is(err, template.ErrDuplicateAssignment):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")
