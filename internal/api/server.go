// Package api exposes the admin HTTP interface: health, metrics, state and manual runs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/settings"
	"PaperNotifier/internal/usecase"
	"PaperNotifier/internal/window"
)

// Triggers starts pipeline work outside the cron schedule.
type Triggers interface {
	RunNow() (domain.Task, time.Time, error)
	RunCrawl() (domain.Task, error)
	RunNotify() (domain.Task, error)
}

// State reads and edits the shared pipeline state.
type State interface {
	LoadCrawlState(ctx context.Context) (domain.CrawlState, error)
	ActiveKeywords(ctx context.Context, configured []string) []string
	ReplaceKeywords(ctx context.Context, keywords []string) error
	Recent(ctx context.Context) ([]domain.Document, error)
}

// SettingsFunc returns the settings currently in effect.
type SettingsFunc func(ctx context.Context) settings.Settings

// Server wires HTTP handlers to the scheduler and state.
type Server struct {
	router   chi.Router
	triggers Triggers
	state    State
	settings SettingsFunc
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(triggers Triggers, state State, settingsFn SettingsFunc, metrics http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		triggers: triggers,
		state:    state,
		settings: settingsFn,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.healthz)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", s.getState)
		r.Get("/papers/recent", s.recentPapers)
		r.Put("/keywords", s.putKeywords)
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.runNow)
			r.Post("/crawl", s.runCrawl)
			r.Post("/notify", s.runNotify)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type stateResponse struct {
	LastCrawlTimestamp string   `json:"last_crawl_timestamp,omitempty"`
	LastCrawlEnd       *string  `json:"last_crawl_end"`
	LastCrawlCount     int      `json:"last_crawl_paper_count"`
	Keywords           []string `json:"keywords"`
	Schedule           string   `json:"schedule"`
	Messenger          string   `json:"messenger"`
	Reranker           string   `json:"reranker,omitempty"`
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	state, err := s.state.LoadCrawlState(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "state store unavailable")
		return
	}
	cfg := s.settings(r.Context())

	resp := stateResponse{
		LastCrawlCount: state.DocumentCount,
		Keywords:       s.state.ActiveKeywords(r.Context(), cfg.Keywords),
		Schedule:       cfg.Schedule,
		Messenger:      cfg.Messenger,
		Reranker:       cfg.Reranker,
	}
	if resp.Keywords == nil {
		resp.Keywords = []string{}
	}
	if state.LastCrawlEnd != nil {
		end := state.LastCrawlEnd.UTC().Format(time.RFC3339)
		resp.LastCrawlEnd = &end
		resp.LastCrawlTimestamp = window.FormatTimestamp(*state.LastCrawlEnd)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) recentPapers(w http.ResponseWriter, r *http.Request) {
	docs, err := s.state.Recent(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "recent papers unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"papers": docs})
}

type keywordsRequest struct {
	Keywords []string `json:"keywords"`
}

func (s *Server) putKeywords(w http.ResponseWriter, r *http.Request) {
	var req keywordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	keywords := cleanKeywords(req.Keywords)
	if err := s.state.ReplaceKeywords(r.Context(), keywords); err != nil {
		writeError(w, http.StatusServiceUnavailable, "state store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keywords": keywords})
}

func (s *Server) runNow(w http.ResponseWriter, _ *http.Request) {
	task, at, err := s.triggers.RunNow()
	if err != nil {
		s.triggerFailed(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id":      task.ID,
		"kind":         task.Kind,
		"scheduled_at": at.Format(time.RFC3339),
	})
}

func (s *Server) runCrawl(w http.ResponseWriter, _ *http.Request) {
	s.accepted(w)(s.triggers.RunCrawl())
}

func (s *Server) runNotify(w http.ResponseWriter, _ *http.Request) {
	s.accepted(w)(s.triggers.RunNotify())
}

func (s *Server) accepted(w http.ResponseWriter) func(domain.Task, error) {
	return func(task domain.Task, err error) {
		if err != nil {
			s.triggerFailed(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"task_id": task.ID, "kind": task.Kind})
	}
}

func (s *Server) triggerFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, usecase.ErrSchedulerStopped) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.logger.Error("trigger failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "trigger failed")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func cleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
