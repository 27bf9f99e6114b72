// Package api provides the minimal HTTP boundary the operator UI depends on
// (§6): a health probe, resolution-queue inbox, client portfolio, and
// inbox-item actions, plus a bearer-gated intelligence family.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/snapshot"
	"github.com/antigravity-dev/agencyos/internal/store"
)

// Server is the HTTP API server.
type Server struct {
	cfg            config.API
	store          *store.Store
	writer         *snapshot.Writer
	logger         *slog.Logger
	startTime      time.Time
	httpServer     *http.Server
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server over st, serving portfolio rollups
// from the latest document writer has persisted.
func NewServer(cfg config.API, st *store.Store, writer *snapshot.Writer, logger *slog.Logger) (*Server, error) {
	authMiddleware, err := NewAuthMiddleware(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth middleware: %w", err)
	}

	return &Server{
		cfg:            cfg,
		store:          st,
		writer:         writer,
		logger:         logger,
		startTime:      time.Now(),
		authMiddleware: authMiddleware,
	}, nil
}

// Close releases resources held by the server (audit log file, if any).
func (s *Server) Close() error {
	if s.authMiddleware != nil {
		return s.authMiddleware.Close()
	}
	return nil
}

// Start begins listening on the configured bind address. Blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.authMiddleware.RequireIntelligenceAuth)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/v2/inbox", s.handleInboxList)
	r.Post("/api/v2/inbox/{id}/action", s.handleInboxAction)
	r.Get("/api/v2/clients", s.handleClientsList)
	r.Get("/api/v2/clients/{id}", s.handleClientDetail)

	r.Route("/api/v2/intelligence", func(r chi.Router) {
		r.Get("/cycles/latest", s.handleLatestCycle)
	})

	s.httpServer = &http.Server{
		Addr:        s.cfg.Bind,
		Handler:     r,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "bind", s.cfg.Bind)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	log, err := s.store.LatestCycleLog(r.Context())
	resp := map[string]any{"status": "starting", "cycle_number": int64(0)}
	if err == nil {
		status := "ok"
		if !log.Success {
			status = "degraded"
		}
		resp = map[string]any{
			"status":          status,
			"cycle_number":    log.CycleNumber,
			"last_success_at": nil,
		}
		var lastSuccess time.Time
		if err := s.store.DB().GetContext(r.Context(), &lastSuccess,
			`SELECT finished_at FROM cycle_logs WHERE success = 1 ORDER BY cycle_number DESC LIMIT 1`); err == nil {
			resp["last_success_at"] = lastSuccess.Format(time.RFC3339)
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("health check failed reading cycle log", "error", err)
	}
	writeJSON(w, resp)
}

// GET /api/v2/inbox
func (s *Server) handleInboxList(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListUnresolvedItems(r.Context())
	if err != nil {
		s.logger.Error("list unresolved items failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list inbox")
		return
	}
	writeJSON(w, items)
}

// inboxActionRequest is the body of POST /api/v2/inbox/{id}/action. Kind
// disambiguates which table {id} refers to, since both resolution_queue and
// pending_actions rows surface in the inbox (§6).
type inboxActionRequest struct {
	Kind        string `json:"kind"` // "resolution" | "pending_action"
	Action      string `json:"action"` // "accept" | "snooze" | "dismiss"
	SnoozeUntil string `json:"snooze_until,omitempty"`
}

// POST /api/v2/inbox/{id}/action
func (s *Server) handleInboxAction(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req inboxActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	switch req.Kind {
	case "resolution":
		if err := s.applyResolutionAction(ctx, id, req); err != nil {
			s.respondActionErr(w, err)
			return
		}
	case "pending_action":
		if err := s.applyPendingActionDecision(ctx, id, req.Action); err != nil {
			s.respondActionErr(w, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "kind must be resolution or pending_action")
		return
	}

	writeJSON(w, map[string]any{"id": id, "kind": req.Kind, "action": req.Action})
}

func (s *Server) applyResolutionAction(ctx context.Context, id int64, req inboxActionRequest) error {
	switch req.Action {
	case "accept", "dismiss":
		return s.store.ResolveItem(ctx, id, "operator", req.Action)
	case "snooze":
		until := time.Now().UTC().Add(24 * time.Hour)
		if req.SnoozeUntil != "" {
			parsed, err := time.Parse(time.RFC3339, req.SnoozeUntil)
			if err != nil {
				return fmt.Errorf("invalid snooze_until: %w", err)
			}
			until = parsed
		}
		return s.store.SnoozeResolutionItem(ctx, id, until)
	default:
		return fmt.Errorf("unsupported action %q for kind=resolution", req.Action)
	}
}

func (s *Server) applyPendingActionDecision(ctx context.Context, id int64, action string) error {
	switch action {
	case "accept":
		return s.store.DecidePendingAction(ctx, id, model.ActionApproved)
	case "dismiss":
		return s.store.DecidePendingAction(ctx, id, model.ActionRejected)
	case "snooze":
		return fmt.Errorf("pending_action does not support snooze")
	default:
		return fmt.Errorf("unsupported action %q for kind=pending_action", action)
	}
}

func (s *Server) respondActionErr(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.logger.Error("inbox action failed", "error", err)
	writeError(w, http.StatusBadRequest, err.Error())
}

// GET /api/v2/clients — served from the latest snapshot's portfolio rollup.
func (s *Server) handleClientsList(w http.ResponseWriter, r *http.Request) {
	doc, err := s.writer.ReadPrevious()
	if err != nil {
		s.logger.Error("read snapshot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read snapshot")
		return
	}
	if doc == nil {
		writeJSON(w, []snapshot.ClientRollup{})
		return
	}
	writeJSON(w, doc.Clients)
}

// GET /api/v2/clients/{id} — served from the latest snapshot's portfolio rollup.
func (s *Server) handleClientDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.writer.ReadPrevious()
	if err != nil {
		s.logger.Error("read snapshot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read snapshot")
		return
	}
	if doc != nil {
		for _, c := range doc.Clients {
			if c.ClientID == id {
				writeJSON(w, c)
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "client not found")
}

// GET /api/v2/intelligence/cycles/latest — gated by bearer token.
func (s *Server) handleLatestCycle(w http.ResponseWriter, r *http.Request) {
	log, err := s.store.LatestCycleLog(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no cycles recorded yet")
			return
		}
		s.logger.Error("latest cycle log failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read cycle log")
		return
	}
	writeJSON(w, log)
}
