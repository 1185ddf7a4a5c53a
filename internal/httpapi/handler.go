// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpapi exposes extraction and the persisted action list over
// HTTP.
//
// Routes:
//   - POST  /v1/extract        extract one email for one user
//   - GET   /v1/actions        list a user's actions
//   - PATCH /v1/actions/{id}   mark an action done or open
//   - GET   /health            dependency checks
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bcem/mail2do/internal/models"
	"github.com/bcem/mail2do/internal/pipeline"
	"github.com/bcem/mail2do/internal/store"
)

const maxBodyBytes = 1 << 20

// ActionStore is the persistence the API needs. *store.Store implements it.
type ActionStore interface {
	Save(ctx context.Context, email models.NormalizedEmail, actions []models.ResolvedAction) error
	List(ctx context.Context, f store.Filter) ([]store.Record, error)
	Get(ctx context.Context, id string) (*store.Record, error)
	SetDone(ctx context.Context, id string, done bool) (bool, error)
}

// Directory resolves a mailbox address to an identity.
type Directory func(email string) (models.Identity, bool)

// Check is a named dependency check for /health.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Handler serves the API.
type Handler struct {
	extractor *pipeline.Extractor
	store     ActionStore
	directory Directory
	checks    []Check
	logger    *slog.Logger
}

// HandlerConfig holds dependencies for the API handler.
type HandlerConfig struct {
	Extractor *pipeline.Extractor
	Store     ActionStore // optional; list and update routes answer 503 without it
	Directory Directory
	Checks    []Check
	Logger    *slog.Logger
}

// NewHandler creates an API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		extractor: cfg.Extractor,
		store:     cfg.Store,
		directory: cfg.Directory,
		checks:    cfg.Checks,
		logger:    logger,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/extract", h.serveExtract)
	mux.HandleFunc("GET /v1/actions", h.serveList)
	mux.HandleFunc("PATCH /v1/actions/{id}", h.serveSetDone)
	mux.HandleFunc("GET /health", h.serveHealth)
}

// ExtractRequest is the body of POST /v1/extract. Identity wins over User
// when both are given.
type ExtractRequest struct {
	Email    models.NormalizedEmail `json:"email"`
	User     string                 `json:"user,omitempty"`
	Identity *models.Identity       `json:"identity,omitempty"`
	Persist  bool                   `json:"persist,omitempty"`
}

// ExtractResponse is the body returned by POST /v1/extract.
type ExtractResponse struct {
	EmailID     string                  `json:"email_id"`
	UserEmail   string                  `json:"user_email"`
	Signals     models.PolicySignals    `json:"policy_signals"`
	Actions     []models.ResolvedAction `json:"actions"`
	Diagnostics []models.Diagnostic     `json:"diagnostics"`
	Persisted   bool                    `json:"persisted"`
}

func (h *Handler) serveExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email.ID) == "" {
		writeError(w, http.StatusBadRequest, "email.id is required")
		return
	}

	id, ok := h.identity(req)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "unknown user")
		return
	}

	res := h.extractor.Process(r.Context(), req.Email, id)
	if res.Err != nil {
		h.logger.Error("extraction failed", "email_id", req.Email.ID, "user", id.Email, "error", res.Err)
		writeError(w, http.StatusInternalServerError, "extraction failed")
		return
	}

	resp := ExtractResponse{
		EmailID:     res.EmailID,
		UserEmail:   res.UserEmail,
		Signals:     res.Signals,
		Actions:     res.Actions,
		Diagnostics: res.Diagnostics,
	}
	if resp.Actions == nil {
		resp.Actions = []models.ResolvedAction{}
	}
	if resp.Diagnostics == nil {
		resp.Diagnostics = []models.Diagnostic{}
	}

	if req.Persist {
		if h.store == nil {
			writeError(w, http.StatusServiceUnavailable, "persistence not configured")
			return
		}
		if err := h.store.Save(r.Context(), req.Email, res.Actions); err != nil {
			h.logger.Error("failed to persist actions", "email_id", req.Email.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "persist failed")
			return
		}
		resp.Persisted = true
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) identity(req ExtractRequest) (models.Identity, bool) {
	if req.Identity != nil && strings.TrimSpace(req.Identity.Email) != "" {
		id := *req.Identity
		id.Email = strings.ToLower(strings.TrimSpace(id.Email))
		return id, true
	}
	if req.User == "" || h.directory == nil {
		return models.Identity{}, false
	}
	return h.directory(req.User)
}

func (h *Handler) serveList(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := h.store.List(r.Context(), f)
	if err != nil {
		h.logger.Error("failed to list actions", "user", f.UserEmail, "error", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": records})
}

// parseFilter reads user, type, priority, done and limit. type and priority
// accept comma-separated lists.
func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{UserEmail: strings.ToLower(strings.TrimSpace(q.Get("user")))}
	if f.UserEmail == "" {
		return f, errors.New("user is required")
	}
	for _, t := range splitList(q.Get("type")) {
		at := models.ActionType(strings.ToUpper(t))
		if at != models.ActionDo && at != models.ActionFollowUp {
			return f, fmt.Errorf("invalid type %q", t)
		}
		f.Types = append(f.Types, at)
	}
	for _, p := range splitList(q.Get("priority")) {
		var pr models.Priority
		switch strings.ToLower(p) {
		case "high":
			pr = models.PriorityHigh
		case "medium":
			pr = models.PriorityMedium
		case "low":
			pr = models.PriorityLow
		default:
			return f, fmt.Errorf("invalid priority %q", p)
		}
		f.Priorities = append(f.Priorities, pr)
	}
	if v := q.Get("done"); v != "" {
		done, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("invalid done %q", v)
		}
		f.Done = &done
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = n
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h *Handler) serveSetDone(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}
	id := r.PathValue("id")
	var body struct {
		Done *bool `json:"done"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Done == nil {
		writeError(w, http.StatusBadRequest, "done is required")
		return
	}

	found, err := h.store.SetDone(r.Context(), id, *body.Done)
	if err != nil {
		h.logger.Error("failed to update action", "action_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "action not found")
		return
	}

	rec, err := h.store.Get(r.Context(), id)
	if err != nil || rec == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	for _, c := range h.checks {
		if err := c.Probe(ctx); err != nil {
			h.logger.Warn("health check failed", "check", c.Name, "error", err)
			writeError(w, http.StatusServiceUnavailable, c.Name+" unhealthy")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Serve starts the API server on port and stops it when ctx is cancelled.
// extra handlers (such as /metrics) are mounted alongside the API routes.
// The returned channel is closed once the listener is bound.
func Serve(ctx context.Context, port int, h *Handler, extra map[string]http.Handler) (<-chan struct{}, error) {
	mux := http.NewServeMux()
	h.Register(mux)
	for pattern, handler := range extra {
		mux.Handle(pattern, handler)
	}

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind API port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("API server shutdown error", "error", err)
		}
	}()

	go func() {
		slog.Info("API server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("API server error", "error", err)
		}
	}()

	return ready, nil
}
