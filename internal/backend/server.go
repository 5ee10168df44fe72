/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	applog "gopcrclicker/internal/log"
	"gopcrclicker/internal/script"
	"gopcrclicker/internal/version"
)

const (
	maxBodyBytes = 1 << 20
	devSecret    = "dev-secret-change-me"
)

// Server serves the shared script library API.
type Server struct {
	store  Store
	secret string
	log    *slog.Logger
	now    func() time.Time
}

// NewServer builds a server over store. An empty secret falls back to an insecure dev secret.
func NewServer(store Store, secret string) *Server {
	l := applog.WithComponent("backend")
	if secret == "" {
		secret = devSecret
		l.Warn("PCR_AUTH_SECRET not set; using insecure dev secret")
	}
	return &Server{store: store, secret: secret, log: l, now: time.Now}
}

// Start opens the database, applies migrations and serves until ctx is done.
func Start(ctx context.Context, cfg Config) error {
	db, err := OpenDB(ctx, cfg.DBURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	s := NewServer(NewPGStore(db), cfg.Secret)

	srv := &http.Server{Addr: cfg.Addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("server listening", slog.String("addr", cfg.Addr))
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("gopcrclicker " + version.String()))
	})
	mux.HandleFunc("POST /api/auth/token", s.handleToken)
	mux.HandleFunc("GET /api/scripts", s.withAuth(s.handleList))
	mux.HandleFunc("POST /api/scripts", s.withAuth(s.handlePublish))
	mux.HandleFunc("GET /api/scripts/{id}", s.withAuth(s.handleGet))
	mux.HandleFunc("GET /api/search", s.withAuth(s.handleSearch))
	return mux
}

// POST /api/auth/token → { token, expires_at }
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	// Optional JSON body: { "subject": "name", "ttl_seconds": 3600 }
	var req struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	b, _ := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	_ = r.Body.Close()
	_ = json.Unmarshal(b, &req)
	if req.Subject == "" {
		req.Subject = "anonymous"
	}
	if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
		req.TTLSeconds = 3600
	}
	exp := s.now().Add(time.Duration(req.TTLSeconds) * time.Second)
	tok, err := signToken(s.secret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, _ string) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.log.Error("list scripts failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []ScriptInfo{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, _ string) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid script id"))
		return
	}
	sc, err := s.store.Get(r.Context(), id)
	if errors.Is(err, ErrNoScript) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// PublishRequest is the body of POST /api/scripts.
type PublishRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request, subject string) {
	var req PublishRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("name is required"))
		return
	}
	parsed, err := script.ParseText(req.Text)
	if err != nil {
		var se *script.SyntaxError
		if errors.As(err, &se) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": se.Message, "line": se.LineNum})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	info, err := s.store.Put(r.Context(), SharedScript{
		ScriptInfo: ScriptInfo{
			Name:     req.Name,
			Author:   subject,
			Team:     parsed.TeamLine(),
			Operates: parsed.OperateCount(),
		},
		// store the canonical rendering so every client reads the same text
		Body: parsed.Render(),
	})
	if err != nil {
		s.log.Error("publish failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("script published", slog.Int64("id", info.ID), slog.String("name", info.Name), slog.String("author", subject))
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, _ string) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	hits, err := s.store.Search(r.Context(), q.Get("q"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if hits == nil {
		hits = []LineHit{}
	}
	writeJSON(w, http.StatusOK, hits)
}
