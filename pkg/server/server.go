// Package server serves a preview session over HTTP.
//
// Routes:
//
//	GET  /                  redirect to the current pass document
//	GET  /p/{pass}/         sandbox document
//	GET  /m/{pass}/{id}.js  compiled module
//	GET  /ws/{pass}         sandbox channel (websocket)
//	POST /api/inspect       toggle inspect mode (?enabled=true|false)
//	POST /api/recompile     compile the last input again
//	GET  /api/graph         dependency graph as DOT (?format=svg|json)
//
// Only the current pass is served; documents, modules and channels of a
// superseded pass answer 404.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/pipo/pkg/cache"
	"github.com/matzehuels/pipo/pkg/depgraph"
	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/preview"
	"github.com/matzehuels/pipo/pkg/protocol"
)

// ShutdownTimeout bounds a graceful shutdown in [Server.Run].
const ShutdownTimeout = 10 * time.Second

// ChannelPath returns the channel URL of pass, for preview.Config.Channel.
func ChannelPath(pass string) string { return "/ws/" + pass }

// DocumentPath returns the document URL of pass.
func DocumentPath(pass string) string { return "/p/" + pass + "/" }

// Server serves one preview session.
type Server struct {
	session  *preview.Session
	logger   *log.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

// New creates a server for session.
func New(session *preview.Session, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		session: session,
		logger:  logger.WithPrefix("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Any origin may frame the sandbox.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Get("/", s.handleIndex)
	r.Get("/p/{pass}/", s.handleDocument)
	r.Get("/m/{pass}/{file}", s.handleModule)
	r.Get("/ws/{pass}", s.handleChannel)
	r.Route("/api", func(r chi.Router) {
		r.Post("/inspect", s.handleInspect)
		r.Post("/recompile", s.handleRecompile)
		r.Get("/graph", s.handleGraph)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("shutdown", "err", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// =============================================================================
// Middleware
// =============================================================================

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		level := log.DebugLevel
		if m.Code >= http.StatusInternalServerError {
			level = log.ErrorLevel
		}
		s.logger.Log(level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration", m.Duration)
	})
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	pass := s.session.PassID()
	if pass == "" {
		http.Error(w, "no preview compiled", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, DocumentPath(pass), http.StatusFound)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.session.Document(chi.URLParam(r, "pass"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprint(w, doc)
}

func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(chi.URLParam(r, "file"), ".js")
	if !ok {
		http.NotFound(w, r)
		return
	}
	code, err := s.session.Module(r.Context(), chi.URLParam(r, "pass"), id)
	if err != nil {
		if stderrors.Is(err, preview.ErrStalePass) || errors.Is(err, errors.ErrCodeNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("read module", "id", id, "err", err)
		http.Error(w, errors.UserMessage(err), http.StatusInternalServerError)
		return
	}
	etag := `"` + cache.Hash(code)[:16] + `"`
	w.Header().Set("ETag", etag)
	// Module URLs are unique per pass.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(code)
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	pass := chi.URLParam(r, "pass")
	if pass != s.session.PassID() {
		http.NotFound(w, r)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.logger.Warn("websocket upgrade", "err", err)
		return
	}
	ch := protocol.NewWSChannel(conn, pass)
	defer ch.Close()
	if err := s.session.Attach(ch); err != nil {
		s.logger.Warn("attach sandbox", "err", err)
		return
	}
	if err := s.session.Serve(r.Context(), ch); err != nil && r.Context().Err() == nil {
		s.logger.Debug("sandbox channel ended", "pass", pass, "err", err)
	}
}

type inspectResponse struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New(errors.ErrCodeInvalidInput, "enabled must be true or false"))
		return
	}
	if err := s.session.SetInspect(r.Context(), enabled); err != nil {
		s.logger.Warn("send inspect state", "err", err)
	}
	writeJSON(w, http.StatusOK, inspectResponse{Enabled: s.session.Inspecting()})
}

type recompileResponse struct {
	Pass     string   `json:"pass"`
	URL      string   `json:"url"`
	Failures []string `json:"failures,omitempty"`
	Seconds  float64  `json:"seconds"`
}

func (s *Server) handleRecompile(w http.ResponseWriter, r *http.Request) {
	p, err := s.session.Recompile(r.Context())
	if err != nil {
		status := http.StatusUnprocessableEntity
		if stderrors.Is(err, preview.ErrNoInput) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	resp := recompileResponse{Pass: p.ID, URL: DocumentPath(p.ID), Seconds: p.Duration.Seconds()}
	for _, e := range p.Errors {
		resp.Failures = append(resp.Failures, fmt.Sprintf("%s:%d:%d: %s", e.FileName, e.Line, e.Column, e.Message))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	p := s.session.Current()
	if p == nil || p.Result.Graph == nil {
		http.Error(w, "no preview compiled", http.StatusServiceUnavailable)
		return
	}
	switch r.URL.Query().Get("format") {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		if err := depgraph.WriteJSON(p.Result.Graph, p.Result.Order, w); err != nil {
			s.logger.Error("encode graph", "err", err)
		}
		return
	case "svg":
	default:
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		fmt.Fprint(w, depgraph.ToDOT(p.Result.Graph, p.Result.Order.Cycles))
		return
	}
	dot := depgraph.ToDOT(p.Result.Graph, p.Result.Order.Cycles)
	svg, err := depgraph.RenderSVG(r.Context(), dot)
	if err != nil {
		s.logger.Error("render graph", "err", err)
		http.Error(w, "render graph failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(svg)
}

type errorResponse struct {
	Code  errors.Code `json:"code,omitempty"`
	Error string      `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Code: errors.GetCode(err), Error: errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
