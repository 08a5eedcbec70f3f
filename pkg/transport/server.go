// Package transport exposes a rendering session over HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"mcmlview/internal/logging"
	"mcmlview/pkg/command"
	"mcmlview/pkg/histogram"
	"mcmlview/pkg/render"
)

// maxCommandSize bounds a POST /command body.
const maxCommandSize = 1 << 16

// Server serves one session.
type Server struct {
	address string
	engine  *render.Engine
	router  *command.Router
	server  *http.Server

	shutdownTimeout time.Duration
}

// ServerConfig contains configuration options for the server
type ServerConfig struct {
	Address string
	Engine  *render.Engine

	// ShutdownTimeout bounds the graceful shutdown; one second if zero.
	ShutdownTimeout time.Duration
}

// NewServer creates a server for the session in config.
func NewServer(config ServerConfig) *Server {
	s := &Server{
		address: config.Address,
		engine:  config.Engine,
		router:  command.NewRouter(config.Engine),

		shutdownTimeout: config.ShutdownTimeout,
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = time.Second
	}
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route table, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start serves until ctx is cancelled, then shuts down gracefully. It returns
// early with the listen error if the server cannot start.
func (s *Server) Start(ctx context.Context) error {
	log := logging.Logger()

	errc := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", s.address)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", "error", err)
		if err := s.server.Close(); err != nil {
			log.Warn("HTTP server force close error", "error", err)
		}
	}
	return nil
}

// Close stops the server immediately.
func (s *Server) Close() error {
	return s.server.Close()
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /command", s.handleCommand)
	mux.HandleFunc("GET /frame.bmp", s.handleFrame)
	mux.HandleFunc("GET /gist", s.handleGist)
	mux.HandleFunc("GET /gist.png", s.handleGistChart)

	return mux
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", command.ContentJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeReply(w http.ResponseWriter, reply command.Reply) {
	if reply.Empty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", reply.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(reply.Body)))
	w.Write(reply.Body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dx, dy, dz := s.engine.Dataset().Dims()
	st := s.engine.State()
	w.Header().Set("Content-Type", command.ContentJSON)
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"dims":      []int{dx, dy, dz},
		"layers":    s.engine.Dataset().LayerCount(),
		"z":         st.Z,
		"layer":     st.Layer,
		"lower":     st.Lower,
		"upper":     st.Upper,
		"renders":   s.engine.Renders(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandSize))
	if err != nil {
		writeJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	msg, err := command.Decode(body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := s.router.Handle(msg)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, command.ErrInvalidArgument) {
			status = http.StatusBadRequest
		}
		writeJSONError(w, status, err.Error())
		return
	}
	writeReply(w, reply)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	reply, err := s.router.Handle(command.Message{Command: command.Binary})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeReply(w, reply)
}

// gistFromQuery computes the gist named by ?layer= and ?buckets=, falling
// back to the session defaults.
func (s *Server) gistFromQuery(r *http.Request) (histogram.Gist, int, error) {
	q := r.URL.Query()
	layer, buckets := s.engine.GistLayer(), 0
	var err error
	if v := q.Get("layer"); v != "" {
		if layer, err = strconv.Atoi(v); err != nil {
			return histogram.Gist{}, http.StatusBadRequest, fmt.Errorf("invalid layer %q", v)
		}
	}
	if v := q.Get("buckets"); v != "" {
		if buckets, err = strconv.Atoi(v); err != nil || buckets < 1 {
			return histogram.Gist{}, http.StatusBadRequest, fmt.Errorf("invalid buckets %q", v)
		}
	}
	g, err := s.engine.Gist(layer, buckets)
	return g, http.StatusInternalServerError, err
}

func (s *Server) handleGist(w http.ResponseWriter, r *http.Request) {
	g, status, err := s.gistFromQuery(r)
	if err != nil {
		writeJSONError(w, status, err.Error())
		return
	}
	body, err := json.Marshal(g)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeReply(w, command.Reply{ContentType: command.ContentJSON, Body: body})
}

func (s *Server) handleGistChart(w http.ResponseWriter, r *http.Request) {
	g, status, err := s.gistFromQuery(r)
	if err != nil {
		writeJSONError(w, status, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := histogram.RenderChart(&buf, g, "value distribution"); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeReply(w, command.Reply{ContentType: "image/png", Body: buf.Bytes()})
}
