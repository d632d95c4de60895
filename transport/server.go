package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"

	"github.com/f3rmion/keyserver/job"
	"github.com/f3rmion/keyserver/logger"
)

// ServerConfig tunes a Server.
type ServerConfig struct {
	// CompressAbove is the response size from which bodies are compressed
	// for clients that accept zstd. Zero selects DefaultCompressAbove,
	// negative disables compression.
	CompressAbove int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server routes job requests to local responders.
type Server struct {
	router        chi.Router
	compressAbove int
	log           *slog.Logger
	ready         atomic.Bool
}

// NewServer creates a router with the standard middleware and health
// endpoints. Jobs are added with Handle.
func NewServer(cfg ServerConfig) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	compressAbove := cfg.CompressAbove
	if compressAbove == 0 {
		compressAbove = DefaultCompressAbove
	}

	s := &Server{
		router:        chi.NewRouter(),
		compressAbove: compressAbove,
		log:           log,
	}
	s.ready.Store(true)

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/livez", s.handleLiveness)
	s.router.Get("/readyz", s.handleReadiness)

	return s
}

// Router exposes the router for extra routes such as admin endpoints.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetReady toggles the readiness probe, e.g. while draining on shutdown.
func (s *Server) SetReady(ready bool) {
	if s.ready.Swap(ready) != ready {
		s.log.Info("readiness changed", "ready", ready)
	}
}

// Handle mounts responder as job kind at POST /jobs/<kind>.
func Handle[Req, Resp any](s *Server, kind string, responder job.Responder[Req, Resp], reqCodec Codec[Req], respCodec Codec[Resp]) {
	h := &jobHandler[Req, Resp]{
		kind:      kind,
		responder: responder,
		reqCodec:  reqCodec,
		respCodec: respCodec,
		server:    s,
		log:       s.log.With("job", kind),
	}
	s.router.With(s.requestLogger).Post(JobPath(kind), h.serve)
}

type jobHandler[Req, Resp any] struct {
	kind      string
	responder job.Responder[Req, Resp]
	reqCodec  Codec[Req]
	respCodec Codec[Resp]
	server    *Server
	log       *slog.Logger
}

func (h *jobHandler[Req, Resp]) serve(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read request", http.StatusBadRequest)
		return
	}

	data, err := decompressBody(raw, r.Header.Get("Content-Encoding"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}

	req, err := h.reqCodec.Decode(data)
	if err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}

	action, err := job.Serve(r.Context(), h.responder, req)
	if err != nil {
		h.log.Error("request failed", "err", err)
		http.Error(w, "request failed", http.StatusInternalServerError)
		return
	}

	payload, err := h.respCodec.Encode(action.Response)
	if err != nil {
		h.log.Error("encode response", "err", err)
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}

	threshold := -1
	if acceptsZstd(r.Header.Get("Accept-Encoding")) {
		threshold = h.server.compressAbove
	}
	body, compressed, err := compressBody(payload, threshold)
	if err != nil {
		h.log.Error("compress response", "err", err)
		http.Error(w, "compress response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if compressed {
		w.Header().Set("Content-Encoding", encodingZstd)
	}

	status := http.StatusOK
	if action.Rejected() {
		status = http.StatusConflict
	}
	w.WriteHeader(status)
	w.Write(body)
}

// requestLogger logs one line per job request through the server logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
			logger.Timed(start),
		)
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
