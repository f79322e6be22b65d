package rpcapi

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/token-indexer/internal/query"
)

// requestIDHeader is the header a caller can set to propagate its own
// correlation ID; one is minted when absent.
const requestIDHeader = "X-Request-Id"

type requestIDCtxKey struct{}

// Server is the HTTP front door: a chi router exposing the JSON-RPC 2.0
// dispatcher at /rpc, plus GET /health (liveness — always 200 while the
// process is alive) and GET /ready (readiness — backed by a DB check) for
// an orchestrator to probe separately.
type Server struct {
	dispatcher *Dispatcher
	api        *query.API
	router     *chi.Mux
}

// NewServer builds a Server with CORS and request-logging middleware
// installed, adapted from walletserver/middleware/logger.go's request-timing
// middleware.
func NewServer(api *query.API, corsOrigins []string) *Server {
	s := &Server{
		dispatcher: NewDispatcher(api),
		api:        api,
	}

	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)

	r.Post("/rpc", s.handleRPC)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	s.router = r
	return s
}

// ServeHTTP lets Server be used directly with http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger times each request and logs the request ID, method, path,
// and duration via logrus, extending the wallet server's method/path/duration
// line with the request-correlation ID.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logrus.Infof("%s %s %s %s", requestIDFrom(r.Context()), r.Method, r.RequestURI, time.Since(start))
	})
}

// requestID assigns a correlation ID to every request, honoring one the
// caller already supplied in X-Request-Id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDCtxKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDCtxKey{}).(string); ok {
		return id
	}
	return "-"
}

// recoverer catches a panic in any downstream handler, logs it via logrus,
// and answers with a JSON-RPC internal error instead of crashing the process.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logrus.Errorf("%s panic: %v\n%s", requestIDFrom(r.Context()), rec, debug.Stack())
				writeJSON(w, http.StatusInternalServerError, response{
					JSONRPC: jsonrpcVersion,
					Error:   &rpcError{Code: codeInternal, Message: "internal server error"},
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			JSONRPC: jsonrpcVersion,
			Error:   &rpcError{Code: codeParseError, Message: "invalid JSON: " + err.Error()},
		})
		return
	}
	if req.JSONRPC != jsonrpcVersion || req.Method == "" {
		writeJSON(w, http.StatusBadRequest, response{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Error:   &rpcError{Code: codeInvalidRequest, Message: "invalid JSON-RPC 2.0 envelope"},
		})
		return
	}

	resp := s.dispatcher.Dispatch(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth maps GET /health to the liveness check: 200 whenever the
// process is alive to answer at all. An orchestrator should use this to
// decide whether to restart the pod, never whether to route traffic to it —
// that's what /ready is for.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.api.Liveness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleReady maps GET /ready to the readiness check: 200 when the storage
// pool is reachable, 503 otherwise. An orchestrator should use this to
// decide whether to route traffic to the pod.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.api.Readiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
