package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"openstay/core/events"
	"openstay/core/state"
	"openstay/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
	codeNotFound       = -32022
	codeForbidden      = -32023
	codeConflict       = -32024
)

// Options configures a Server.
type Options struct {
	Logger *slog.Logger
	// AuthToken is the static bearer token accepted on mutating methods.
	AuthToken string
	// JWTSecret additionally accepts HS256 tokens signed with this secret.
	JWTSecret string
	// RatePerMinute bounds mutating requests per client address. Zero
	// disables rate limiting.
	RatePerMinute int
	// Emitter receives events from committed transitions.
	Emitter events.Emitter
}

// Server exposes the booking ledger transitions over JSON-RPC 2.0.
type Server struct {
	state   *state.Manager
	log     *slog.Logger
	emitter events.Emitter

	authToken     string
	jwtSecret     []byte
	ratePerMinute int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	metrics *observability.ModuleMetrics
}

func NewServer(mgr *state.Manager, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Server{
		state:         mgr,
		log:           logger,
		emitter:       emitter,
		authToken:     strings.TrimSpace(opts.AuthToken),
		jwtSecret:     []byte(strings.TrimSpace(opts.JWTSecret)),
		ratePerMinute: opts.RatePerMinute,
		limiters:      make(map[string]*rate.Limiter),
		metrics:       observability.Metrics(),
	}
}

// Router builds the HTTP surface: the JSON-RPC endpoint plus health and
// metrics endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	requestID := uuid.NewString()
	start := time.Now()
	logger := s.log.With("requestId", requestID, "method", req.Method)

	handler, mutating, ok := s.route(req.Method)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		s.metrics.Observe(req.Method, start, "method_not_found")
		return
	}
	if mutating {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			s.metrics.Observe(req.Method, start, "unauthorized")
			return
		}
		if !s.allowSource(clientSource(r)) {
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
			s.metrics.Observe(req.Method, start, "rate_limited")
			return
		}
	}

	kind := handler(w, req)
	s.metrics.Observe(req.Method, start, kind)
	if kind == "" {
		logger.Info("handled request", "durationMs", time.Since(start).Milliseconds())
	} else {
		logger.Warn("request failed", "kind", kind, "durationMs", time.Since(start).Milliseconds())
	}
}

// route resolves a method name to its handler and whether it mutates state.
func (s *Server) route(method string) (func(http.ResponseWriter, *RPCRequest) string, bool, bool) {
	switch method {
	case "lodging_initializeRegistry":
		return s.handleInitializeRegistry, true, true
	case "lodging_createListing":
		return s.handleCreateListing, true, true
	case "lodging_bookStay":
		return s.handleBookStay, true, true
	case "lodging_confirmCheckout":
		return s.handleConfirmCheckout, true, true
	case "lodging_cancelBooking":
		return s.handleCancelBooking, true, true
	case "lodging_getAllListings":
		return s.handleGetAllListings, false, true
	case "lodging_getListing":
		return s.handleGetListing, false, true
	case "lodging_getBooking":
		return s.handleGetBooking, false, true
	case "lodging_getVault":
		return s.handleGetVault, false, true
	case "lodging_getAccount":
		return s.handleGetAccount, false, true
	default:
		return nil, false, false
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" && len(s.jwtSecret) == 0 {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if s.authToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1 {
		return nil
	}
	if len(s.jwtSecret) > 0 {
		parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err == nil && parsed.Valid {
			return nil
		}
	}
	return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
}

func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) allowSource(source string) bool {
	if s.ratePerMinute <= 0 {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(s.ratePerMinute)/60.0), s.ratePerMinute)
		s.limiters[source] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}
