// Package server exposes the bridge to browser clients: credential exchange,
// contract lookup, and the websocket feed endpoint. Handlers stay thin:
// validation and JSON shaping only; the components do the work.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rgupta/feedbridge/internal/api"
	"github.com/rgupta/feedbridge/internal/catalog"
	"github.com/rgupta/feedbridge/internal/config"
	"github.com/rgupta/feedbridge/internal/relay"
)

// Server is the client-facing HTTP surface.
type Server struct {
	cfg      config.ServerConfig
	relayCfg config.RelayConfig
	broker   *api.Client
	resolver *catalog.Resolver
	hub      *relay.Hub
	logger   *slog.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New creates a Server.
func New(cfg config.ServerConfig, relayCfg config.RelayConfig, broker *api.Client, resolver *catalog.Resolver, hub *relay.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		relayCfg: relayCfg,
		broker:   broker,
		resolver: resolver,
		hub:      hub,
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r.Header.Get("Origin"))
		},
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token", s.handleToken)
	mux.HandleFunc("GET /contract", s.handleContract)
	mux.HandleFunc("GET /feed", s.handleFeed)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.cors(mux)
}

// Start begins serving. Blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", "port", s.cfg.Port)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type tokenRequest struct {
	Code string `json:"code"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation", "request body must be JSON with a code field")
		return
	}

	token, err := s.broker.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token})
}

func (s *Server) handleContract(w http.ResponseWriter, r *http.Request) {
	contract, err := s.resolver.Contract(r.Context())
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	if contract.IsZero() {
		// Valid outcome: the catalog simply has no matching contract.
		writeJSONError(w, http.StatusNotFound, "not_found", "no contract matched the configured target")
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFeed upgrades the client connection and opens its relay session.
// The handler blocks until the session ends; returning earlier would cancel
// the request context and with it the session.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		// Rejected before any upstream contact.
		writeJSONError(w, http.StatusUnauthorized, "validation", "bearer token is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	sink := newWSSink(conn, s.relayCfg.SendBuffer, s.relayCfg.WriteTimeout)

	sess, err := s.hub.Open(r.Context(), token, sink)
	if err != nil {
		s.logger.Warn("relay open failed", "error", err)
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "relay rejected"),
			time.Now().Add(time.Second),
		)
		conn.Close()
		return
	}

	// Downstream reads serve only to detect client disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sess.Close()
				return
			}
		}
	}()

	<-sess.Done()
}

// bearerToken pulls the token from the Authorization header or, for browser
// websocket clients that cannot set headers, the token query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// writeAPIError maps broker error kinds onto HTTP statuses.
func (s *Server) writeAPIError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		s.logger.Error("unclassified error", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	status := http.StatusBadGateway
	switch apiErr.Kind {
	case api.KindValidation:
		status = http.StatusBadRequest
	case api.KindConfiguration:
		status = http.StatusInternalServerError
	case api.KindUpstream, api.KindCatalogFetch, api.KindResponseFormat:
		status = http.StatusBadGateway
	}

	writeJSONError(w, status, apiErr.Kind.String(), apiErr.Message)
}

type errorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Kind: kind, Error: msg})
}

// cors applies the configured allowed origins to every route.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return len(s.cfg.AllowedOrigins) == 0
}
