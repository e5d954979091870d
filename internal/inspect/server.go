// Package inspect provides a read-only HTTP view into a running
// simulation: current status, the live agent tree, a tail of recent
// transactions, and a websocket feed of phase events as they occur. It has
// no bearing on simulation semantics and cannot mutate scheduler state --
// grounded on the teacher's internal/server package (chi router, cors
// middleware, recoverer/request-id/compress stack) adapted down to a
// read-only surface.
package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/cyclusctx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"
)

// Config carries everything Server needs to answer requests about a run.
// Ctx and Tree are read concurrently with the simulation loop; every
// accessor this package calls on them is already safe for that (Context's
// own mutex, Tree's own mutex).
type Config struct {
	Port         int
	Logger       zerolog.Logger
	Ctx          *cyclusctx.Context
	Tree         *agent.Tree
	Hub          *Hub
	Transactions *Log
}

// Server is the read-only HTTP/websocket inspector for one simulation run.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	ctx    *cyclusctx.Context
	tree   *agent.Tree
	hub    *Hub
	txlog  *Log
}

// New builds a Server listening on cfg.Port, wiring the same middleware
// stack the teacher's HTTP server uses (recoverer, request id, CORS)
// trimmed to what a read-only inspector needs.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Logger.With().Str("component", "inspect").Logger(),
		ctx:    cfg.Ctx,
		tree:   cfg.Tree,
		hub:    cfg.Hub,
		txlog:  cfg.Transactions,
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	s.router.Get("/status", s.handleStatus)
	s.router.Get("/agents", s.handleAgents)
	s.router.Get("/transactions", s.handleTransactions)
	s.router.Get("/live", s.handleLive)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // /live holds the connection open indefinitely
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start runs the inspector's HTTP server, blocking until it stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting inspector")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the inspector's HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type statusResponse struct {
	Time       int    `json:"time"`
	Duration   int    `json:"duration"`
	StartYear  int    `json:"start_year"`
	StartMonth int    `json:"start_month"`
	Running    bool   `json:"running"`
	SimHandle  string `json:"sim_handle"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Time:       s.ctx.Time(),
		Duration:   s.ctx.Duration(),
		StartYear:  s.ctx.StartYear(),
		StartMonth: s.ctx.StartMonth(),
		Running:    s.ctx.Time() < s.ctx.Duration(),
		SimHandle:  s.ctx.SimHandle().String(),
	}
	writeJSON(w, resp)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.tree.Snapshots())
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	since := int64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
		since = parsed
	}
	if s.txlog == nil {
		writeJSON(w, []TransactionRecord{})
		return
	}
	writeJSON(w, s.txlog.Since(since))
}

// handleLive upgrades to a websocket and streams msgpack-framed PhaseEvent
// frames until the client disconnects or the hub subscription is dropped.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // read-only telemetry, not served cross-origin with credentials
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ch, cancel := s.hub.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "client disconnected")
			return
		case ev, ok := <-ch:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "hub closed")
				return
			}
			data, err := msgpack.Marshal(ev)
			if err != nil {
				s.log.Error().Err(err).Msg("marshal phase event")
				continue
			}
			if err := conn.Write(ctx, websocket.MessageBinary, data); err != nil {
				s.log.Debug().Err(err).Msg("live stream write failed, dropping subscriber")
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
