// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/gamebot/internal/app"
	"github.com/okian/gamebot/internal/domain/types"
	"github.com/okian/gamebot/pkg/logger"
)

// Default limits.
const (
	defaultMaxPayloadBytes     = 5 << 20
	defaultMaxLeaderboardLimit = 100
	defaultLeaderboardLimit    = 10
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	WebhookDependencies
	LedgerDependencies
	LeaderboardDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	webhookHandler     *WebhookHandler
	ledgerHandler      *LedgerHandler
	leaderboardHandler *LeaderboardHandler
	statsHandler       *StatsHandler
	healthHandler      *HealthHandler
}

type options struct {
	secret          []byte
	maxPayloadBytes int64
	maxLimit        int
	logger          logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*options)

// WithWebhookSecret enables X-Hub-Signature-256 verification.
func WithWebhookSecret(secret string) Option {
	return func(o *options) {
		if secret != "" {
			o.secret = []byte(secret)
		}
	}
}

// WithMaxPayloadBytes caps the webhook request body.
func WithMaxPayloadBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPayloadBytes = n
		}
	}
}

// WithMaxLeaderboardLimit caps GET /leaderboard limit.
func WithMaxLeaderboardLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := options{
		maxPayloadBytes: defaultMaxPayloadBytes,
		maxLimit:        defaultMaxLeaderboardLimit,
		logger:          logger.Named("api"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		webhookHandler:     NewWebhookHandler(deps, o.secret, o.maxPayloadBytes, o.logger),
		ledgerHandler:      NewLedgerHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, o.maxLimit),
		statsHandler:       NewStatsHandler(statsProvider),
		healthHandler:      NewHealthHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook", instrument("webhook", s.webhookHandler.HandleWebhook))
	mux.HandleFunc("GET /ledger/{owner}/{repo}/{username}", instrument("ledger", s.ledgerHandler.HandleGetEntry))
	mux.HandleFunc("GET /leaderboard/{owner}/{repo}", instrument("leaderboard", s.leaderboardHandler.HandleGetLeaderboard))
	mux.HandleFunc("GET /stats", instrument("stats", s.statsHandler.HandleStats))
	mux.HandleFunc("GET /healthz", instrument("healthz", s.healthHandler.HandleHealth))
	mux.Handle("GET /metrics", s.healthHandler.Metrics())
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeAck(w http.ResponseWriter, status int, ack service.AckStatus, deliveryID string) {
	writeJSON(w, status, types.Ack{Status: string(ack), DeliveryID: deliveryID})
}

// repoName joins the owner and repo path values into a full name.
func repoName(r *http.Request) string {
	return r.PathValue("owner") + "/" + r.PathValue("repo")
}
