// Package api provides HTTP handlers and the main API server logic for
// AtendeBot.
//
// It exposes the chatbot message endpoint (guest and identified callers),
// conversation history, authentication, and the admin dashboard endpoints.
// The API integrates with the flow, intent, store and auth modules.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CompactDigital/AtendeBot/internal/auth"
	"github.com/CompactDigital/AtendeBot/internal/flow"
	"github.com/CompactDigital/AtendeBot/internal/intent"
	"github.com/CompactDigital/AtendeBot/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Opts holds API server construction options.
type Opts struct {
	Addr        string
	JWTSecret   string
	TokenTTL    time.Duration
	IntentsPath string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithJWTSecret sets the bearer-token signing secret.
func WithJWTSecret(secret string) Option {
	return func(o *Opts) { o.JWTSecret = secret }
}

// WithTokenTTL overrides the issued token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TokenTTL = ttl }
}

// WithIntentsPath loads the intent table from a JSON or YAML file instead of
// the embedded default.
func WithIntentsPath(path string) Option {
	return func(o *Opts) { o.IntentsPath = path }
}

// Server holds the wired dependencies behind the HTTP handlers.
type Server struct {
	store      store.Store
	dispatcher *flow.Dispatcher
	tokens     *auth.TokenManager
	hasher     auth.BcryptHasher
}

// NewServer wires a Server over the given collaborators.
func NewServer(st store.Store, matcher *intent.Matcher, tokens *auth.TokenManager) *Server {
	hasher := auth.BcryptHasher{}
	registration := flow.NewRegistrationFlow(st, hasher)
	tickets := flow.NewTicketFlow(st, matcher)
	dispatcher := flow.NewDispatcher(matcher, registration, tickets, st)
	return &Server{store: st, dispatcher: dispatcher, tokens: tokens, hasher: hasher}
}

// Routes builds the HTTP mux for the server.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/auth/login", http.HandlerFunc(s.loginHandler))

	mux.Handle("/chatbot/messages", s.tokens.Optional(http.HandlerFunc(s.messagesHandler)))
	mux.Handle("/chatbot/conversations", s.tokens.Require(http.HandlerFunc(s.conversationsHandler)))
	mux.Handle("/chatbot/history/", s.tokens.Require(http.HandlerFunc(s.historyHandler)))

	adminOnly := func(h http.HandlerFunc) http.Handler {
		return s.tokens.Require(auth.RequireAdmin(h))
	}
	mux.Handle("/admin/users", adminOnly(s.adminUsersHandler))
	mux.Handle("/admin/users/", adminOnly(s.adminUserScopedHandler))
	mux.Handle("/admin/stats", adminOnly(s.adminStatsHandler))
	mux.Handle("/admin/conversations", adminOnly(s.adminConversationsHandler))
	mux.Handle("/admin/conversations/", adminOnly(s.adminConversationMessagesHandler))
	mux.Handle("/admin/tickets", adminOnly(s.adminTicketsHandler))

	return mux
}

// Run constructs the store, intent table and server from options and blocks
// serving HTTP.
func Run(storeOpts []store.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.JWTSecret == "" {
		slog.Error("API JWT secret not set")
		return fmt.Errorf("JWT secret not set")
	}

	st, err := store.NewStore(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	matcher := intent.NewMatcher()
	if cfg.IntentsPath != "" {
		matcher, err = intent.NewMatcherFromFile(cfg.IntentsPath)
		if err != nil {
			return fmt.Errorf("failed to load intent table: %w", err)
		}
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	server := NewServer(st, matcher, tokens)

	slog.Info("AtendeBot API listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, server.Routes()); err != nil {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}
