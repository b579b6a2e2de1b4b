package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/codecollab-io/codecollab/internal/config"
	"github.com/codecollab-io/codecollab/internal/database"
	"github.com/codecollab-io/codecollab/internal/exec"
	"github.com/codecollab-io/codecollab/internal/relay"
	"github.com/codecollab-io/codecollab/internal/stats"
	"github.com/gorilla/handlers"
)

type CollabApp struct {
	log            *log.Logger
	db             database.AccountRepository
	mux            *http.Server
	relay          *relay.RelayServer
	execClient     *exec.Client
	stats          stats.StatsProvider
	signingKey     []byte
	allowedOrigins []string
}

func NewCollabApp(mux *http.ServeMux, logger *log.Logger, rs *relay.RelayServer, db database.AccountRepository,
	execClient *exec.Client, sp stats.StatsProvider, cfg *config.Config) *CollabApp {
	s := &CollabApp{
		log:            logger,
		db:             db,
		relay:          rs,
		execClient:     execClient,
		stats:          sp,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	sp.RegisterMetric(stats.AuthRejected)

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/health", s.health)
	mux.Handle("POST /api/execute", s.authMiddleware(s.execute))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *CollabApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *CollabApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
