package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/codecollab-io/codecollab/internal/api"
	"github.com/codecollab-io/codecollab/internal/config"
	"github.com/codecollab-io/codecollab/internal/database"
	"github.com/codecollab-io/codecollab/internal/exec"
	"github.com/codecollab-io/codecollab/internal/relay"
	"github.com/codecollab-io/codecollab/internal/stats"
	_ "github.com/lib/pq"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr             string
	dsn              string
	signingKey       string
	allowedOrigins   stringSliceFlag
	execURL          string
	execClientId     string
	execClientSecret string
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&execURL, "exec-url", "https://api.jdoodle.com/v1/execute", "code execution backend endpoint")
	flag.StringVar(&execClientId, "exec-client-id", os.Getenv("EXEC_CLIENT_ID"), "code execution backend client id")
	flag.StringVar(&execClientSecret, "exec-client-secret", os.Getenv("EXEC_CLIENT_SECRET"), "code execution backend client secret")
	flag.Parse()

	logger := log.New(os.Stderr, "[codecollab] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, execURL, execClientId, execClientSecret)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgAccountRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("migrate:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	relayServer, err := relay.NewRelayServer(logger, statsUpdater)
	if err != nil {
		logger.Fatal("new relay server:", err)
	}

	execClient := exec.NewClient(cfg.ExecURL, cfg.ExecClientId, cfg.ExecClientSecret, logger)

	srv := api.NewCollabApp(mux, logger, relayServer, dbConn, execClient, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go relayServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down relay server...")
	if err := relayServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("relay server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
