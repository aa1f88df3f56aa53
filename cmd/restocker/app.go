package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/estoquel/restocker/internal/db"
	"github.com/estoquel/restocker/internal/handlers"
	"github.com/estoquel/restocker/internal/handlers/middleware"
	"github.com/estoquel/restocker/internal/logger"
	"github.com/estoquel/restocker/internal/meli"
	"github.com/estoquel/restocker/internal/notify"
	"github.com/estoquel/restocker/internal/session"
	"github.com/estoquel/restocker/internal/session/memory"
	"github.com/estoquel/restocker/internal/session/postgres"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Session storage: postgres when a DSN is configured, otherwise the
	// session lives only as long as the process
	var store session.Store
	switch c.DatabaseDSN {
	case "":
		logger.Warn("No database configured, marketplace session will not survive restarts")
		store = memory.NewStore()
	default:
		pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
		}
		store = postgres.NewStore(pool)
	}

	// The token proxy is served by this very process, so the client calls
	// back into it over the loopback unless configured otherwise
	proxyURL := c.TokenProxyURL
	if proxyURL == "" {
		proxyURL = "http://" + c.ListenAddr + "/api/meli/token"
	}

	notifier := &notify.LogNotifier{Logger: logger}

	client, err := meli.NewClient(ctx, meli.Config{
		ClientID:      c.MeliAppID,
		Origin:        c.Origin,
		TokenProxyURL: proxyURL,
		AuthURL:       c.MeliAuthURL,
		APIURL:        c.MeliAPIURL,
		SecretKey:     c.SecretKey,
	}, store, notifier, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating marketplace client. Err: %w", err)
	}

	tokenProxy := handlers.NewTokenProxy(handlers.TokenProxyConfig{
		AppID:        c.MeliAppID,
		ClientSecret: c.MeliClientSecret,
		TokenURL:     c.MeliTokenURL,
	}, logger)
	authHandler := handlers.NewAuth(client)
	productsHandler := handlers.NewProducts(client)

	mux := handlers.NewRouter(
		tokenProxy,
		authHandler,
		productsHandler,
		middleware.LoggerMiddleware(logger),
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
