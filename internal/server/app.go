// Package server exposes the account and conversation services over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fenggwsx/NovaMind/internal/auth"
	"github.com/fenggwsx/NovaMind/internal/completion"
	"github.com/fenggwsx/NovaMind/internal/config"
	"github.com/fenggwsx/NovaMind/internal/service"
	"github.com/fenggwsx/NovaMind/internal/storage"
)

// App wires the HTTP routes to the account and thread services.
type App struct {
	cfg      config.ServerConfig
	store    storage.Store
	accounts *service.Accounts
	threads  *service.Threads
	tokens   *auth.TokenIssuer
	limiters *limiterPool
	logger   *slog.Logger
	engine   *gin.Engine

	server    *http.Server
	closeOnce sync.Once
}

// NewApp constructs a server instance using the provided dependencies.
func NewApp(cfg config.ServerConfig, store storage.Store, completer completion.Client, logger *slog.Logger) *App {
	a := &App{
		cfg:      cfg,
		store:    store,
		accounts: service.NewAccounts(store, auth.NewPasswordHasher(cfg.BcryptCost), logger),
		threads:  service.NewThreads(store, completer, logger),
		tokens:   auth.NewTokenIssuer(cfg.JWT),
		limiters: newLimiterPool(cfg.RateLimit),
		logger:   logger,
	}
	a.engine = a.routes()
	return a
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.engine
}

func (a *App) routes() *gin.Engine {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), a.requestLogger(), recordMetrics(), allowCORS())
	r.MaxMultipartMemory = a.cfg.Uploads.MaxBytes

	r.GET("/test", a.handleTest)
	r.GET("/health", a.handleHealth)
	r.GET("/readyz", a.handleReady)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	authGroup := api.Group("/auth", a.rateLimit())
	authGroup.POST("/register", a.handleRegister)
	authGroup.POST("/login", a.handleLogin)
	authGroup.POST("/guest", a.handleGuest)
	api.GET("/auth/profile/:email", a.handleProfile)

	scoped := api.Group("", a.bearerClaims())
	scoped.GET("/thread", a.handleListThreads)
	scoped.GET("/thread/:threadId", a.handleThreadMessages)
	scoped.DELETE("/thread/:threadId", a.handleDeleteThread)
	scoped.POST("/chat", a.handleChat)
	scoped.POST("/analyze-image", a.handleAnalyzeImage)

	return r
}

// Run migrates the store and serves HTTP until the context is canceled,
// then drains in-flight requests within the shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	a.server = &http.Server{
		Addr:         a.cfg.ListenAddr,
		Handler:      a.engine,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.ListenAddr, "env", a.cfg.Env)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	var shutdownErr error
	a.closeOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down http server", "timeout", a.cfg.ShutdownTimeout)
		shutdownErr = a.server.Shutdown(shutdownCtx)
	})
	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}
	return <-errCh
}
