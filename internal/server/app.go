package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deposit-core/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Config struct {
	HttpPort string
	// ShutdownTimeout bounds in-flight requests (webhook transactions included) on exit.
	ShutdownTimeout time.Duration
}

type App struct {
	httpServer *http.Server
	timeout    time.Duration
	onStop     []func()
}

func New(cfg Config, httpHandler *gin.Engine) *App {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &App{
		httpServer: &http.Server{
			Addr:              ":" + cfg.HttpPort,
			Handler:           httpHandler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		timeout: cfg.ShutdownTimeout,
	}
}

// OnStop registers a hook run after the HTTP server has drained, in reverse order.
func (a *App) OnStop(fn func()) {
	a.onStop = append(a.onStop, fn)
}

// Run 启动服务并阻塞，直到收到关闭信号
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.run(ctx)
}

func (a *App) run(ctx context.Context) {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-errCh:
		logger.Error("HTTP Server failure", zap.Error(err))
	}

	// Graceful Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	for i := len(a.onStop) - 1; i >= 0; i-- {
		a.onStop[i]()
	}
	logger.Info("Server exited properly")
}
