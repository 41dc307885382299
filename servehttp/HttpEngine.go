package servehttp

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docflow/bizerror"
	"docflow/infra/tracing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 3 * time.Second

// NewHttpEngine creates the router with the middlewares shared by every route and a root endpoint
// answering the service name.
func NewHttpEngine(serviceName string) *gin.Engine {
	engine := gin.Default()
	engine.Use(tracing.TracingIngress(), bizerror.ErrorHandling())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, serviceName)
	})
	return engine
}

// StartHTTPServer serves until SIGINT or SIGTERM, then shuts the server down gracefully.
func StartHTTPServer(addr string, engine http.Handler) {
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("listen: %v", err)
		}
	}()
	logrus.Infof("http server listening on %s", addr)

	quit := make(chan os.Signal, 1)
	// kill -9 can't be caught
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Infof("[QUIT] shutdown signal has been received, the service will exit in %v", shutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("[QUIT] http server shutdown failed: %v", err)
		return
	}
	logrus.Info("[QUIT] http server is shutdown gracefully")
}
