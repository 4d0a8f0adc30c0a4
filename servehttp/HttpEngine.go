package servehttp

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StartHTTPServer serves engine until SIGINT or SIGTERM, then shuts down within shutdownTimeout.
func StartHTTPServer(engine *gin.Engine, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	failed := make(chan error, 1)
	go func() {
		logrus.Infof("http server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			failed <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	// kill (no param) default send syscall.SIGTERM
	// kill -2 send syscall.SIGINT
	// kill -9 send syscall.SIGKILL, can't be caught
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case err := <-failed:
		return err
	case <-quit:
	}
	logrus.Infof("[QUIT] shutdown signal has been received, the service will exit in %s.", shutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// graceful shutdown http.Server
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logrus.Info("[QUIT] http server is shutdown gracefully, new request will be rejected.")
	return nil
}
