package web

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cjeanneret/CamGo/internal/debug"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
	engine   *gin.Engine
}

// StaticFS returns the embedded static files rooted at static/.
func StaticFS() fs.FS {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("web: failed to sub static fs: " + err.Error())
	}
	return subFS
}

// NewServer creates a server for addr that serves h and the Prometheus metrics.
func NewServer(addr string, h *Handlers) *Server {
	if debug.Level() < 3 {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	if debug.IsEnabled(3) {
		engine.Use(gin.Logger())
	}
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(engine)

	return &Server{
		addr:     addr,
		handlers: h,
		engine:   engine,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
