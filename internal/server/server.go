// Package server assembles the HTTP surface: the /api routes, static client
// hosting or the client dev proxy, health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lyric-companion/backend/api/handlers"
	"github.com/lyric-companion/backend/internal/config"
	"github.com/lyric-companion/backend/internal/files"
	"github.com/lyric-companion/backend/internal/logging"
	"github.com/lyric-companion/backend/internal/metrics"
	"github.com/lyric-companion/backend/internal/session"
	"github.com/lyric-companion/backend/internal/ws"
)

const apiCacheControl = "no-store, no-cache, max-age=0, must-revalidate, proxy-revalidate"

// Deps are the services the HTTP surface exposes.
type Deps struct {
	Hub      *ws.Hub
	Sessions *session.Manager
	Content  *files.Store
	Text     *files.Store
	Options  *config.ClientOptions
	Metrics  *metrics.Collector
	// Shutdown raises the process-wide shutdown. It must be idempotent.
	Shutdown func()
	Version  string
	License  string
}

// Server owns the router and the underlying http.Server.
type Server struct {
	cfg        config.ServerConfig
	logger     *zap.Logger
	router     *gin.Engine
	httpServer *http.Server
}

// New builds the router for cfg. It does not start listening.
func New(cfg config.ServerConfig, deps Deps, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger.Named("http"),
	}

	router, err := s.buildRouter(deps)
	if err != nil {
		return nil, err
	}
	s.router = router
	s.httpServer = &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until Shutdown. It never returns
// http.ErrServerClosed.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("HTTP server listening", zap.String("address", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Upgraded
// WebSocket connections are not tracked here; the hub closes those.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) buildRouter(deps Deps) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.Middleware(s.logger))
	if len(s.cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.CORSAllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	router.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/api/state", "/metrics"})))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api")
	api.Use(noStore())
	{
		handlers.NewStateHandler(deps.Hub).RegisterRoutes(api)
		handlers.NewServerInfoHandler(deps.Version, deps.License, deps.Hub, deps.Sessions).RegisterRoutes(api)
		handlers.NewShutdownHandler(deps.Shutdown).RegisterRoutes(api)
		handlers.NewConfigHandler(deps.Options).RegisterRoutes(api)
		handlers.NewFileHandler(deps.Content, "/content").RegisterRoutes(api)
		handlers.NewFileHandler(deps.Text, "/text").RegisterRoutes(api)
		if deps.Sessions != nil {
			handlers.NewSessionHandler(deps.Sessions).RegisterRoutes(api)
		}
	}

	var client gin.HandlerFunc
	if s.cfg.ClientProxyURL != "" {
		proxy, err := newClientProxy(s.cfg.ClientProxyURL, s.logger)
		if err != nil {
			return nil, err
		}
		client = gin.WrapH(proxy)
		s.logger.Info("proxying client requests", zap.String("target", s.cfg.ClientProxyURL))
	} else {
		if !indexExists(s.cfg.StaticFileRoot, s.cfg.StaticFileIndex) {
			s.logger.Warn("client build not found, static requests will fail",
				zap.String("root", s.cfg.StaticFileRoot),
				zap.String("index", s.cfg.StaticFileIndex))
		}
		client = staticHandler(s.cfg.StaticFileRoot, s.cfg.StaticFileIndex, s.cfg.HTTPCachingMaxAge)
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.URL.Path == "/api" {
			c.Header("Cache-Control", apiCacheControl)
			c.JSON(http.StatusNotFound, handlers.ErrorResponse{
				Error: handlers.ErrorDetail{Code: "NOT_FOUND", Message: "No such endpoint"},
			})
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusMethodNotAllowed)
			return
		}
		client(c)
	})

	return router, nil
}

// noStore marks API responses as uncacheable unless a handler says otherwise.
func noStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Writer.Header().Get("Cache-Control") == "" {
			c.Header("Cache-Control", apiCacheControl)
		}
		c.Next()
	}
}
