// Package api exposes a read-mostly HTTP surface over the running engine:
// balances, positions, trade history and strategy configuration.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rsi-trend-trader/internal/auth"
	"rsi-trend-trader/internal/logging"
	"rsi-trend-trader/internal/users"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ProductionMode bool
	AdminUser      string
	AdminHash      string
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig
	registry   *users.Registry
	jwtManager *auth.JWTManager
	log        *logging.Logger
}

// NewServer creates the API server and registers routes.
func NewServer(cfg ServerConfig, registry *users.Registry, jwtManager *auth.JWTManager, log *logging.Logger) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:     router,
		config:     cfg,
		registry:   registry,
		jwtManager: jwtManager,
		log:        log.WithComponent("api"),
	}
	s.setupRoutes()
	return s
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/api/v1/login", s.handleLogin)

	v1 := s.router.Group("/api/v1")
	v1.Use(auth.Middleware(s.jwtManager))
	{
		v1.GET("/users", s.handleListUsers)
		v1.GET("/users/:id/balance", s.handleBalance)
		v1.GET("/users/:id/positions", s.handlePositions)
		v1.GET("/users/:id/history", s.handleHistory)
		v1.GET("/users/:id/strategies", s.handleStrategies)
	}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.log.Info("API server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
