package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kafitramarna/replika/internal/config"
	"github.com/kafitramarna/replika/internal/connector"
	"github.com/kafitramarna/replika/internal/logger"
	"github.com/kafitramarna/replika/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the management API server
type Server struct {
	router     *gin.Engine
	config     *config.APIConfig
	connector  *connector.Connector
	httpServer *http.Server
}

// NewServer creates a new API server
func NewServer(cfg *config.APIConfig, conn *connector.Connector) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		router:    gin.New(),
		config:    cfg,
		connector: conn,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())

	// Prometheus metrics endpoint (public - no auth for scraping)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check (public)
	s.router.GET("/health", s.handleHealth)

	// API v1 routes (protected)
	v1 := s.router.Group("/api/v1")
	v1.Use(s.authMiddleware())
	v1.Use(s.metricsMiddleware())
	v1.Use(s.loggingMiddleware())
	{
		v1.GET("/connection/status", s.handleConnectionStatus)
		v1.POST("/connection/reconnect", s.handleReconnect)
		v1.POST("/connection/disconnect", s.handleDisconnect)
	}
}

// authMiddleware validates the API key
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("Authorization")

		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
			})
			c.Abort()
			return
		}

		// Remove "Bearer " prefix if present
		if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
			apiKey = apiKey[7:]
		}

		if apiKey != s.config.APIKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// metricsMiddleware tracks API request metrics
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		status := fmt.Sprintf("%d", c.Writer.Status())
		metrics.RecordAPIRequest(c.FullPath(), c.Request.Method, status)
	}
}

// loggingMiddleware logs API requests
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"status", status,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", time.Since(start),
		}

		if status >= 500 {
			logger.Error("API request", fields...)
		} else if status >= 400 {
			logger.Warn("API request", fields...)
		} else {
			logger.Info("API request", fields...)
		}
	}
}

// Health check handler
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	if !s.connector.IsConnected() {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
	})
}

// Connection status handler
func (s *Server) handleConnectionStatus(c *gin.Context) {
	resp := gin.H{
		"address":   s.connector.Address(),
		"state":     s.connector.State().String(),
		"connected": s.connector.IsConnected(),
	}
	if g := s.connector.Greeting(); g != nil {
		resp["server_version"] = g.ServerVersion
		resp["connection_id"] = g.ConnectionID
	}
	c.JSON(http.StatusOK, resp)
}

// Reconnect handler
func (s *Server) handleReconnect(c *gin.Context) {
	if err := s.connector.Reconnect(); err != nil {
		metrics.RecordError("api")
		c.JSON(http.StatusBadGateway, gin.H{
			"error": fmt.Sprintf("Reconnect failed: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected"})
}

// Disconnect handler
func (s *Server) handleDisconnect(c *gin.Context) {
	if err := s.connector.Disconnect(); err != nil {
		metrics.RecordError("api")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Disconnect failed: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

// Start starts the API server (blocking)
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("API server listening", "address", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
