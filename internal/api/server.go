package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/provider"
)

// Server represents the provider API server the test runner talks to.
type Server struct {
	engine   *gin.Engine
	server   *http.Server
	handlers *APIHandlers
}

// ServerConfig contains configuration for the API server.
type ServerConfig struct {
	Port     string
	Debug    bool
	Provider *provider.Provider
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig) *Server {
	// Set gin mode
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create handlers
	handlers := NewAPIHandlers(config.Provider, config.Debug)

	// Create gin engine
	engine := gin.New()

	// Add middleware
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	// Create server instance
	s := &Server{
		engine:   engine,
		handlers: handlers,
	}

	// Setup routes
	s.setupRoutes()

	// Create HTTP server
	s.server = &http.Server{
		Addr:    ":" + config.Port,
		Handler: engine,
	}

	return s
}

// setupRoutes configures the provider routes.
func (s *Server) setupRoutes() {
	v1 := s.engine.Group("/v1")
	{
		v1.GET("/browsers", s.handlers.Browsers)
		v1.POST("/sessions", s.handlers.OpenBrowser)
		v1.DELETE("/sessions/:id", s.handlers.CloseBrowser)
		v1.POST("/sessions/:id/resize", s.handlers.ResizeWindow)
		v1.POST("/sessions/:id/maximize", s.handlers.MaximizeWindow)
		v1.POST("/sessions/:id/screenshot", s.handlers.TakeScreenshot)
		v1.POST("/sessions/:id/status", s.handlers.ReportJobResult)
	}

	// Root endpoint
	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "LambdaTest Browser Provider",
			"endpoints": []string{
				"GET /v1/browsers",
				"POST /v1/sessions",
				"DELETE /v1/sessions/:id",
				"POST /v1/sessions/:id/resize",
				"POST /v1/sessions/:id/maximize",
				"POST /v1/sessions/:id/screenshot",
				"POST /v1/sessions/:id/status",
			},
		})
	})
}

// Start starts the API server.
func (s *Server) Start() error {
	log.Debugf("Starting API server on %s", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %v", err)
	}
	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("Stopping API server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %v", err)
	}

	log.Debug("API server stopped")
	return nil
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
