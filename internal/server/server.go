// Package server publishes the artifact library over HTTP.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/alkime/wardrobe/internal/config"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

// Server represents the HTTP server.
type Server struct {
	config  *config.Config
	library *artifact.Library
	logger  *slog.Logger
	router  *gin.Engine
}

// New creates a new Server serving library.
func New(cfg *config.Config, library *artifact.Library, logger *slog.Logger) (*Server, error) {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())

	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	logger.Debug("Configured trusted proxies", "proxies", cfg.TrustedProxies)

	server := &Server{
		config:  cfg,
		library: library,
		logger:  logger,
		router:  router,
	}

	setupSecurityMiddleware(router, cfg, logger)
	server.setupRoutes()

	return server, nil
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run starts the HTTP server.
func Run(s *Server) error {
	s.logger.Info("Server listening", "port", s.config.Port, "library", s.library.Dir())
	return s.router.Run(":" + s.config.Port)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api/v1")
	{
		api.GET("/artifacts", s.handleListArtifacts)
		api.GET("/artifacts/:name", s.handleGetArtifact)
		api.GET("/artifacts/:name/download", s.handleDownloadArtifact)
	}

	// raw files for viewers that fetch the model directly
	s.router.Use(static.Serve("/artifacts", static.LocalFile(s.library.Dir(), false)))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "wardrobe",
	})
}

func (s *Server) handleListArtifacts(c *gin.Context) {
	entries, err := s.library.List()
	if err != nil {
		s.logger.Error("Failed to list artifacts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list artifacts"})

		return
	}

	c.JSON(http.StatusOK, gin.H{"artifacts": entries})
}

func (s *Server) handleGetArtifact(c *gin.Context) {
	entry, ok := s.lookup(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, entry)
}

// handleDownloadArtifact sends the file as an attachment under its library name.
func (s *Server) handleDownloadArtifact(c *gin.Context) {
	entry, ok := s.lookup(c)
	if !ok {
		return
	}

	s.logger.Info("Artifact downloaded", "name", entry.Name, "size", entry.Size)
	c.FileAttachment(s.library.Path(entry.Name), entry.Name)
}

func (s *Server) lookup(c *gin.Context) (artifact.Entry, bool) {
	entry, err := s.library.Get(c.Param("name"))

	switch {
	case err == nil:
		return entry, true
	case errors.Is(err, artifact.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
	case errors.Is(err, artifact.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid artifact name"})
	default:
		s.logger.Error("Failed to read artifact", "name", c.Param("name"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read artifact"})
	}

	return artifact.Entry{}, false
}
