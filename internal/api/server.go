// Package api exposes the reconciliation workflows over HTTP/JSON.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kitaverein/recon-backend/internal/api/dto"
	"github.com/kitaverein/recon-backend/internal/application/recon"
	"github.com/kitaverein/recon-backend/internal/infrastructure/config"
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

// Server holds the HTTP handler dependencies
type Server struct {
	service *recon.Service
	repo    storage.Repository
	logger  *slog.Logger
}

// NewServer creates the API server
func NewServer(service *recon.Service, repo storage.Repository, logger *slog.Logger) *Server {
	return &Server{
		service: service,
		repo:    repo,
		logger:  logger,
	}
}

// Router builds the gin engine with all routes and middleware attached
func (s *Server) Router(cfg config.ServerConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", s.health)

	api := router.Group("/api")
	{
		api.POST("/import", s.importStatement)
		api.POST("/rescan", s.rescan)

		api.GET("/transactions", s.listTransactions)
		api.GET("/transactions/:id", s.getTransaction)
		api.GET("/transactions/:id/suggestions", s.transactionSuggestions)
		api.POST("/transactions/:id/allocations", s.allocate)
		api.POST("/transactions/:id/unmatch", s.unmatch)
		api.POST("/transactions/:id/dismiss", s.dismiss)

		api.POST("/matches", s.createMatch)
		api.POST("/matches/confirm", s.confirmMatches)

		api.GET("/warnings", s.listWarnings)
		api.POST("/warnings/:id/dismiss", s.dismissWarning)
		api.POST("/warnings/:id/resolve", s.resolveWarning)

		api.GET("/blacklist", s.listBlacklist)
		api.DELETE("/blacklist/:iban", s.removeFromBlacklist)

		api.GET("/fees/:id", s.getFee)

		api.GET("/children/:id/fees", s.listChildFees)
		api.GET("/children/:id/suggestions", s.childSuggestions)
		api.GET("/children/:id/ibans", s.listChildIBANs)
		api.DELETE("/children/:id/ibans/:iban", s.removeChildIBAN)

		api.GET("/batches", s.listBatches)
		api.GET("/batches/:id", s.getBatch)
	}

	return router
}

// requestLogger logs one line per request, skipping health probes
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// writeError maps service errors onto the API error taxonomy
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case recon.IsNotFound(err):
		c.JSON(http.StatusNotFound, dto.NewAPIError(dto.ErrCodeNotFound, err.Error()))
	case recon.IsConflict(err):
		c.JSON(http.StatusConflict, dto.ConflictError(err.Error()))
	case recon.IsValidation(err):
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
	default:
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
	}
}
