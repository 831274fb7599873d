// Package api exposes the menu engineering service over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tmc/langchaingo/llms"

	"chefia/internal/agents"
	"chefia/internal/auth"
	"chefia/internal/config"
	"chefia/internal/llm"
	"chefia/internal/menu"
	"chefia/internal/monitoring"
	"chefia/internal/session"
	"chefia/internal/storage"
)

// apiKeyHeader lets a client use its own provider key for one request.
const apiKeyHeader = "X-LLM-API-Key"

// Resolver turns a session's provider choice into a model.
type Resolver interface {
	Providers() []llm.Provider
	HasKey(provider string) bool
	Resolve(provider, model, apiKey string) (llms.Model, error)
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	Config     *config.Config
	Sessions   *session.Manager
	Issuer     *auth.Issuer
	Models     Resolver
	Consultant *agents.Consultant
	Archive    storage.ObjectStore
	Monitor    *monitoring.Monitor
	Logger     *slog.Logger
}

// Server handles the HTTP API
type Server struct {
	router     *gin.Engine
	cfg        *config.Config
	sessions   *session.Manager
	issuer     *auth.Issuer
	models     Resolver
	consultant *agents.Consultant
	archive    storage.ObjectStore
	monitor    *monitoring.Monitor
	logger     *slog.Logger
	limiter    *SessionLimiter
	upgrader   websocket.Upgrader
	extract    menu.ExtractOptions
}

// NewServer creates a new API server instance
func NewServer(d Deps) *Server {
	router := gin.New()
	router.MaxMultipartMemory = d.Config.Server.MaxUploadBytes

	s := &Server{
		router:     router,
		cfg:        d.Config,
		sessions:   d.Sessions,
		issuer:     d.Issuer,
		models:     d.Models,
		consultant: d.Consultant,
		archive:    d.Archive,
		monitor:    d.Monitor,
		logger:     d.Logger,
		limiter:    NewSessionLimiter(d.Config.LLM.RequestsPerMinute),
		extract: menu.ExtractOptions{
			TopProfit:     d.Config.Analysis.ReportTopProfit,
			TopPopularity: d.Config.Analysis.ReportTopPopularity,
			BottomProfit:  d.Config.Analysis.ReportBottomProfit,
		},
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	router.Use(gin.Recovery(), s.requestLogger())
	router.Use(cors.New(corsConfig(d.Config.Server.AllowedOrigins)))

	s.setupRoutes()
	return s
}

// Router returns the Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/providers", s.handleListProviders)
		v1.POST("/sessions", s.handleStartSession)
	}

	authed := v1.Group("", s.requireSession())
	{
		authed.GET("/session", s.handleGetSession)
		authed.PATCH("/session", s.handleUpdateSession)

		// Dataset
		authed.POST("/uploads", s.handleUpload)
		authed.GET("/entries", s.handleListEntries)
		authed.POST("/entries", s.handleAddEntry)
		authed.PUT("/entries/:id", s.handleUpdateEntry)
		authed.DELETE("/entries/:id", s.handleDeleteEntry)
		authed.DELETE("/entries", s.handleClearEntries)
		authed.GET("/dashboard", s.handleDashboard)

		// Backup
		authed.GET("/backup/csv", s.handleBackupCSV)
		authed.GET("/backup/xlsx", s.handleBackupXLSX)
		authed.POST("/backup/import", s.handleBackupImport)
		authed.POST("/backup/archive", s.handleBackupArchive)

		// Insights
		authed.GET("/chat/history", s.handleChatHistory)
		limited := authed.Group("", s.rateLimit())
		limited.POST("/report", s.handleReport)
		limited.POST("/chat", s.handleChat)
		authed.GET("/chat/ws", s.handleChatSocket)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", apiKeyHeader},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.cfg.Server.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
