package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qos-policy-agent/agent/pkg/api/handlers"
	"github.com/qos-policy-agent/agent/pkg/api/models"
	log "github.com/sirupsen/logrus"
)

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Create handlers
	healthHandler := handlers.NewHealthHandler(s.dataPlane, s.policyManager, s.config.Interface, s.config.Version)
	policyHandler := handlers.NewPolicyHandler(s.policyManager)
	statsHandler := handlers.NewStatisticsHandler(s.dataPlane)

	// API v1 group
	v1 := s.router.Group("/api/v1")
	{
		// Health and status endpoints
		v1.GET("/health", healthHandler.GetHealth)
		v1.GET("/status", healthHandler.GetStatus)

		// Policy management endpoints
		policies := v1.Group("/policies")
		{
			policies.POST("", policyHandler.CreatePolicy)
			policies.GET("", policyHandler.ListPolicies)
			policies.GET("/:id", policyHandler.GetPolicy)
			policies.PUT("/:id", policyHandler.UpdatePolicy)
			policies.DELETE("/:id", policyHandler.DeletePolicy)
		}

		// Statistics endpoints
		stats := v1.Group("/stats")
		{
			stats.GET("", statsHandler.GetAllStats)
			stats.GET("/packets", statsHandler.GetPacketStats)
			stats.GET("/policies", statsHandler.GetPolicyStats)
		}

		// Configuration endpoints
		config := v1.Group("/config")
		{
			config.GET("", s.handleGetConfig)
			config.PUT("", s.handleUpdateConfig)
		}
	}
}

// handleGetConfig returns the active agent configuration.
func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, models.ConfigResponse{
		Interface:     s.config.Interface,
		BPFObjectPath: s.config.BPFObjectPath,
		StoragePath:   s.config.StoragePath,
		LogLevel:      s.config.LogLevel,
		APIHost:       s.config.Host,
		APIPort:       s.config.Port,
	})
}

// handleUpdateConfig applies runtime-adjustable settings. Only the log
// level can change while the agent is running; everything else requires a
// restart.
func (s *Server) handleUpdateConfig(c *gin.Context) {
	var req models.ConfigUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid request body",
			err.Error(),
		))
		return
	}

	if req.LogLevel != nil {
		level, err := log.ParseLevel(*req.LogLevel)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse(
				http.StatusBadRequest,
				"validation_error",
				"Invalid log level",
				err.Error(),
			))
			return
		}
		log.SetLevel(level)
		s.config.LogLevel = *req.LogLevel
		log.Infof("Log level changed to %s", *req.LogLevel)
	}

	s.handleGetConfig(c)
}
