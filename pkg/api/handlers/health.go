package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qos-policy-agent/agent/pkg/api/models"
	"github.com/qos-policy-agent/agent/pkg/dataplane"
	"github.com/qos-policy-agent/agent/pkg/qos"
)

var startTime = time.Now()

// HealthHandler handles health check requests
type HealthHandler struct {
	dataPlane     dataplane.DataPlaneInterface
	policyManager qos.Manager
	iface         string
	version       string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(dp dataplane.DataPlaneInterface, pm qos.Manager, iface, version string) *HealthHandler {
	return &HealthHandler{
		dataPlane:     dp,
		policyManager: pm,
		iface:         iface,
		version:       version,
	}
}

// GetHealth handles GET /api/v1/health
// Simple health check endpoint
func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := models.HealthResponse{
		Status:  "ok",
		Message: "API server is healthy",
	}

	c.JSON(http.StatusOK, response)
}

// GetStatus handles GET /api/v1/status
// Detailed status endpoint with data plane information
func (h *HealthHandler) GetStatus(c *gin.Context) {
	stats := h.dataPlane.GetStatistics()

	dataPlaneStatus := models.DataPlaneStatus{
		Status:  "running",
		Message: "Data plane is operational",
	}

	// Basic liveness signal: a marker program that never sees traffic is
	// attached but idle.
	if stats.TotalPackets == 0 {
		dataPlaneStatus.Status = "idle"
		dataPlaneStatus.Message = "Data plane is idle (no packets processed)"
	}

	response := models.StatusResponse{
		Status:    "ok",
		Version:   h.version,
		Interface: h.iface,
		DataPlane: dataPlaneStatus,
		API: models.APIStatus{
			Status:  "running",
			Message: "API server is operational",
		},
		Statistics: &models.StatisticsResponse{
			TotalPackets:       stats.TotalPackets,
			MarkedPackets:      stats.MarkedPackets,
			PrioritizedPackets: stats.PrioritizedPackets,
			PolicyHits:         stats.PolicyHits,
			PolicyMisses:       stats.PolicyMisses,
		},
		PolicyCount: h.policyManager.Count(),
		Uptime:      int64(time.Since(startTime).Seconds()),
	}

	c.JSON(http.StatusOK, response)
}
