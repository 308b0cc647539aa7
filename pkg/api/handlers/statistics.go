package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qos-policy-agent/agent/pkg/api/models"
	"github.com/qos-policy-agent/agent/pkg/dataplane"
)

// StatisticsHandler handles statistics requests
type StatisticsHandler struct {
	dataPlane dataplane.DataPlaneInterface
}

// NewStatisticsHandler creates a new statistics handler
func NewStatisticsHandler(dp dataplane.DataPlaneInterface) *StatisticsHandler {
	return &StatisticsHandler{
		dataPlane: dp,
	}
}

// GetAllStats handles GET /api/v1/stats
func (h *StatisticsHandler) GetAllStats(c *gin.Context) {
	stats := h.dataPlane.GetStatistics()

	response := models.StatisticsResponse{
		TotalPackets:       stats.TotalPackets,
		MarkedPackets:      stats.MarkedPackets,
		PrioritizedPackets: stats.PrioritizedPackets,
		PolicyHits:         stats.PolicyHits,
		PolicyMisses:       stats.PolicyMisses,
	}

	c.JSON(http.StatusOK, response)
}

// GetPacketStats handles GET /api/v1/stats/packets
func (h *StatisticsHandler) GetPacketStats(c *gin.Context) {
	stats := h.dataPlane.GetStatistics()

	var markRate, prioritizeRate float64
	if stats.TotalPackets > 0 {
		markRate = float64(stats.MarkedPackets) / float64(stats.TotalPackets) * 100
		prioritizeRate = float64(stats.PrioritizedPackets) / float64(stats.TotalPackets) * 100
	}

	response := models.PacketStatsResponse{
		TotalPackets:       stats.TotalPackets,
		MarkedPackets:      stats.MarkedPackets,
		PrioritizedPackets: stats.PrioritizedPackets,
		MarkRate:           markRate,
		PrioritizeRate:     prioritizeRate,
	}

	c.JSON(http.StatusOK, response)
}

// GetPolicyStats handles GET /api/v1/stats/policies
func (h *StatisticsHandler) GetPolicyStats(c *gin.Context) {
	stats := h.dataPlane.GetStatistics()

	var hitRate float64
	totalLookups := stats.PolicyHits + stats.PolicyMisses
	if totalLookups > 0 {
		hitRate = float64(stats.PolicyHits) / float64(totalLookups) * 100
	}

	response := models.PolicyStatsResponse{
		PolicyHits:   stats.PolicyHits,
		PolicyMisses: stats.PolicyMisses,
		HitRate:      hitRate,
	}

	c.JSON(http.StatusOK, response)
}
