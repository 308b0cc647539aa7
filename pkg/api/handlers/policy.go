package handlers

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/qos-policy-agent/agent/pkg/api/models"
	"github.com/qos-policy-agent/agent/pkg/qos"
	log "github.com/sirupsen/logrus"
)

// PolicyHandler handles policy management requests
type PolicyHandler struct {
	policyManager qos.Manager
}

// NewPolicyHandler creates a new policy handler
func NewPolicyHandler(pm qos.Manager) *PolicyHandler {
	return &PolicyHandler{
		policyManager: pm,
	}
}

// policyFromRequest converts an API request into a validated policy. Every
// write path goes through the builder so that core validation is the single
// gate.
func policyFromRequest(req *models.PolicyRequest) (*qos.Policy, error) {
	direction, err := qos.ParseDirection(req.Direction)
	if err != nil {
		return nil, err
	}

	b := qos.NewBuilder(req.PolicyID, direction)
	if req.DSCP != nil {
		b.SetDSCP(*req.DSCP)
	}
	if req.UserPriority != nil {
		b.SetUserPriority(qos.UserPriority(*req.UserPriority))
	}
	if req.SrcAddr != "" {
		addr, err := net.ParseMAC(req.SrcAddr)
		if err != nil {
			return nil, fmt.Errorf("invalid src_addr: %w", err)
		}
		b.SetSourceAddress(addr)
	}
	if req.DstAddr != "" {
		addr, err := net.ParseMAC(req.DstAddr)
		if err != nil {
			return nil, fmt.Errorf("invalid dst_addr: %w", err)
		}
		b.SetDestinationAddress(addr)
	}
	if req.SrcPort != nil {
		b.SetSourcePort(*req.SrcPort)
	}
	if req.Protocol != "" {
		protocol, err := qos.ParseProtocol(req.Protocol)
		if err != nil {
			return nil, err
		}
		b.SetProtocol(protocol)
	}
	if (req.DstPortStart == nil) != (req.DstPortEnd == nil) {
		return nil, fmt.Errorf("dst_port_start and dst_port_end must be set together")
	}
	if req.DstPortStart != nil {
		b.SetDestinationPortRange(*req.DstPortStart, *req.DstPortEnd)
	}

	return b.Build()
}

// policyResponse converts a policy into its API representation.
func policyResponse(p *qos.Policy) models.PolicyResponse {
	resp := models.PolicyResponse{
		PolicyID:           p.PolicyID(),
		TranslatedPolicyID: p.TranslatedPolicyID(),
		Direction:          qos.DirectionString(p.Direction()),
		DSCP:               p.DSCP(),
		UserPriority:       int(p.UserPriority()),
		SrcPort:            p.SourcePort(),
		Protocol:           qos.ProtocolString(p.Protocol()),
	}
	if addr := p.SourceAddress(); addr != nil {
		resp.SrcAddr = addr.String()
	}
	if addr := p.DestinationAddress(); addr != nil {
		resp.DstAddr = addr.String()
	}
	if r := p.DestinationPortRange(); r != nil {
		start, end := int(r.Start), int(r.End)
		resp.DstPortStart = &start
		resp.DstPortEnd = &end
	}
	return resp
}

// validationDetails extracts per-rule diagnostics for the error envelope.
func validationDetails(err error) interface{} {
	var verr *qos.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}
	details := make([]models.ValidationError, len(verr.Violations))
	for i, v := range verr.Violations {
		details[i] = models.ValidationError{Field: v.Field, Message: v.Reason}
	}
	return details
}

// CreatePolicy handles POST /api/v1/policies
func (h *PolicyHandler) CreatePolicy(c *gin.Context) {
	var req models.PolicyRequest

	// Bind and validate JSON request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid request body",
			err.Error(),
		))
		return
	}

	p, err := policyFromRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid policy parameters",
			validationDetails(err),
		))
		return
	}

	if err := h.policyManager.Add(p); err != nil {
		if errors.Is(err, qos.ErrPolicyExists) {
			c.JSON(http.StatusConflict, models.NewErrorResponse(
				http.StatusConflict,
				"policy_exists",
				fmt.Sprintf("Policy with ID %d already exists", p.PolicyID()),
				nil,
			))
			return
		}
		log.Errorf("Failed to add policy: %v", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
			http.StatusInternalServerError,
			"policy_error",
			"Failed to add policy",
			err.Error(),
		))
		return
	}

	c.JSON(http.StatusCreated, policyResponse(p))
}

// ListPolicies handles GET /api/v1/policies
func (h *PolicyHandler) ListPolicies(c *gin.Context) {
	policies := h.policyManager.List()

	policyResponses := make([]models.PolicyResponse, 0, len(policies))
	for _, p := range policies {
		policyResponses = append(policyResponses, policyResponse(p))
	}

	response := models.PolicyListResponse{
		Policies: policyResponses,
		Count:    len(policyResponses),
	}

	c.JSON(http.StatusOK, response)
}

// GetPolicy handles GET /api/v1/policies/:id
func (h *PolicyHandler) GetPolicy(c *gin.Context) {
	policyID, ok := policyIDParam(c)
	if !ok {
		return
	}

	p, found := h.policyManager.Get(policyID)
	if !found {
		c.JSON(http.StatusNotFound, models.NewErrorResponse(
			http.StatusNotFound,
			"not_found",
			fmt.Sprintf("Policy with ID %d not found", policyID),
			nil,
		))
		return
	}

	c.JSON(http.StatusOK, policyResponse(p))
}

// UpdatePolicy handles PUT /api/v1/policies/:id
func (h *PolicyHandler) UpdatePolicy(c *gin.Context) {
	policyID, ok := policyIDParam(c)
	if !ok {
		return
	}

	var req models.PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid request body",
			err.Error(),
		))
		return
	}

	if req.PolicyID != policyID {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Policy ID in URL does not match policy ID in request body",
			nil,
		))
		return
	}

	p, err := policyFromRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid policy parameters",
			validationDetails(err),
		))
		return
	}

	// Remove the old policy first; it may not exist if this is the first
	// write for this ID.
	if err := h.policyManager.Remove(policyID); err != nil && !errors.Is(err, qos.ErrPolicyNotFound) {
		log.Warnf("Failed to remove old policy during update: %v", err)
	}

	if err := h.policyManager.Add(p); err != nil {
		log.Errorf("Failed to update policy: %v", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
			http.StatusInternalServerError,
			"policy_error",
			"Failed to update policy",
			err.Error(),
		))
		return
	}

	c.JSON(http.StatusOK, policyResponse(p))
}

// DeletePolicy handles DELETE /api/v1/policies/:id
func (h *PolicyHandler) DeletePolicy(c *gin.Context) {
	policyID, ok := policyIDParam(c)
	if !ok {
		return
	}

	if err := h.policyManager.Remove(policyID); err != nil {
		if errors.Is(err, qos.ErrPolicyNotFound) {
			c.JSON(http.StatusNotFound, models.NewErrorResponse(
				http.StatusNotFound,
				"not_found",
				fmt.Sprintf("Policy with ID %d not found", policyID),
				nil,
			))
			return
		}
		log.Errorf("Failed to delete policy: %v", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
			http.StatusInternalServerError,
			"policy_error",
			"Failed to delete policy",
			err.Error(),
		))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Policy with ID %d deleted successfully", policyID),
	})
}

// policyIDParam parses the :id URL parameter, writing the error response
// itself on failure.
func policyIDParam(c *gin.Context) (int, bool) {
	policyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid policy ID",
			err.Error(),
		))
		return 0, false
	}
	return policyID, true
}
