package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListBillingCycles(c *gin.Context) {
	resp, err := s.cycleSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBillingCycle(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	resp, err := s.cycleSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type populateCyclesRequest struct {
	AsOf string `json:"as_of"`
}

func (s *Server) PopulateBillingCycles(c *gin.Context) {
	// The body is optional; an empty one populates from today.
	var req populateCyclesRequest
	_ = c.ShouldBindJSON(&req)

	var asOf time.Time
	if req.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			AbortWithError(c, errInvalidRequest)
			return
		}
		asOf = parsed
	}

	if err := s.cycleSvc.Populate(c.Request.Context(), asOf); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.cycleSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBillingCycleReconciliation(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	cycle, err := s.cycleSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	reconciled, err := s.orch.IsReconciled(c.Request.Context(), cycle)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"billing_cycle_id": id, "reconciled": reconciled}})
}

func (s *Server) SendStatements(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	sent, err := s.orch.SendStatements(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"billing_cycle_id": id, "sent": sent}})
}
