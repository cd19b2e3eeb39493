package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	costdomain "github.com/hearthshare/hearth/internal/cost/domain"
)

type costSplitRequest struct {
	FromAccountID string          `json:"from_account_id"`
	Portion       decimal.Decimal `json:"portion"`
}

type createCostRequest struct {
	ToAccountID           string             `json:"to_account_id"`
	Type                  string             `json:"type"`
	FixedAmount           *decimal.Decimal   `json:"fixed_amount"`
	TotalBillingCycles    *int               `json:"total_billing_cycles"`
	InitialBillingCycleID string             `json:"initial_billing_cycle_id"`
	Disabled              bool               `json:"disabled"`
	Splits                []costSplitRequest `json:"splits"`
}

func (s *Server) CreateCost(c *gin.Context) {
	var req createCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	toAccount, err := parseID(req.ToAccountID)
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	var initial *snowflake.ID
	if req.InitialBillingCycleID != "" {
		id, err := parseID(req.InitialBillingCycleID)
		if err != nil {
			AbortWithError(c, errInvalidRequest)
			return
		}
		initial = &id
	}

	splits := make([]costdomain.SplitInput, 0, len(req.Splits))
	for _, split := range req.Splits {
		from, err := parseID(split.FromAccountID)
		if err != nil {
			AbortWithError(c, errInvalidRequest)
			return
		}
		splits = append(splits, costdomain.SplitInput{FromAccountID: from, Portion: split.Portion})
	}

	resp, err := s.costSvc.Create(c.Request.Context(), costdomain.CreateCostInput{
		ToAccountID:           toAccount,
		Type:                  costdomain.CostType(req.Type),
		FixedAmount:           req.FixedAmount,
		TotalBillingCycles:    req.TotalBillingCycles,
		InitialBillingCycleID: initial,
		Disabled:              req.Disabled,
		Splits:                splits,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCosts(c *gin.Context) {
	includeDisabled := c.Query("include_disabled") == "true"

	resp, err := s.costSvc.List(c.Request.Context(), includeDisabled)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCost(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	resp, err := s.costSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCostBilledAmount(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	billed, err := s.costSvc.BilledAmount(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"cost_id": id, "billed": billed}})
}

func (s *Server) DisableCost(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	if err := s.costSvc.Disable(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "disabled": true}})
}

type enactCostRequest struct {
	BillingCycleID string `json:"billing_cycle_id"`
}

func (s *Server) EnactCost(c *gin.Context) {
	costID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	var req enactCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}
	cycleID, err := parseID(req.BillingCycleID)
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	if err := s.costSvc.Enact(c.Request.Context(), costID, cycleID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"cost_id": costID, "billing_cycle_id": cycleID}})
}
