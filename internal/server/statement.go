package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	statementdomain "github.com/hearthshare/hearth/internal/statement/domain"
)

type statementLineRequest struct {
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type importStatementRequest struct {
	Source string                 `json:"source"`
	Lines  []statementLineRequest `json:"lines"`
}

func (s *Server) ImportStatement(c *gin.Context) {
	var req importStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	lines := make([]statementdomain.LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		date, err := time.Parse("2006-01-02", line.Date)
		if err != nil {
			AbortWithError(c, errInvalidRequest)
			return
		}
		lines = append(lines, statementdomain.LineInput{
			Date:        date,
			Amount:      line.Amount,
			Description: line.Description,
		})
	}

	resp, err := s.stmtSvc.Import(c.Request.Context(), statementdomain.ImportInput{
		Source: req.Source,
		Lines:  lines,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListStatementLines(c *gin.Context) {
	unreconciledOnly := c.Query("unreconciled") == "true"

	resp, err := s.stmtSvc.ListLines(c.Request.Context(), unreconciledOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type reconcileLineRequest struct {
	BankAccountID string `json:"bank_account_id"`
	AccountID     string `json:"account_id"`
}

func (s *Server) ReconcileStatementLine(c *gin.Context) {
	lineID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	var req reconcileLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	bank, err := parseID(req.BankAccountID)
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}
	account, err := parseID(req.AccountID)
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	resp, err := s.stmtSvc.Reconcile(c.Request.Context(), statementdomain.ReconcileInput{
		LineID:        lineID,
		BankAccountID: bank,
		AccountID:     account,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RunSweep(c *gin.Context) {
	if err := s.sched.RunSweep(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "ok"}})
}
