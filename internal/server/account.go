package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	ledgerdomain "github.com/hearthshare/hearth/internal/ledger/domain"
)

type createAccountRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

func (s *Server) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	resp, err := s.ledgerSvc.CreateAccount(c.Request.Context(), ledgerdomain.Account{
		Code:     strings.TrimSpace(req.Code),
		Name:     strings.TrimSpace(req.Name),
		Type:     ledgerdomain.AccountType(req.Type),
		Currency: strings.TrimSpace(req.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAccounts(c *gin.Context) {
	resp, err := s.ledgerSvc.ListAccounts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAccountBalance(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	rng, err := parseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	if _, err := s.ledgerSvc.GetAccount(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.ledgerSvc.AccountBalance(c.Request.Context(), id, rng)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"account_id": id, "balance": balance}})
}

type createTransferRequest struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Date          string          `json:"date"`
}

func (s *Server) CreateTransfer(c *gin.Context) {
	var req createTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	from, err := parseID(req.FromAccountID)
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}
	to, err := parseID(req.ToAccountID)
	if err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	var date time.Time
	if req.Date != "" {
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			AbortWithError(c, errInvalidRequest)
			return
		}
	}

	resp, err := s.ledgerSvc.Transfer(c.Request.Context(), ledgerdomain.TransferInput{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        req.Amount,
		Description:   strings.TrimSpace(req.Description),
		Date:          date,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseDateRange(from, to string) (*ledgerdomain.DateRange, error) {
	if from == "" && to == "" {
		return nil, nil
	}

	rng := &ledgerdomain.DateRange{}
	if from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return nil, err
		}
		rng.Start = &parsed
	}
	if to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return nil, err
		}
		rng.End = &parsed
	}
	return rng, nil
}
