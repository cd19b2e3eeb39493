package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	billingcycledomain "github.com/hearthshare/hearth/internal/billingcycle/domain"
	costdomain "github.com/hearthshare/hearth/internal/cost/domain"
	housematedomain "github.com/hearthshare/hearth/internal/housemate/domain"
	ledgerdomain "github.com/hearthshare/hearth/internal/ledger/domain"
	"github.com/hearthshare/hearth/internal/orchestrator"
	statementdomain "github.com/hearthshare/hearth/internal/statement/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var errInvalidRequest = errors.New("invalid request")

// ErrorHandlingMiddleware renders the last handler error as JSON once the
// chain has finished, unless a handler already wrote a response.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

var notFoundErrors = []error{
	billingcycledomain.ErrCycleNotFound,
	costdomain.ErrCostNotFound,
	housematedomain.ErrHousemateNotFound,
	ledgerdomain.ErrAccountNotFound,
	ledgerdomain.ErrTransactionNotFound,
	statementdomain.ErrImportNotFound,
	statementdomain.ErrLineNotFound,
}

var conflictErrors = []error{
	costdomain.ErrAlreadyEnacted,
	housematedomain.ErrDuplicateEmail,
	ledgerdomain.ErrDuplicateAccountCode,
	statementdomain.ErrLineAlreadyReconciled,
	orchestrator.ErrStatementsAlreadySent,
}

var validationErrors = []error{
	errInvalidRequest,
	billingcycledomain.ErrDateOutsideExistingCycles,
	costdomain.ErrInvalidCostType,
	costdomain.ErrNoSplits,
	costdomain.ErrInvalidPortions,
	costdomain.ErrDuplicateSplit,
	costdomain.ErrInitialCycleRequired,
	costdomain.ErrFixedAmountRequired,
	costdomain.ErrFixedAmountNotAllowed,
	costdomain.ErrTotalCyclesNotAllowed,
	costdomain.ErrInvalidTotalCycles,
	costdomain.ErrCycleBeforeInitialCycle,
	costdomain.ErrNotEnactable,
	housematedomain.ErrNameRequired,
	housematedomain.ErrEmailRequired,
	ledgerdomain.ErrInvalidLegCount,
	ledgerdomain.ErrUnbalancedTransaction,
	ledgerdomain.ErrInvalidTransferAmount,
	ledgerdomain.ErrInvalidTransactionDate,
	statementdomain.ErrImportEmpty,
	statementdomain.ErrZeroAmountLine,
	orchestrator.ErrCycleNotEnacted,
}

func mapError(err error) (int, errorPayload) {
	switch {
	case matchesAny(err, notFoundErrors):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}
	case matchesAny(err, conflictErrors):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}
	case matchesAny(err, validationErrors):
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
