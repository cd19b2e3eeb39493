package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	billingcycledomain "github.com/hearthshare/hearth/internal/billingcycle/domain"
)

// SplitInput weights one account's share of a new cost.
type SplitInput struct {
	FromAccountID snowflake.ID    `json:"from_account_id"`
	Portion       decimal.Decimal `json:"portion"`
}

// CreateCostInput describes a recurring cost to register.
type CreateCostInput struct {
	ToAccountID           snowflake.ID     `json:"to_account_id"`
	Type                  CostType         `json:"type"`
	FixedAmount           *decimal.Decimal `json:"fixed_amount,omitempty"`
	TotalBillingCycles    *int             `json:"total_billing_cycles,omitempty"`
	InitialBillingCycleID *snowflake.ID    `json:"initial_billing_cycle_id,omitempty"`
	Disabled              bool             `json:"disabled"`
	Splits                []SplitInput     `json:"splits"`
}

// Service is the recurring cost engine: it registers costs, computes each
// cycle's amount, and enacts costs into ledger transactions exactly once
// per (cost, cycle) pair.
type Service interface {
	Create(ctx context.Context, input CreateCostInput) (RecurringCost, error)
	Get(ctx context.Context, id snowflake.ID) (RecurringCost, error)
	List(ctx context.Context, includeDisabled bool) ([]RecurringCost, error)
	Disable(ctx context.Context, id snowflake.ID) error

	// Amount computes what the cost bills for the given cycle without
	// posting anything.
	Amount(ctx context.Context, cost RecurringCost, cycle billingcycledomain.BillingCycle) (decimal.Decimal, error)
	// IsEnactable reports whether the cost may be enacted for the cycle:
	// the cost is enabled, the cycle is not before its initial cycle, and
	// a one-off still has cycles and billing left in its span.
	IsEnactable(ctx context.Context, cost RecurringCost, cycle billingcycledomain.BillingCycle) (bool, error)
	// HasEnacted reports whether the cost was already enacted for the cycle.
	HasEnacted(ctx context.Context, costID, cycleID snowflake.ID) (bool, error)

	// Enact bills the cost for the cycle: it computes the amount, posts a
	// balanced ledger transaction splitting it across the cost's splits,
	// and records the enactment. Enacting the same pair twice returns
	// ErrAlreadyEnacted.
	Enact(ctx context.Context, costID, cycleID snowflake.ID) error

	// DisableIfDone disables a one-off cost whose final cycle has ended as
	// of the given date. It reports whether the cost was disabled.
	DisableIfDone(ctx context.Context, costID snowflake.ID, asOf time.Time) (bool, error)

	// BilledAmount returns the total billed to housemates so far: the sum
	// of the positive legs of the cost's enacted transactions.
	BilledAmount(ctx context.Context, costID snowflake.ID) (decimal.Decimal, error)
}

var (
	ErrCostNotFound         = errors.New("recurring cost not found")
	ErrInvalidCostType      = errors.New("unknown recurring cost type")
	ErrNoSplits             = errors.New("recurring cost requires at least one split")
	ErrInvalidPortions      = errors.New("split portions must sum to a positive value")
	ErrDuplicateSplit       = errors.New("account appears in more than one split")
	ErrInitialCycleRequired = errors.New("enabled cost requires an initial billing cycle")
	// ErrInitialCycleNotAllowed keeps the pairing the other way round: a
	// disabled cost carries no initial cycle.
	ErrInitialCycleNotAllowed = errors.New("disabled cost cannot have an initial billing cycle")
	// ErrFixedAmountRequired applies to normal costs, ErrFixedAmountNotAllowed
	// to arrears costs, which derive their amount from the ledger.
	ErrFixedAmountRequired   = errors.New("normal cost requires a positive fixed amount")
	ErrFixedAmountNotAllowed = errors.New("arrears cost cannot have a fixed amount")
	ErrTotalCyclesNotAllowed = errors.New("only normal costs can span a fixed number of cycles")
	ErrInvalidTotalCycles    = errors.New("total billing cycles must be positive")

	// ErrCycleBeforeInitialCycle is returned when an amount is requested
	// for a cycle predating the cost's initial cycle.
	ErrCycleBeforeInitialCycle = errors.New("billing cycle predates the cost's initial cycle")
	ErrNotEnactable            = errors.New("recurring cost is not enactable for this cycle")
	ErrAlreadyEnacted          = errors.New("recurring cost already enacted for this cycle")
)
