package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CostType selects how a recurring cost's per-cycle amount is computed.
type CostType string

const (
	// CostTypeNormal bills a fixed amount each cycle, or a fixed amount
	// spread over a set number of cycles when TotalBillingCycles is set.
	CostTypeNormal CostType = "normal"
	// CostTypeArrearsBalance bills the destination account's balance as of
	// the end of the cycle being enacted.
	CostTypeArrearsBalance CostType = "arrears_balance"
	// CostTypeArrearsTransactions bills the net movement on the destination
	// account during the cycle being enacted.
	CostTypeArrearsTransactions CostType = "arrears_transactions"
)

// RecurringCost is a shared expense billed to housemates each cycle.
// FixedAmount is set exactly when Type is normal; TotalBillingCycles
// turns a normal cost into a one-off spread over that many cycles.
// An enabled cost always has an initial billing cycle.
type RecurringCost struct {
	ID                    snowflake.ID     `gorm:"primaryKey" json:"id"`
	ToAccountID           snowflake.ID     `gorm:"not null;index" json:"to_account_id"`
	Type                  CostType         `gorm:"not null" json:"type"`
	Disabled              bool             `gorm:"not null;default:false" json:"disabled"`
	FixedAmount           *decimal.Decimal `gorm:"type:numeric(13,2)" json:"fixed_amount,omitempty"`
	TotalBillingCycles    *int             `json:"total_billing_cycles,omitempty"`
	InitialBillingCycleID *snowflake.ID    `gorm:"index" json:"initial_billing_cycle_id,omitempty"`
	CreatedAt             time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Splits []RecurringCostSplit `gorm:"foreignKey:RecurringCostID" json:"splits,omitempty"`
}

// TableName sets the database table name.
func (RecurringCost) TableName() string { return "recurring_costs" }

// IsOneOff reports whether the cost bills a fixed total over a finite
// number of cycles rather than indefinitely.
func (c RecurringCost) IsOneOff() bool { return c.TotalBillingCycles != nil }

// RecurringCostSplit weights one housemate account's share of a cost.
// Each account appears at most once per cost.
type RecurringCostSplit struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	RecurringCostID snowflake.ID    `gorm:"not null;uniqueIndex:ux_recurring_cost_splits_cost_account,priority:1" json:"recurring_cost_id"`
	FromAccountID   snowflake.ID    `gorm:"not null;uniqueIndex:ux_recurring_cost_splits_cost_account,priority:2" json:"from_account_id"`
	Portion         decimal.Decimal `gorm:"type:numeric(13,2);not null" json:"portion"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (RecurringCostSplit) TableName() string { return "recurring_cost_splits" }

// RecurredCost records that a cost was enacted for a cycle. The unique
// pair index is what makes enactment once-only; TransactionID is nil when
// the computed amount was zero and nothing was posted.
type RecurredCost struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	RecurringCostID snowflake.ID  `gorm:"not null;uniqueIndex:ux_recurred_costs_cost_cycle,priority:1" json:"recurring_cost_id"`
	BillingCycleID  snowflake.ID  `gorm:"not null;uniqueIndex:ux_recurred_costs_cost_cycle,priority:2" json:"billing_cycle_id"`
	TransactionID   *snowflake.ID `gorm:"uniqueIndex:ux_recurred_costs_transaction" json:"transaction_id,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (RecurredCost) TableName() string { return "recurred_costs" }
