package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// BillingCycle is one half-open date interval [StartDate, EndDate) used as
// the unit of recurring billing. Ranges never overlap; the unique index on
// the pair backs the populate algorithm's identical-range checks.
type BillingCycle struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	StartDate           time.Time    `gorm:"not null;index;uniqueIndex:ux_billing_cycles_range,priority:1" json:"start_date"`
	EndDate             time.Time    `gorm:"not null;uniqueIndex:ux_billing_cycles_range,priority:2" json:"end_date"`
	TransactionsCreated bool         `gorm:"not null;default:false" json:"transactions_created"`
	StatementsSent      bool         `gorm:"not null;default:false" json:"statements_sent"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BillingCycle) TableName() string { return "billing_cycles" }

// Contains reports whether date falls within [StartDate, EndDate).
func (c BillingCycle) Contains(date time.Time) bool {
	return !date.Before(c.StartDate) && date.Before(c.EndDate)
}
