package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AccountType classifies an account within the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

// Account is one entry in the household chart of accounts. Housemate
// accounts are income accounts; shared costs move into expense or
// liability accounts.
type Account struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex:ux_ledger_accounts_code" json:"code"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Type      AccountType  `gorm:"type:text;not null" json:"type"`
	Currency  string       `gorm:"type:text;not null" json:"currency"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "ledger_accounts" }

// Transaction is the immutable header for one balanced financial event.
type Transaction struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Description string            `gorm:"type:text;not null" json:"description"`
	Date        time.Time         `gorm:"not null;index" json:"date"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	Legs []Leg `gorm:"foreignKey:TransactionID" json:"legs,omitempty"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "ledger_transactions" }

// Leg is one signed account line within a transaction. All legs of a
// transaction sum to zero per currency.
type Leg struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	TransactionID snowflake.ID    `gorm:"not null;index" json:"transaction_id"`
	AccountID     snowflake.ID    `gorm:"not null;index" json:"account_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(13,2);not null" json:"amount"`
	Currency      string          `gorm:"type:text;not null" json:"currency"`
	Description   string          `gorm:"type:text" json:"description,omitempty"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Leg) TableName() string { return "ledger_legs" }
