package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LegInput is one account-and-signed-amount line of a new transaction.
type LegInput struct {
	AccountID   snowflake.ID
	Amount      decimal.Decimal
	Description string
}

// CreateTransactionInput describes a balanced transaction to record.
type CreateTransactionInput struct {
	Description string
	Date        time.Time
	Metadata    map[string]any
	Legs        []LegInput
}

// TransferInput moves an amount between two accounts.
type TransferInput struct {
	FromAccountID snowflake.ID
	ToAccountID   snowflake.ID
	Amount        decimal.Decimal
	Description   string
	Date          time.Time
}

// DateRange filters balance queries to transactions dated in [Start, End).
// A nil bound is unbounded on that side.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// Service is the double-entry ledger collaborator. The recurring cost
// engine posts through it and reads balances from it; the zero-sum
// invariant on transaction legs is enforced here, not by callers.
type Service interface {
	// WithTx returns a Service bound to tx so callers can post ledger
	// entries inside their own transaction boundary.
	WithTx(tx *gorm.DB) Service

	CreateAccount(ctx context.Context, account Account) (Account, error)
	GetAccount(ctx context.Context, id snowflake.ID) (*Account, error)
	GetAccountByCode(ctx context.Context, code string) (*Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)

	// CreateTransaction records a balanced transaction. Legs must reference
	// known accounts and sum to zero per currency.
	CreateTransaction(ctx context.Context, input CreateTransactionInput) (Transaction, error)
	// DeleteTransaction voids a transaction and its legs.
	DeleteTransaction(ctx context.Context, id snowflake.ID) error

	// AccountBalance returns the net signed sum of the account's legs,
	// optionally restricted to transactions dated within rng.
	AccountBalance(ctx context.Context, accountID snowflake.ID, rng *DateRange) (decimal.Decimal, error)

	// Transfer records a simple two-leg transaction moving amount from one
	// account to another.
	Transfer(ctx context.Context, input TransferInput) (Transaction, error)
}

var (
	ErrAccountNotFound        = errors.New("ledger account not found")
	ErrDuplicateAccountCode   = errors.New("ledger account code already exists")
	ErrInvalidLegCount        = errors.New("transaction requires at least two legs")
	ErrUnbalancedTransaction  = errors.New("transaction legs do not sum to zero")
	ErrInvalidTransferAmount  = errors.New("transfer amount must be positive")
	ErrTransactionNotFound    = errors.New("ledger transaction not found")
	ErrCurrencyMismatch       = errors.New("leg currency does not match account currency")
	ErrInvalidTransactionDate = errors.New("transaction date is required")
)
