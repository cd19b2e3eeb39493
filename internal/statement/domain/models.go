package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatementImport is one batch of bank statement lines brought into the
// system. The UUID identifies the batch to external tooling.
type StatementImport struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:ux_statement_imports_uuid" json:"uuid"`
	Source    string       `gorm:"type:text;not null" json:"source"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	Lines []StatementLine `gorm:"foreignKey:StatementImportID" json:"lines,omitempty"`
}

// TableName sets the database table name.
func (StatementImport) TableName() string { return "statement_imports" }

// StatementLine is one bank statement row. TransactionID is set once the
// line has been reconciled against a ledger transaction.
type StatementLine struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	UUID              uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_statement_lines_uuid" json:"uuid"`
	StatementImportID snowflake.ID    `gorm:"not null;index" json:"statement_import_id"`
	Date              time.Time       `gorm:"not null;index" json:"date"`
	Amount            decimal.Decimal `gorm:"type:numeric(13,2);not null" json:"amount"`
	Description       string          `gorm:"type:text;not null" json:"description"`
	TransactionID     *snowflake.ID   `gorm:"index" json:"transaction_id,omitempty"`
	CreatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (StatementLine) TableName() string { return "statement_lines" }

// IsReconciled reports whether the line has been matched to a transaction.
func (l StatementLine) IsReconciled() bool { return l.TransactionID != nil }

// LineInput is one statement row to import.
type LineInput struct {
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// ImportInput is a batch of statement rows from one source.
type ImportInput struct {
	Source string      `json:"source"`
	Lines  []LineInput `json:"lines"`
}

// ReconcileInput matches a statement line to an account: a transfer is
// posted between the bank account and the counterparty account for the
// line's amount, and the line is linked to it.
type ReconcileInput struct {
	LineID        snowflake.ID `json:"line_id"`
	BankAccountID snowflake.ID `json:"bank_account_id"`
	AccountID     snowflake.ID `json:"account_id"`
}

type Service interface {
	// Import stores a batch of statement lines, silently dropping rows
	// identical to ones already stored.
	Import(ctx context.Context, input ImportInput) (StatementImport, error)
	GetImport(ctx context.Context, id snowflake.ID) (StatementImport, error)
	ListImports(ctx context.Context) ([]StatementImport, error)

	ListLines(ctx context.Context, unreconciledOnly bool) ([]StatementLine, error)
	Reconcile(ctx context.Context, input ReconcileInput) (StatementLine, error)

	// LatestImportAt returns when the most recent import happened, or nil
	// when nothing has been imported yet.
	LatestImportAt(ctx context.Context) (*time.Time, error)
	// CountUnreconciled counts unreconciled lines dated in [start, end).
	CountUnreconciled(ctx context.Context, start, end time.Time) (int64, error)
}

var (
	ErrImportEmpty           = errors.New("statement import has no lines")
	ErrImportNotFound        = errors.New("statement import not found")
	ErrLineNotFound          = errors.New("statement line not found")
	ErrLineAlreadyReconciled = errors.New("statement line already reconciled")
	ErrZeroAmountLine        = errors.New("statement line amount cannot be zero")
)
