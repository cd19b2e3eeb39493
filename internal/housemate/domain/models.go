package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Housemate links a person to their income account in the ledger. Each
// housemate's share of enacted costs accrues on that account until paid.
type Housemate struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Email     string       `gorm:"type:text;not null;uniqueIndex:ux_housemates_email" json:"email"`
	AccountID snowflake.ID `gorm:"not null;uniqueIndex:ux_housemates_account" json:"account_id"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Housemate) TableName() string { return "housemates" }

// CreateHousemateInput registers a person, creating their ledger account.
type CreateHousemateInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Service interface {
	// Create registers a housemate and opens their income account in the
	// ledger under a code derived from their name.
	Create(ctx context.Context, input CreateHousemateInput) (Housemate, error)
	Get(ctx context.Context, id snowflake.ID) (Housemate, error)
	GetByAccount(ctx context.Context, accountID snowflake.ID) (Housemate, error)
	List(ctx context.Context, activeOnly bool) ([]Housemate, error)
	Deactivate(ctx context.Context, id snowflake.ID) error
}

var (
	ErrHousemateNotFound = errors.New("housemate not found")
	ErrDuplicateEmail    = errors.New("housemate email already registered")
	ErrNameRequired      = errors.New("housemate name is required")
	ErrEmailRequired     = errors.New("housemate email is required")
)
