package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service owns the set of billing cycles: it generates and repairs the
// forward sequence and answers containment queries for the cost engine.
type Service interface {
	// Populate ensures cycles exist covering asOf plus the configured
	// horizon. Future cycles without transactions are deleted and
	// regenerated; the cycle containing asOf is never deleted.
	Populate(ctx context.Context, asOf time.Time) error
	// Repopulate fills forward gaps from today without deleting anything.
	Repopulate(ctx context.Context) error

	Get(ctx context.Context, id snowflake.ID) (BillingCycle, error)
	List(ctx context.Context) ([]BillingCycle, error)
	// AsOf returns the cycle whose range contains date.
	AsOf(ctx context.Context, date time.Time) (BillingCycle, error)
	// Enactable returns cycles awaiting enactment: transactions not yet
	// created and start date on or before asOf, oldest first.
	Enactable(ctx context.Context, asOf time.Time) ([]BillingCycle, error)

	// Next and Previous return the adjacent cycle, or nil at the edge.
	Next(ctx context.Context, c BillingCycle) (*BillingCycle, error)
	Previous(ctx context.Context, c BillingCycle) (*BillingCycle, error)

	MarkTransactionsCreated(ctx context.Context, id snowflake.ID) error
	MarkStatementsSent(ctx context.Context, id snowflake.ID) error
}

var (
	// ErrCycleNotFound is returned when no cycle contains the queried date.
	ErrCycleNotFound = errors.New("billing cycle not found")
	// ErrDateOutsideExistingCycles is returned when populate is asked to
	// repair from a date that falls in a gap or before all existing cycles.
	ErrDateOutsideExistingCycles = errors.New("cannot populate for date outside existing billing cycles")
	// ErrPopulateConflict indicates the generation loop produced a range
	// that still exists after future cycles were deleted. This is a bug in
	// the generator, never a recoverable runtime condition.
	ErrPopulateConflict = errors.New("generated billing cycle collides with an existing cycle")
)
