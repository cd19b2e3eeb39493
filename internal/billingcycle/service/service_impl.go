package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingcycledomain "github.com/hearthshare/hearth/internal/billingcycle/domain"
	"github.com/hearthshare/hearth/internal/clock"
	"github.com/hearthshare/hearth/internal/config"
	"github.com/hearthshare/hearth/internal/cycle"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Strategy  cycle.Strategy
	Household *config.HouseholdConfigHolder
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID     *snowflake.Node
	clock     clock.Clock
	strategy  cycle.Strategy
	household *config.HouseholdConfigHolder
}

func NewService(p ServiceParam) billingcycledomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("billingcycle.service"),

		genID:     p.GenID,
		clock:     p.Clock,
		strategy:  p.Strategy,
		household: p.Household,
	}
}

func (s *Service) Populate(ctx context.Context, asOf time.Time) error {
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	return s.populate(ctx, truncateToDate(asOf), true)
}

func (s *Service) Repopulate(ctx context.Context) error {
	return s.populate(ctx, truncateToDate(s.clock.Now()), false)
}

// populate creates the next N years of billing cycles starting from asOf.
// When deleteFuture is set, cycles strictly after the one containing asOf
// are removed first and regenerated.
func (s *Service) populate(ctx context.Context, asOf time.Time, deleteFuture bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&billingcycledomain.BillingCycle{}).Count(&count).Error; err != nil {
			return err
		}
		cyclesExist := count > 0

		current, err := s.findContaining(ctx, tx, asOf)
		if err != nil {
			return err
		}

		// Nothing stored yet: there is nothing to delete, so fall back to a
		// plain insert of every generated range.
		if !cyclesExist {
			deleteFuture = false
		}

		// Cycles exist but none contains asOf: the date falls in a gap or
		// before all cycles, which is too ambiguous to repair safely.
		if cyclesExist && current == nil {
			return billingcycledomain.ErrDateOutsideExistingCycles
		}

		// Deleting the cycle currently in use would be a bad idea, so a
		// deleting populate starts from the following cycle.
		omitCurrent := current != nil && deleteFuture

		stopDate := asOf.AddDate(s.household.Current().BillingCycleYears, 0, 0)
		next := cycle.DateRanges(s.strategy, asOf, cycle.RangeOptions{
			OmitCurrent: omitCurrent,
			StopDate:    stopDate,
		})

		var ranges []cycle.DateRange
		for {
			rng, ok := next()
			if !ok {
				break
			}
			ranges = append(ranges, rng)
		}
		if len(ranges) == 0 {
			return nil
		}

		if deleteFuture {
			if err := tx.Where("start_date >= ?", ranges[0].Start).
				Delete(&billingcycledomain.BillingCycle{}).Error; err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		created := 0
		for _, rng := range ranges {
			var existing int64
			if err := tx.Model(&billingcycledomain.BillingCycle{}).
				Where("start_date = ? AND end_date = ?", rng.Start, rng.End).
				Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				if deleteFuture {
					// Future cycles were just deleted; finding one here means
					// the generator and the deletion disagree.
					return fmt.Errorf("%w: [%s, %s)",
						billingcycledomain.ErrPopulateConflict,
						rng.Start.Format("2006-01-02"),
						rng.End.Format("2006-01-02"))
				}
				continue
			}
			if err := tx.Create(&billingcycledomain.BillingCycle{
				ID:        s.genID.Generate(),
				StartDate: rng.Start,
				EndDate:   rng.End,
				CreatedAt: now,
				UpdatedAt: now,
			}).Error; err != nil {
				return err
			}
			created++
		}

		s.log.Info("billing cycles populated",
			zap.Time("as_of", asOf),
			zap.Bool("delete_future", deleteFuture),
			zap.Int("created", created),
		)
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (billingcycledomain.BillingCycle, error) {
	var c billingcycledomain.BillingCycle
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billingcycledomain.BillingCycle{}, billingcycledomain.ErrCycleNotFound
		}
		return billingcycledomain.BillingCycle{}, err
	}
	return c, nil
}

func (s *Service) List(ctx context.Context) ([]billingcycledomain.BillingCycle, error) {
	var cycles []billingcycledomain.BillingCycle
	err := s.db.WithContext(ctx).Order("start_date").Find(&cycles).Error
	return cycles, err
}

func (s *Service) AsOf(ctx context.Context, date time.Time) (billingcycledomain.BillingCycle, error) {
	found, err := s.findContaining(ctx, s.db, truncateToDate(date))
	if err != nil {
		return billingcycledomain.BillingCycle{}, err
	}
	if found == nil {
		return billingcycledomain.BillingCycle{}, billingcycledomain.ErrCycleNotFound
	}
	return *found, nil
}

func (s *Service) Enactable(ctx context.Context, asOf time.Time) ([]billingcycledomain.BillingCycle, error) {
	var cycles []billingcycledomain.BillingCycle
	err := s.db.WithContext(ctx).
		Where("transactions_created = ? AND start_date <= ?", false, truncateToDate(asOf)).
		Order("start_date").
		Find(&cycles).Error
	return cycles, err
}

func (s *Service) Next(ctx context.Context, c billingcycledomain.BillingCycle) (*billingcycledomain.BillingCycle, error) {
	var next billingcycledomain.BillingCycle
	err := s.db.WithContext(ctx).
		Where("start_date > ?", c.StartDate).
		Order("start_date").
		First(&next).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &next, nil
}

func (s *Service) Previous(ctx context.Context, c billingcycledomain.BillingCycle) (*billingcycledomain.BillingCycle, error) {
	var prev billingcycledomain.BillingCycle
	err := s.db.WithContext(ctx).
		Where("start_date < ?", c.StartDate).
		Order("start_date DESC").
		First(&prev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prev, nil
}

func (s *Service) MarkTransactionsCreated(ctx context.Context, id snowflake.ID) error {
	return s.setFlag(ctx, id, "transactions_created")
}

func (s *Service) MarkStatementsSent(ctx context.Context, id snowflake.ID) error {
	return s.setFlag(ctx, id, "statements_sent")
}

func (s *Service) setFlag(ctx context.Context, id snowflake.ID, column string) error {
	result := s.db.WithContext(ctx).
		Model(&billingcycledomain.BillingCycle{}).
		Where("id = ?", id).
		Updates(map[string]any{column: true, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return billingcycledomain.ErrCycleNotFound
	}
	return nil
}

func (s *Service) findContaining(ctx context.Context, tx *gorm.DB, date time.Time) (*billingcycledomain.BillingCycle, error) {
	var c billingcycledomain.BillingCycle
	err := tx.WithContext(ctx).
		Where("start_date <= ? AND end_date > ?", date, date).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
