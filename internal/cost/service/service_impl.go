package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingcycledomain "github.com/hearthshare/hearth/internal/billingcycle/domain"
	costdomain "github.com/hearthshare/hearth/internal/cost/domain"
	ledgerdomain "github.com/hearthshare/hearth/internal/ledger/domain"
	"github.com/hearthshare/hearth/internal/splitting"
	pkgdb "github.com/hearthshare/hearth/pkg/db"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Ledger ledgerdomain.Service
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	ledger ledgerdomain.Service
}

func NewService(p ServiceParam) costdomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("cost.service"),
		genID:  p.GenID,
		ledger: p.Ledger,
	}
}

func (s *Service) Create(ctx context.Context, input costdomain.CreateCostInput) (costdomain.RecurringCost, error) {
	if err := validateCreate(input); err != nil {
		return costdomain.RecurringCost{}, err
	}

	if _, err := s.ledger.GetAccount(ctx, input.ToAccountID); err != nil {
		return costdomain.RecurringCost{}, err
	}
	for _, split := range input.Splits {
		if _, err := s.ledger.GetAccount(ctx, split.FromAccountID); err != nil {
			return costdomain.RecurringCost{}, err
		}
	}

	if input.InitialBillingCycleID != nil {
		var count int64
		err := s.db.WithContext(ctx).Model(&billingcycledomain.BillingCycle{}).
			Where("id = ?", *input.InitialBillingCycleID).
			Count(&count).Error
		if err != nil {
			return costdomain.RecurringCost{}, err
		}
		if count == 0 {
			return costdomain.RecurringCost{}, billingcycledomain.ErrCycleNotFound
		}
	}

	now := time.Now().UTC()
	cost := costdomain.RecurringCost{
		ID:                    s.genID.Generate(),
		ToAccountID:           input.ToAccountID,
		Type:                  input.Type,
		Disabled:              input.Disabled,
		FixedAmount:           input.FixedAmount,
		TotalBillingCycles:    input.TotalBillingCycles,
		InitialBillingCycleID: input.InitialBillingCycleID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	for _, split := range input.Splits {
		cost.Splits = append(cost.Splits, costdomain.RecurringCostSplit{
			ID:              s.genID.Generate(),
			RecurringCostID: cost.ID,
			FromAccountID:   split.FromAccountID,
			Portion:         split.Portion,
			CreatedAt:       now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&cost).Error
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return costdomain.RecurringCost{}, costdomain.ErrDuplicateSplit
		}
		return costdomain.RecurringCost{}, err
	}

	s.log.Info("recurring cost created",
		zap.Int64("cost_id", int64(cost.ID)),
		zap.String("type", string(cost.Type)),
		zap.Int("splits", len(cost.Splits)),
	)
	return cost, nil
}

func validateCreate(input costdomain.CreateCostInput) error {
	switch input.Type {
	case costdomain.CostTypeNormal:
		if input.FixedAmount == nil || !input.FixedAmount.IsPositive() {
			return costdomain.ErrFixedAmountRequired
		}
	case costdomain.CostTypeArrearsBalance, costdomain.CostTypeArrearsTransactions:
		if input.FixedAmount != nil {
			return costdomain.ErrFixedAmountNotAllowed
		}
		if input.TotalBillingCycles != nil {
			return costdomain.ErrTotalCyclesNotAllowed
		}
	default:
		return costdomain.ErrInvalidCostType
	}

	if input.TotalBillingCycles != nil && *input.TotalBillingCycles <= 0 {
		return costdomain.ErrInvalidTotalCycles
	}
	if !input.Disabled && input.InitialBillingCycleID == nil {
		return costdomain.ErrInitialCycleRequired
	}
	if input.Disabled && input.InitialBillingCycleID != nil {
		return costdomain.ErrInitialCycleNotAllowed
	}

	if len(input.Splits) == 0 {
		return costdomain.ErrNoSplits
	}
	portionTotal := decimal.Zero
	seen := make(map[snowflake.ID]bool, len(input.Splits))
	for _, split := range input.Splits {
		if seen[split.FromAccountID] {
			return costdomain.ErrDuplicateSplit
		}
		seen[split.FromAccountID] = true
		portionTotal = portionTotal.Add(split.Portion)
	}
	if !portionTotal.IsPositive() {
		return costdomain.ErrInvalidPortions
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (costdomain.RecurringCost, error) {
	return s.getCost(ctx, s.db, id)
}

func (s *Service) getCost(ctx context.Context, db *gorm.DB, id snowflake.ID) (costdomain.RecurringCost, error) {
	var cost costdomain.RecurringCost
	err := db.WithContext(ctx).
		Preload("Splits", func(db *gorm.DB) *gorm.DB { return db.Order("from_account_id") }).
		Where("id = ?", id).
		First(&cost).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return costdomain.RecurringCost{}, costdomain.ErrCostNotFound
		}
		return costdomain.RecurringCost{}, err
	}
	return cost, nil
}

func (s *Service) List(ctx context.Context, includeDisabled bool) ([]costdomain.RecurringCost, error) {
	query := s.db.WithContext(ctx).
		Preload("Splits", func(db *gorm.DB) *gorm.DB { return db.Order("from_account_id") }).
		Order("id")
	if !includeDisabled {
		query = query.Where("disabled = ?", false)
	}
	var costs []costdomain.RecurringCost
	err := query.Find(&costs).Error
	return costs, err
}

func (s *Service) Disable(ctx context.Context, id snowflake.ID) error {
	return s.disable(ctx, s.db, id)
}

// disable switches the cost off and clears its initial cycle so the
// disabled/no-initial-cycle pairing always holds.
func (s *Service) disable(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	result := db.WithContext(ctx).
		Model(&costdomain.RecurringCost{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"disabled":                 true,
			"initial_billing_cycle_id": nil,
			"updated_at":               time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return costdomain.ErrCostNotFound
	}
	return nil
}

func (s *Service) Amount(ctx context.Context, cost costdomain.RecurringCost, cycle billingcycledomain.BillingCycle) (decimal.Decimal, error) {
	return s.amount(ctx, s.db, s.ledger, cost, cycle)
}

func (s *Service) amount(ctx context.Context, db *gorm.DB, ledger ledgerdomain.Service, cost costdomain.RecurringCost, cycle billingcycledomain.BillingCycle) (decimal.Decimal, error) {
	switch cost.Type {
	case costdomain.CostTypeNormal:
		if cost.FixedAmount == nil {
			return decimal.Zero, costdomain.ErrFixedAmountRequired
		}
		if !cost.IsOneOff() {
			return *cost.FixedAmount, nil
		}
		return s.oneOffAmount(ctx, db, cost, cycle)

	case costdomain.CostTypeArrearsBalance:
		// Everything spent from the destination account up to the end of
		// the cycle, less anything already billed for it.
		return ledger.AccountBalance(ctx, cost.ToAccountID, &ledgerdomain.DateRange{End: &cycle.EndDate})

	case costdomain.CostTypeArrearsTransactions:
		// Only the movement on the destination account during the cycle.
		return ledger.AccountBalance(ctx, cost.ToAccountID, &ledgerdomain.DateRange{
			Start: &cycle.StartDate,
			End:   &cycle.EndDate,
		})

	default:
		return decimal.Zero, costdomain.ErrInvalidCostType
	}
}

// oneOffAmount spreads the fixed total across the cost's cycles so the
// shares sum exactly, then picks the share for the cycle's position in the
// sequence. Cycles past the end of the sequence bill nothing.
func (s *Service) oneOffAmount(ctx context.Context, db *gorm.DB, cost costdomain.RecurringCost, cycle billingcycledomain.BillingCycle) (decimal.Decimal, error) {
	if cost.InitialBillingCycleID == nil {
		return decimal.Zero, costdomain.ErrInitialCycleRequired
	}
	initial, err := s.getCycle(ctx, db, *cost.InitialBillingCycleID)
	if err != nil {
		return decimal.Zero, err
	}
	if cycle.StartDate.Before(initial.StartDate) {
		return decimal.Zero, costdomain.ErrCycleBeforeInitialCycle
	}

	// 1-indexed position of cycle in the sequence starting at the initial
	// cycle, counted over the cycles actually stored.
	var position int64
	err = db.WithContext(ctx).Model(&billingcycledomain.BillingCycle{}).
		Where("start_date >= ? AND start_date <= ?", initial.StartDate, cycle.StartDate).
		Count(&position).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := *cost.TotalBillingCycles
	if position > int64(total) {
		return decimal.Zero, nil
	}

	shares, err := splitting.Even(*cost.FixedAmount, total)
	if err != nil {
		return decimal.Zero, err
	}
	return shares[position-1], nil
}

func (s *Service) IsEnactable(ctx context.Context, cost costdomain.RecurringCost, cycle billingcycledomain.BillingCycle) (bool, error) {
	return s.isEnactable(ctx, s.db, cost, cycle)
}

func (s *Service) isEnactable(ctx context.Context, db *gorm.DB, cost costdomain.RecurringCost, cycle billingcycledomain.BillingCycle) (bool, error) {
	if cost.Disabled || cost.InitialBillingCycleID == nil {
		return false, nil
	}
	initial, err := s.getCycle(ctx, db, *cost.InitialBillingCycleID)
	if err != nil {
		return false, err
	}
	if cycle.StartDate.Before(initial.StartDate) {
		return false, nil
	}
	if !cost.IsOneOff() {
		return true, nil
	}

	// A one-off stops being enactable once the cycle falls past its span or
	// the full fixed amount has already been billed.
	var position int64
	err = db.WithContext(ctx).Model(&billingcycledomain.BillingCycle{}).
		Where("start_date >= ? AND start_date <= ?", initial.StartDate, cycle.StartDate).
		Count(&position).Error
	if err != nil {
		return false, err
	}
	if position > int64(*cost.TotalBillingCycles) {
		return false, nil
	}

	billed, err := s.billedAmount(ctx, db, cost.ID)
	if err != nil {
		return false, err
	}
	return billed.LessThan(*cost.FixedAmount), nil
}

func (s *Service) HasEnacted(ctx context.Context, costID, cycleID snowflake.ID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&costdomain.RecurredCost{}).
		Where("recurring_cost_id = ? AND billing_cycle_id = ?", costID, cycleID).
		Count(&count).Error
	return count > 0, err
}

func (s *Service) Enact(ctx context.Context, costID, cycleID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cost, err := s.getCost(ctx, tx, costID)
		if err != nil {
			return err
		}
		cycle, err := s.getCycle(ctx, tx, cycleID)
		if err != nil {
			return err
		}

		enactable, err := s.isEnactable(ctx, tx, cost, cycle)
		if err != nil {
			return err
		}
		if !enactable {
			return costdomain.ErrNotEnactable
		}
		if len(cost.Splits) == 0 {
			return costdomain.ErrNoSplits
		}

		ledger := s.ledger.WithTx(tx)
		amount, err := s.amount(ctx, tx, ledger, cost, cycle)
		if err != nil {
			return err
		}

		var transactionID *snowflake.ID
		if !amount.IsZero() {
			account, err := ledger.GetAccount(ctx, cost.ToAccountID)
			if err != nil {
				return err
			}

			portions := make([]decimal.Decimal, len(cost.Splits))
			for i, split := range cost.Splits {
				portions[i] = split.Portion
			}
			shares, err := splitting.Split(amount, portions)
			if err != nil {
				return err
			}

			legs := make([]ledgerdomain.LegInput, 0, len(shares)+1)
			legs = append(legs, ledgerdomain.LegInput{
				AccountID: cost.ToAccountID,
				Amount:    amount.Neg(),
			})
			for i, split := range cost.Splits {
				legs = append(legs, ledgerdomain.LegInput{
					AccountID: split.FromAccountID,
					Amount:    shares[i],
				})
			}

			transaction, err := ledger.CreateTransaction(ctx, ledgerdomain.CreateTransactionInput{
				Description: account.Name,
				Date:        cycle.StartDate,
				Metadata: map[string]any{
					"recurring_cost_id": cost.ID.String(),
					"billing_cycle_id":  cycle.ID.String(),
				},
				Legs: legs,
			})
			if err != nil {
				return err
			}
			transactionID = &transaction.ID
		}

		// The unique (cost, cycle) index makes this the once-only gate: a
		// concurrent enactment loses here and the posted transaction rolls
		// back with it.
		err = tx.Create(&costdomain.RecurredCost{
			ID:              s.genID.Generate(),
			RecurringCostID: cost.ID,
			BillingCycleID:  cycle.ID,
			TransactionID:   transactionID,
			CreatedAt:       time.Now().UTC(),
		}).Error
		if err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return costdomain.ErrAlreadyEnacted
			}
			return err
		}

		// A one-off whose final cycle this was retires immediately, inside
		// the same transaction.
		if _, err := s.disableIfDone(ctx, tx, cost.ID, cycle.EndDate); err != nil {
			return err
		}

		s.log.Info("recurring cost enacted",
			zap.Int64("cost_id", int64(cost.ID)),
			zap.Int64("billing_cycle_id", int64(cycle.ID)),
			zap.String("amount", amount.String()),
		)
		return nil
	})
}

func (s *Service) DisableIfDone(ctx context.Context, costID snowflake.ID, asOf time.Time) (bool, error) {
	return s.disableIfDone(ctx, s.db, costID, asOf)
}

func (s *Service) disableIfDone(ctx context.Context, db *gorm.DB, costID snowflake.ID, asOf time.Time) (bool, error) {
	cost, err := s.getCost(ctx, db, costID)
	if err != nil {
		return false, err
	}
	if cost.Disabled || !cost.IsOneOff() || cost.InitialBillingCycleID == nil {
		return false, nil
	}

	initial, err := s.getCycle(ctx, db, *cost.InitialBillingCycleID)
	if err != nil {
		return false, err
	}

	// The cost is done once its final cycle has ended. If fewer cycles than
	// the cost spans have been generated yet, it cannot be done.
	var final billingcycledomain.BillingCycle
	err = db.WithContext(ctx).
		Where("start_date >= ?", initial.StartDate).
		Order("start_date").
		Offset(*cost.TotalBillingCycles - 1).
		First(&final).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if asOf.Before(final.EndDate) {
		return false, nil
	}

	if err := s.disable(ctx, db, costID); err != nil {
		return false, err
	}
	s.log.Info("one-off cost completed and disabled", zap.Int64("cost_id", int64(costID)))
	return true, nil
}

func (s *Service) BilledAmount(ctx context.Context, costID snowflake.ID) (decimal.Decimal, error) {
	if _, err := s.Get(ctx, costID); err != nil {
		return decimal.Zero, err
	}
	return s.billedAmount(ctx, s.db, costID)
}

func (s *Service) billedAmount(ctx context.Context, db *gorm.DB, costID snowflake.ID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := db.WithContext(ctx).
		Table("ledger_legs").
		Joins("JOIN recurred_costs ON recurred_costs.transaction_id = ledger_legs.transaction_id").
		Where("recurred_costs.recurring_cost_id = ? AND ledger_legs.amount > 0", costID).
		Select("COALESCE(SUM(ledger_legs.amount), 0)").
		Scan(&total).Error
	return total, err
}

func (s *Service) getCycle(ctx context.Context, db *gorm.DB, id snowflake.ID) (billingcycledomain.BillingCycle, error) {
	var cycle billingcycledomain.BillingCycle
	err := db.WithContext(ctx).Where("id = ?", id).First(&cycle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billingcycledomain.BillingCycle{}, billingcycledomain.ErrCycleNotFound
		}
		return billingcycledomain.BillingCycle{}, err
	}
	return cycle, nil
}
