package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	pkgdb "github.com/hearthshare/hearth/pkg/db"

	ledgerdomain "github.com/hearthshare/hearth/internal/ledger/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

func (s *Service) WithTx(tx *gorm.DB) ledgerdomain.Service {
	return &Service{db: tx, log: s.log, genID: s.genID}
}

func (s *Service) CreateAccount(ctx context.Context, account ledgerdomain.Account) (ledgerdomain.Account, error) {
	if account.ID == 0 {
		account.ID = s.genID.Generate()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return ledgerdomain.Account{}, ledgerdomain.ErrDuplicateAccountCode
		}
		return ledgerdomain.Account{}, err
	}
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, id snowflake.ID) (*ledgerdomain.Account, error) {
	var account ledgerdomain.Account
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ledgerdomain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *Service) GetAccountByCode(ctx context.Context, code string) (*ledgerdomain.Account, error) {
	var account ledgerdomain.Account
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&account).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ledgerdomain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]ledgerdomain.Account, error) {
	var accounts []ledgerdomain.Account
	err := s.db.WithContext(ctx).Order("code").Find(&accounts).Error
	return accounts, err
}

func (s *Service) CreateTransaction(ctx context.Context, input ledgerdomain.CreateTransactionInput) (ledgerdomain.Transaction, error) {
	if len(input.Legs) < 2 {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrInvalidLegCount
	}
	if input.Date.IsZero() {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrInvalidTransactionDate
	}

	var created ledgerdomain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		legs := make([]ledgerdomain.Leg, 0, len(input.Legs))
		for _, in := range input.Legs {
			var account ledgerdomain.Account
			if err := tx.WithContext(ctx).Where("id = ?", in.AccountID).First(&account).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return ledgerdomain.ErrAccountNotFound
				}
				return err
			}
			legs = append(legs, ledgerdomain.Leg{
				AccountID:   in.AccountID,
				Amount:      in.Amount,
				Currency:    account.Currency,
				Description: in.Description,
			})
		}

		if err := validateBalanced(legs); err != nil {
			return err
		}

		now := time.Now().UTC()
		created = ledgerdomain.Transaction{
			ID:          s.genID.Generate(),
			Description: input.Description,
			Date:        input.Date.UTC(),
			Metadata:    input.Metadata,
			CreatedAt:   now,
		}
		if err := tx.WithContext(ctx).Create(&created).Error; err != nil {
			return err
		}

		for i := range legs {
			legs[i].ID = s.genID.Generate()
			legs[i].TransactionID = created.ID
			legs[i].CreatedAt = now
			if err := tx.WithContext(ctx).Create(&legs[i]).Error; err != nil {
				return err
			}
		}
		created.Legs = legs
		return nil
	})
	if err != nil {
		return ledgerdomain.Transaction{}, err
	}
	return created, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.WithContext(ctx).Where("id = ?", id).Delete(&ledgerdomain.Transaction{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ledgerdomain.ErrTransactionNotFound
		}
		return tx.WithContext(ctx).Where("transaction_id = ?", id).Delete(&ledgerdomain.Leg{}).Error
	})
}

func (s *Service) AccountBalance(ctx context.Context, accountID snowflake.ID, rng *ledgerdomain.DateRange) (decimal.Decimal, error) {
	stmt := s.db.WithContext(ctx).
		Model(&ledgerdomain.Leg{}).
		Select("COALESCE(SUM(ledger_legs.amount), 0)").
		Joins("JOIN ledger_transactions ON ledger_transactions.id = ledger_legs.transaction_id").
		Where("ledger_legs.account_id = ?", accountID)

	if rng != nil {
		if rng.Start != nil {
			stmt = stmt.Where("ledger_transactions.date >= ?", rng.Start.UTC())
		}
		if rng.End != nil {
			stmt = stmt.Where("ledger_transactions.date < ?", rng.End.UTC())
		}
	}

	var balance decimal.Decimal
	if err := stmt.Scan(&balance).Error; err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *Service) Transfer(ctx context.Context, input ledgerdomain.TransferInput) (ledgerdomain.Transaction, error) {
	if !input.Amount.IsPositive() {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrInvalidTransferAmount
	}
	date := input.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return s.CreateTransaction(ctx, ledgerdomain.CreateTransactionInput{
		Description: input.Description,
		Date:        date,
		Legs: []ledgerdomain.LegInput{
			{AccountID: input.FromAccountID, Amount: input.Amount.Neg()},
			{AccountID: input.ToAccountID, Amount: input.Amount},
		},
	})
}

// validateBalanced checks that legs sum to zero within each currency.
func validateBalanced(legs []ledgerdomain.Leg) error {
	totals := map[string]decimal.Decimal{}
	for _, leg := range legs {
		totals[leg.Currency] = totals[leg.Currency].Add(leg.Amount)
	}
	for _, total := range totals {
		if !total.IsZero() {
			return ledgerdomain.ErrUnbalancedTransaction
		}
	}
	return nil
}
