package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hearthshare/hearth/internal/clock"
	ledgerdomain "github.com/hearthshare/hearth/internal/ledger/domain"
	statementdomain "github.com/hearthshare/hearth/internal/statement/domain"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Ledger ledgerdomain.Service
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	ledger ledgerdomain.Service
}

func NewService(p ServiceParam) statementdomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("statement.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		ledger: p.Ledger,
	}
}

func (s *Service) Import(ctx context.Context, input statementdomain.ImportInput) (statementdomain.StatementImport, error) {
	if len(input.Lines) == 0 {
		return statementdomain.StatementImport{}, statementdomain.ErrImportEmpty
	}
	for _, line := range input.Lines {
		if line.Amount.IsZero() {
			return statementdomain.StatementImport{}, statementdomain.ErrZeroAmountLine
		}
	}

	now := s.clock.Now().UTC()
	imported := statementdomain.StatementImport{
		ID:        s.genID.Generate(),
		UUID:      uuid.New(),
		Source:    input.Source,
		CreatedAt: now,
	}

	dropped := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&imported).Error; err != nil {
			return err
		}

		for _, line := range input.Lines {
			date := line.Date.UTC()

			// Banks re-export overlapping windows; a row identical to one
			// already stored is the same row, not a new one.
			var existing int64
			err := tx.Model(&statementdomain.StatementLine{}).
				Where("date = ? AND amount = ? AND description = ?", date, line.Amount, line.Description).
				Count(&existing).Error
			if err != nil {
				return err
			}
			if existing > 0 {
				dropped++
				continue
			}

			created := statementdomain.StatementLine{
				ID:                s.genID.Generate(),
				UUID:              uuid.New(),
				StatementImportID: imported.ID,
				Date:              date,
				Amount:            line.Amount,
				Description:       line.Description,
				CreatedAt:         now,
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			imported.Lines = append(imported.Lines, created)
		}
		return nil
	})
	if err != nil {
		return statementdomain.StatementImport{}, err
	}

	s.log.Info("statement imported",
		zap.String("source", input.Source),
		zap.Int("lines", len(imported.Lines)),
		zap.Int("duplicates_dropped", dropped),
	)
	return imported, nil
}

func (s *Service) GetImport(ctx context.Context, id snowflake.ID) (statementdomain.StatementImport, error) {
	var imported statementdomain.StatementImport
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("date, id") }).
		Where("id = ?", id).
		First(&imported).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return statementdomain.StatementImport{}, statementdomain.ErrImportNotFound
		}
		return statementdomain.StatementImport{}, err
	}
	return imported, nil
}

func (s *Service) ListImports(ctx context.Context) ([]statementdomain.StatementImport, error) {
	var imports []statementdomain.StatementImport
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&imports).Error
	return imports, err
}

func (s *Service) ListLines(ctx context.Context, unreconciledOnly bool) ([]statementdomain.StatementLine, error) {
	query := s.db.WithContext(ctx).Order("date, id")
	if unreconciledOnly {
		query = query.Where("transaction_id IS NULL")
	}
	var lines []statementdomain.StatementLine
	err := query.Find(&lines).Error
	return lines, err
}

func (s *Service) Reconcile(ctx context.Context, input statementdomain.ReconcileInput) (statementdomain.StatementLine, error) {
	var line statementdomain.StatementLine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", input.LineID).First(&line).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return statementdomain.ErrLineNotFound
			}
			return err
		}
		if line.IsReconciled() {
			return statementdomain.ErrLineAlreadyReconciled
		}

		// A positive line is money into the bank from the counterparty; a
		// negative line is money out of the bank to it.
		from, to := input.AccountID, input.BankAccountID
		amount := line.Amount
		if amount.IsNegative() {
			from, to = to, from
			amount = amount.Neg()
		}

		transaction, err := s.ledger.WithTx(tx).Transfer(ctx, ledgerdomain.TransferInput{
			FromAccountID: from,
			ToAccountID:   to,
			Amount:        amount,
			Description:   line.Description,
			Date:          line.Date,
		})
		if err != nil {
			return err
		}

		line.TransactionID = &transaction.ID
		return tx.Model(&statementdomain.StatementLine{}).
			Where("id = ?", line.ID).
			Update("transaction_id", transaction.ID).Error
	})
	if err != nil {
		return statementdomain.StatementLine{}, err
	}
	return line, nil
}

func (s *Service) LatestImportAt(ctx context.Context) (*time.Time, error) {
	var imported statementdomain.StatementImport
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").First(&imported).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	at := imported.CreatedAt
	return &at, nil
}

func (s *Service) CountUnreconciled(ctx context.Context, start, end time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&statementdomain.StatementLine{}).
		Where("transaction_id IS NULL AND date >= ? AND date < ?", start.UTC(), end.UTC()).
		Count(&count).Error
	return count, err
}
