package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hearthshare/hearth/internal/config"
	housematedomain "github.com/hearthshare/hearth/internal/housemate/domain"
	ledgerdomain "github.com/hearthshare/hearth/internal/ledger/domain"
	pkgdb "github.com/hearthshare/hearth/pkg/db"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Ledger    ledgerdomain.Service
	Household *config.HouseholdConfigHolder
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	ledger    ledgerdomain.Service
	household *config.HouseholdConfigHolder
}

func NewService(p ServiceParam) housematedomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("housemate.service"),
		genID:     p.GenID,
		ledger:    p.Ledger,
		household: p.Household,
	}
}

func (s *Service) Create(ctx context.Context, input housematedomain.CreateHousemateInput) (housematedomain.Housemate, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" {
		return housematedomain.Housemate{}, housematedomain.ErrNameRequired
	}
	if email == "" {
		return housematedomain.Housemate{}, housematedomain.ErrEmailRequired
	}

	id := s.genID.Generate()
	now := time.Now().UTC()
	housemate := housematedomain.Housemate{
		ID:        id,
		Name:      name,
		Email:     email,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.createAccount(ctx, tx, name)
		if err != nil {
			return err
		}
		housemate.AccountID = account.ID

		if err := tx.WithContext(ctx).Create(&housemate).Error; err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return housematedomain.ErrDuplicateEmail
			}
			return err
		}
		return nil
	})
	if err != nil {
		return housematedomain.Housemate{}, err
	}

	s.log.Info("housemate registered",
		zap.Int64("housemate_id", int64(housemate.ID)),
		zap.Int64("account_id", int64(housemate.AccountID)),
	)
	return housemate, nil
}

// createAccount opens the housemate's income account under a code derived
// from their name, suffixing the code when it is already taken.
func (s *Service) createAccount(ctx context.Context, tx *gorm.DB, name string) (ledgerdomain.Account, error) {
	ledger := s.ledger.WithTx(tx)
	code := slugify(name)

	account, err := ledger.CreateAccount(ctx, ledgerdomain.Account{
		Code:     code,
		Name:     name,
		Type:     ledgerdomain.AccountTypeIncome,
		Currency: s.household.Current().Currency,
	})
	if errors.Is(err, ledgerdomain.ErrDuplicateAccountCode) {
		return ledger.CreateAccount(ctx, ledgerdomain.Account{
			Code:     fmt.Sprintf("%s-%d", code, s.genID.Generate()),
			Name:     name,
			Type:     ledgerdomain.AccountTypeIncome,
			Currency: s.household.Current().Currency,
		})
	}
	return account, err
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (housematedomain.Housemate, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *Service) GetByAccount(ctx context.Context, accountID snowflake.ID) (housematedomain.Housemate, error) {
	return s.findOne(ctx, "account_id = ?", accountID)
}

func (s *Service) findOne(ctx context.Context, query string, arg any) (housematedomain.Housemate, error) {
	var housemate housematedomain.Housemate
	err := s.db.WithContext(ctx).Where(query, arg).First(&housemate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return housematedomain.Housemate{}, housematedomain.ErrHousemateNotFound
		}
		return housematedomain.Housemate{}, err
	}
	return housemate, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]housematedomain.Housemate, error) {
	query := s.db.WithContext(ctx).Order("name")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var housemates []housematedomain.Housemate
	err := query.Find(&housemates).Error
	return housemates, err
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) error {
	result := s.db.WithContext(ctx).
		Model(&housematedomain.Housemate{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return housematedomain.ErrHousemateNotFound
	}
	return nil
}

// slugify lowers a display name into an account code, collapsing runs of
// non-alphanumerics into single dashes.
func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
