package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	ledgerdomain "github.com/hearthshare/hearth/internal/ledger/domain"
)

type accountSeed struct {
	code string
	name string
	typ  ledgerdomain.AccountType
}

var defaultAccounts = []accountSeed{
	{code: "bank", name: "Bank", typ: ledgerdomain.AccountTypeAsset},
	{code: "rent", name: "Rent", typ: ledgerdomain.AccountTypeExpense},
	{code: "food", name: "Food", typ: ledgerdomain.AccountTypeExpense},
	{code: "gas", name: "Gas", typ: ledgerdomain.AccountTypeExpense},
	{code: "electricity", name: "Electricity", typ: ledgerdomain.AccountTypeExpense},
	{code: "gas-payable", name: "Gas Payable", typ: ledgerdomain.AccountTypeLiability},
	{code: "electricity-payable", name: "Electricity Payable", typ: ledgerdomain.AccountTypeLiability},
}

// EnsureChartOfAccounts seeds the starter chart of accounts for a fresh
// install. Accounts are keyed by code, so reruns are no-ops and accounts
// created by hand are left alone.
func EnsureChartOfAccounts(db *gorm.DB, currency string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, account := range defaultAccounts {
			if err := ensureAccountTx(ctx, tx, node, account, currency); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensureAccountTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, seed accountSeed, currency string) error {
	var existing ledgerdomain.Account
	err := tx.WithContext(ctx).Where("code = ?", seed.code).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	account := ledgerdomain.Account{
		ID:        node.Generate(),
		Code:      seed.code,
		Name:      seed.name,
		Type:      seed.typ,
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	}
	return tx.WithContext(ctx).Create(&account).Error
}
