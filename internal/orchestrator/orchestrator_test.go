package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingcycledomain "github.com/hearthshare/hearth/internal/billingcycle/domain"
	billingcycleservice "github.com/hearthshare/hearth/internal/billingcycle/service"
	"github.com/hearthshare/hearth/internal/clock"
	"github.com/hearthshare/hearth/internal/config"
	costdomain "github.com/hearthshare/hearth/internal/cost/domain"
	costservice "github.com/hearthshare/hearth/internal/cost/service"
	"github.com/hearthshare/hearth/internal/cycle"
	housematedomain "github.com/hearthshare/hearth/internal/housemate/domain"
	housemateservice "github.com/hearthshare/hearth/internal/housemate/service"
	ledgerdomain "github.com/hearthshare/hearth/internal/ledger/domain"
	ledgerservice "github.com/hearthshare/hearth/internal/ledger/service"
	statementdomain "github.com/hearthshare/hearth/internal/statement/domain"
	statementservice "github.com/hearthshare/hearth/internal/statement/service"
)

type sentMail struct {
	to      []string
	subject string
	body    string
}

type recordingMailer struct {
	sent []sentMail
}

func (r *recordingMailer) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	r.sent = append(r.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

type orchestratorTestEnv struct {
	db         *gorm.DB
	clock      *clock.FakeClock
	mailer     *recordingMailer
	ledger     ledgerdomain.Service
	cycles     billingcycledomain.Service
	costs      costdomain.Service
	housemates housematedomain.Service
	statements statementdomain.Service
	orch       *Orchestrator
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setupOrchestratorTest(t *testing.T, now time.Time) *orchestratorTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Pin a connection so the shared in-memory database survives pool churn.
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.Account{},
		&ledgerdomain.Transaction{},
		&ledgerdomain.Leg{},
		&billingcycledomain.BillingCycle{},
		&costdomain.RecurringCost{},
		&costdomain.RecurringCostSplit{},
		&costdomain.RecurredCost{},
		&housematedomain.Housemate{},
		&statementdomain.StatementImport{},
		&statementdomain.StatementLine{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(now)
	household := config.NewStaticHouseholdConfigHolder(config.HouseholdConfig{
		HouseName:         "Elm Street",
		Currency:          "GBP",
		BillingCycleYears: 1,
		PublicHost:        "elm.example.com",
		UseHTTPS:          true,
		StatementReplyTo:  "house@example.com",
	})
	log := zap.NewNop()

	ledger := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, GenID: node})
	cycles := billingcycleservice.NewService(billingcycleservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake, Strategy: cycle.Monthly{}, Household: household,
	})
	costs := costservice.NewService(costservice.ServiceParam{DB: db, Log: log, GenID: node, Ledger: ledger})
	housemates := housemateservice.NewService(housemateservice.ServiceParam{
		DB: db, Log: log, GenID: node, Ledger: ledger, Household: household,
	})
	statements := statementservice.NewService(statementservice.ServiceParam{DB: db, Log: log, GenID: node, Clock: fake, Ledger: ledger})

	mailer := &recordingMailer{}
	orch := New(Params{
		Log:        log,
		Clock:      fake,
		Cycles:     cycles,
		Costs:      costs,
		Housemates: housemates,
		Statements: statements,
		Ledger:     ledger,
		Email:      mailer,
		Household:  household,
	})

	return &orchestratorTestEnv{
		db:         db,
		clock:      fake,
		mailer:     mailer,
		ledger:     ledger,
		cycles:     cycles,
		costs:      costs,
		housemates: housemates,
		statements: statements,
		orch:       orch,
	}
}

func (e *orchestratorTestEnv) populate(t *testing.T) {
	t.Helper()
	_, err := e.orch.PopulateBillingCycles(context.Background())
	require.NoError(t, err)
}

func (e *orchestratorTestEnv) expenseAccount(t *testing.T, code, name string) snowflake.ID {
	t.Helper()
	account, err := e.ledger.CreateAccount(context.Background(), ledgerdomain.Account{
		Code: code, Name: name, Type: ledgerdomain.AccountTypeExpense, Currency: "GBP",
	})
	require.NoError(t, err)
	return account.ID
}

func (e *orchestratorTestEnv) housemate(t *testing.T, name, email string) housematedomain.Housemate {
	t.Helper()
	housemate, err := e.housemates.Create(context.Background(), housematedomain.CreateHousemateInput{
		Name: name, Email: email,
	})
	require.NoError(t, err)
	return housemate
}

func (e *orchestratorTestEnv) normalCost(t *testing.T, toAccount snowflake.ID, amount string, initial snowflake.ID, splitAccounts ...snowflake.ID) costdomain.RecurringCost {
	t.Helper()
	fixed := decimal.RequireFromString(amount)
	splits := make([]costdomain.SplitInput, len(splitAccounts))
	for i, id := range splitAccounts {
		splits[i] = costdomain.SplitInput{FromAccountID: id, Portion: decimal.NewFromInt(1)}
	}
	cost, err := e.costs.Create(context.Background(), costdomain.CreateCostInput{
		ToAccountID:           toAccount,
		Type:                  costdomain.CostTypeNormal,
		FixedAmount:           &fixed,
		InitialBillingCycleID: &initial,
		Splits:                splits,
	})
	require.NoError(t, err)
	return cost
}

func TestEnactCostsSweepsDueCycles(t *testing.T) {
	env := setupOrchestratorTest(t, date(2000, 1, 15))
	ctx := context.Background()

	env.populate(t)

	gas := env.expenseAccount(t, "gas", "Gas")
	alice := env.housemate(t, "Alice", "alice@example.com")
	bob := env.housemate(t, "Bob", "bob@example.com")

	first, err := env.cycles.AsOf(ctx, date(2000, 1, 15))
	require.NoError(t, err)
	env.normalCost(t, gas, "100", first.ID, alice.AccountID, bob.AccountID)

	result, err := env.orch.EnactCosts(ctx, date(2000, 1, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, result.CyclesEnacted)
	assert.Equal(t, 1, result.CostsEnacted)
	assert.Zero(t, result.Skipped)

	balance, err := env.ledger.AccountBalance(ctx, alice.AccountID, nil)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(50)), "got %s", balance)

	first, err = env.cycles.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, first.TransactionsCreated)

	// A second sweep finds nothing due.
	result, err = env.orch.EnactCosts(ctx, date(2000, 1, 15))
	require.NoError(t, err)
	assert.Zero(t, result.CyclesEnacted)
}

func TestEnactCostsCatchesUpMissedCycles(t *testing.T) {
	env := setupOrchestratorTest(t, date(2000, 1, 15))
	ctx := context.Background()

	env.populate(t)

	gas := env.expenseAccount(t, "gas", "Gas")
	alice := env.housemate(t, "Alice", "alice@example.com")

	first, err := env.cycles.AsOf(ctx, date(2000, 1, 15))
	require.NoError(t, err)
	env.normalCost(t, gas, "100", first.ID, alice.AccountID)

	// Three months pass without a sweep.
	result, err := env.orch.EnactCosts(ctx, date(2000, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, 3, result.CyclesEnacted)
	assert.Equal(t, 3, result.CostsEnacted)

	balance, err := env.ledger.AccountBalance(ctx, alice.AccountID, nil)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(300)), "got %s", balance)
}

func TestEnactCostsSkipsLateStarters(t *testing.T) {
	env := setupOrchestratorTest(t, date(2000, 1, 15))
	ctx := context.Background()

	env.populate(t)

	gas := env.expenseAccount(t, "gas", "Gas")
	alice := env.housemate(t, "Alice", "alice@example.com")

	first, err := env.cycles.AsOf(ctx, date(2000, 1, 15))
	require.NoError(t, err)
	second, err := env.cycles.Next(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, second)

	// Cost starts in February; the January cycle skips it but still closes.
	env.normalCost(t, gas, "100", second.ID, alice.AccountID)

	result, err := env.orch.EnactCosts(ctx, date(2000, 1, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, result.CyclesEnacted)
	assert.Zero(t, result.CostsEnacted)
	assert.Equal(t, 1, result.Skipped)
}

func TestDisableCompletedCosts(t *testing.T) {
	env := setupOrchestratorTest(t, date(2000, 1, 15))
	ctx := context.Background()

	env.populate(t)

	sofa := env.expenseAccount(t, "sofa", "New Sofa")
	gas := env.expenseAccount(t, "gas", "Gas")
	alice := env.housemate(t, "Alice", "alice@example.com")

	first, err := env.cycles.AsOf(ctx, date(2000, 1, 15))
	require.NoError(t, err)

	total := decimal.NewFromInt(90)
	span := 2
	oneOff, err := env.costs.Create(ctx, costdomain.CreateCostInput{
		ToAccountID:           sofa,
		Type:                  costdomain.CostTypeNormal,
		FixedAmount:           &total,
		TotalBillingCycles:    &span,
		InitialBillingCycleID: &first.ID,
		Splits:                []costdomain.SplitInput{{FromAccountID: alice.AccountID, Portion: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)
	ongoing := env.normalCost(t, gas, "100", first.ID, alice.AccountID)

	disabled, err := env.orch.DisableCompletedCosts(ctx, date(2000, 2, 15))
	require.NoError(t, err)
	assert.Zero(t, disabled)

	disabled, err = env.orch.DisableCompletedCosts(ctx, date(2000, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, disabled)

	got, err := env.costs.Get(ctx, oneOff.ID)
	require.NoError(t, err)
	assert.True(t, got.Disabled)

	got, err = env.costs.Get(ctx, ongoing.ID)
	require.NoError(t, err)
	assert.False(t, got.Disabled)
}

func TestIsReconciled(t *testing.T) {
	env := setupOrchestratorTest(t, date(2000, 1, 15))
	ctx := context.Background()

	env.populate(t)
	cycle, err := env.cycles.AsOf(ctx, date(2000, 1, 15))
	require.NoError(t, err)

	// No import yet.
	ok, err := env.orch.IsReconciled(ctx, cycle)
	require.NoError(t, err)
	assert.False(t, ok)

	// An import lands after the cycle has ended, covering it fully.
	env.clock.Set(date(2000, 2, 3))
	imported, err := env.statements.Import(ctx, statementdomain.ImportInput{
		Source: "csv",
		Lines: []statementdomain.LineInput{{
			Date:        date(2000, 1, 10),
			Amount:      decimal.RequireFromString("-45.50"),
			Description: "SUPERMARKET",
		}},
	})
	require.NoError(t, err)

	// A line inside the cycle is still unreconciled.
	ok, err = env.orch.IsReconciled(ctx, cycle)
	require.NoError(t, err)
	assert.False(t, ok)

	bank, err := env.ledger.CreateAccount(ctx, ledgerdomain.Account{Code: "bank", Name: "Bank", Type: ledgerdomain.AccountTypeAsset, Currency: "GBP"})
	require.NoError(t, err)
	food := env.expenseAccount(t, "food", "Food")

	_, err = env.statements.Reconcile(ctx, statementdomain.ReconcileInput{
		LineID:        imported.Lines[0].ID,
		BankAccountID: bank.ID,
		AccountID:     food,
	})
	require.NoError(t, err)

	ok, err = env.orch.IsReconciled(ctx, cycle)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSendStatements(t *testing.T) {
	env := setupOrchestratorTest(t, date(2000, 1, 15))
	ctx := context.Background()

	env.populate(t)

	gas := env.expenseAccount(t, "gas", "Gas")
	alice := env.housemate(t, "Alice", "alice@example.com")
	bob := env.housemate(t, "Bob", "bob@example.com")

	first, err := env.cycles.AsOf(ctx, date(2000, 1, 15))
	require.NoError(t, err)
	env.normalCost(t, gas, "100", first.ID, alice.AccountID, bob.AccountID)

	// Not billed yet.
	_, err = env.orch.SendStatements(ctx, first.ID)
	assert.ErrorIs(t, err, ErrCycleNotEnacted)

	_, err = env.orch.EnactCosts(ctx, date(2000, 1, 15))
	require.NoError(t, err)

	sent, err := env.orch.SendStatements(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	require.Len(t, env.mailer.sent, 2)

	mail := env.mailer.sent[0]
	assert.Equal(t, []string{"alice@example.com"}, mail.to)
	assert.Contains(t, mail.subject, "Elm Street")
	assert.Contains(t, mail.body, "GBP 50.00")
	assert.Contains(t, mail.body, "https://elm.example.com")

	_, err = env.orch.SendStatements(ctx, first.ID)
	assert.ErrorIs(t, err, ErrStatementsAlreadySent)
}

func TestNotifyHousemates(t *testing.T) {
	env := setupOrchestratorTest(t, date(2000, 1, 15))
	ctx := context.Background()

	env.populate(t)

	gas := env.expenseAccount(t, "gas", "Gas")
	alice := env.housemate(t, "Alice", "alice@example.com")
	bob := env.housemate(t, "Bob", "bob@example.com")

	first, err := env.cycles.AsOf(ctx, date(2000, 1, 15))
	require.NoError(t, err)
	env.normalCost(t, gas, "100", first.ID, alice.AccountID, bob.AccountID)

	_, err = env.orch.EnactCosts(ctx, date(2000, 1, 31))
	require.NoError(t, err)

	// January has ended but no statement has been imported, so the cycle is
	// blocked and the household gets a reconciliation notice instead.
	env.clock.Set(date(2000, 2, 10))
	sent, err := env.orch.NotifyHousemates(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	require.Len(t, env.mailer.sent, 1)
	notice := env.mailer.sent[0]
	assert.Equal(t, []string{"house@example.com"}, notice.to)
	assert.Contains(t, notice.subject, "bank statement needs reconciling")
	assert.Contains(t, notice.body, "1 January 2000 to 31 January 2000")

	bank, err := env.ledger.CreateAccount(ctx, ledgerdomain.Account{Code: "bank", Name: "Bank", Type: ledgerdomain.AccountTypeAsset, Currency: "GBP"})
	require.NoError(t, err)
	food := env.expenseAccount(t, "food", "Food")

	imported, err := env.statements.Import(ctx, statementdomain.ImportInput{
		Source: "csv",
		Lines: []statementdomain.LineInput{{
			Date:        date(2000, 1, 10),
			Amount:      decimal.RequireFromString("-45.50"),
			Description: "SUPERMARKET",
		}},
	})
	require.NoError(t, err)
	_, err = env.statements.Reconcile(ctx, statementdomain.ReconcileInput{
		LineID:        imported.Lines[0].ID,
		BankAccountID: bank.ID,
		AccountID:     food,
	})
	require.NoError(t, err)

	sent, err = env.orch.NotifyHousemates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	require.Len(t, env.mailer.sent, 3)
	assert.Equal(t, []string{"alice@example.com"}, env.mailer.sent[1].to)
	assert.Contains(t, env.mailer.sent[1].subject, "statement for January 2000")

	// A later run finds nothing left to send.
	sent, err = env.orch.NotifyHousemates(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, env.mailer.sent, 3)
}
