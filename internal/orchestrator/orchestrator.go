// Package orchestrator drives the household billing workflow: keeping the
// cycle sequence populated, enacting costs for due cycles, retiring
// finished one-off costs and mailing statements to housemates.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	billingcycledomain "github.com/hearthshare/hearth/internal/billingcycle/domain"
	"github.com/hearthshare/hearth/internal/clock"
	"github.com/hearthshare/hearth/internal/config"
	costdomain "github.com/hearthshare/hearth/internal/cost/domain"
	housematedomain "github.com/hearthshare/hearth/internal/housemate/domain"
	ledgerdomain "github.com/hearthshare/hearth/internal/ledger/domain"
	"github.com/hearthshare/hearth/internal/providers/email"
	statementdomain "github.com/hearthshare/hearth/internal/statement/domain"
)

var (
	// ErrStatementsAlreadySent guards against double-mailing a cycle.
	ErrStatementsAlreadySent = errors.New("statements already sent for this billing cycle")
	// ErrCycleNotEnacted is returned when statements are requested for a
	// cycle whose costs have not been billed yet.
	ErrCycleNotEnacted = errors.New("billing cycle costs have not been enacted yet")
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Cycles     billingcycledomain.Service
	Costs      costdomain.Service
	Housemates housematedomain.Service
	Statements statementdomain.Service
	Ledger     ledgerdomain.Service
	Email      email.Provider
	Household  *config.HouseholdConfigHolder
}

type Orchestrator struct {
	log        *zap.Logger
	clock      clock.Clock
	cycles     billingcycledomain.Service
	costs      costdomain.Service
	housemates housematedomain.Service
	statements statementdomain.Service
	ledger     ledgerdomain.Service
	email      email.Provider
	household  *config.HouseholdConfigHolder
}

func New(p Params) *Orchestrator {
	return &Orchestrator{
		log:        p.Log.Named("orchestrator"),
		clock:      p.Clock,
		cycles:     p.Cycles,
		costs:      p.Costs,
		housemates: p.Housemates,
		statements: p.Statements,
		ledger:     p.Ledger,
		email:      p.Email,
		household:  p.Household,
	}
}

// PopulateBillingCycles keeps the forward cycle sequence covering the
// configured horizon from now. It returns the net number of cycles added.
func (o *Orchestrator) PopulateBillingCycles(ctx context.Context) (int, error) {
	before, err := o.cycles.List(ctx)
	if err != nil {
		return 0, err
	}
	if err := o.cycles.Populate(ctx, o.clock.Now()); err != nil {
		return 0, err
	}
	after, err := o.cycles.List(ctx)
	if err != nil {
		return 0, err
	}

	created := len(after) - len(before)
	if created < 0 {
		created = 0
	}
	return created, nil
}

// EnactResult summarises one enactment sweep.
type EnactResult struct {
	CyclesEnacted         int
	CostsEnacted          int
	Skipped               int
	SkippedAlreadyEnacted int
	SkippedNotEnactable   int
}

// EnactCosts bills every enabled cost for every cycle that is due as of
// the given time, then marks those cycles as billed. Costs that were
// already enacted or are not yet applicable to a cycle are skipped rather
// than treated as failures.
func (o *Orchestrator) EnactCosts(ctx context.Context, asOf time.Time) (EnactResult, error) {
	var result EnactResult

	enactable, err := o.cycles.Enactable(ctx, asOf)
	if err != nil {
		return result, err
	}
	costs, err := o.costs.List(ctx, false)
	if err != nil {
		return result, err
	}

	for _, cycle := range enactable {
		for _, cost := range costs {
			err := o.costs.Enact(ctx, cost.ID, cycle.ID)
			switch {
			case err == nil:
				result.CostsEnacted++
			case errors.Is(err, costdomain.ErrAlreadyEnacted):
				result.Skipped++
				result.SkippedAlreadyEnacted++
			case errors.Is(err, costdomain.ErrNotEnactable):
				result.Skipped++
				result.SkippedNotEnactable++
			default:
				return result, fmt.Errorf("enact cost %d for cycle %d: %w", cost.ID, cycle.ID, err)
			}
		}
		if err := o.cycles.MarkTransactionsCreated(ctx, cycle.ID); err != nil {
			return result, err
		}
		result.CyclesEnacted++
	}

	if result.CyclesEnacted > 0 {
		o.log.Info("costs enacted",
			zap.Int("cycles", result.CyclesEnacted),
			zap.Int("costs", result.CostsEnacted),
			zap.Int("skipped", result.Skipped),
		)
	}
	return result, nil
}

// DisableCompletedCosts retires one-off costs whose final cycle has ended.
// It returns how many costs were disabled.
func (o *Orchestrator) DisableCompletedCosts(ctx context.Context, asOf time.Time) (int, error) {
	costs, err := o.costs.List(ctx, false)
	if err != nil {
		return 0, err
	}

	disabled := 0
	for _, cost := range costs {
		if !cost.IsOneOff() {
			continue
		}
		done, err := o.costs.DisableIfDone(ctx, cost.ID, asOf)
		if err != nil {
			return disabled, err
		}
		if done {
			disabled++
		}
	}
	return disabled, nil
}

// IsReconciled reports whether the cycle's books can be trusted: a bank
// statement covering the cycle has been imported since it ended, and no
// line dated within the cycle remains unreconciled.
func (o *Orchestrator) IsReconciled(ctx context.Context, cycle billingcycledomain.BillingCycle) (bool, error) {
	importedAt, err := o.statements.LatestImportAt(ctx)
	if err != nil {
		return false, err
	}
	if importedAt == nil || importedAt.Before(cycle.EndDate) {
		return false, nil
	}

	unreconciled, err := o.statements.CountUnreconciled(ctx, cycle.StartDate, cycle.EndDate)
	if err != nil {
		return false, err
	}
	return unreconciled == 0, nil
}

// NotifyHousemates walks every ended, billed cycle that has not been
// mailed yet: statements go out once the cycle's books are reconciled, and
// cycles still blocked on reconciliation trigger one notice to the
// household's reply-to address instead. It returns how many statements
// were sent.
func (o *Orchestrator) NotifyHousemates(ctx context.Context) (int, error) {
	cycles, err := o.cycles.List(ctx)
	if err != nil {
		return 0, err
	}

	now := o.clock.Now()
	sent := 0
	var blocked []billingcycledomain.BillingCycle
	for _, cycle := range cycles {
		if !cycle.TransactionsCreated || cycle.StatementsSent || cycle.EndDate.After(now) {
			continue
		}

		reconciled, err := o.IsReconciled(ctx, cycle)
		if err != nil {
			return sent, err
		}
		if !reconciled {
			blocked = append(blocked, cycle)
			continue
		}

		n, err := o.SendStatements(ctx, cycle.ID)
		if err != nil {
			return sent, err
		}
		sent += n
	}

	if len(blocked) > 0 {
		if err := o.sendReconciliationNotice(ctx, blocked); err != nil {
			return sent, err
		}
	}
	return sent, nil
}

func (o *Orchestrator) sendReconciliationNotice(ctx context.Context, blocked []billingcycledomain.BillingCycle) error {
	household := o.household.Current()
	o.log.Warn("statements blocked on reconciliation", zap.Int("cycles", len(blocked)))
	if household.StatementReplyTo == "" {
		return nil
	}

	ranges := make([]string, 0, len(blocked))
	for _, cycle := range blocked {
		ranges = append(ranges, fmt.Sprintf("%s to %s",
			cycle.StartDate.Format("2 January 2006"),
			cycle.EndDate.AddDate(0, 0, -1).Format("2 January 2006")))
	}

	body, err := renderReconciliationNotice(reconciliationNoticeData{
		HouseName: household.HouseName,
		Ranges:    ranges,
		Link:      household.BaseURL(),
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s: bank statement needs reconciling", household.HouseName)
	return o.email.Send(ctx, []string{household.StatementReplyTo}, subject, body)
}

// SendStatements emails every active housemate their current balance for
// the given cycle. Each cycle is mailed at most once.
func (o *Orchestrator) SendStatements(ctx context.Context, cycleID snowflake.ID) (int, error) {
	cycle, err := o.cycles.Get(ctx, cycleID)
	if err != nil {
		return 0, err
	}
	if cycle.StatementsSent {
		return 0, ErrStatementsAlreadySent
	}
	if !cycle.TransactionsCreated {
		return 0, ErrCycleNotEnacted
	}

	housemates, err := o.housemates.List(ctx, true)
	if err != nil {
		return 0, err
	}

	household := o.household.Current()
	sent := 0
	for _, housemate := range housemates {
		balance, err := o.ledger.AccountBalance(ctx, housemate.AccountID, nil)
		if err != nil {
			return sent, err
		}

		body, err := renderStatement(statementData{
			HouseName: household.HouseName,
			Name:      housemate.Name,
			Currency:  household.Currency,
			Balance:   balance.StringFixed(2),
			CycleFrom: cycle.StartDate.Format("2 January 2006"),
			CycleTo:   cycle.EndDate.AddDate(0, 0, -1).Format("2 January 2006"),
			Link:      household.BaseURL(),
		})
		if err != nil {
			return sent, err
		}

		subject := fmt.Sprintf("%s: statement for %s", household.HouseName, cycle.StartDate.Format("January 2006"))
		if err := o.email.Send(ctx, []string{housemate.Email}, subject, body); err != nil {
			return sent, fmt.Errorf("send statement to %s: %w", housemate.Email, err)
		}
		sent++
	}

	if err := o.cycles.MarkStatementsSent(ctx, cycle.ID); err != nil {
		return sent, err
	}

	o.log.Info("statements sent",
		zap.Int64("billing_cycle_id", int64(cycle.ID)),
		zap.Int("sent", sent),
	)
	return sent, nil
}

type statementData struct {
	HouseName string
	Name      string
	Currency  string
	Balance   string
	CycleFrom string
	CycleTo   string
	Link      string
}

var statementTemplate = template.Must(template.New("statement").Parse(`<html>
<body>
<p>Hi {{.Name}},</p>
<p>Here is your {{.HouseName}} statement for {{.CycleFrom}} to {{.CycleTo}}.</p>
<p>Your balance is <strong>{{.Currency}} {{.Balance}}</strong>.
{{- if .Link}} See the details at <a href="{{.Link}}">{{.Link}}</a>.{{end}}</p>
</body>
</html>
`))

func renderStatement(data statementData) (string, error) {
	var buf bytes.Buffer
	if err := statementTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type reconciliationNoticeData struct {
	HouseName string
	Ranges    []string
	Link      string
}

var reconciliationNoticeTemplate = template.Must(template.New("reconciliation").Parse(`<html>
<body>
<p>Statements for {{.HouseName}} are waiting on bank statement reconciliation for:</p>
<ul>
{{- range .Ranges}}
<li>{{.}}</li>
{{- end}}
</ul>
<p>Import and reconcile the latest bank statement to send them out.
{{- if .Link}} Go to <a href="{{.Link}}">{{.Link}}</a>.{{end}}</p>
</body>
</html>
`))

func renderReconciliationNotice(data reconciliationNoticeData) (string, error) {
	var buf bytes.Buffer
	if err := reconciliationNoticeTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var Module = fx.Module("orchestrator",
	fx.Provide(New),
)
