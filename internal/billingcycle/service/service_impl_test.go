package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingcycledomain "github.com/hearthshare/hearth/internal/billingcycle/domain"
	"github.com/hearthshare/hearth/internal/clock"
	"github.com/hearthshare/hearth/internal/config"
	"github.com/hearthshare/hearth/internal/cycle"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setupCycleTest(t *testing.T, now time.Time) (*gorm.DB, billingcycledomain.Service, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Pin a connection so the shared in-memory database survives pool churn.
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	require.NoError(t, db.AutoMigrate(&billingcycledomain.BillingCycle{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(now)
	svc := NewService(ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		Strategy: cycle.Monthly{},
		Household: config.NewStaticHouseholdConfigHolder(config.HouseholdConfig{
			Currency:          "GBP",
			BillingCycleYears: 1,
		}),
	})
	return db, svc, fake
}

func listRanges(t *testing.T, svc billingcycledomain.Service) [][2]time.Time {
	t.Helper()
	cycles, err := svc.List(context.Background())
	require.NoError(t, err)
	out := make([][2]time.Time, len(cycles))
	for i, c := range cycles {
		out[i] = [2]time.Time{c.StartDate, c.EndDate}
	}
	return out
}

func TestPopulateFromEmpty(t *testing.T) {
	_, svc, _ := setupCycleTest(t, date(2016, 6, 15))
	ctx := context.Background()

	require.NoError(t, svc.Populate(ctx, date(2016, 6, 15)))

	ranges := listRanges(t, svc)
	// 13 months: the cycle containing as_of plus twelve more, the last
	// starting exactly on the stop date.
	require.Len(t, ranges, 13)
	assert.Equal(t, date(2016, 6, 1), ranges[0][0])
	assert.Equal(t, date(2016, 7, 1), ranges[0][1])
	assert.Equal(t, date(2017, 6, 1), ranges[12][0])
	assert.Equal(t, date(2017, 7, 1), ranges[12][1])
}

func TestPopulateNonOverlapping(t *testing.T) {
	_, svc, _ := setupCycleTest(t, date(2016, 6, 15))
	ctx := context.Background()

	require.NoError(t, svc.Populate(ctx, date(2016, 6, 15)))

	cycles, err := svc.List(ctx)
	require.NoError(t, err)
	for i := 1; i < len(cycles); i++ {
		require.True(t, !cycles[i].StartDate.Before(cycles[i-1].EndDate),
			"cycle %d overlaps cycle %d", i, i-1)
	}
}

func TestPopulateIdempotentOnRepeat(t *testing.T) {
	_, svc, _ := setupCycleTest(t, date(2016, 6, 15))
	ctx := context.Background()

	require.NoError(t, svc.Populate(ctx, date(2016, 6, 15)))
	first := listRanges(t, svc)

	require.NoError(t, svc.Populate(ctx, date(2016, 6, 15)))
	second := listRanges(t, svc)

	assert.Equal(t, first, second)
}

func TestPopulateDeletesFutureButNotCurrent(t *testing.T) {
	db, svc, _ := setupCycleTest(t, date(2016, 6, 15))
	ctx := context.Background()

	require.NoError(t, svc.Populate(ctx, date(2016, 6, 15)))

	current, err := svc.AsOf(ctx, date(2016, 6, 20))
	require.NoError(t, err)
	currentID := current.ID

	var futureIDs []snowflake.ID
	cycles, err := svc.List(ctx)
	require.NoError(t, err)
	for _, c := range cycles {
		if c.StartDate.After(current.StartDate) {
			futureIDs = append(futureIDs, c.ID)
		}
	}
	require.NotEmpty(t, futureIDs)

	require.NoError(t, svc.Populate(ctx, date(2016, 6, 15)))

	// The current cycle row survives; every future row was recreated.
	current2, err := svc.AsOf(ctx, date(2016, 6, 20))
	require.NoError(t, err)
	assert.Equal(t, currentID, current2.ID)

	var stale int64
	require.NoError(t, db.Model(&billingcycledomain.BillingCycle{}).
		Where("id IN ?", futureIDs).Count(&stale).Error)
	assert.Zero(t, stale)
}

func TestRepopulateKeepsExistingFutureCycles(t *testing.T) {
	_, svc, _ := setupCycleTest(t, date(2016, 6, 15))
	ctx := context.Background()

	require.NoError(t, svc.Populate(ctx, date(2016, 6, 15)))

	cycles, err := svc.List(ctx)
	require.NoError(t, err)
	ids := make(map[snowflake.ID]bool, len(cycles))
	for _, c := range cycles {
		ids[c.ID] = true
	}

	require.NoError(t, svc.Repopulate(ctx))

	after, err := svc.List(ctx)
	require.NoError(t, err)
	for _, c := range after {
		if c.StartDate.Before(date(2017, 7, 1)) {
			assert.True(t, ids[c.ID], "cycle %s was recreated", c.StartDate)
		}
	}
}

func TestPopulateDateOutsideExistingCycles(t *testing.T) {
	_, svc, _ := setupCycleTest(t, date(2016, 6, 15))
	ctx := context.Background()

	require.NoError(t, svc.Populate(ctx, date(2016, 6, 15)))

	err := svc.Populate(ctx, date(2015, 1, 1))
	assert.ErrorIs(t, err, billingcycledomain.ErrDateOutsideExistingCycles)

	err = svc.Populate(ctx, date(2020, 1, 1))
	assert.ErrorIs(t, err, billingcycledomain.ErrDateOutsideExistingCycles)
}

func TestAsOf(t *testing.T) {
	_, svc, _ := setupCycleTest(t, date(2016, 6, 15))
	ctx := context.Background()

	require.NoError(t, svc.Populate(ctx, date(2016, 6, 15)))

	c, err := svc.AsOf(ctx, date(2016, 8, 31))
	require.NoError(t, err)
	assert.Equal(t, date(2016, 8, 1), c.StartDate)
	assert.Equal(t, date(2016, 9, 1), c.EndDate)

	// End date is exclusive.
	c, err = svc.AsOf(ctx, date(2016, 9, 1))
	require.NoError(t, err)
	assert.Equal(t, date(2016, 9, 1), c.StartDate)

	_, err = svc.AsOf(ctx, date(2000, 1, 1))
	assert.ErrorIs(t, err, billingcycledomain.ErrCycleNotFound)
}

func TestEnactable(t *testing.T) {
	_, svc, _ := setupCycleTest(t, date(2016, 6, 15))
	ctx := context.Background()

	require.NoError(t, svc.Populate(ctx, date(2016, 6, 15)))

	enactable, err := svc.Enactable(ctx, date(2016, 8, 10))
	require.NoError(t, err)
	require.Len(t, enactable, 3)
	assert.Equal(t, date(2016, 6, 1), enactable[0].StartDate)
	assert.Equal(t, date(2016, 8, 1), enactable[2].StartDate)

	require.NoError(t, svc.MarkTransactionsCreated(ctx, enactable[0].ID))

	enactable, err = svc.Enactable(ctx, date(2016, 8, 10))
	require.NoError(t, err)
	require.Len(t, enactable, 2)
	assert.Equal(t, date(2016, 7, 1), enactable[0].StartDate)
}

func TestNextAndPrevious(t *testing.T) {
	_, svc, _ := setupCycleTest(t, date(2016, 6, 15))
	ctx := context.Background()

	require.NoError(t, svc.Populate(ctx, date(2016, 6, 15)))

	first, err := svc.AsOf(ctx, date(2016, 6, 15))
	require.NoError(t, err)

	prev, err := svc.Previous(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, prev)

	next, err := svc.Next(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, date(2016, 7, 1), next.StartDate)

	prev, err = svc.Previous(ctx, *next)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, first.ID, prev.ID)
}

func TestMarkFlags(t *testing.T) {
	_, svc, _ := setupCycleTest(t, date(2016, 6, 15))
	ctx := context.Background()

	require.NoError(t, svc.Populate(ctx, date(2016, 6, 15)))

	c, err := svc.AsOf(ctx, date(2016, 6, 15))
	require.NoError(t, err)

	require.NoError(t, svc.MarkTransactionsCreated(ctx, c.ID))
	require.NoError(t, svc.MarkStatementsSent(ctx, c.ID))

	c, err = svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, c.TransactionsCreated)
	assert.True(t, c.StatementsSent)

	assert.ErrorIs(t, svc.MarkTransactionsCreated(ctx, snowflake.ID(42)), billingcycledomain.ErrCycleNotFound)
}
