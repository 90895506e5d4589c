package inventory_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"github.com/TriNguyen2808/backend-eventapp/internal/inventory"
	"github.com/TriNguyen2808/backend-eventapp/internal/models"
)

func setupTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// One shared connection, otherwise each pool connection gets its own
	// empty in-memory database.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.TicketClass)(nil),
	} {
		_, err := bunDB.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}
	return bunDB
}

func seedClass(t *testing.T, bunDB *bun.DB, available int, active bool) int64 {
	ctx := context.Background()
	event := &models.Event{
		Name:      "Test Event",
		StartTime: time.Now().Add(24 * time.Hour),
		EndTime:   time.Now().Add(26 * time.Hour),
		Active:    active,
		CreatedAt: time.Now(),
	}
	_, err := bunDB.NewInsert().Model(event).Exec(ctx)
	require.NoError(t, err)

	tc := &models.TicketClass{
		EventID:        event.EventID,
		Name:           "Standard",
		Price:          decimal.NewFromInt(100000),
		Type:           models.TicketTypeStanding,
		TotalAvailable: available,
	}
	_, err = bunDB.NewInsert().Model(tc).Exec(ctx)
	require.NoError(t, err)
	return tc.TicketClassID
}

func remaining(t *testing.T, bunDB *bun.DB, id int64) int {
	var tc models.TicketClass
	err := bunDB.NewSelect().Model(&tc).Where("ticket_class_id = ?", id).Scan(context.Background())
	require.NoError(t, err)
	return tc.TotalAvailable
}

func TestReserveDecrements(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()
	ledger := inventory.NewLedger(bunDB)

	id := seedClass(t, bunDB, 2, true)

	require.NoError(t, ledger.Reserve(context.Background(), id))
	assert.Equal(t, 1, remaining(t, bunDB, id))

	require.NoError(t, ledger.Reserve(context.Background(), id))
	assert.Equal(t, 0, remaining(t, bunDB, id))

	err := ledger.Reserve(context.Background(), id)
	assert.ErrorIs(t, err, inventory.ErrSoldOut)
	assert.Equal(t, 0, remaining(t, bunDB, id))
}

func TestReserveUnknownClass(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()
	ledger := inventory.NewLedger(bunDB)

	err := ledger.Reserve(context.Background(), 999)
	assert.ErrorIs(t, err, inventory.ErrTicketClassMissing)
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()
	ledger := inventory.NewLedger(bunDB)

	const capacity = 5
	const buyers = 20
	id := seedClass(t, bunDB, capacity, true)

	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- ledger.Reserve(context.Background(), id)
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for err := range results {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, inventory.ErrSoldOut)
		}
	}
	assert.Equal(t, capacity, won)
	assert.Equal(t, 0, remaining(t, bunDB, id))
}

func TestReleaseIncrements(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()
	ledger := inventory.NewLedger(bunDB)

	id := seedClass(t, bunDB, 0, true)
	require.NoError(t, ledger.Release(context.Background(), id))
	assert.Equal(t, 1, remaining(t, bunDB, id))
}

func TestReleaseInactiveEvent(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()
	ledger := inventory.NewLedger(bunDB)

	id := seedClass(t, bunDB, 0, false)
	err := ledger.Release(context.Background(), id)
	assert.ErrorIs(t, err, inventory.ErrEventInactive)
	assert.Equal(t, 0, remaining(t, bunDB, id))
}
