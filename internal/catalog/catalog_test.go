package catalog_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"github.com/TriNguyen2808/backend-eventapp/internal/catalog"
	"github.com/TriNguyen2808/backend-eventapp/internal/models"
)

func setupCatalog(t *testing.T) (*catalog.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.Comment)(nil),
		(*models.Like)(nil),
		(*models.TicketClass)(nil),
		(*models.Ticket)(nil),
	} {
		_, err := bunDB.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}
	return catalog.NewDB(bunDB), bunDB
}

func TestGetEventAndTicketClass(t *testing.T) {
	cat, bunDB := setupCatalog(t)
	defer bunDB.Close()
	ctx := context.Background()

	event := &models.Event{
		Name:      "Live Show",
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(4 * time.Hour),
		Active:    true,
		CreatedAt: time.Now(),
	}
	_, err := bunDB.NewInsert().Model(event).Exec(ctx)
	require.NoError(t, err)

	class := &models.TicketClass{
		EventID:        event.EventID,
		Name:           "VIP",
		Price:          decimal.NewFromInt(2000000),
		Type:           models.TicketTypeSeated,
		TotalAvailable: 50,
	}
	_, err = bunDB.NewInsert().Model(class).Exec(ctx)
	require.NoError(t, err)

	got, err := cat.GetEvent(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, "Live Show", got.Name)

	gotClass, err := cat.GetTicketClass(ctx, class.TicketClassID)
	require.NoError(t, err)
	assert.Equal(t, "VIP", gotClass.Name)

	_, err = cat.GetEvent(ctx, 999)
	assert.ErrorIs(t, err, catalog.ErrEventNotFound)
	_, err = cat.GetTicketClass(ctx, 999)
	assert.ErrorIs(t, err, catalog.ErrTicketClassNotFound)
}

func TestRecomputePopularityWeights(t *testing.T) {
	cat, bunDB := setupCatalog(t)
	defer bunDB.Close()
	ctx := context.Background()

	event := &models.Event{
		Name:      "Live Show",
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(4 * time.Hour),
		Active:    true,
		CreatedAt: time.Now(),
	}
	_, err := bunDB.NewInsert().Model(event).Exec(ctx)
	require.NoError(t, err)

	class := &models.TicketClass{
		EventID:        event.EventID,
		Name:           "Standard",
		Price:          decimal.NewFromInt(100000),
		TotalAvailable: 100,
	}
	_, err = bunDB.NewInsert().Model(class).Exec(ctx)
	require.NoError(t, err)

	// 2 tickets, 3 likes (one inactive), 4 comments.
	for i := 0; i < 2; i++ {
		ticket := &models.Ticket{
			TicketID:      uuid.New().String(),
			TicketClassID: class.TicketClassID,
			UserID:        "u1",
			TicketCode:    uuid.New().String(),
			PricePaid:     decimal.NewFromInt(100000),
			BookedAt:      time.Now(),
		}
		_, err = bunDB.NewInsert().Model(ticket).Exec(ctx)
		require.NoError(t, err)
	}
	for i, active := range []bool{true, true, false} {
		like := &models.Like{EventID: event.EventID, UserID: uuid.New().String(), Active: active}
		_ = i
		_, err = bunDB.NewInsert().Model(like).Exec(ctx)
		require.NoError(t, err)
	}
	for i := 0; i < 4; i++ {
		comment := &models.Comment{EventID: event.EventID, UserID: "u1", Content: "nice", CreatedAt: time.Now()}
		_, err = bunDB.NewInsert().Model(comment).Exec(ctx)
		require.NoError(t, err)
	}

	// 2*1.5 + 2*1.0 + 4*0.5 = 7.0
	score, err := cat.RecomputePopularity(ctx, event.EventID)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, score, 0.001)

	got, err := cat.GetEvent(ctx, event.EventID)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, got.PopularityScore, 0.001)
}
