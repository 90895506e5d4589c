package pricing

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/TriNguyen2808/backend-eventapp/internal/models"
)

// DB is the bun-backed DiscountStore. It works against either a *bun.DB or
// a transaction, so the settlement path can re-run the same checks inside
// its transaction boundary.
type DB struct {
	Bun bun.IDB
}

func (d *DB) GetDiscountByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var discount models.DiscountCode
	err := d.Bun.NewSelect().
		Model(&discount).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

func (d *DB) HasRedeemed(ctx context.Context, discountID int64, userID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.DiscountRedemption)(nil)).
		Where("discount_id = ? AND user_id = ?", discountID, userID).
		Exists(ctx)
}

func (d *DB) RedemptionCount(ctx context.Context, discountID int64) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.DiscountRedemption)(nil)).
		Where("discount_id = ?", discountID).
		Count(ctx)
}

// AppliesToEvent is true when the code carries no event restriction rows at
// all, or when one of them names the event.
func (d *DB) AppliesToEvent(ctx context.Context, discountID, eventID int64) (bool, error) {
	restricted, err := d.Bun.NewSelect().
		Model((*models.DiscountCodeEvent)(nil)).
		Where("discount_id = ?", discountID).
		Exists(ctx)
	if err != nil {
		return false, err
	}
	if !restricted {
		return true, nil
	}
	return d.Bun.NewSelect().
		Model((*models.DiscountCodeEvent)(nil)).
		Where("discount_id = ? AND event_id = ?", discountID, eventID).
		Exists(ctx)
}

// AppliesToGroup is true only when the code names the user's customer group.
// Unlike events, groups have no unrestricted default: a code with no group
// rows applies to nobody.
func (d *DB) AppliesToGroup(ctx context.Context, discountID, groupID int64) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.DiscountCodeGroup)(nil)).
		Where("discount_id = ? AND group_id = ?", discountID, groupID).
		Exists(ctx)
}

// RecordRedemption inserts the (discount, user) pair. The composite primary
// key rejects a second redemption by the same user; a conflicting insert is
// ignored rather than aborting the enclosing settlement transaction. Returns
// whether the row was actually written.
func (d *DB) RecordRedemption(ctx context.Context, redemption *models.DiscountRedemption) (bool, error) {
	res, err := d.Bun.NewInsert().
		Model(redemption).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
