package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/TriNguyen2808/backend-eventapp/internal/models"
)

var ErrUserNotFound = errors.New("identity: user not found")

// DB reads users and maintains their spend tier. User accounts themselves
// are provisioned by the identity provider.
type DB struct {
	Bun bun.IDB
}

func NewDB(db bun.IDB) *DB {
	return &DB{Bun: db}
}

func (d *DB) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateSpendTier moves the user into the highest-threshold customer group
// whose spending goal their cumulative ticket spend has reached. A user never
// moves when no group qualifies.
func (d *DB) UpdateSpendTier(ctx context.Context, userID string, totalSpend decimal.Decimal) error {
	var group models.CustomerGroup
	err := d.Bun.NewSelect().
		Model(&group).
		Where("spending_goal <= ?", totalSpend).
		Order("spending_goal DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find spend tier for user %s: %w", userID, err)
	}

	_, err = d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("group_id = ?", group.GroupID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update spend tier for user %s: %w", userID, err)
	}
	return nil
}
