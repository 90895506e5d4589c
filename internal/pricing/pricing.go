package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TriNguyen2808/backend-eventapp/internal/models"
)

var (
	ErrDiscountInvalid              = errors.New("pricing: discount code invalid or outside validity window")
	ErrDiscountAlreadyUsed          = errors.New("pricing: discount code already redeemed by this user")
	ErrDiscountNotApplicableToEvent = errors.New("pricing: discount code does not apply to this event")
	ErrDiscountNotApplicableToGroup = errors.New("pricing: discount code does not apply to this customer group")
	ErrDiscountUsageCapReached      = errors.New("pricing: discount code usage cap reached")
)

// DiscountStore is the read side the engine needs. The settlement
// transaction re-validates and records usage through its own store; this one
// never writes.
type DiscountStore interface {
	GetDiscountByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	HasRedeemed(ctx context.Context, discountID int64, userID string) (bool, error)
	RedemptionCount(ctx context.Context, discountID int64) (int, error)
	AppliesToEvent(ctx context.Context, discountID, eventID int64) (bool, error)
	AppliesToGroup(ctx context.Context, discountID, groupID int64) (bool, error)
}

type Engine struct {
	store DiscountStore
}

func NewEngine(store DiscountStore) *Engine {
	return &Engine{store: store}
}

// Quote is the result of one price computation. The caller must persist
// Amount on the payment session: prices and eligibility are evaluated at
// call time and may differ if recomputed later.
type Quote struct {
	Amount   decimal.Decimal
	Discount *models.DiscountCode
}

// PriceFor computes the payable amount for one ticket of the given class,
// applying the discount code when supplied. Eligibility failures surface as
// typed errors and leave no state behind.
func (e *Engine) PriceFor(ctx context.Context, tc *models.TicketClass, eventID int64, code string, user *models.User, now time.Time) (*Quote, error) {
	base := tc.Price.Round(2)
	if code == "" {
		return &Quote{Amount: base}, nil
	}

	discount, err := e.store.GetDiscountByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup discount %q: %w", code, err)
	}
	if discount == nil {
		return nil, ErrDiscountInvalid
	}
	if now.Before(discount.ValidFrom) || now.After(discount.ValidTo) {
		return nil, ErrDiscountInvalid
	}

	if discount.MaxUsage > 0 {
		used, err := e.store.RedemptionCount(ctx, discount.DiscountID)
		if err != nil {
			return nil, fmt.Errorf("count redemptions for %q: %w", code, err)
		}
		if used >= discount.MaxUsage {
			return nil, ErrDiscountUsageCapReached
		}
	}

	redeemed, err := e.store.HasRedeemed(ctx, discount.DiscountID, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("check redemption for %q: %w", code, err)
	}
	if redeemed {
		return nil, ErrDiscountAlreadyUsed
	}

	eventOK, err := e.store.AppliesToEvent(ctx, discount.DiscountID, eventID)
	if err != nil {
		return nil, fmt.Errorf("check event applicability for %q: %w", code, err)
	}
	if !eventOK {
		return nil, ErrDiscountNotApplicableToEvent
	}

	groupOK, err := e.store.AppliesToGroup(ctx, discount.DiscountID, user.GroupID)
	if err != nil {
		return nil, fmt.Errorf("check group applicability for %q: %w", code, err)
	}
	if !groupOK {
		return nil, ErrDiscountNotApplicableToGroup
	}

	return &Quote{
		Amount:   Apply(base, discount),
		Discount: discount,
	}, nil
}

// Apply computes the discounted price without touching eligibility. Fixed
// discounts subtract the value, percentage discounts take value% of the base
// capped at MaxDiscount when capping is enabled. The result never goes below
// zero and keeps two-decimal currency precision.
func Apply(base decimal.Decimal, discount *models.DiscountCode) decimal.Decimal {
	var reduction decimal.Decimal
	switch discount.Kind {
	case models.DiscountPercentage:
		reduction = base.Mul(discount.Value).Div(decimal.NewFromInt(100))
		if discount.LimitDiscount && reduction.GreaterThan(discount.MaxDiscount) {
			reduction = discount.MaxDiscount
		}
	default: // fixed amount
		reduction = discount.Value
	}

	final := base.Sub(reduction).Round(2)
	if final.IsNegative() {
		return decimal.Zero.Round(2)
	}
	return final
}
