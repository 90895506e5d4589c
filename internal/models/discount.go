package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type DiscountKind string

const (
	DiscountFixed      DiscountKind = "FIXED"
	DiscountPercentage DiscountKind = "PERCENTAGE"
)

type DiscountCode struct {
	bun.BaseModel `bun:"table:discount_codes"`

	DiscountID    int64           `bun:"discount_id,pk,autoincrement" json:"discount_id"`
	Code          string          `bun:"code,unique" json:"code"`
	Description   string          `bun:"description,nullzero" json:"description,omitempty"`
	ValidFrom     time.Time       `bun:"valid_from" json:"valid_from"`
	ValidTo       time.Time       `bun:"valid_to" json:"valid_to"`
	Kind          DiscountKind    `bun:"kind" json:"kind"`
	Value         decimal.Decimal `bun:"value,type:numeric(10,2)" json:"value"`
	LimitDiscount bool            `bun:"limit_discount" json:"limit_discount"`
	MaxDiscount   decimal.Decimal `bun:"max_discount,type:numeric(10,2)" json:"max_discount"`
	MaxUsage      int             `bun:"max_usage" json:"max_usage"`
}

// DiscountCodeEvent restricts a code to an event. No rows means the code
// applies to every event.
type DiscountCodeEvent struct {
	bun.BaseModel `bun:"table:discount_code_events"`

	DiscountID int64 `bun:"discount_id,pk"`
	EventID    int64 `bun:"event_id,pk"`
}

// DiscountCodeGroup grants a code to a customer group. Membership is
// required: a code with no group rows applies to nobody.
type DiscountCodeGroup struct {
	bun.BaseModel `bun:"table:discount_code_groups"`

	DiscountID int64 `bun:"discount_id,pk"`
	GroupID    int64 `bun:"group_id,pk"`
}

// DiscountRedemption is written inside the settlement transaction. The
// composite primary key doubles as the "a user redeems a code at most once"
// guard at the storage layer.
type DiscountRedemption struct {
	bun.BaseModel `bun:"table:discount_redemptions"`

	DiscountID int64     `bun:"discount_id,pk"`
	UserID     string    `bun:"user_id,pk"`
	OrderID    string    `bun:"order_id"`
	RedeemedAt time.Time `bun:"redeemed_at"`
}
