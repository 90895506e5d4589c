package models

import (
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	UserID   string `bun:"user_id,pk" json:"user_id"`
	Username string `bun:"username" json:"username"`
	Email    string `bun:"email,unique" json:"email"`
	FullName string `bun:"full_name,nullzero" json:"full_name,omitempty"`
	GroupID  int64  `bun:"group_id" json:"group_id"`
}

// CustomerGroup is a spend tier. A user belongs to the highest-threshold
// group whose SpendingGoal does not exceed their cumulative ticket spend.
type CustomerGroup struct {
	bun.BaseModel `bun:"table:customer_groups"`

	GroupID      int64           `bun:"group_id,pk,autoincrement" json:"group_id"`
	Name         string          `bun:"name" json:"name"`
	SpendingGoal decimal.Decimal `bun:"spending_goal,type:numeric(10,2)" json:"spending_goal"`
}
