package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusSuccess PaymentStatus = "success"
	StatusFailed  PaymentStatus = "failed"
	StatusExpired PaymentStatus = "expired"
)

// PaymentSession is one purchase attempt. The row is the single source of
// truth for "has this order settled"; every status transition is a
// compare-and-set on the current status.
type PaymentSession struct {
	bun.BaseModel `bun:"table:payment_sessions"`

	OrderID       string          `bun:"order_id,pk" json:"order_id"`
	UserID        string          `bun:"user_id" json:"user_id"`
	TicketClassID int64           `bun:"ticket_class_id" json:"ticket_class_id"`
	DiscountID    int64           `bun:"discount_id,nullzero" json:"discount_id,omitempty"`
	Amount        decimal.Decimal `bun:"amount,type:numeric(10,2)" json:"amount"`
	Status        PaymentStatus   `bun:"status" json:"status"`
	TransactionID string          `bun:"transaction_id,nullzero" json:"transaction_id,omitempty"`
	TicketID      string          `bun:"ticket_id,nullzero" json:"ticket_id,omitempty"`
	CreatedAt     time.Time       `bun:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}
