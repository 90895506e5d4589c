package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID      string          `bun:"ticket_id,pk" json:"ticket_id"`
	TicketClassID int64           `bun:"ticket_class_id" json:"ticket_class_id"`
	UserID        string          `bun:"user_id" json:"user_id"`
	TicketCode    string          `bun:"ticket_code,unique" json:"ticket_code"`
	PricePaid     decimal.Decimal `bun:"price_paid,type:numeric(10,2)" json:"price_paid"`
	QRCode        []byte          `bun:"qr_code,nullzero" json:"qr_code,omitempty"`
	CheckedIn     bool            `bun:"checked_in" json:"checked_in"`
	CheckedInTime time.Time       `bun:"checked_in_time,nullzero" json:"checked_in_time,omitempty"`
	BookedAt      time.Time       `bun:"booked_at" json:"booked_at"`
}
