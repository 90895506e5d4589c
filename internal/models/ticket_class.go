package models

import (
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type TicketType string

const (
	TicketTypeStanding TicketType = "STANDING"
	TicketTypeSeated   TicketType = "SEATED"
)

type TicketClass struct {
	bun.BaseModel `bun:"table:ticket_classes"`

	TicketClassID  int64           `bun:"ticket_class_id,pk,autoincrement" json:"ticket_class_id"`
	EventID        int64           `bun:"event_id" json:"event_id"`
	Name           string          `bun:"name" json:"name"`
	Price          decimal.Decimal `bun:"price,type:numeric(10,2)" json:"price"`
	Type           TicketType      `bun:"type" json:"type"`
	TotalAvailable int             `bun:"total_available" json:"total_available"`
}
