package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/TriNguyen2808/backend-eventapp/internal/models"
)

var (
	ErrSoldOut            = errors.New("inventory: ticket class sold out")
	ErrTicketClassMissing = errors.New("inventory: ticket class not found")
	ErrEventInactive      = errors.New("inventory: event is not active")
)

// Ledger guards the remaining sellable capacity of a ticket class. Both
// operations are single conditional UPDATEs checked by affected-row count,
// so concurrent callers cannot drive capacity negative.
type Ledger struct {
	Bun bun.IDB
}

func NewLedger(db bun.IDB) *Ledger {
	return &Ledger{Bun: db}
}

// Reserve decrements available capacity by one, or fails with ErrSoldOut
// when capacity is already zero.
func (l *Ledger) Reserve(ctx context.Context, ticketClassID int64) error {
	res, err := l.Bun.NewUpdate().
		Model((*models.TicketClass)(nil)).
		Set("total_available = total_available - 1").
		Where("ticket_class_id = ? AND total_available > 0", ticketClassID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reserve ticket class %d: %w", ticketClassID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve ticket class %d: %w", ticketClassID, err)
	}
	if affected == 0 {
		exists, err := l.Bun.NewSelect().
			Model((*models.TicketClass)(nil)).
			Where("ticket_class_id = ?", ticketClassID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("reserve ticket class %d: %w", ticketClassID, err)
		}
		if !exists {
			return ErrTicketClassMissing
		}
		return ErrSoldOut
	}
	return nil
}

// Release returns one reservation to the pool. The event must still be
// active; capacity released for a finished or deactivated event would be
// unsellable anyway.
func (l *Ledger) Release(ctx context.Context, ticketClassID int64) error {
	res, err := l.Bun.NewUpdate().
		Model((*models.TicketClass)(nil)).
		Set("total_available = total_available + 1").
		Where("ticket_class_id = ?", ticketClassID).
		Where("EXISTS (SELECT 1 FROM events e WHERE e.event_id = ticket_class.event_id AND e.active)").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("release ticket class %d: %w", ticketClassID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release ticket class %d: %w", ticketClassID, err)
	}
	if affected == 0 {
		exists, err := l.Bun.NewSelect().
			Model((*models.TicketClass)(nil)).
			Where("ticket_class_id = ?", ticketClassID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("release ticket class %d: %w", ticketClassID, err)
		}
		if !exists {
			return ErrTicketClassMissing
		}
		return ErrEventInactive
	}
	return nil
}
