package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/TriNguyen2808/backend-eventapp/internal/models"
)

var (
	ErrEventNotFound       = errors.New("catalog: event not found")
	ErrTicketClassNotFound = errors.New("catalog: ticket class not found")
)

// DB reads events and ticket classes and maintains the derived popularity
// score. Writes to events and engagement rows belong to the upstream event
// management service.
type DB struct {
	Bun bun.IDB
}

func NewDB(db bun.IDB) *DB {
	return &DB{Bun: db}
}

func (d *DB) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("event_id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) GetTicketClass(ctx context.Context, id int64) (*models.TicketClass, error) {
	var tc models.TicketClass
	err := d.Bun.NewSelect().
		Model(&tc).
		Where("ticket_class_id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketClassNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tc, nil
}

// RecomputePopularity rebuilds the event's score from engagement counts:
// tickets weigh 1.5, likes 1.0, comments 0.5.
func (d *DB) RecomputePopularity(ctx context.Context, eventID int64) (float64, error) {
	ticketCount, err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Join("JOIN ticket_classes AS tc ON tc.ticket_class_id = ticket.ticket_class_id").
		Where("tc.event_id = ?", eventID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count tickets for event %d: %w", eventID, err)
	}

	likeCount, err := d.Bun.NewSelect().
		Model((*models.Like)(nil)).
		Where("event_id = ? AND active", eventID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count likes for event %d: %w", eventID, err)
	}

	commentCount, err := d.Bun.NewSelect().
		Model((*models.Comment)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count comments for event %d: %w", eventID, err)
	}

	score := float64(ticketCount)*1.5 + float64(likeCount) + float64(commentCount)*0.5

	_, err = d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("popularity_score = ?", score).
		Where("event_id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("store popularity for event %d: %w", eventID, err)
	}
	return score, nil
}
