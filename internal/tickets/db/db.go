package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/TriNguyen2808/backend-eventapp/internal/models"
)

var ErrTicketNotFound = errors.New("tickets: ticket not found")

type DB struct {
	Bun bun.IDB
}

func NewDB(db bun.IDB) *DB {
	return &DB{Bun: db}
}

func (d *DB) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	_, err := d.Bun.NewInsert().Model(ticket).Exec(ctx)
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) UpdateTicket(ctx context.Context, ticket *models.Ticket) error {
	_, err := d.Bun.NewUpdate().
		Model(ticket).
		Column("checked_in", "checked_in_time").
		Where("ticket_id = ?", ticket.TicketID).
		Exec(ctx)
	return err
}

// TicketCodeExists reports whether a code is already taken, for collision
// retries during issuance.
func (d *DB) TicketCodeExists(ctx context.Context, code string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("ticket_code = ?", code).
		Exists(ctx)
}

func (d *DB) GetTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("user_id = ?", userID).
		Order("booked_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// SumSpendByUser totals what the user has actually paid across all tickets.
// Feeds the spend tier recomputation after each issuance.
func (d *DB) SumSpendByUser(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("SUM(price_paid)").
		Where("user_id = ?", userID).
		Scan(ctx, &total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// CountByEvent counts issued tickets for all classes of an event, for
// popularity scoring.
func (d *DB) CountByEvent(ctx context.Context, eventID int64) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Join("JOIN ticket_classes AS tc ON tc.ticket_class_id = ticket.ticket_class_id").
		Where("tc.event_id = ?", eventID).
		Count(ctx)
}
