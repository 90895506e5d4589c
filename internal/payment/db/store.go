package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/TriNguyen2808/backend-eventapp/internal/models"
)

var (
	ErrSessionNotFound = errors.New("payment: session not found")
	ErrAlreadySettled  = errors.New("payment: session already settled")
)

// DB persists payment sessions. Every status transition is a conditional
// UPDATE guarded on the current status, so exactly one of N concurrent
// settlement attempts wins; the rest get ErrAlreadySettled.
type DB struct {
	Bun bun.IDB
}

func NewDB(db bun.IDB) *DB {
	return &DB{Bun: db}
}

// Create opens a pending session and assigns its order ID.
func (d *DB) Create(ctx context.Context, session *models.PaymentSession) error {
	if session.OrderID == "" {
		session.OrderID = uuid.New().String()
	}
	session.Status = models.StatusPending
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err := d.Bun.NewInsert().Model(session).Exec(ctx)
	if err != nil {
		return fmt.Errorf("create payment session: %w", err)
	}
	return nil
}

func (d *DB) GetByID(ctx context.Context, orderID string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := d.Bun.NewSelect().
		Model(&session).
		Where("order_id = ?", orderID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment session %s: %w", orderID, err)
	}
	return &session, nil
}

// SettleSuccess moves a pending session to success and records the gateway
// transaction reference.
func (d *DB) SettleSuccess(ctx context.Context, orderID, transactionID string) error {
	return d.transition(ctx, orderID, models.StatusSuccess, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("transaction_id = ?", transactionID)
	})
}

// SettleFailure moves a pending session to failed.
func (d *DB) SettleFailure(ctx context.Context, orderID, transactionID string) error {
	return d.transition(ctx, orderID, models.StatusFailed, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		if transactionID == "" {
			return q
		}
		return q.Set("transaction_id = ?", transactionID)
	})
}

// Expire moves a pending session to expired. Used by the background sweeper.
func (d *DB) Expire(ctx context.Context, orderID string) error {
	return d.transition(ctx, orderID, models.StatusExpired, nil)
}

func (d *DB) transition(ctx context.Context, orderID string, to models.PaymentStatus, extra func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	q := d.Bun.NewUpdate().
		Model((*models.PaymentSession)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ? AND status = ?", orderID, models.StatusPending)
	if extra != nil {
		q = extra(q)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("transition payment session %s to %s: %w", orderID, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition payment session %s to %s: %w", orderID, to, err)
	}
	if affected == 0 {
		if _, err := d.GetByID(ctx, orderID); err != nil {
			return err
		}
		return ErrAlreadySettled
	}
	return nil
}

// AttachTicket links the issued ticket to its paid session.
func (d *DB) AttachTicket(ctx context.Context, orderID, ticketID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.PaymentSession)(nil)).
		Set("ticket_id = ?", ticketID).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("attach ticket to session %s: %w", orderID, err)
	}
	return nil
}

// ListPendingOlderThan returns pending sessions created before the cutoff,
// oldest first.
func (d *DB) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.PaymentSession, error) {
	var sessions []models.PaymentSession
	err := d.Bun.NewSelect().
		Model(&sessions).
		Where("status = ? AND created_at < ?", models.StatusPending, cutoff).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending sessions: %w", err)
	}
	return sessions, nil
}
