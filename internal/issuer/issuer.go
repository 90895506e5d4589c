package issuer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/TriNguyen2808/backend-eventapp/internal/catalog"
	"github.com/TriNguyen2808/backend-eventapp/internal/identity"
	"github.com/TriNguyen2808/backend-eventapp/internal/inventory"
	"github.com/TriNguyen2808/backend-eventapp/internal/kafka"
	"github.com/TriNguyen2808/backend-eventapp/internal/logger"
	"github.com/TriNguyen2808/backend-eventapp/internal/models"
	"github.com/TriNguyen2808/backend-eventapp/internal/notification"
	paydb "github.com/TriNguyen2808/backend-eventapp/internal/payment/db"
	"github.com/TriNguyen2808/backend-eventapp/internal/pricing"
	"github.com/TriNguyen2808/backend-eventapp/internal/tickets"
	ticketdb "github.com/TriNguyen2808/backend-eventapp/internal/tickets/db"
	"github.com/TriNguyen2808/backend-eventapp/internal/tickets/qr"
)

// Service turns a confirmed payment into a ticket. Settlement runs in one
// database transaction keyed on the session's pending->success transition, so
// a replayed gateway callback can never mint a second ticket.
type Service struct {
	DB       *bun.DB
	QR       *qr.QRGenerator
	Producer *kafka.Producer
	Notifier notification.Notifier
	Logger   *logger.Logger
}

func NewService(db *bun.DB, qrGen *qr.QRGenerator, producer *kafka.Producer, notifier notification.Notifier, log *logger.Logger) *Service {
	return &Service{
		DB:       db,
		QR:       qrGen,
		Producer: producer,
		Notifier: notifier,
		Logger:   log,
	}
}

type settleResult struct {
	session *models.PaymentSession
	ticket  *models.Ticket
	event   *models.Event
	user    *models.User
}

// SettleSuccess finalizes a paid session: flips it to success, issues the
// ticket and records discount usage, all inside one transaction. Returns
// paydb.ErrAlreadySettled when the session already left pending, which
// callers treat as a successful no-op for replayed callbacks.
func (s *Service) SettleSuccess(ctx context.Context, orderID, transactionID string) (*models.Ticket, error) {
	var result settleResult

	err := s.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		sessions := paydb.NewDB(tx)
		if err := sessions.SettleSuccess(ctx, orderID, transactionID); err != nil {
			return err
		}

		session, err := sessions.GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		cat := catalog.NewDB(tx)
		tc, err := cat.GetTicketClass(ctx, session.TicketClassID)
		if err != nil {
			return err
		}
		event, err := cat.GetEvent(ctx, tc.EventID)
		if err != nil {
			return err
		}

		var user models.User
		if err := tx.NewSelect().Model(&user).Where("user_id = ?", session.UserID).Scan(ctx); err != nil {
			return fmt.Errorf("load user %s: %w", session.UserID, err)
		}

		tdb := ticketdb.NewDB(tx)
		svc := &tickets.Service{DB: tdb, Catalog: cat, Logger: s.Logger}
		code, err := svc.GenerateTicketCode(ctx, event)
		if err != nil {
			return err
		}

		ticket := &models.Ticket{
			TicketID:      uuid.New().String(),
			TicketClassID: tc.TicketClassID,
			UserID:        session.UserID,
			TicketCode:    code,
			PricePaid:     session.Amount,
			BookedAt:      time.Now(),
		}

		png, err := s.QR.GenerateEncryptedQR(qr.Payload{
			TicketID:   ticket.TicketID,
			TicketCode: ticket.TicketCode,
			EventID:    event.EventID,
			UserID:     ticket.UserID,
			IssuedAt:   ticket.BookedAt,
		})
		if err != nil {
			return fmt.Errorf("render qr for ticket %s: %w", ticket.TicketID, err)
		}
		ticket.QRCode = png

		if err := tdb.CreateTicket(ctx, ticket); err != nil {
			return err
		}
		if err := sessions.AttachTicket(ctx, orderID, ticket.TicketID); err != nil {
			return err
		}

		if session.DiscountID != 0 {
			store := &pricing.DB{Bun: tx}

			// Re-check the global usage cap with settlement-time counts. A
			// session quoted under the cap may settle after the cap filled;
			// the customer has paid, so the ticket stands, but the redemption
			// is not recorded past the cap.
			var discount models.DiscountCode
			if err := tx.NewSelect().Model(&discount).Where("discount_id = ?", session.DiscountID).Scan(ctx); err != nil {
				return fmt.Errorf("load discount %d: %w", session.DiscountID, err)
			}
			capped := false
			if discount.MaxUsage > 0 {
				used, err := store.RedemptionCount(ctx, session.DiscountID)
				if err != nil {
					return fmt.Errorf("count redemptions for discount %d: %w", session.DiscountID, err)
				}
				capped = used >= discount.MaxUsage
			}

			if capped {
				s.Logger.LogPayment("DISCOUNT", orderID, "usage cap filled before settlement, redemption not recorded")
			} else {
				written, err := store.RecordRedemption(ctx, &models.DiscountRedemption{
					DiscountID: session.DiscountID,
					UserID:     session.UserID,
					OrderID:    orderID,
					RedeemedAt: time.Now(),
				})
				if err != nil {
					return fmt.Errorf("record discount redemption: %w", err)
				}
				if !written {
					s.Logger.LogPayment("DISCOUNT", orderID, "redemption already recorded, keeping ticket")
				}
			}
		}

		session.Status = models.StatusSuccess
		session.TransactionID = transactionID
		session.TicketID = ticket.TicketID
		result = settleResult{session: session, ticket: ticket, event: event, user: &user}
		return nil
	})
	if err != nil {
		if errors.Is(err, paydb.ErrAlreadySettled) {
			s.Logger.LogPayment("SETTLE", orderID, "already settled, callback replay ignored")
		}
		return nil, err
	}

	s.Logger.LogPayment("SETTLE", orderID, fmt.Sprintf("ticket %s issued", result.ticket.TicketCode))
	s.afterIssue(ctx, &result)
	return result.ticket, nil
}

// afterIssue runs the best-effort followups of a successful settlement. None
// of them can undo the ticket; failures are logged and dropped.
func (s *Service) afterIssue(ctx context.Context, r *settleResult) {
	cat := catalog.NewDB(s.DB)
	if _, err := cat.RecomputePopularity(ctx, r.event.EventID); err != nil {
		s.Logger.Warn("CATALOG", fmt.Sprintf("popularity recompute for event %d failed: %v", r.event.EventID, err))
	}

	tdb := ticketdb.NewDB(s.DB)
	total, err := tdb.SumSpendByUser(ctx, r.user.UserID)
	if err != nil {
		s.Logger.Warn("IDENTITY", fmt.Sprintf("spend total for user %s failed: %v", r.user.UserID, err))
	} else if err := identity.NewDB(s.DB).UpdateSpendTier(ctx, r.user.UserID, total); err != nil {
		s.Logger.Warn("IDENTITY", fmt.Sprintf("spend tier update for user %s failed: %v", r.user.UserID, err))
	}

	if s.Notifier != nil {
		if err := s.Notifier.SendTicketIssued(ctx, r.user, r.ticket, r.event); err != nil {
			s.Logger.Warn("EMAIL", fmt.Sprintf("ticket mail for %s failed: %v", r.ticket.TicketID, err))
		}
	}

	if s.Producer != nil {
		if err := s.Producer.PublishPaymentSettled(ctx, r.session); err != nil {
			s.Logger.LogKafka("ERROR", kafka.TopicPaymentSuccess, err.Error())
		}
		if err := s.Producer.PublishTicketIssued(ctx, r.ticket, r.session.OrderID, r.event.EventID); err != nil {
			s.Logger.LogKafka("ERROR", kafka.TopicTicketIssued, err.Error())
		}
	}
}

// SettleFailure flips a pending session to failed and returns its reserved
// capacity to the pool. Safe to call on a replayed callback.
func (s *Service) SettleFailure(ctx context.Context, orderID, transactionID string) error {
	sessions := paydb.NewDB(s.DB)
	if err := sessions.SettleFailure(ctx, orderID, transactionID); err != nil {
		return err
	}

	session, err := sessions.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	ledger := inventory.NewLedger(s.DB)
	if err := ledger.Release(ctx, session.TicketClassID); err != nil && !errors.Is(err, inventory.ErrEventInactive) {
		s.Logger.Warn("INVENTORY", fmt.Sprintf("release for class %d failed: %v", session.TicketClassID, err))
	}

	s.Logger.LogPayment("SETTLE", orderID, "payment failed, reservation released")

	if s.Producer != nil {
		if err := s.Producer.PublishPaymentSettled(ctx, session); err != nil {
			s.Logger.LogKafka("ERROR", kafka.TopicPaymentFailed, err.Error())
		}
	}
	return nil
}
