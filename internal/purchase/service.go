package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TriNguyen2808/backend-eventapp/internal/logger"
	"github.com/TriNguyen2808/backend-eventapp/internal/models"
	"github.com/TriNguyen2808/backend-eventapp/internal/pricing"
	"github.com/TriNguyen2808/backend-eventapp/internal/vnpay"
)

var (
	ErrEventNotOnSale  = errors.New("purchase: event is not on sale")
	ErrNotSessionOwner = errors.New("purchase: session belongs to another user")
)

type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type CatalogStore interface {
	GetTicketClass(ctx context.Context, id int64) (*models.TicketClass, error)
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
}

type InventoryLedger interface {
	Reserve(ctx context.Context, ticketClassID int64) error
	Release(ctx context.Context, ticketClassID int64) error
}

type SessionStore interface {
	Create(ctx context.Context, session *models.PaymentSession) error
	GetByID(ctx context.Context, orderID string) (*models.PaymentSession, error)
}

type Gateway interface {
	BuildPaymentURL(req vnpay.PaymentRequest) (string, error)
}

// Service drives the purchase flow up to the gateway redirect: price the
// ticket, reserve capacity, open the payment session, hand back the URL.
type Service struct {
	Users     UserStore
	Catalog   CatalogStore
	Pricing   *pricing.Engine
	Inventory InventoryLedger
	Sessions  SessionStore
	Gateway   Gateway
	Logger    *logger.Logger
}

func NewService(users UserStore, catalog CatalogStore, engine *pricing.Engine, inv InventoryLedger, sessions SessionStore, gateway Gateway, log *logger.Logger) *Service {
	return &Service{
		Users:     users,
		Catalog:   catalog,
		Pricing:   engine,
		Inventory: inv,
		Sessions:  sessions,
		Gateway:   gateway,
		Logger:    log,
	}
}

// Purchase opens a payment session for one ticket and returns the gateway
// redirect. Capacity is taken up front; the failure and expiry paths give it
// back.
func (s *Service) Purchase(ctx context.Context, userID string, req models.PurchaseRequest, clientIP string) (*models.PurchaseResponse, error) {
	user, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	tc, err := s.Catalog.GetTicketClass(ctx, req.TicketClassID)
	if err != nil {
		return nil, err
	}
	event, err := s.Catalog.GetEvent(ctx, tc.EventID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if !event.Active || now.After(event.EndTime) {
		return nil, ErrEventNotOnSale
	}

	quote, err := s.Pricing.PriceFor(ctx, tc, event.EventID, req.DiscountCode, user, now)
	if err != nil {
		return nil, err
	}

	if err := s.Inventory.Reserve(ctx, tc.TicketClassID); err != nil {
		return nil, err
	}

	session := &models.PaymentSession{
		OrderID:       uuid.New().String(),
		UserID:        user.UserID,
		TicketClassID: tc.TicketClassID,
		Amount:        quote.Amount,
	}
	if quote.Discount != nil {
		session.DiscountID = quote.Discount.DiscountID
	}

	if err := s.Sessions.Create(ctx, session); err != nil {
		s.release(ctx, tc.TicketClassID)
		return nil, fmt.Errorf("open payment session: %w", err)
	}

	paymentURL, err := s.Gateway.BuildPaymentURL(vnpay.PaymentRequest{
		OrderID:   session.OrderID,
		Amount:    session.Amount,
		OrderInfo: fmt.Sprintf("Thanh toan ve %s", event.Name),
		Locale:    req.Locale,
		IPAddr:    clientIP,
	})
	if err != nil {
		s.release(ctx, tc.TicketClassID)
		return nil, fmt.Errorf("build payment url: %w", err)
	}

	s.Logger.LogPayment("OPEN", session.OrderID, fmt.Sprintf("user %s, class %d, amount %s", user.UserID, tc.TicketClassID, session.Amount))

	return &models.PurchaseResponse{
		OrderID:    session.OrderID,
		Amount:     session.Amount,
		PaymentURL: paymentURL,
	}, nil
}

func (s *Service) release(ctx context.Context, ticketClassID int64) {
	if err := s.Inventory.Release(ctx, ticketClassID); err != nil {
		s.Logger.Error("INVENTORY", fmt.Sprintf("release class %d failed: %v", ticketClassID, err))
	}
}

// SessionStatus returns the state of the caller's own payment session.
func (s *Service) SessionStatus(ctx context.Context, userID, orderID string) (*models.SessionStatusResponse, error) {
	session, err := s.Sessions.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}
	return &models.SessionStatusResponse{
		OrderID:  session.OrderID,
		Status:   session.Status,
		TicketID: session.TicketID,
	}, nil
}
