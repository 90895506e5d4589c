package purchase_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TriNguyen2808/backend-eventapp/internal/inventory"
	"github.com/TriNguyen2808/backend-eventapp/internal/logger"
	"github.com/TriNguyen2808/backend-eventapp/internal/models"
	"github.com/TriNguyen2808/backend-eventapp/internal/pricing"
	"github.com/TriNguyen2808/backend-eventapp/internal/purchase"
	"github.com/TriNguyen2808/backend-eventapp/internal/vnpay"
)

type MockUserStore struct{ mock.Mock }

func (m *MockUserStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockCatalog struct{ mock.Mock }

func (m *MockCatalog) GetTicketClass(ctx context.Context, id int64) (*models.TicketClass, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TicketClass), args.Error(1)
}

func (m *MockCatalog) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

type MockLedger struct{ mock.Mock }

func (m *MockLedger) Reserve(ctx context.Context, ticketClassID int64) error {
	return m.Called(ctx, ticketClassID).Error(0)
}

func (m *MockLedger) Release(ctx context.Context, ticketClassID int64) error {
	return m.Called(ctx, ticketClassID).Error(0)
}

type MockSessionStore struct{ mock.Mock }

func (m *MockSessionStore) Create(ctx context.Context, session *models.PaymentSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockSessionStore) GetByID(ctx context.Context, orderID string) (*models.PaymentSession, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentSession), args.Error(1)
}

type MockGateway struct{ mock.Mock }

func (m *MockGateway) BuildPaymentURL(req vnpay.PaymentRequest) (string, error) {
	args := m.Called(req)
	return args.String(0), args.Error(1)
}

type MockDiscountStore struct{ mock.Mock }

func (m *MockDiscountStore) GetDiscountByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DiscountCode), args.Error(1)
}

func (m *MockDiscountStore) HasRedeemed(ctx context.Context, discountID int64, userID string) (bool, error) {
	args := m.Called(ctx, discountID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDiscountStore) RedemptionCount(ctx context.Context, discountID int64) (int, error) {
	args := m.Called(ctx, discountID)
	return args.Int(0), args.Error(1)
}

func (m *MockDiscountStore) AppliesToEvent(ctx context.Context, discountID, eventID int64) (bool, error) {
	args := m.Called(ctx, discountID, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDiscountStore) AppliesToGroup(ctx context.Context, discountID, groupID int64) (bool, error) {
	args := m.Called(ctx, discountID, groupID)
	return args.Bool(0), args.Error(1)
}

type deps struct {
	users    *MockUserStore
	catalog  *MockCatalog
	ledger   *MockLedger
	sessions *MockSessionStore
	gateway  *MockGateway
	svc      *purchase.Service
}

func newDeps() *deps {
	d := &deps{
		users:    new(MockUserStore),
		catalog:  new(MockCatalog),
		ledger:   new(MockLedger),
		sessions: new(MockSessionStore),
		gateway:  new(MockGateway),
	}
	d.svc = purchase.NewService(d.users, d.catalog, pricing.NewEngine(new(MockDiscountStore)), d.ledger, d.sessions, d.gateway, logger.NewLogger())
	return d
}

func activeEvent() *models.Event {
	return &models.Event{
		EventID:   3,
		Name:      "Live Show",
		StartTime: time.Now().Add(24 * time.Hour),
		EndTime:   time.Now().Add(28 * time.Hour),
		Active:    true,
	}
}

func standardClass() *models.TicketClass {
	return &models.TicketClass{
		TicketClassID:  5,
		EventID:        3,
		Name:           "Standard",
		Price:          decimal.NewFromInt(500000),
		TotalAvailable: 10,
	}
}

func TestPurchaseHappyPath(t *testing.T) {
	d := newDeps()
	ctx := context.Background()

	d.users.On("GetUser", mock.Anything, "u1").Return(&models.User{UserID: "u1", GroupID: 1}, nil)
	d.catalog.On("GetTicketClass", mock.Anything, int64(5)).Return(standardClass(), nil)
	d.catalog.On("GetEvent", mock.Anything, int64(3)).Return(activeEvent(), nil)
	d.ledger.On("Reserve", mock.Anything, int64(5)).Return(nil)
	d.sessions.On("Create", mock.Anything, mock.AnythingOfType("*models.PaymentSession")).Return(nil)
	d.gateway.On("BuildPaymentURL", mock.AnythingOfType("vnpay.PaymentRequest")).Return("https://pay.example/redirect", nil)

	resp, err := d.svc.Purchase(ctx, "u1", models.PurchaseRequest{TicketClassID: 5}, "203.0.113.7")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.OrderID)
	assert.True(t, resp.Amount.Equal(decimal.NewFromInt(500000)))
	assert.Equal(t, "https://pay.example/redirect", resp.PaymentURL)

	d.ledger.AssertCalled(t, "Reserve", mock.Anything, int64(5))
	d.ledger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestPurchaseInactiveEvent(t *testing.T) {
	d := newDeps()

	event := activeEvent()
	event.Active = false

	d.users.On("GetUser", mock.Anything, "u1").Return(&models.User{UserID: "u1"}, nil)
	d.catalog.On("GetTicketClass", mock.Anything, int64(5)).Return(standardClass(), nil)
	d.catalog.On("GetEvent", mock.Anything, int64(3)).Return(event, nil)

	_, err := d.svc.Purchase(context.Background(), "u1", models.PurchaseRequest{TicketClassID: 5}, "")
	assert.ErrorIs(t, err, purchase.ErrEventNotOnSale)
	d.ledger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}

func TestPurchaseSoldOut(t *testing.T) {
	d := newDeps()

	d.users.On("GetUser", mock.Anything, "u1").Return(&models.User{UserID: "u1"}, nil)
	d.catalog.On("GetTicketClass", mock.Anything, int64(5)).Return(standardClass(), nil)
	d.catalog.On("GetEvent", mock.Anything, int64(3)).Return(activeEvent(), nil)
	d.ledger.On("Reserve", mock.Anything, int64(5)).Return(inventory.ErrSoldOut)

	_, err := d.svc.Purchase(context.Background(), "u1", models.PurchaseRequest{TicketClassID: 5}, "")
	assert.ErrorIs(t, err, inventory.ErrSoldOut)
	d.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPurchaseReleasesOnSessionFailure(t *testing.T) {
	d := newDeps()

	d.users.On("GetUser", mock.Anything, "u1").Return(&models.User{UserID: "u1"}, nil)
	d.catalog.On("GetTicketClass", mock.Anything, int64(5)).Return(standardClass(), nil)
	d.catalog.On("GetEvent", mock.Anything, int64(3)).Return(activeEvent(), nil)
	d.ledger.On("Reserve", mock.Anything, int64(5)).Return(nil)
	d.sessions.On("Create", mock.Anything, mock.Anything).Return(assertErr{})
	d.ledger.On("Release", mock.Anything, int64(5)).Return(nil)

	_, err := d.svc.Purchase(context.Background(), "u1", models.PurchaseRequest{TicketClassID: 5}, "")
	assert.Error(t, err)
	d.ledger.AssertCalled(t, "Release", mock.Anything, int64(5))
}

func TestPurchaseReleasesOnGatewayFailure(t *testing.T) {
	d := newDeps()

	d.users.On("GetUser", mock.Anything, "u1").Return(&models.User{UserID: "u1"}, nil)
	d.catalog.On("GetTicketClass", mock.Anything, int64(5)).Return(standardClass(), nil)
	d.catalog.On("GetEvent", mock.Anything, int64(3)).Return(activeEvent(), nil)
	d.ledger.On("Reserve", mock.Anything, int64(5)).Return(nil)
	d.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.gateway.On("BuildPaymentURL", mock.Anything).Return("", assertErr{})
	d.ledger.On("Release", mock.Anything, int64(5)).Return(nil)

	_, err := d.svc.Purchase(context.Background(), "u1", models.PurchaseRequest{TicketClassID: 5}, "")
	assert.Error(t, err)
	d.ledger.AssertCalled(t, "Release", mock.Anything, int64(5))
}

func TestSessionStatusOwnerOnly(t *testing.T) {
	d := newDeps()

	d.sessions.On("GetByID", mock.Anything, "order-1").Return(&models.PaymentSession{
		OrderID: "order-1",
		UserID:  "u1",
		Status:  models.StatusSuccess,
	}, nil)

	status, err := d.svc.SessionStatus(context.Background(), "u1", "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, status.Status)

	_, err = d.svc.SessionStatus(context.Background(), "u2", "order-1")
	assert.ErrorIs(t, err, purchase.ErrNotSessionOwner)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
