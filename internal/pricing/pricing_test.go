package pricing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TriNguyen2808/backend-eventapp/internal/models"
	"github.com/TriNguyen2808/backend-eventapp/internal/pricing"
)

type MockDiscountStore struct {
	mock.Mock
}

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

func vnd(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestApplyPercentageWithCap(t *testing.T) {
	base := vnd(1000000)

	// 20% of 1,000,000 is 200,000, capped at 50,000.
	capped := &models.DiscountCode{
		Kind:          models.DiscountPercentage,
		Value:         vnd(20),
		LimitDiscount: true,
		MaxDiscount:   vnd(50000),
	}
	assert.True(t, pricing.Apply(base, capped).Equal(vnd(950000)))

	// Cap at 30,000.
	capped.MaxDiscount = vnd(30000)
	assert.True(t, pricing.Apply(base, capped).Equal(vnd(970000)))

	// No cap: full 200,000 off.
	uncapped := &models.DiscountCode{
		Kind:  models.DiscountPercentage,
		Value: vnd(20),
	}
	assert.True(t, pricing.Apply(base, uncapped).Equal(vnd(800000)))
}

func TestApplyFixedFloorsAtZero(t *testing.T) {
	fixed := &models.DiscountCode{
		Kind:  models.DiscountFixed,
		Value: vnd(2000000),
	}
	assert.True(t, pricing.Apply(vnd(1000000), fixed).Equal(decimal.Zero))

	fixed.Value = vnd(150000)
	assert.True(t, pricing.Apply(vnd(1000000), fixed).Equal(vnd(850000)))
}

func TestPriceForWithoutCode(t *testing.T) {
	engine := pricing.NewEngine(&MockDiscountStore{})
	tc := &models.TicketClass{Price: vnd(500000)}

	quote, err := engine.PriceFor(context.Background(), tc, 1, "", &models.User{UserID: "u1"}, time.Now())
	require.NoError(t, err)
	assert.True(t, quote.Amount.Equal(vnd(500000)))
	assert.Nil(t, quote.Discount)
}

func TestPriceForHappyPath(t *testing.T) {
	now := time.Now()
	store := new(MockDiscountStore)
	discount := &models.DiscountCode{
		DiscountID:    7,
		Code:          "SUMMER20",
		ValidFrom:     now.Add(-time.Hour),
		ValidTo:       now.Add(time.Hour),
		Kind:          models.DiscountPercentage,
		Value:         vnd(20),
		LimitDiscount: true,
		MaxDiscount:   vnd(50000),
	}
	store.On("GetDiscountByCode", mock.Anything, "SUMMER20").Return(discount, nil)
	store.On("HasRedeemed", mock.Anything, int64(7), "u1").Return(false, nil)
	store.On("AppliesToEvent", mock.Anything, int64(7), int64(3)).Return(true, nil)
	store.On("AppliesToGroup", mock.Anything, int64(7), int64(2)).Return(true, nil)

	engine := pricing.NewEngine(store)
	tc := &models.TicketClass{Price: vnd(1000000)}
	user := &models.User{UserID: "u1", GroupID: 2}

	quote, err := engine.PriceFor(context.Background(), tc, 3, "SUMMER20", user, now)
	require.NoError(t, err)
	assert.True(t, quote.Amount.Equal(vnd(950000)))
	require.NotNil(t, quote.Discount)
	assert.Equal(t, int64(7), quote.Discount.DiscountID)
	store.AssertExpectations(t)
}

func TestPriceForUnknownCode(t *testing.T) {
	store := new(MockDiscountStore)
	store.On("GetDiscountByCode", mock.Anything, "NOPE").Return(nil, nil)

	engine := pricing.NewEngine(store)
	_, err := engine.PriceFor(context.Background(), &models.TicketClass{Price: vnd(100)}, 1, "NOPE", &models.User{UserID: "u1"}, time.Now())
	assert.ErrorIs(t, err, pricing.ErrDiscountInvalid)
}

func TestPriceForExpiredCode(t *testing.T) {
	now := time.Now()
	store := new(MockDiscountStore)
	store.On("GetDiscountByCode", mock.Anything, "OLD").Return(&models.DiscountCode{
		DiscountID: 1,
		ValidFrom:  now.Add(-48 * time.Hour),
		ValidTo:    now.Add(-24 * time.Hour),
	}, nil)

	engine := pricing.NewEngine(store)
	_, err := engine.PriceFor(context.Background(), &models.TicketClass{Price: vnd(100)}, 1, "OLD", &models.User{UserID: "u1"}, now)
	assert.ErrorIs(t, err, pricing.ErrDiscountInvalid)
}

func TestPriceForAlreadyUsed(t *testing.T) {
	now := time.Now()
	store := new(MockDiscountStore)
	store.On("GetDiscountByCode", mock.Anything, "ONCE").Return(&models.DiscountCode{
		DiscountID: 2,
		ValidFrom:  now.Add(-time.Hour),
		ValidTo:    now.Add(time.Hour),
		Kind:       models.DiscountFixed,
		Value:      vnd(10),
	}, nil)
	store.On("HasRedeemed", mock.Anything, int64(2), "u1").Return(true, nil)

	engine := pricing.NewEngine(store)
	_, err := engine.PriceFor(context.Background(), &models.TicketClass{Price: vnd(100)}, 1, "ONCE", &models.User{UserID: "u1"}, now)
	assert.ErrorIs(t, err, pricing.ErrDiscountAlreadyUsed)
}

func TestPriceForUsageCap(t *testing.T) {
	now := time.Now()
	store := new(MockDiscountStore)
	store.On("GetDiscountByCode", mock.Anything, "CAPPED").Return(&models.DiscountCode{
		DiscountID: 3,
		ValidFrom:  now.Add(-time.Hour),
		ValidTo:    now.Add(time.Hour),
		Kind:       models.DiscountFixed,
		Value:      vnd(10),
		MaxUsage:   100,
	}, nil)
	store.On("RedemptionCount", mock.Anything, int64(3)).Return(100, nil)

	engine := pricing.NewEngine(store)
	_, err := engine.PriceFor(context.Background(), &models.TicketClass{Price: vnd(100)}, 1, "CAPPED", &models.User{UserID: "u1"}, now)
	assert.ErrorIs(t, err, pricing.ErrDiscountUsageCapReached)
}

func TestPriceForWrongEventAndGroup(t *testing.T) {
	now := time.Now()
	discount := &models.DiscountCode{
		DiscountID: 4,
		ValidFrom:  now.Add(-time.Hour),
		ValidTo:    now.Add(time.Hour),
		Kind:       models.DiscountFixed,
		Value:      vnd(10),
	}

	store := new(MockDiscountStore)
	store.On("GetDiscountByCode", mock.Anything, "EVT").Return(discount, nil)
	store.On("HasRedeemed", mock.Anything, int64(4), "u1").Return(false, nil)
	store.On("AppliesToEvent", mock.Anything, int64(4), int64(9)).Return(false, nil)

	engine := pricing.NewEngine(store)
	user := &models.User{UserID: "u1", GroupID: 2}
	_, err := engine.PriceFor(context.Background(), &models.TicketClass{Price: vnd(100)}, 9, "EVT", user, now)
	assert.ErrorIs(t, err, pricing.ErrDiscountNotApplicableToEvent)

	store2 := new(MockDiscountStore)
	store2.On("GetDiscountByCode", mock.Anything, "EVT").Return(discount, nil)
	store2.On("HasRedeemed", mock.Anything, int64(4), "u1").Return(false, nil)
	store2.On("AppliesToEvent", mock.Anything, int64(4), int64(9)).Return(true, nil)
	store2.On("AppliesToGroup", mock.Anything, int64(4), int64(2)).Return(false, nil)

	engine = pricing.NewEngine(store2)
	_, err = engine.PriceFor(context.Background(), &models.TicketClass{Price: vnd(100)}, 9, "EVT", user, now)
	assert.ErrorIs(t, err, pricing.ErrDiscountNotApplicableToGroup)
}
