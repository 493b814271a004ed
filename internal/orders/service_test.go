package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type failingRefunder struct{}

func (failingRefunder) RefundPayment(context.Context, string, *decimal.Decimal) (*payments.PaymentResult, error) {
	return nil, errors.New("gateway down")
}

func (failingRefunder) Refundable(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(100), nil
}

type ordersFixture struct {
	svc       Service
	repo      Repository
	conn      *gorm.DB
	processor payments.Processor
	ledger    payments.Repository
}

func newOrdersFixture(t *testing.T, refunder Refunder) ordersFixture {
	t.Helper()
	conn := dbtest.Open(t)
	ledger := payments.NewRepository(conn)
	processor, err := payments.NewProcessor(ledger, config.PaymentsConfig{
		SuspiciousAmount: "666",
		MaxAmount:        "10000",
		DeclinedCard:     "4242424242424241",
	}, nil, nil)
	require.NoError(t, err)
	if refunder == nil {
		refunder = processor
	}

	repo := NewRepository(conn)
	svc, err := NewService(repo, db.NewFromGorm(conn), outbox.NewService(outbox.NewRepository(conn), nil), refunder, nil)
	require.NoError(t, err)
	return ordersFixture{svc: svc, repo: repo, conn: conn, processor: processor, ledger: ledger}
}

// placeOrder charges total and persists a linked order owned by userID.
func (f ordersFixture) placeOrder(t *testing.T, userID uuid.UUID, total string, status enums.OrderStatus) *models.Order {
	t.Helper()
	ctx := context.Background()
	amount := decimal.RequireFromString(total)
	result, err := f.processor.ProcessPayment(ctx, payments.PaymentDetails{
		Amount:       amount,
		Method:       enums.PaymentMethodPayPal,
		PaymentToken: "tok",
	})
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	txID := result.TransactionID
	processed := time.Now().UTC()
	order := &models.Order{
		UserID:      userID,
		TotalAmount: amount,
		Delivery: models.DeliveryDetails{
			Address:      "1 Main St",
			PostalCode:   "10001",
			City:         "Springfield",
			ContactPhone: "555-0100",
			Method:       enums.DeliveryMethodStandard,
		},
		Payment: models.OrderPayment{
			Method:        enums.PaymentMethodPayPal,
			Status:        enums.PaymentStatusCompleted,
			TransactionID: &txID,
			Amount:        amount,
			ProcessedAt:   &processed,
		},
		Status:    status,
		CreatedAt: time.Now().UTC(),
		Lines: []models.OrderLine{
			{ProductID: uuid.New(), ProductName: "Widget", Price: amount, Quantity: 1},
		},
	}
	require.NoError(t, f.repo.CreateOrder(ctx, order))
	require.NoError(t, f.repo.CreateLink(ctx, &models.UserOrder{UserID: userID, OrderID: order.ID}))
	return order
}

func TestGetOrderRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	f := newOrdersFixture(t, nil)
	owner := uuid.New()
	order := f.placeOrder(t, owner, "40.00", enums.OrderStatusProcessing)

	got, err := f.svc.GetOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "Widget", got.Products[0].ProductName)

	_, err = f.svc.GetOrder(ctx, uuid.New(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCancelOrderRefundsFullTotal(t *testing.T) {
	ctx := context.Background()
	f := newOrdersFixture(t, nil)
	owner := uuid.New()
	order := f.placeOrder(t, owner, "40.00", enums.OrderStatusProcessing)

	result, err := f.svc.CancelOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, MessageOrderCancelled, result.Message)
	assert.Equal(t, enums.OrderStatusCancelled, result.Order.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, result.Order.PaymentDetails.PaymentStatus)
	require.NotNil(t, result.Order.CancelledAt)

	refunds, err := f.ledger.ListRefunds(ctx, *order.Payment.TransactionID)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(decimal.RequireFromString("40.00")))

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", enums.EventOrderCancelled).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, order.ID, events[0].AggregateID)

	_, err = f.svc.CancelOrder(ctx, owner, order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, "Order with status cancelled cannot be cancelled", pkgerrors.As(err).Message())
}

func TestCancelOrderAfterPartialRefundReturnsRemainder(t *testing.T) {
	ctx := context.Background()
	f := newOrdersFixture(t, nil)
	owner := uuid.New()
	order := f.placeOrder(t, owner, "40.00", enums.OrderStatusProcessing)
	txID := *order.Payment.TransactionID

	partial := decimal.RequireFromString("15.00")
	_, err := f.processor.RefundPayment(ctx, txID, &partial)
	require.NoError(t, err)

	result, err := f.svc.CancelOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, result.Order.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, result.Order.PaymentDetails.PaymentStatus)

	refunds, err := f.ledger.ListRefunds(ctx, txID)
	require.NoError(t, err)
	require.Len(t, refunds, 2)
	amounts := []string{refunds[0].Amount.StringFixed(2), refunds[1].Amount.StringFixed(2)}
	assert.ElementsMatch(t, []string{"15.00", "25.00"}, amounts)
}

func TestCancelOrderAfterFullRefundSkipsGateway(t *testing.T) {
	ctx := context.Background()
	f := newOrdersFixture(t, nil)
	owner := uuid.New()
	order := f.placeOrder(t, owner, "40.00", enums.OrderStatusPending)
	txID := *order.Payment.TransactionID

	all := decimal.RequireFromString("40.00")
	_, err := f.processor.RefundPayment(ctx, txID, &all)
	require.NoError(t, err)

	result, err := f.svc.CancelOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, result.Order.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, result.Order.PaymentDetails.PaymentStatus)

	refunds, err := f.ledger.ListRefunds(ctx, txID)
	require.NoError(t, err)
	assert.Len(t, refunds, 1)
}

func TestChargeReferenced(t *testing.T) {
	ctx := context.Background()
	f := newOrdersFixture(t, nil)
	order := f.placeOrder(t, uuid.New(), "12.00", enums.OrderStatusProcessing)

	referenced, err := f.svc.ChargeReferenced(ctx, *order.Payment.TransactionID)
	require.NoError(t, err)
	assert.True(t, referenced)

	sagaTx := "pay_00000000000000aa"
	require.NoError(t, f.conn.Create(&models.CheckoutSaga{
		UserID:        uuid.New(),
		State:         enums.CheckoutStateCreated,
		Amount:        decimal.NewFromInt(12),
		TransactionID: &sagaTx,
	}).Error)
	referenced, err = f.svc.ChargeReferenced(ctx, sagaTx)
	require.NoError(t, err)
	assert.True(t, referenced)

	referenced, err = f.svc.ChargeReferenced(ctx, "pay_00000000000000bb")
	require.NoError(t, err)
	assert.False(t, referenced)
}

func TestCancelOrderRejectsShipped(t *testing.T) {
	ctx := context.Background()
	f := newOrdersFixture(t, nil)
	owner := uuid.New()
	order := f.placeOrder(t, owner, "15.00", enums.OrderStatusShipped)

	_, err := f.svc.CancelOrder(ctx, owner, order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	refunds, err := f.ledger.ListRefunds(ctx, *order.Payment.TransactionID)
	require.NoError(t, err)
	assert.Empty(t, refunds)
}

func TestCancelOrderLeavesOrderWhenRefundFails(t *testing.T) {
	ctx := context.Background()
	f := newOrdersFixture(t, failingRefunder{})
	owner := uuid.New()
	order := f.placeOrder(t, owner, "15.00", enums.OrderStatusPending)

	_, err := f.svc.CancelOrder(ctx, owner, order.ID)
	require.Error(t, err)

	got, err := f.svc.GetOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, got.Status)
	assert.Equal(t, enums.PaymentStatusCompleted, got.PaymentDetails.PaymentStatus)
}

func TestArchiveHidesFromListButKeepsHistory(t *testing.T) {
	ctx := context.Background()
	f := newOrdersFixture(t, nil)
	owner := uuid.New()
	first := f.placeOrder(t, owner, "10.00", enums.OrderStatusProcessing)
	f.placeOrder(t, owner, "20.00", enums.OrderStatusProcessing)

	listed, err := f.svc.ListUserOrders(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	msg, err := f.svc.ArchiveOrder(ctx, owner, first.ID)
	require.NoError(t, err)
	assert.Equal(t, MessageOrderArchived, msg.Message)

	listed, err = f.svc.ListUserOrders(ctx, owner)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.NotEqual(t, first.ID, listed[0].ID)

	_, err = f.svc.GetOrder(ctx, owner, first.ID)
	require.NoError(t, err)

	history, err := f.svc.History(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestUpdateStatusAdvancesAndEmits(t *testing.T) {
	ctx := context.Background()
	f := newOrdersFixture(t, nil)
	order := f.placeOrder(t, uuid.New(), "10.00", enums.OrderStatusProcessing)
	admin := &outbox.ActorRef{UserID: uuid.New(), Role: string(enums.UserRoleAdmin)}

	updated, err := f.svc.UpdateStatus(ctx, admin, order.ID, enums.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, updated.Status)

	_, err = f.svc.UpdateStatus(ctx, admin, order.ID, enums.OrderStatusProcessing)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.UpdateStatus(ctx, admin, order.ID, enums.OrderStatusCancelled)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.UpdateStatus(ctx, admin, uuid.New(), enums.OrderStatusShipped)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	var count int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderStatusChanged).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestListAllPagesWithCursor(t *testing.T) {
	ctx := context.Background()
	f := newOrdersFixture(t, nil)
	for i := 0; i < 3; i++ {
		f.placeOrder(t, uuid.New(), "5.00", enums.OrderStatusProcessing)
	}

	first, err := f.svc.ListAll(ctx, ListAllParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.ListAll(ctx, ListAllParams{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, o := range append(first.Orders, second.Orders...) {
		seen[o.ID] = true
	}
	assert.Len(t, seen, 3)

	_, err = f.svc.ListAll(ctx, ListAllParams{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
