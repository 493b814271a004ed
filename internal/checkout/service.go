package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	pkgcheckout "github.com/angelmondragon/storefront-backend/pkg/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const lockScope = "checkout"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetDefaultDelivery(ctx context.Context, id uuid.UUID, details models.DeliveryDetails) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// locker is the per-user mutex held from cart read to cart clear.
type locker interface {
	LockKey(scope, id string) string
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) (bool, error)
}

// Service turns a user's cart into a paid order.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*CreateOrderResult, error)
}

// Deps groups the collaborators of the checkout saga.
type Deps struct {
	Tx        txRunner
	Sagas     Repository
	Cart      cart.Repository
	Orders    orders.Repository
	Products  productLoader
	Users     userStore
	Processor payments.Processor
	Outbox    outboxPublisher
	Locks     locker
	Config    config.CheckoutConfig
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
}

type service struct {
	tx        txRunner
	sagas     Repository
	cart      cart.Repository
	orders    orders.Repository
	products  productLoader
	users     userStore
	processor payments.Processor
	outbox    outboxPublisher
	locks     locker
	cfg       config.CheckoutConfig
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Sagas == nil:
		return nil, fmt.Errorf("saga repository required")
	case deps.Cart == nil:
		return nil, fmt.Errorf("cart repository required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Products == nil:
		return nil, fmt.Errorf("product loader required")
	case deps.Users == nil:
		return nil, fmt.Errorf("user store required")
	case deps.Processor == nil:
		return nil, fmt.Errorf("payment processor required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case deps.Locks == nil:
		return nil, fmt.Errorf("lock client required")
	}
	if deps.Config.LockTTL <= 0 {
		return nil, fmt.Errorf("checkout lock ttl must be positive")
	}
	return &service{
		tx:        deps.Tx,
		sagas:     deps.Sagas,
		cart:      deps.Cart,
		orders:    deps.Orders,
		products:  deps.Products,
		users:     deps.Users,
		processor: deps.Processor,
		outbox:    deps.Outbox,
		locks:     deps.Locks,
		cfg:       deps.Config,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		now:       time.Now,
	}, nil
}

func validateDelivery(d models.DeliveryDetails) error {
	var missing []string
	if strings.TrimSpace(d.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(d.PostalCode) == "" {
		missing = append(missing, "postalCode")
	}
	if strings.TrimSpace(d.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(d.ContactPhone) == "" {
		missing = append(missing, "contactPhone")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery details are incomplete").WithDetails(map[string]any{"missing": missing})
	}
	if !d.Method.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid delivery method %q", d.Method)
	}
	return nil
}

func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*CreateOrderResult, error) {
	start := s.now()
	outcome := "error"
	defer func() { s.metrics.Observe(outcome, s.now().Sub(start)) }()

	if err := validateDelivery(input.Delivery); err != nil {
		outcome = "invalid"
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithUserID(ctx, userID.String())
	}

	lockKey := s.locks.LockKey(lockScope, userID.String())
	owner := uuid.NewString()
	acquired, err := s.locks.AcquireLock(ctx, lockKey, owner, s.cfg.LockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire checkout lock")
	}
	if !acquired {
		outcome = "in_progress"
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "A checkout is already in progress for this user")
	}
	defer func() {
		if _, err := s.locks.ReleaseLock(context.WithoutCancel(ctx), lockKey, owner); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout.lock_release_failed")
		}
	}()

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}

	items, err := s.cart.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if len(items) == 0 {
		outcome = "empty_cart"
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Cart is empty")
	}

	lines, err := s.snapshot(ctx, items)
	if err != nil {
		return nil, err
	}
	total := pkgcheckout.Total(lines)
	if err := pkgcheckout.ReconcileAmount(input.Payment.Amount, total); err != nil {
		outcome = "amount_mismatch"
		return nil, err
	}

	saga := &models.CheckoutSaga{
		UserID: userID,
		State:  enums.CheckoutStateCreated,
		Amount: total,
		Items:  sagaItems(lines),
	}
	if err := s.sagas.Create(ctx, saga); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create checkout saga")
	}
	if s.logg != nil {
		ctx = s.logg.WithField(ctx, "saga_id", saga.ID.String())
	}

	result, err := s.processor.ProcessPayment(ctx, input.Payment)
	if err != nil {
		s.failSaga(ctx, saga.ID, err.Error())
		outcome = "invalid"
		return nil, err
	}
	if !result.Succeeded() {
		s.failSaga(ctx, saga.ID, result.Message)
		outcome = "declined"
		return nil, pkgerrors.New(pkgerrors.CodePaymentDeclined, result.Message)
	}
	if err := s.sagas.Update(ctx, saga.ID, map[string]any{"transaction_id": result.TransactionID}); err != nil && s.logg != nil {
		s.logg.Error(ctx, "checkout.saga_charge_record_failed", err)
	}

	order := buildOrder(userID, input, lines, total, result)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := s.sagas.WithTx(tx).Update(ctx, saga.ID, map[string]any{
			"state":          enums.CheckoutStatePaid,
			"order_id":       order.ID,
			"transaction_id": result.TransactionID,
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, orderCreatedEvent(order, userID))
	})
	if err != nil {
		s.compensateCharge(ctx, saga.ID, result, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist order")
	}

	if state, err := s.finish(ctx, saga.ID, userID, order.ID, saga.Items); err != nil {
		outcome = "incomplete"
		return nil, incompleteError(order.ID, saga.ID, state, err)
	}

	if input.SaveDeliveryInfo {
		if err := s.users.SetDefaultDelivery(ctx, userID, input.Delivery); err != nil && s.logg != nil {
			s.logg.Error(ctx, "checkout.save_delivery_failed", err)
		}
	}

	outcome = "success"
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "checkout.completed")
	}
	return &CreateOrderResult{
		Message: MessageOrderCreated,
		Order: OrderWithPayment{
			OrderDTO:      *orders.FromModel(order),
			PaymentResult: result,
		},
	}, nil
}

// snapshot prices every cart row against the current catalog.
func (s *service) snapshot(ctx context.Context, items []models.CartItem) ([]pkgcheckout.LineSnapshot, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	lines := make([]pkgcheckout.LineSnapshot, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "Product with ID %s not found", item.ProductID)
		}
		lines = append(lines, pkgcheckout.LineSnapshot{
			CartItemID:  item.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.EffectivePrice(),
			Quantity:    item.Quantity,
		})
	}
	if err := pkgcheckout.ValidateQuantities(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// finish links the order, clears the snapshotted cart rows and closes the saga.
// It returns the last state reached so a failure can be reported and resumed.
func (s *service) finish(ctx context.Context, sagaID, userID, orderID uuid.UUID, items []models.SagaItem) (enums.CheckoutState, error) {
	if err := s.orders.CreateLink(ctx, &models.UserOrder{UserID: userID, OrderID: orderID}); err != nil {
		return enums.CheckoutStatePaid, err
	}
	if err := s.advance(ctx, sagaID, enums.CheckoutStateLinked); err != nil {
		return enums.CheckoutStatePaid, err
	}
	if err := consumeCart(ctx, s.tx, s.sagas, s.cart, sagaID, userID, items); err != nil {
		return enums.CheckoutStateLinked, err
	}
	if err := s.advance(ctx, sagaID, enums.CheckoutStateDone); err != nil {
		return enums.CheckoutStateCartCleared, err
	}
	return enums.CheckoutStateDone, nil
}

// consumeCart takes the snapshot quantities off the cart and marks the saga
// CART_CLEARED in one transaction, so a resumed saga never consumes twice.
func consumeCart(ctx context.Context, tx txRunner, sagas Repository, carts cart.Repository, sagaID, userID uuid.UUID, items []models.SagaItem) error {
	return tx.WithTx(ctx, func(conn *gorm.DB) error {
		if _, err := carts.WithTx(conn).ConsumeItems(ctx, userID, items); err != nil {
			return err
		}
		return sagas.WithTx(conn).Update(ctx, sagaID, map[string]any{"state": enums.CheckoutStateCartCleared})
	})
}

func (s *service) advance(ctx context.Context, sagaID uuid.UUID, state enums.CheckoutState) error {
	return s.sagas.Update(ctx, sagaID, map[string]any{"state": state})
}

func (s *service) failSaga(ctx context.Context, sagaID uuid.UUID, reason string) {
	err := s.sagas.Update(ctx, sagaID, map[string]any{
		"state":      enums.CheckoutStateFailed,
		"last_error": reason,
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "checkout.saga_fail_update_failed", err)
	}
}

// compensateCharge refunds a charge whose order could not be persisted.
func (s *service) compensateCharge(ctx context.Context, sagaID uuid.UUID, charge *payments.PaymentResult, cause error) {
	amount := charge.Amount
	if _, err := s.processor.RefundPayment(ctx, charge.TransactionID, &amount); err != nil {
		// leave the saga in CREATED with its charge so the reconciler retries the refund
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "transaction_id", charge.TransactionID), "checkout.compensating_refund_failed", err)
		}
		return
	}
	s.failSaga(ctx, sagaID, cause.Error())
}

func incompleteError(orderID, sagaID uuid.UUID, state enums.CheckoutState, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeCheckoutIncomplete, cause, "Order was created but checkout did not complete").WithDetails(IncompleteDetail{
		OrderID: orderID,
		SagaID:  sagaID,
		State:   state,
	})
}

func sagaItems(lines []pkgcheckout.LineSnapshot) []models.SagaItem {
	items := make([]models.SagaItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.SagaItem{
			CartItemID: line.CartItemID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
		})
	}
	return items
}

func buildOrder(userID uuid.UUID, input CreateOrderInput, lines []pkgcheckout.LineSnapshot, total decimal.Decimal, result *payments.PaymentResult) *models.Order {
	txID := result.TransactionID
	processedAt := result.Timestamp.UTC()
	orderLines := make([]models.OrderLine, 0, len(lines))
	for _, line := range lines {
		orderLines = append(orderLines, models.OrderLine{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Price:       line.Price,
			Quantity:    line.Quantity,
		})
	}
	return &models.Order{
		UserID:      userID,
		TotalAmount: total,
		Delivery:    input.Delivery,
		Payment: models.OrderPayment{
			Method:        input.Payment.Method,
			Status:        result.Status,
			TransactionID: &txID,
			Amount:        result.Amount,
			ProcessedAt:   &processedAt,
		},
		Status: enums.OrderStatusProcessing,
		Notes:  input.Notes,
		Lines:  orderLines,
	}
}

func orderCreatedEvent(order *models.Order, userID uuid.UUID) outbox.DomainEvent {
	lines := make([]payloads.OrderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, payloads.OrderLine{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Price:       line.Price,
			Quantity:    line.Quantity,
		})
	}
	txID := ""
	if order.Payment.TransactionID != nil {
		txID = *order.Payment.TransactionID
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleUser)},
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			UserID:        userID,
			TotalAmount:   order.TotalAmount,
			PaymentMethod: order.Payment.Method,
			TransactionID: txID,
			Delivery:      order.Delivery.Method,
			Lines:         lines,
			CreatedAt:     order.CreatedAt,
		},
	}
}
