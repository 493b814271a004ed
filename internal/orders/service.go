package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Service defines the order lifecycle after checkout.
type Service interface {
	ListUserOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*CancelResult, error)
	ArchiveOrder(ctx context.Context, userID, orderID uuid.UUID) (*types.MessageResponse, error)
	History(ctx context.Context, userID uuid.UUID) ([]HistoryEntry, error)
	UpdateStatus(ctx context.Context, actor *outbox.ActorRef, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error)
	ListAll(ctx context.Context, params ListAllParams) (*OrderList, error)
	ChargeReferenced(ctx context.Context, transactionID string) (bool, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	refunder Refunder
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order lifecycle service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, refunder Refunder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if refunder == nil {
		return nil, fmt.Errorf("refunder required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outbox,
		refunder: refunder,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func orderNotCancellable(status enums.OrderStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "Order with status %s cannot be cancelled", status)
}

func orderNotFound(id uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "Order with ID %s not found", id)
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	links, err := s.repo.ListLinks(ctx, userID, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(links))
	for i := range links {
		if links[i].Order == nil {
			continue
		}
		out = append(out, *FromModel(links[i].Order))
	}
	return out, nil
}

// loadOwned resolves the order only when the user holds a link to it.
func (s *service) loadOwned(ctx context.Context, userID, orderID uuid.UUID) (*models.UserOrder, *models.Order, error) {
	link, err := s.repo.FindLink(ctx, userID, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil, orderNotFound(orderID)
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order link")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil, orderNotFound(orderID)
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return link, order, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	_, order, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

// CancelOrder refunds what remains of a completed payment, up to the order
// total, before the order is marked cancelled; a failed refund leaves the
// order untouched.
func (s *service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*CancelResult, error) {
	_, order, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.Cancellable() {
		return nil, orderNotCancellable(order.Status)
	}

	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, orderID.String())
	}

	refundID := ""
	refunded := false
	if order.Payment.Status == enums.PaymentStatusCompleted && order.Payment.TransactionID != nil {
		result, err := s.refundCharge(ctx, *order.Payment.TransactionID, order.TotalAmount)
		if err != nil {
			if s.logg != nil {
				s.logg.Error(ctx, "orders.cancel.refund_failed", err)
			}
			return nil, err
		}
		if result != nil {
			refundID = result.TransactionID
		}
		refunded = true
	}

	now := s.now().UTC()
	previous := order.Status
	updates := map[string]any{
		"status":       enums.OrderStatusCancelled,
		"cancelled_at": now,
		"updated_at":   now,
	}
	if refunded {
		updates["payment_status"] = enums.PaymentStatusRefunded
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		matched, err := s.repo.WithTx(tx).TransitionStatus(ctx, orderID, []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}
		if !matched {
			return orderNotCancellable(enums.OrderStatusCancelled)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleUser)},
			Data: payloads.OrderCancelledEvent{
				OrderID:             orderID,
				UserID:              order.UserID,
				PreviousStatus:      previous,
				TotalAmount:         order.TotalAmount,
				Refunded:            refunded,
				RefundTransactionID: refundID,
				CancelledAt:         now,
			},
		})
	})
	if err != nil {
		if refunded && s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "refund_transaction_id", refundID), "orders.cancel.refunded_without_cancel", err)
		}
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "refunded", refunded), "orders.cancelled")
	}

	cancelled, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	return &CancelResult{Message: MessageOrderCancelled, Order: FromModel(cancelled)}, nil
}

// refundCharge returns up to total of the charge. A charge already refunded in
// full yields a nil result and no error.
func (s *service) refundCharge(ctx context.Context, transactionID string, total decimal.Decimal) (*payments.PaymentResult, error) {
	refundable, err := s.refunder.Refundable(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	amount := decimal.Min(total, refundable)
	if !amount.IsPositive() {
		return nil, nil
	}
	return s.refunder.RefundPayment(ctx, transactionID, &amount)
}

// ChargeReferenced reports whether a charge backs an order or an in-flight
// checkout. Such charges are refunded by cancelling the order.
func (s *service) ChargeReferenced(ctx context.Context, transactionID string) (bool, error) {
	referenced, err := s.repo.ChargeReferenced(ctx, transactionID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up charge")
	}
	return referenced, nil
}

// ArchiveOrder hides the order from the user's listing; it stays readable by id.
func (s *service) ArchiveOrder(ctx context.Context, userID, orderID uuid.UUID) (*types.MessageResponse, error) {
	link, _, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !link.IsArchived {
		if err := s.repo.SetArchived(ctx, link.ID, true); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "archive order")
		}
	}
	return &types.MessageResponse{Message: MessageOrderArchived}, nil
}

// History is the profile view of every order the user placed, archived ones included.
func (s *service) History(ctx context.Context, userID uuid.UUID) ([]HistoryEntry, error) {
	links, err := s.repo.ListLinks(ctx, userID, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order history")
	}
	out := make([]HistoryEntry, 0, len(links))
	for _, link := range links {
		if link.Order == nil {
			continue
		}
		out = append(out, HistoryEntry{
			OrderID:     link.Order.ID,
			Products:    linesFromModel(link.Order.Lines),
			TotalAmount: link.Order.TotalAmount,
			OrderDate:   link.Order.CreatedAt,
			Status:      link.Order.Status,
		})
	}
	return out, nil
}

// UpdateStatus moves an order forward along pending, processing, shipped, delivered.
func (s *service) UpdateStatus(ctx context.Context, actor *outbox.ActorRef, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
	}
	if status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "orders are cancelled through the cancel endpoint")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, orderNotFound(orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if !order.Status.CanAdvanceTo(status) {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "Order with status %s cannot move to %s", order.Status, status)
	}

	now := s.now().UTC()
	from := order.Status
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		matched, err := s.repo.WithTx(tx).TransitionStatus(ctx, orderID, []enums.OrderStatus{from}, map[string]any{
			"status":     status,
			"updated_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if !matched {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actor,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   orderID,
				UserID:    order.UserID,
				From:      from,
				To:        status,
				ChangedAt: now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	return FromModel(updated), nil
}

func (s *service) ListAll(ctx context.Context, params ListAllParams) (*OrderList, error) {
	cursor := strings.TrimSpace(params.Cursor)
	if _, err := pagination.ParseCursor(cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListAll(ctx, pagination.Params{Limit: params.Limit, Cursor: cursor}, params.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}

	rows, more := pagination.Trim(rows, params.Limit)
	next := ""
	if more {
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return &OrderList{Orders: out, NextCursor: next}, nil
}
