package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/instrument-market/internal/events"
	"github.com/shinyyama/instrument-market/internal/logging"
	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shinyyama/instrument-market/internal/repository"
	"github.com/shopspring/decimal"
)

type CreateOrderInput struct {
	InstrumentID uint64
	BuyerID      uint64
	Quantity     int
	MeetingTime  *time.Time
	MeetingPlace string
}

type MeetingInput struct {
	MeetingTime  *time.Time
	MeetingPlace *string
}

type OrderService interface {
	Create(ctx context.Context, in CreateOrderInput) (*model.Order, error)
	UpdateStatus(ctx context.Context, orderID string, actorID uint64, status, paymentMethod string) (*model.Order, error)
	Get(ctx context.Context, orderID string, actorID uint64) (*model.Order, error)
	List(ctx context.Context, actorID uint64, role string) ([]model.Order, error)
	UpdateMeeting(ctx context.Context, orderID string, actorID uint64, in MeetingInput) (*model.Order, error)
}

type orderService struct {
	tx            repository.Transactor
	orders        repository.OrderRepository
	instruments   repository.InstrumentRepository
	carts         repository.CartRepository
	notifications NotificationService
	publisher     events.Publisher
	now           func() time.Time
}

func NewOrderService(
	tx repository.Transactor,
	orders repository.OrderRepository,
	instruments repository.InstrumentRepository,
	carts repository.CartRepository,
	notifications NotificationService,
	publisher events.Publisher,
) OrderService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &orderService{
		tx:            tx,
		orders:        orders,
		instruments:   instruments,
		carts:         carts,
		notifications: notifications,
		publisher:     publisher,
		now:           time.Now,
	}
}

// Create reserves an available listing for the buyer. The listing moves to
// pending in the same transaction that inserts the order, so two buyers can
// never both obtain it.
func (s *orderService) Create(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if in.Quantity < 1 {
		return nil, invalid("quantity must be at least 1")
	}
	order := &model.Order{
		ID:           uuid.NewString(),
		InstrumentID: in.InstrumentID,
		BuyerID:      in.BuyerID,
		Quantity:     in.Quantity,
		Status:       model.OrderStatusPending,
		MeetingPlace: strings.TrimSpace(in.MeetingPlace),
	}
	if in.MeetingTime != nil {
		t := in.MeetingTime.UTC()
		order.MeetingTime = &t
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		inst, err := s.instruments.FindByIDForUpdate(ctx, in.InstrumentID)
		if err != nil {
			return notFound(err, "instrument")
		}
		if inst.OwnerID == in.BuyerID {
			return invalid("cannot buy your own instrument")
		}
		if inst.Status != model.InstrumentStatusAvailable {
			return conflict("instrument %d is not available", in.InstrumentID)
		}

		ok, err := s.instruments.TransitionStatus(ctx, inst.ID,
			[]model.InstrumentStatus{model.InstrumentStatusAvailable}, model.InstrumentStatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return conflict("instrument %d is not available", in.InstrumentID)
		}

		order.SellerID = inst.OwnerID
		order.TotalPrice = inst.Price.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2)
		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}
		return s.carts.DeleteByUserInstrument(ctx, in.BuyerID, inst.ID)
	})
	if err != nil {
		return nil, err
	}

	orderID := order.ID
	instID := order.InstrumentID
	s.notifications.Notify(ctx, order.SellerID, model.NotificationTypeOrderCreated,
		"New order", fmt.Sprintf("Order %s was placed for your instrument", orderID), &instID, &orderID)
	s.publish(ctx, events.TypeOrderCreated, order, "")

	return s.detail(ctx, order.ID, order)
}

// UpdateStatus moves the order along the lifecycle and reconciles the
// listing: completion marks it sold, cancellation makes it available again.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, actorID uint64, status, paymentMethod string) (*model.Order, error) {
	next := model.OrderStatus(strings.TrimSpace(status))
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	var (
		order *model.Order
		from  model.OrderStatus
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order")
		}
		if o.BuyerID != actorID && o.SellerID != actorID {
			return forbidden("not a party to order %s", orderID)
		}
		if !o.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
		}

		extra := map[string]interface{}{}
		if next == model.OrderStatusPaid && strings.TrimSpace(paymentMethod) != "" {
			extra["payment_method"] = strings.TrimSpace(paymentMethod)
		}
		ok, err := s.orders.TransitionStatus(ctx, o.ID, o.Status, next, extra)
		if err != nil {
			return err
		}
		if !ok {
			return conflict("order %s changed concurrently", orderID)
		}

		if listingStatus, touches := next.ListingStatusOnEnter(); touches {
			ok, err := s.instruments.TransitionStatus(ctx, o.InstrumentID,
				[]model.InstrumentStatus{model.InstrumentStatusPending}, listingStatus)
			if err != nil {
				return err
			}
			if !ok {
				return conflict("instrument %d is not held by order %s", o.InstrumentID, orderID)
			}
		}

		from = o.Status
		o.Status = next
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	counterparty := order.SellerID
	if actorID == order.SellerID {
		counterparty = order.BuyerID
	}
	id := order.ID
	instID := order.InstrumentID
	s.notifications.Notify(ctx, counterparty, model.NotificationTypeOrderStatus,
		"Order updated", fmt.Sprintf("Order %s is now %s", id, next), &instID, &id)
	s.publish(ctx, events.TypeOrderStatusChanged, order, from)

	return s.detail(ctx, order.ID, order)
}

func (s *orderService) publish(ctx context.Context, typ string, o *model.Order, from model.OrderStatus) {
	ev := events.OrderEvent{
		Type:         typ,
		OrderID:      o.ID,
		InstrumentID: o.InstrumentID,
		BuyerID:      o.BuyerID,
		SellerID:     o.SellerID,
		Status:       string(o.Status),
		FromStatus:   string(from),
		TotalPrice:   o.TotalPrice.StringFixed(2),
		OccurredAt:   s.now().UTC(),
	}
	if err := s.publisher.PublishOrder(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("publish order event failed",
			"order_id", o.ID,
			"type", typ,
			"err", err,
		)
	}
}

// detail reloads the order with its listing; the committed copy is returned
// if the reload fails.
func (s *orderService) detail(ctx context.Context, id string, fallback *model.Order) (*model.Order, error) {
	o, err := s.orders.FindDetail(ctx, id)
	if err != nil {
		logging.FromContext(ctx).Warn("reload order failed", "order_id", id, "err", err)
		return fallback, nil
	}
	return o, nil
}

func (s *orderService) Get(ctx context.Context, orderID string, actorID uint64) (*model.Order, error) {
	o, err := s.orders.FindDetail(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order")
	}
	if o.BuyerID != actorID && o.SellerID != actorID {
		return nil, forbidden("not a party to order %s", orderID)
	}
	return o, nil
}

func (s *orderService) List(ctx context.Context, actorID uint64, role string) ([]model.Order, error) {
	party := repository.Party(strings.ToLower(strings.TrimSpace(role)))
	switch party {
	case repository.PartyAny, repository.PartyBuyer, repository.PartySeller:
	default:
		return nil, invalid("role must be buyer or seller")
	}
	return s.orders.ListByParty(ctx, actorID, party)
}

func (s *orderService) UpdateMeeting(ctx context.Context, orderID string, actorID uint64, in MeetingInput) (*model.Order, error) {
	fields := map[string]interface{}{}
	if in.MeetingTime != nil {
		fields["meeting_time"] = in.MeetingTime.UTC()
	}
	if in.MeetingPlace != nil {
		fields["meeting_place"] = strings.TrimSpace(*in.MeetingPlace)
	}
	if len(fields) == 0 {
		return nil, invalid("meeting_time or meeting_place is required")
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order")
		}
		if o.BuyerID != actorID && o.SellerID != actorID {
			return forbidden("not a party to order %s", orderID)
		}
		if o.Status.Terminal() {
			return fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, orderID, o.Status)
		}
		return s.orders.UpdateMeeting(ctx, orderID, fields)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID, actorID)
}
