package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusCompleted},
	OrderStatusCompleted: nil,
	OrderStatusCancelled: nil,
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ListingStatusOnEnter returns the status the referenced listing takes when an
// order enters s. Only completion and cancellation touch the listing.
func (s OrderStatus) ListingStatusOnEnter() (InstrumentStatus, bool) {
	switch s {
	case OrderStatusCompleted:
		return InstrumentStatusSold, true
	case OrderStatusCancelled:
		return InstrumentStatusAvailable, true
	}
	return "", false
}

// Order is keyed by an opaque UUID. InstrumentID, BuyerID, SellerID and
// TotalPrice never change after creation.
type Order struct {
	ID            string          `gorm:"primaryKey;size:36"`
	InstrumentID  uint64          `gorm:"column:instrument_id;not null;index"`
	BuyerID       uint64          `gorm:"column:buyer_id;not null;index"`
	SellerID      uint64          `gorm:"column:seller_id;not null;index"`
	Quantity      int             `gorm:"not null;default:1"`
	TotalPrice    decimal.Decimal `gorm:"column:total_price;type:decimal(10,2);not null"`
	Status        OrderStatus     `gorm:"size:16;not null;default:pending;index"`
	PaymentMethod string          `gorm:"column:payment_method;size:50"`
	MeetingTime   *time.Time      `gorm:"column:meeting_time"`
	MeetingPlace  string          `gorm:"column:meeting_place;size:200"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime"`
	Instrument    *Instrument     `gorm:"foreignKey:InstrumentID"`
}

func (Order) TableName() string {
	return "orders"
}
