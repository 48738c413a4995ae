package model

import "time"

const (
	NotificationTypeOrderCreated  = "order_created"
	NotificationTypeOrderStatus   = "order_status"
	NotificationTypeContactSeller = "contact_seller"
)

type Notification struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement"`
	UserID       uint64     `gorm:"column:user_id;index;not null"`
	Type         string     `gorm:"column:type;size:64;not null"`
	Title        string     `gorm:"column:title;size:255"`
	Body         string     `gorm:"column:body;type:text"`
	InstrumentID *uint64    `gorm:"column:instrument_id;index"`
	OrderID      *string    `gorm:"column:order_id;size:36;index"`
	ReadAt       *time.Time `gorm:"column:read_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}
