package model

import "time"

type CartItem struct {
	ID           uint64      `gorm:"primaryKey;autoIncrement"`
	UserID       uint64      `gorm:"column:user_id;not null;uniqueIndex:uk_cart_items_user_instrument,priority:1"`
	InstrumentID uint64      `gorm:"column:instrument_id;not null;uniqueIndex:uk_cart_items_user_instrument,priority:2;index"`
	Quantity     int         `gorm:"not null;default:1"`
	CreatedAt    time.Time   `gorm:"autoCreateTime"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime"`
	Instrument   *Instrument `gorm:"foreignKey:InstrumentID"`
}

func (CartItem) TableName() string {
	return "cart_items"
}
