package model

import "time"

type Favorite struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	UserID       uint64    `gorm:"column:user_id;not null;uniqueIndex:uk_favorites_user_instrument,priority:1"`
	InstrumentID uint64    `gorm:"column:instrument_id;not null;uniqueIndex:uk_favorites_user_instrument,priority:2;index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (Favorite) TableName() string {
	return "favorites"
}
