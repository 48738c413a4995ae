package model

import "time"

type ViewHistory struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	UserID       uint64    `gorm:"column:user_id;not null;index"`
	InstrumentID uint64    `gorm:"column:instrument_id;not null;index"`
	ViewedAt     time.Time `gorm:"column:viewed_at;autoCreateTime"`
}

func (ViewHistory) TableName() string {
	return "view_histories"
}
