package model

import "time"

type InstrumentImage struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	InstrumentID uint64    `gorm:"column:instrument_id;not null;index:idx_instrument_images_instrument_id"`
	ImageURL     string    `gorm:"column:image_url;size:512;not null"`
	IsMain       bool      `gorm:"column:is_main;not null;default:false"`
	SortOrder    int       `gorm:"column:sort_order;not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (InstrumentImage) TableName() string {
	return "instrument_images"
}
