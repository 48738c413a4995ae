package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentStatus is the availability of a listing. Only the order lifecycle
// moves a listing into or out of pending and sold.
type InstrumentStatus string

const (
	InstrumentStatusAvailable InstrumentStatus = "available"
	InstrumentStatusPending   InstrumentStatus = "pending"
	InstrumentStatusSold      InstrumentStatus = "sold"
	InstrumentStatusRemoved   InstrumentStatus = "removed"
)

func (s InstrumentStatus) Valid() bool {
	switch s {
	case InstrumentStatusAvailable, InstrumentStatusPending, InstrumentStatusSold, InstrumentStatusRemoved:
		return true
	}
	return false
}

type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like_new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionPoor    Condition = "poor"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

type Instrument struct {
	ID            uint64            `gorm:"primaryKey;autoIncrement"`
	Title         string            `gorm:"size:100;not null"`
	Description   string            `gorm:"type:text"`
	Price         decimal.Decimal   `gorm:"type:decimal(10,2);not null"`
	OriginalPrice *decimal.Decimal  `gorm:"column:original_price;type:decimal(10,2)"`
	CategoryID    *uint64           `gorm:"column:category_id;index:idx_instruments_category_status,priority:1"`
	OwnerID       uint64            `gorm:"column:owner_id;not null;index:idx_instruments_owner_status,priority:1"`
	Condition     Condition         `gorm:"column:instrument_condition;size:16;not null;default:good"`
	Brand         string            `gorm:"size:50"`
	Model         string            `gorm:"size:50"`
	Status        InstrumentStatus  `gorm:"size:16;not null;default:available;index:idx_instruments_status_created,priority:1;index:idx_instruments_category_status,priority:2;index:idx_instruments_owner_status,priority:2"`
	ViewCount     int64             `gorm:"column:view_count;not null;default:0"`
	FavoriteCount int64             `gorm:"column:favorite_count;not null;default:0"`
	Location      string            `gorm:"size:200"`
	AudioURL      *string           `gorm:"column:audio_url;size:512"`
	CreatedAt     time.Time         `gorm:"autoCreateTime;index:idx_instruments_status_created,priority:2"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime"`
	Images        []InstrumentImage `gorm:"foreignKey:InstrumentID"`
	Owner         *User             `gorm:"foreignKey:OwnerID"`
	Category      *Category         `gorm:"foreignKey:CategoryID"`
}

func (Instrument) TableName() string {
	return "instruments"
}

// MainImage returns the image flagged as main, falling back to the first one.
func (i *Instrument) MainImage() *string {
	for k := range i.Images {
		if i.Images[k].IsMain {
			return &i.Images[k].ImageURL
		}
	}
	if len(i.Images) > 0 {
		return &i.Images[0].ImageURL
	}
	return nil
}
