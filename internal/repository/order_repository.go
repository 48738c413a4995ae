package repository

import (
	"context"
	"time"

	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Party selects which side of an order a listing query looks at.
type Party string

const (
	PartyAny    Party = ""
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
)

type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.Order, error)
	FindDetail(ctx context.Context, id string) (*model.Order, error)
	// TransitionStatus applies `to` (plus extra columns) only while the order
	// is still in `from`. It reports whether a row changed.
	TransitionStatus(ctx context.Context, id string, from, to model.OrderStatus, extra map[string]interface{}) (bool, error)
	UpdateMeeting(ctx context.Context, id string, fields map[string]interface{}) error
	ListByParty(ctx context.Context, userID uint64, party Party) ([]model.Order, error)
	CountByInstrument(ctx context.Context, instrumentID uint64, statuses ...model.OrderStatus) (int64, error)
	Count(ctx context.Context, since *time.Time) (int64, error)
	SumCompleted(ctx context.Context, since *time.Time) (decimal.Decimal, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, o *model.Order) error {
	return conn(ctx, r.db).Create(o).Error
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	if err := conn(ctx, r.db).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	if err := forUpdate(conn(ctx, r.db)).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) FindDetail(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	if err := conn(ctx, r.db).
		Preload("Instrument").
		Preload("Instrument.Images", orderedImages).
		Where("id = ?", id).
		First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) TransitionStatus(ctx context.Context, id string, from, to model.OrderStatus, extra map[string]interface{}) (bool, error) {
	fields := map[string]interface{}{"status": to}
	for k, v := range extra {
		fields[k] = v
	}
	res := conn(ctx, r.db).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateMeeting writes meeting metadata. Callers lock the row with
// FindByIDForUpdate and check the status first: MySQL reports matched rows
// with unchanged values as unaffected, so RowsAffected is not a usable guard.
func (r *orderRepository) UpdateMeeting(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return conn(ctx, r.db).
		Model(&model.Order{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *orderRepository) ListByParty(ctx context.Context, userID uint64, party Party) ([]model.Order, error) {
	q := conn(ctx, r.db).
		Preload("Instrument").
		Preload("Instrument.Images", orderedImages)
	switch party {
	case PartyBuyer:
		q = q.Where("buyer_id = ?", userID)
	case PartySeller:
		q = q.Where("seller_id = ?", userID)
	default:
		q = q.Where("buyer_id = ? OR seller_id = ?", userID, userID)
	}
	var list []model.Order
	if err := q.Order("created_at DESC").Order("id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepository) CountByInstrument(ctx context.Context, instrumentID uint64, statuses ...model.OrderStatus) (int64, error) {
	var cnt int64
	q := conn(ctx, r.db).Model(&model.Order{}).Where("instrument_id = ?", instrumentID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

func (r *orderRepository) Count(ctx context.Context, since *time.Time) (int64, error) {
	var cnt int64
	q := conn(ctx, r.db).Model(&model.Order{})
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	if err := q.Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

func (r *orderRepository) SumCompleted(ctx context.Context, since *time.Time) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	q := conn(ctx, r.db).
		Model(&model.Order{}).
		Select("SUM(total_price)").
		Where("status = ?", model.OrderStatusCompleted)
	if since != nil {
		q = q.Where("updated_at >= ?", *since)
	}
	if err := q.Row().Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
