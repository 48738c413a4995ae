package repository

import (
	"context"

	"github.com/shinyyama/instrument-market/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepository interface {
	// Add creates the (user, instrument) entry or increments its quantity.
	Add(ctx context.Context, userID, instrumentID uint64, quantity int) (*model.CartItem, error)
	FindByID(ctx context.Context, id uint64) (*model.CartItem, error)
	Delete(ctx context.Context, id uint64) error
	DeleteByUserInstrument(ctx context.Context, userID, instrumentID uint64) error
	ListByUser(ctx context.Context, userID uint64) ([]model.CartItem, error)
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) Add(ctx context.Context, userID, instrumentID uint64, quantity int) (*model.CartItem, error) {
	db := conn(ctx, r.db)
	item := model.CartItem{UserID: userID, InstrumentID: instrumentID, Quantity: quantity}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "instrument_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + ?", quantity),
			"updated_at": db.NowFunc(),
		}),
	}).Create(&item).Error; err != nil {
		return nil, err
	}
	var stored model.CartItem
	if err := db.Where("user_id = ? AND instrument_id = ?", userID, instrumentID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *cartRepository) FindByID(ctx context.Context, id uint64) (*model.CartItem, error) {
	var item model.CartItem
	if err := conn(ctx, r.db).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) Delete(ctx context.Context, id uint64) error {
	res := conn(ctx, r.db).Delete(&model.CartItem{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *cartRepository) DeleteByUserInstrument(ctx context.Context, userID, instrumentID uint64) error {
	return conn(ctx, r.db).
		Where("user_id = ? AND instrument_id = ?", userID, instrumentID).
		Delete(&model.CartItem{}).Error
}

func (r *cartRepository) ListByUser(ctx context.Context, userID uint64) ([]model.CartItem, error) {
	var list []model.CartItem
	if err := conn(ctx, r.db).
		Preload("Instrument").
		Preload("Instrument.Images", orderedImages).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
