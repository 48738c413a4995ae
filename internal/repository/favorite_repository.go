package repository

import (
	"context"

	"github.com/shinyyama/instrument-market/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FavoriteRepository interface {
	// Insert reports whether a new row was written.
	Insert(ctx context.Context, userID, instrumentID uint64) (bool, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, userID, instrumentID uint64) (bool, error)
	Exists(ctx context.Context, userID, instrumentID uint64) (bool, error)
	CountByInstrument(ctx context.Context, instrumentID uint64) (int64, error)
	ListInstruments(ctx context.Context, userID uint64) ([]model.Instrument, error)
}

type favoriteRepository struct {
	db *gorm.DB
}

func NewFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

func (r *favoriteRepository) Insert(ctx context.Context, userID, instrumentID uint64) (bool, error) {
	res := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "instrument_id"}},
		DoNothing: true,
	}).Create(&model.Favorite{UserID: userID, InstrumentID: instrumentID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *favoriteRepository) Delete(ctx context.Context, userID, instrumentID uint64) (bool, error) {
	res := conn(ctx, r.db).
		Where("user_id = ? AND instrument_id = ?", userID, instrumentID).
		Delete(&model.Favorite{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *favoriteRepository) Exists(ctx context.Context, userID, instrumentID uint64) (bool, error) {
	var cnt int64
	if err := conn(ctx, r.db).
		Model(&model.Favorite{}).
		Where("user_id = ? AND instrument_id = ?", userID, instrumentID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *favoriteRepository) CountByInstrument(ctx context.Context, instrumentID uint64) (int64, error) {
	var cnt int64
	if err := conn(ctx, r.db).
		Model(&model.Favorite{}).
		Where("instrument_id = ?", instrumentID).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

// ListInstruments returns the user's favorited listings that are still
// available, most recently favorited first.
func (r *favoriteRepository) ListInstruments(ctx context.Context, userID uint64) ([]model.Instrument, error) {
	var list []model.Instrument
	if err := conn(ctx, r.db).
		Preload("Images", orderedImages).
		Preload("Category").
		Joins("JOIN favorites ON favorites.instrument_id = instruments.id").
		Where("favorites.user_id = ? AND instruments.status = ?", userID, model.InstrumentStatusAvailable).
		Order("favorites.created_at DESC").
		Order("favorites.id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
