package repository

import (
	"context"
	"strings"

	"github.com/shinyyama/instrument-market/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CategoryRepository interface {
	List(ctx context.Context) ([]model.Category, error)
	FindByID(ctx context.Context, id uint64) (*model.Category, error)
	SearchByName(ctx context.Context, q string, limit int) ([]model.Category, error)
	EnsureDefaults(ctx context.Context, defaults []model.Category) (int64, error)
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) List(ctx context.Context) ([]model.Category, error) {
	var list []model.Category
	if err := conn(ctx, r.db).Order("sort_order ASC").Order("name ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *categoryRepository) FindByID(ctx context.Context, id uint64) (*model.Category, error) {
	var c model.Category
	if err := conn(ctx, r.db).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepository) SearchByName(ctx context.Context, q string, limit int) ([]model.Category, error) {
	var list []model.Category
	if err := conn(ctx, r.db).
		Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%").
		Order("sort_order ASC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// EnsureDefaults inserts categories whose name is not present yet and returns
// how many rows were added.
func (r *categoryRepository) EnsureDefaults(ctx context.Context, defaults []model.Category) (int64, error) {
	if len(defaults) == 0 {
		return 0, nil
	}
	res := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&defaults)
	return res.RowsAffected, res.Error
}
