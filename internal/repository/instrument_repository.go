package repository

import (
	"context"
	"strings"
	"time"

	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InstrumentFilter selects available listings for the public catalog.
type InstrumentFilter struct {
	Keyword    string
	CategoryID *uint64
	Condition  model.Condition
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	SortBy     string
	SortDesc   bool
	Offset     int
	Limit      int
}

var sortColumns = map[string]string{
	"created_at":     "created_at",
	"price":          "price",
	"view_count":     "view_count",
	"favorite_count": "favorite_count",
	"title":          "title",
}

// SortColumn maps a public sort key to its column, falling back to created_at.
func SortColumn(key string) string {
	if col, ok := sortColumns[key]; ok {
		return col
	}
	return "created_at"
}

type InstrumentRepository interface {
	Create(ctx context.Context, inst *model.Instrument) error
	FindByID(ctx context.Context, id uint64) (*model.Instrument, error)
	FindByIDForUpdate(ctx context.Context, id uint64) (*model.Instrument, error)
	FindDetail(ctx context.Context, id uint64) (*model.Instrument, error)
	Search(ctx context.Context, f InstrumentFilter) ([]model.Instrument, int64, error)
	Hot(ctx context.Context, since time.Time, limit int) ([]model.Instrument, error)
	ListByOwner(ctx context.Context, ownerID uint64, onlyAvailable bool, offset, limit int) ([]model.Instrument, int64, error)
	Suggest(ctx context.Context, q string, limit int) ([]model.Instrument, error)
	Update(ctx context.Context, id uint64, fields map[string]interface{}) error
	TransitionStatus(ctx context.Context, id uint64, from []model.InstrumentStatus, to model.InstrumentStatus) (bool, error)
	IncrementViewCount(ctx context.Context, id uint64) error
	AdjustFavoriteCount(ctx context.Context, id uint64, delta int64) error
	RecordView(ctx context.Context, userID, instrumentID uint64) error
	ReplaceImages(ctx context.Context, id uint64, images []model.InstrumentImage) error
	AddImages(ctx context.Context, id uint64, images []model.InstrumentImage) error
	Purge(ctx context.Context, id uint64) error
	Count(ctx context.Context, since *time.Time) (int64, error)
}

type instrumentRepository struct {
	db *gorm.DB
}

func NewInstrumentRepository(db *gorm.DB) InstrumentRepository {
	return &instrumentRepository{db: db}
}

func orderedImages(db *gorm.DB) *gorm.DB {
	return db.Order("is_main DESC").Order("sort_order ASC").Order("id ASC")
}

func (r *instrumentRepository) Create(ctx context.Context, inst *model.Instrument) error {
	return conn(ctx, r.db).Create(inst).Error
}

func (r *instrumentRepository) FindByID(ctx context.Context, id uint64) (*model.Instrument, error) {
	var inst model.Instrument
	if err := conn(ctx, r.db).First(&inst, id).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *instrumentRepository) FindByIDForUpdate(ctx context.Context, id uint64) (*model.Instrument, error) {
	var inst model.Instrument
	if err := forUpdate(conn(ctx, r.db)).First(&inst, id).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *instrumentRepository) FindDetail(ctx context.Context, id uint64) (*model.Instrument, error) {
	var inst model.Instrument
	if err := conn(ctx, r.db).
		Preload("Images", orderedImages).
		Preload("Owner").
		Preload("Category").
		First(&inst, id).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

func (f InstrumentFilter) scope(db *gorm.DB) *gorm.DB {
	db = db.Where("status = ?", model.InstrumentStatusAvailable)
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		like := "%" + strings.ToLower(kw) + "%"
		db = db.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(brand) LIKE ? OR LOWER(model) LIKE ?)", like, like, like, like)
	}
	if f.CategoryID != nil {
		db = db.Where("category_id = ?", *f.CategoryID)
	}
	if f.Condition != "" {
		db = db.Where("instrument_condition = ?", f.Condition)
	}
	if f.MinPrice != nil {
		db = db.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		db = db.Where("price <= ?", *f.MaxPrice)
	}
	return db
}

func (r *instrumentRepository) Search(ctx context.Context, f InstrumentFilter) ([]model.Instrument, int64, error) {
	var total int64
	if err := conn(ctx, r.db).Model(&model.Instrument{}).Scopes(f.scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	dir := " ASC"
	if f.SortDesc {
		dir = " DESC"
	}
	var list []model.Instrument
	if err := conn(ctx, r.db).
		Scopes(f.scope).
		Preload("Images", orderedImages).
		Preload("Category").
		Order(SortColumn(f.SortBy) + dir).
		Order("id DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *instrumentRepository) Hot(ctx context.Context, since time.Time, limit int) ([]model.Instrument, error) {
	var list []model.Instrument
	if err := conn(ctx, r.db).
		Preload("Images", orderedImages).
		Preload("Category").
		Where("status = ? AND created_at >= ?", model.InstrumentStatusAvailable, since).
		Order("(view_count + 2 * favorite_count) DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *instrumentRepository) ListByOwner(ctx context.Context, ownerID uint64, onlyAvailable bool, offset, limit int) ([]model.Instrument, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("owner_id = ?", ownerID)
		if onlyAvailable {
			db = db.Where("status = ?", model.InstrumentStatusAvailable)
		}
		return db
	}
	var total int64
	if err := conn(ctx, r.db).Model(&model.Instrument{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q := conn(ctx, r.db).
		Scopes(scope).
		Preload("Images", orderedImages).
		Preload("Category").
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	var list []model.Instrument
	if err := q.Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *instrumentRepository) Suggest(ctx context.Context, q string, limit int) ([]model.Instrument, error) {
	var list []model.Instrument
	if err := conn(ctx, r.db).
		Where("status = ? AND LOWER(title) LIKE ?", model.InstrumentStatusAvailable, "%"+strings.ToLower(q)+"%").
		Order("view_count DESC").
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *instrumentRepository) Update(ctx context.Context, id uint64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := conn(ctx, r.db).Model(&model.Instrument{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TransitionStatus moves the listing to `to` only while its status is one of
// `from`. It reports whether a row changed.
func (r *instrumentRepository) TransitionStatus(ctx context.Context, id uint64, from []model.InstrumentStatus, to model.InstrumentStatus) (bool, error) {
	res := conn(ctx, r.db).
		Model(&model.Instrument{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{"status": to})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *instrumentRepository) IncrementViewCount(ctx context.Context, id uint64) error {
	res := conn(ctx, r.db).
		Model(&model.Instrument{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AdjustFavoriteCount applies delta without letting the counter go below zero.
func (r *instrumentRepository) AdjustFavoriteCount(ctx context.Context, id uint64, delta int64) error {
	if delta == 0 {
		return nil
	}
	expr := gorm.Expr("favorite_count + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN favorite_count > ? THEN favorite_count - ? ELSE 0 END", -delta, -delta)
	}
	return conn(ctx, r.db).
		Model(&model.Instrument{}).
		Where("id = ?", id).
		UpdateColumn("favorite_count", expr).Error
}

func (r *instrumentRepository) RecordView(ctx context.Context, userID, instrumentID uint64) error {
	return conn(ctx, r.db).Create(&model.ViewHistory{UserID: userID, InstrumentID: instrumentID}).Error
}

func (r *instrumentRepository) ReplaceImages(ctx context.Context, id uint64, images []model.InstrumentImage) error {
	db := conn(ctx, r.db)
	if err := db.Where("instrument_id = ?", id).Delete(&model.InstrumentImage{}).Error; err != nil {
		return err
	}
	if len(images) == 0 {
		return nil
	}
	for i := range images {
		images[i].InstrumentID = id
	}
	return db.Create(&images).Error
}

// AddImages appends images after the existing ones. If any new image is
// flagged main, the previous main image loses the flag.
func (r *instrumentRepository) AddImages(ctx context.Context, id uint64, images []model.InstrumentImage) error {
	if len(images) == 0 {
		return nil
	}
	db := conn(ctx, r.db)
	var maxOrder struct{ Max *int }
	if err := db.Model(&model.InstrumentImage{}).
		Select("MAX(sort_order) AS max").
		Where("instrument_id = ?", id).
		Scan(&maxOrder).Error; err != nil {
		return err
	}
	next := 0
	if maxOrder.Max != nil {
		next = *maxOrder.Max + 1
	}
	hasMain := false
	for i := range images {
		images[i].InstrumentID = id
		images[i].SortOrder = next + i
		hasMain = hasMain || images[i].IsMain
	}
	if hasMain {
		if err := db.Model(&model.InstrumentImage{}).
			Where("instrument_id = ? AND is_main = ?", id, true).
			Update("is_main", false).Error; err != nil {
			return err
		}
	}
	return db.Create(&images).Error
}

// Purge deletes the listing together with its images, favorites, cart entries
// and view history. Callers must make sure no order references it.
func (r *instrumentRepository) Purge(ctx context.Context, id uint64) error {
	db := conn(ctx, r.db)
	for _, dep := range []interface{}{
		&model.InstrumentImage{},
		&model.Favorite{},
		&model.CartItem{},
		&model.ViewHistory{},
	} {
		if err := db.Where("instrument_id = ?", id).Delete(dep).Error; err != nil {
			return err
		}
	}
	res := db.Delete(&model.Instrument{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *instrumentRepository) Count(ctx context.Context, since *time.Time) (int64, error) {
	var cnt int64
	q := conn(ctx, r.db).Model(&model.Instrument{})
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	if err := q.Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}
