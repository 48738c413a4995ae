package repository

import (
	"context"

	"github.com/shinyyama/instrument-market/internal/model"
	"gorm.io/gorm"
)

const maxNotificationPage = 50

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error)
	// MarkRead marks the given notifications of userID as read, or all of
	// them when ids is empty. It returns the number of rows changed.
	MarkRead(ctx context.Context, userID uint64, ids []uint64) (int64, error)
	CountUnread(ctx context.Context, userID uint64) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return conn(ctx, r.db).Create(n).Error
}

func unread(userID uint64) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ? AND read_at IS NULL", userID)
	}
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > maxNotificationPage {
		limit = 20
	}
	q := conn(ctx, r.db).Model(&model.Notification{})
	if unreadOnly {
		q = q.Scopes(unread(userID))
	} else {
		q = q.Where("user_id = ?", userID)
	}
	var list []model.Notification
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID uint64, ids []uint64) (int64, error) {
	db := conn(ctx, r.db)
	q := db.Model(&model.Notification{}).Scopes(unread(userID))
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Update("read_at", db.NowFunc())
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uint64) (int64, error) {
	var cnt int64
	err := conn(ctx, r.db).Model(&model.Notification{}).Scopes(unread(userID)).Count(&cnt).Error
	return cnt, err
}
