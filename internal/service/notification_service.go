package service

import (
	"context"

	"github.com/shinyyama/instrument-market/internal/logging"
	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shinyyama/instrument-market/internal/repository"
)

type NotificationService interface {
	Notify(ctx context.Context, userID uint64, typ, title, body string, instrumentID *uint64, orderID *string)
	List(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	// MarkRead marks ids as read, or everything when ids is empty.
	MarkRead(ctx context.Context, userID uint64, ids []uint64) (int64, error)
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

// Notify is best-effort; it logs errors but does not return them to avoid breaking main flows.
func (s *notificationService) Notify(ctx context.Context, userID uint64, typ, title, body string, instrumentID *uint64, orderID *string) {
	if userID == 0 || typ == "" {
		return
	}
	n := &model.Notification{
		UserID:       userID,
		Type:         typ,
		Title:        title,
		Body:         body,
		InstrumentID: instrumentID,
		OrderID:      orderID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		logging.FromContext(ctx).Warn("notification failed",
			"user_id", userID,
			"type", typ,
			"err", err,
		)
	}
}

func (s *notificationService) List(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userID == 0 {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID uint64, ids []uint64) (int64, error) {
	if userID == 0 {
		return 0, nil
	}
	return s.repo.MarkRead(ctx, userID, ids)
}
