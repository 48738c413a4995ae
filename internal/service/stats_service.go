package service

import (
	"context"
	"errors"
	"time"

	"github.com/shinyyama/instrument-market/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Counter struct {
	Total int64
	Today int64
}

type Dashboard struct {
	Users       Counter
	Instruments Counter
	Orders      Counter
	Sales       decimal.Decimal
	SalesToday  decimal.Decimal
}

type StatsService interface {
	Dashboard(ctx context.Context, actorID uint64) (*Dashboard, error)
}

type statsService struct {
	users       repository.UserRepository
	instruments repository.InstrumentRepository
	orders      repository.OrderRepository
	now         func() time.Time
}

func NewStatsService(users repository.UserRepository, instruments repository.InstrumentRepository, orders repository.OrderRepository) StatsService {
	return &statsService{users: users, instruments: instruments, orders: orders, now: time.Now}
}

func (s *statsService) Dashboard(ctx context.Context, actorID uint64) (*Dashboard, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, forbidden("admin only")
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var d Dashboard
	counters := []struct {
		dst   *Counter
		count func(context.Context, *time.Time) (int64, error)
	}{
		{&d.Users, s.users.Count},
		{&d.Instruments, s.instruments.Count},
		{&d.Orders, s.orders.Count},
	}
	for _, c := range counters {
		if c.dst.Total, err = c.count(ctx, nil); err != nil {
			return nil, err
		}
		if c.dst.Today, err = c.count(ctx, &today); err != nil {
			return nil, err
		}
	}
	if d.Sales, err = s.orders.SumCompleted(ctx, nil); err != nil {
		return nil, err
	}
	if d.SalesToday, err = s.orders.SumCompleted(ctx, &today); err != nil {
		return nil, err
	}
	return &d, nil
}
