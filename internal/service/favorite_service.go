package service

import (
	"context"

	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shinyyama/instrument-market/internal/repository"
)

type FavoriteService interface {
	// Toggle flips the favorite state and returns the new state together with
	// the listing's favorite_count.
	Toggle(ctx context.Context, userID, instrumentID uint64) (bool, int64, error)
	List(ctx context.Context, userID uint64) ([]model.Instrument, error)
}

type favoriteService struct {
	tx          repository.Transactor
	favorites   repository.FavoriteRepository
	instruments repository.InstrumentRepository
}

func NewFavoriteService(tx repository.Transactor, favorites repository.FavoriteRepository, instruments repository.InstrumentRepository) FavoriteService {
	return &favoriteService{tx: tx, favorites: favorites, instruments: instruments}
}

func (s *favoriteService) Toggle(ctx context.Context, userID, instrumentID uint64) (bool, int64, error) {
	var (
		favorited bool
		count     int64
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		inst, err := s.instruments.FindByIDForUpdate(ctx, instrumentID)
		if err != nil {
			return notFound(err, "instrument")
		}

		deleted, err := s.favorites.Delete(ctx, userID, instrumentID)
		if err != nil {
			return err
		}
		if deleted {
			if err := s.instruments.AdjustFavoriteCount(ctx, instrumentID, -1); err != nil {
				return err
			}
		} else {
			if inst.Status != model.InstrumentStatusAvailable {
				return conflict("instrument %d is not available", instrumentID)
			}
			inserted, err := s.favorites.Insert(ctx, userID, instrumentID)
			if err != nil {
				return err
			}
			if inserted {
				if err := s.instruments.AdjustFavoriteCount(ctx, instrumentID, 1); err != nil {
					return err
				}
			}
			favorited = true
		}

		fresh, err := s.instruments.FindByID(ctx, instrumentID)
		if err != nil {
			return err
		}
		count = fresh.FavoriteCount
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return favorited, count, nil
}

func (s *favoriteService) List(ctx context.Context, userID uint64) ([]model.Instrument, error) {
	return s.favorites.ListInstruments(ctx, userID)
}
